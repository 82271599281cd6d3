package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"luminad/internal/registry"
	"luminad/internal/worker"
	"luminad/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Submit(ctx context.Context, req worker.Request) (worker.Result, error)
	Status() types.StatusResponse
	Ready() bool
}

// NewMux builds the daemon's router. ckpt describes the loaded checkpoint
// for GET /checkpoint; hub may be nil to disable the /ws endpoint.
func NewMux(svc Service, ckpt types.CheckpointInfo, hub *Hub) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Get("/", servePage)

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) { handleGenerate(svc, w, r) })

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/checkpoint", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ckpt); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	if hub != nil {
		r.Get("/ws", hub.handle)
	}

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// handleGenerate godoc
// @Summary      Generate an image from a caption
// @Accept       json
// @Produce      png
// @Produce      json
// @Param        request body types.GenerateRequest true "generation parameters"
// @Success      200 {object} types.GenerateResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      429 {object} types.ErrorResponse
// @Failure      500 {object} types.ErrorResponse
// @Failure      503 {object} types.ErrorResponse
// @Router       /generate [post]
func handleGenerate(svc Service, w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.NumSamplingSteps == 0 {
		req.NumSamplingSteps = defaultSteps
	}
	if req.CFGScale == 0 {
		req.CFGScale = defaultCFGScale
	}
	if req.Solver == "" {
		req.Solver = defaultSolver
	}
	if req.TimeShift == 0 {
		req.TimeShift = defaultTimeShift
	}
	if req.Encode != "" && req.Encode != "png" && req.Encode != "json" {
		writeJSONError(w, http.StatusBadRequest, "encode must be png or json")
		return
	}

	lvl := requestLogLevel(r)
	start := time.Now()
	if lvl >= LevelInfo {
		if zlog != nil {
			z := zlog.Info().Str("path", r.URL.Path).Str("resolution", req.Resolution).Int("steps", req.NumSamplingSteps)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("generate start")
		} else {
			log.Printf("generate start path=%s resolution=%s steps=%d", r.URL.Path, req.Resolution, req.NumSamplingSteps)
		}
	}

	// Join server base context with request context so shutdown cancels work too.
	joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	res, err := svc.Submit(joinedCtx, worker.Request{
		Caption:          req.Caption,
		Resolution:       req.Resolution,
		Steps:            req.NumSamplingSteps,
		CFGScale:         req.CFGScale,
		Solver:           req.Solver,
		TimeShift:        req.TimeShift,
		Seed:             req.Seed,
		NTKScaling:       req.NTKScaling,
		ProportionalAttn: req.ProportionalAttn,
	})
	if err != nil {
		// If context was canceled (client disconnect), just return.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status := http.StatusInternalServerError
		msg := err.Error()
		switch {
		case worker.IsValidation(err):
			status = http.StatusBadRequest
		case worker.IsTooBusy(err):
			status = http.StatusTooManyRequests
			IncrementBackpressure("queue_full")
		case worker.IsNotReady(err):
			status = http.StatusServiceUnavailable
		case registry.IsNotFound(err):
			status = http.StatusNotFound
		case worker.IsGenerationFailed(err):
			// The failure sentinel carries no detail; the worker log has it.
			msg = "generation failed"
			ObserveGeneration("failed", 0, time.Since(start))
		default:
			if he, ok := err.(HTTPError); ok {
				status = he.StatusCode()
			}
		}
		writeJSONError(w, status, msg)
		logGenerateEnd(r, lvl, status, start, err)
		return
	}

	ObserveGeneration("ok", res.Steps, res.Duration)

	var buf bytes.Buffer
	if err := png.Encode(&buf, res.Image); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode image")
		logGenerateEnd(r, lvl, http.StatusInternalServerError, start, err)
		return
	}

	if req.Encode == "json" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.GenerateResponse{
			RequestID:  res.ID.String(),
			Seed:       res.Seed,
			DurationMS: res.Duration.Milliseconds(),
			Steps:      res.Steps,
			Image:      base64.StdEncoding.EncodeToString(buf.Bytes()),
		})
		logGenerateEnd(r, lvl, http.StatusOK, start, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Request-Id", res.ID.String())
	w.Header().Set("X-Seed", strconv.FormatInt(res.Seed, 10))
	w.Header().Set("X-Steps", strconv.Itoa(res.Steps))
	_, _ = w.Write(buf.Bytes())
	logGenerateEnd(r, lvl, http.StatusOK, start, nil)
}

func logGenerateEnd(r *http.Request, lvl LogLevel, status int, start time.Time, err error) {
	if lvl < LevelInfo {
		return
	}
	if zlog != nil {
		z := zlog.Info().Int("status", status).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg("generate end")
		return
	}
	if err != nil {
		log.Printf("generate end status=%d dur=%s err=%v", status, time.Since(start), err)
		return
	}
	log.Printf("generate end status=%d dur=%s", status, time.Since(start))
}
