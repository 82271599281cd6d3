package worker

import (
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"luminad/internal/diffusion"
	"luminad/internal/transport"
)

// Request mirrors the parameter tuple the front end enqueues for a worker:
// caption, resolution, step count, guidance scale, solver, time shift, seed
// and the two extrapolation toggles, plus a request id and an optional
// progress sink.
type Request struct {
	ID               uuid.UUID
	Caption          string
	Resolution       string
	Steps            int
	CFGScale         float64
	Solver           string
	TimeShift        float64
	Seed             int64
	NTKScaling       bool
	ProportionalAttn bool

	// UseSDE selects the stochastic sampler instead of the ODE solver
	// (the Solver field is ignored in that case).
	UseSDE bool

	// Progress, when set, receives (step, total) as the solver advances;
	// total is 0 for adaptive solvers. Called from the worker goroutine.
	Progress func(step, total int)
}

// Result is the worker's reply: a rendered image, or the failure sentinel
// when Failed is set (the cause stays inside the worker log).
type Result struct {
	ID       uuid.UUID
	Image    image.Image
	Seed     int64
	Steps    int
	Duration time.Duration
	Failed   bool
}

const (
	maxSteps     = 1000
	maxCFGScale  = 20
	maxTimeShift = 20
	maxSeed      = 100000
	maxDimension = 4096
)

// ParseResolution accepts "WxH" or the UI's "(Extrapolation) WxH" form and
// returns pixel dimensions. Dimensions must be positive multiples of the
// VAE stride and within the supported bound.
func ParseResolution(s string) (w, h int, err error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, 0, ErrValidation("resolution is required")
	}
	dims := strings.Split(fields[len(fields)-1], "x")
	if len(dims) != 2 {
		return 0, 0, ErrValidation("resolution %q is not of the form WxH", s)
	}
	w, werr := strconv.Atoi(dims[0])
	h, herr := strconv.Atoi(dims[1])
	if werr != nil || herr != nil || w <= 0 || h <= 0 {
		return 0, 0, ErrValidation("resolution %q has non-positive dimensions", s)
	}
	if w%diffusion.LatentDownsample != 0 || h%diffusion.LatentDownsample != 0 {
		return 0, 0, ErrValidation("resolution %dx%d is not a multiple of %d", w, h, diffusion.LatentDownsample)
	}
	if w > maxDimension || h > maxDimension {
		return 0, 0, ErrValidation("resolution %dx%d exceeds the %d pixel bound", w, h, maxDimension)
	}
	return w, h, nil
}

// Validate checks the request against the UI parameter ranges.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Caption) == "" {
		return ErrValidation("caption is required")
	}
	if !r.UseSDE {
		if _, err := transport.ParseSolverMethod(r.Solver); err != nil {
			return ErrValidation("%v", err)
		}
	}
	if _, _, err := ParseResolution(r.Resolution); err != nil {
		return err
	}
	if r.Steps < 1 || r.Steps > maxSteps {
		return ErrValidation("num_sampling_steps must be in 1..%d, got %d", maxSteps, r.Steps)
	}
	if r.CFGScale < 1 || r.CFGScale > maxCFGScale {
		return ErrValidation("cfg_scale must be in 1..%d, got %g", maxCFGScale, r.CFGScale)
	}
	if r.TimeShift < 1 || r.TimeShift > maxTimeShift {
		return ErrValidation("time_shift must be in 1..%d, got %g", maxTimeShift, r.TimeShift)
	}
	if r.Seed < 0 || r.Seed > maxSeed {
		return ErrValidation("seed must be in 0..%d, got %d", maxSeed, r.Seed)
	}
	return nil
}
