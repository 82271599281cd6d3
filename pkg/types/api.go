package types

// GenerateRequest is the payload accepted by POST /generate.
type GenerateRequest struct {
	// Text prompt describing the image to render.
	// example: A humanoid eagle soldier of the First World War.
	Caption string `json:"caption" example:"A humanoid eagle soldier of the First World War."`
	// Output resolution, either "WxH" or the extrapolation form
	// "(Extrapolation) WxH". Dimensions must be positive multiples of 8.
	// example: 1024x1024
	Resolution string `json:"resolution" example:"1024x1024"`
	// Number of denoising steps (1..1000).
	// example: 60
	NumSamplingSteps int `json:"num_sampling_steps,omitempty" example:"60"`
	// Classifier-free guidance scale (1..20).
	// example: 4
	CFGScale float64 `json:"cfg_scale,omitempty" example:"4"`
	// ODE solver name: euler, midpoint, rk4 or dopri5.
	// example: euler
	Solver string `json:"solver,omitempty" example:"euler"`
	// Time shifting factor applied to the step grid (1..20).
	// example: 4
	TimeShift float64 `json:"time_shift,omitempty" example:"4"`
	// Random seed; 0 picks a fresh seed per request.
	// example: 1
	Seed int64 `json:"seed,omitempty" example:"1"`
	// Enable NTK-aware positional scaling for extrapolated resolutions.
	// example: true
	NTKScaling bool `json:"ntk_scaling,omitempty" example:"true"`
	// Enable proportional attention scaling for extrapolated resolutions.
	// example: true
	ProportionalAttn bool `json:"proportional_attn,omitempty" example:"true"`
	// Response encoding: "png" (default, raw image body) or "json"
	// (metadata plus base64 image).
	// example: png
	Encode string `json:"encode,omitempty" example:"png"`
}

// GenerateResponse is returned by POST /generate when encode=json.
type GenerateResponse struct {
	// Identifier assigned to this generation request.
	// example: 6ba7b810-9dad-11d1-80b4-00c04fd430c8
	RequestID string `json:"request_id" example:"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`
	// Actual seed used (resolved when the request asked for 0).
	// example: 42
	Seed int64 `json:"seed" example:"42"`
	// Wall-clock sampling duration in milliseconds.
	// example: 1830
	DurationMS int64 `json:"duration_ms" example:"1830"`
	// Number of solver steps taken (accepted steps for adaptive solvers).
	// example: 60
	Steps int `json:"steps" example:"60"`
	// Base64-encoded PNG image.
	Image string `json:"image_base64"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// WorkerStatus summarizes one sampling worker for /status.
type WorkerStatus struct {
	// Device rank served by this worker.
	// example: 0
	Rank int `json:"rank" example:"0"`
	// Lifecycle state of the worker (loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Last time this worker finished a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Current queue length for incoming requests.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of in-flight requests (0 or 1; workers are single-flight).
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 8
	MaxQueueDepth int `json:"max_queue_depth" example:"8"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Sampling workers, one per device.
	Workers []WorkerStatus `json:"workers"`
	// Overall pool state (loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Last error observed by the pool (if any).
	LastError string `json:"last_error,omitempty"`
	// Total generations completed successfully.
	// example: 12
	GenerationsTotal uint64 `json:"generations_total" example:"12"`
	// Total generations that ended in a failure sentinel.
	// example: 1
	FailuresTotal uint64 `json:"failures_total" example:"1"`
	// Uptime of the daemon in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// ProgressEvent is pushed over GET /ws while a request is sampling.
type ProgressEvent struct {
	// Identifier of the generation request the step belongs to.
	// example: 6ba7b810-9dad-11d1-80b4-00c04fd430c8
	RequestID string `json:"request_id" example:"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`
	// Solver steps completed so far.
	// example: 30
	Step int `json:"step" example:"30"`
	// Total steps for fixed-grid solvers; 0 when the solver is adaptive.
	// example: 60
	Total int `json:"total" example:"60"`
}
