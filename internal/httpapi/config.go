package httpapi

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// Sampling defaults applied to /generate requests that omit a field. They
// mirror the daemon's startup flags.
var (
	defaultSteps     = 30
	defaultCFGScale  = 4.0
	defaultSolver    = "euler"
	defaultTimeShift = 4.0
)

// SetSamplingDefaults configures the values filled into generate requests
// that leave the corresponding field unset.
func SetSamplingDefaults(steps int, cfgScale float64, solver string, timeShift float64) {
	if steps > 0 {
		defaultSteps = steps
	}
	if cfgScale > 0 {
		defaultCFGScale = cfgScale
	}
	if solver != "" {
		defaultSolver = solver
	}
	if timeShift > 0 {
		defaultTimeShift = timeShift
	}
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
