package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	Ckpt      string `json:"ckpt" yaml:"ckpt" toml:"ckpt"`
	EMA       bool   `json:"ema" yaml:"ema" toml:"ema"`
	Precision string `json:"precision" yaml:"precision" toml:"precision"`
	NumGPUs   int    `json:"num_gpus" yaml:"num_gpus" toml:"num_gpus"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`

	MaxQueueDepth  int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds int `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`

	CORS CORS `json:"cors" yaml:"cors" toml:"cors"`

	Sampling  Sampling  `json:"sampling" yaml:"sampling" toml:"sampling"`
	Transport Transport `json:"transport" yaml:"transport" toml:"transport"`
	ODE       ODE       `json:"ode" yaml:"ode" toml:"ode"`
	SDE       SDE       `json:"sde" yaml:"sde" toml:"sde"`
}

// CORS is opt-in; when Enabled is false no CORS middleware is added.
type CORS struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Sampling holds UI-facing defaults applied when a request omits a field.
type Sampling struct {
	Steps     int     `json:"steps" yaml:"steps" toml:"steps"`
	CFGScale  float64 `json:"cfg_scale" yaml:"cfg_scale" toml:"cfg_scale"`
	Solver    string  `json:"solver" yaml:"solver" toml:"solver"`
	TimeShift float64 `json:"time_shift" yaml:"time_shift" toml:"time_shift"`
}

// Transport mirrors the transport flag group.
type Transport struct {
	PathType   string  `json:"path_type" yaml:"path_type" toml:"path_type"`
	Prediction string  `json:"prediction" yaml:"prediction" toml:"prediction"`
	LossWeight string  `json:"loss_weight" yaml:"loss_weight" toml:"loss_weight"`
	TrainEps   float64 `json:"train_eps" yaml:"train_eps" toml:"train_eps"`
	SampleEps  float64 `json:"sample_eps" yaml:"sample_eps" toml:"sample_eps"`
}

// ODE mirrors the ODE flag group.
type ODE struct {
	ATol       float64 `json:"atol" yaml:"atol" toml:"atol"`
	RTol       float64 `json:"rtol" yaml:"rtol" toml:"rtol"`
	Reverse    bool    `json:"reverse" yaml:"reverse" toml:"reverse"`
	Likelihood bool    `json:"likelihood" yaml:"likelihood" toml:"likelihood"`
}

// SDE mirrors the SDE flag group.
type SDE struct {
	SamplingMethod string  `json:"sampling_method" yaml:"sampling_method" toml:"sampling_method"`
	DiffusionForm  string  `json:"diffusion_form" yaml:"diffusion_form" toml:"diffusion_form"`
	DiffusionNorm  float64 `json:"diffusion_norm" yaml:"diffusion_norm" toml:"diffusion_norm"`
	LastStep       string  `json:"last_step" yaml:"last_step" toml:"last_step"`
	LastStepSize   float64 `json:"last_step_size" yaml:"last_step_size" toml:"last_step_size"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
