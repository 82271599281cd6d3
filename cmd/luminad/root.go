package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"luminad/internal/config"
	"luminad/internal/diffusion"
	"luminad/internal/httpapi"
	"luminad/internal/registry"
	"luminad/internal/transport"
	"luminad/internal/worker"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

const tokenizerEncoding = "cl100k_base"

func newRootCmd() *cobra.Command {
	cfg := &config.Config{}
	var configPath string

	root := &cobra.Command{
		Use:           "luminad",
		Short:         "Text-to-image sampling daemon for pretrained flow-matching models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (.yaml/.json/.toml); flags override file values")
	pf.String("addr", ":8080", "HTTP listen address")
	pf.String("ckpt", "", "Checkpoint directory (required)")
	pf.Bool("ema", false, "Load the EMA weight variant")
	pf.String("precision", "bf16", "Inference precision: bf16|fp32")
	pf.Int("num-gpus", 1, "Number of accelerator devices (only 1 is supported)")
	pf.String("log-level", "info", "Log level: debug|info|warn|error|off")
	pf.Int("max-queue-depth", 8, "Queued requests allowed per worker before 429")
	pf.Int("max-wait-seconds", 30, "Seconds to wait for a queue slot before 429")

	// Transport flag group.
	pf.String("path-type", "Linear", "Interpolation schedule: Linear|GVP|VP")
	pf.String("prediction", "velocity", "Model prediction: velocity|score|noise")
	pf.String("loss-weight", "None", "Loss weighting recorded at training time: None|velocity|likelihood")
	pf.Float64("train-eps", 0, "Training interval epsilon")
	pf.Float64("sample-eps", 0, "Sampling interval epsilon (0 uses the schedule default)")

	// ODE flag group.
	pf.Float64("atol", 1e-6, "Absolute tolerance for adaptive solvers")
	pf.Float64("rtol", 1e-3, "Relative tolerance for adaptive solvers")
	pf.Bool("reverse", false, "Integrate the ODE from data to noise")
	pf.Bool("likelihood", false, "Enable likelihood estimation (not supported)")

	// SDE flag group.
	pf.String("sampling-method", "Euler", "SDE integrator: Euler|Heun")
	pf.String("diffusion-form", "sigma", "Diffusion coefficient form: constant|SBDM|sigma|linear|decreasing|increasing-decreasing")
	pf.Float64("diffusion-norm", 1.0, "Diffusion coefficient magnitude")
	pf.String("last-step", "Mean", "Form of the final SDE step: None|Mean|Tweedie|Euler")
	pf.Float64("last-step-size", 0.04, "Size of the final SDE step")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := resolveConfig(cmd.Root().PersistentFlags(), configPath)
		if err != nil {
			return err
		}
		*cfg = loaded
		setupLogging(cfg.LogLevel)
		return nil
	}

	root.AddCommand(newServeCmd(cfg))
	root.AddCommand(newInferCmd(cfg, false))
	root.AddCommand(newInferCmd(cfg, true))
	root.AddCommand(newVersionCmd())
	return root
}

// resolveConfig merges a config file (if given) with command-line flags.
// A flag the user set explicitly always wins over the file value.
func resolveConfig(f *pflag.FlagSet, configPath string) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	stringFlag := func(name string, dst *string) {
		if f.Changed(name) || *dst == "" {
			*dst, _ = f.GetString(name)
		}
	}
	boolFlag := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}
	intFlag := func(name string, dst *int) {
		if f.Changed(name) || *dst == 0 {
			*dst, _ = f.GetInt(name)
		}
	}
	floatFlag := func(name string, dst *float64) {
		if f.Changed(name) || *dst == 0 {
			*dst, _ = f.GetFloat64(name)
		}
	}

	stringFlag("addr", &cfg.Addr)
	stringFlag("ckpt", &cfg.Ckpt)
	boolFlag("ema", &cfg.EMA)
	stringFlag("precision", &cfg.Precision)
	intFlag("num-gpus", &cfg.NumGPUs)
	stringFlag("log-level", &cfg.LogLevel)
	intFlag("max-queue-depth", &cfg.MaxQueueDepth)
	intFlag("max-wait-seconds", &cfg.MaxWaitSeconds)

	stringFlag("path-type", &cfg.Transport.PathType)
	stringFlag("prediction", &cfg.Transport.Prediction)
	stringFlag("loss-weight", &cfg.Transport.LossWeight)
	floatFlag("train-eps", &cfg.Transport.TrainEps)
	floatFlag("sample-eps", &cfg.Transport.SampleEps)

	floatFlag("atol", &cfg.ODE.ATol)
	floatFlag("rtol", &cfg.ODE.RTol)
	boolFlag("reverse", &cfg.ODE.Reverse)
	boolFlag("likelihood", &cfg.ODE.Likelihood)

	stringFlag("sampling-method", &cfg.SDE.SamplingMethod)
	stringFlag("diffusion-form", &cfg.SDE.DiffusionForm)
	floatFlag("diffusion-norm", &cfg.SDE.DiffusionNorm)
	stringFlag("last-step", &cfg.SDE.LastStep)
	floatFlag("last-step-size", &cfg.SDE.LastStepSize)

	if cfg.Precision != "bf16" && cfg.Precision != "fp32" {
		return cfg, fmt.Errorf("precision must be bf16 or fp32, got %q", cfg.Precision)
	}
	if cfg.ODE.Likelihood {
		return cfg, fmt.Errorf("likelihood estimation is not supported")
	}
	return cfg, nil
}

func setupLogging(level string) {
	if level == "off" {
		level = "disabled"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
	worker.SetLogger(logger)
	httpapi.SetLogger(logger)
}

// buildPool loads the checkpoint and assembles the worker pool shared by
// serve and the one-shot infer commands.
func buildPool(ctx context.Context, cfg *config.Config, publisher worker.EventPublisher) (*worker.Pool, *registry.Checkpoint, error) {
	if cfg.Ckpt == "" {
		return nil, nil, fmt.Errorf("--ckpt is required")
	}
	ckpt, err := registry.Load(ctx, cfg.Ckpt, registry.Options{
		EMA:       cfg.EMA,
		Precision: cfg.Precision,
		Devices:   cfg.NumGPUs,
	})
	if err != nil {
		return nil, nil, err
	}

	tok, err := diffusion.NewTikToken(tokenizerEncoding)
	if err != nil {
		return nil, nil, err
	}

	pool, err := worker.New(worker.Config{
		Devices:    cfg.NumGPUs,
		QueueDepth: cfg.MaxQueueDepth,
		MaxWait:    time.Duration(cfg.MaxWaitSeconds) * time.Second,
		ImageSize:  ckpt.Info.ImageSize,
		Transport: transport.Config{
			PathType:   transport.PathType(cfg.Transport.PathType),
			Prediction: transport.Prediction(cfg.Transport.Prediction),
			LossWeight: transport.LossWeight(cfg.Transport.LossWeight),
			TrainEps:   cfg.Transport.TrainEps,
			SampleEps:  cfg.Transport.SampleEps,
		},
		ATol:    cfg.ODE.ATol,
		RTol:    cfg.ODE.RTol,
		Reverse: cfg.ODE.Reverse,
		SDE: worker.SDEDefaults{
			Method:        cfg.SDE.SamplingMethod,
			DiffusionForm: cfg.SDE.DiffusionForm,
			DiffusionNorm: cfg.SDE.DiffusionNorm,
			LastStep:      cfg.SDE.LastStep,
			LastStepSize:  cfg.SDE.LastStepSize,
		},
		Tokenizer: tok,
		Backend: func(rank int) (*diffusion.Backend, error) {
			return diffusion.NewSimBackend(ckpt.Info.VAE), nil
		},
		Publisher: publisher,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Start(); err != nil {
		return nil, nil, err
	}
	return pool, ckpt, nil
}
