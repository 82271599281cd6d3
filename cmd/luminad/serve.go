package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"luminad/internal/config"
	"luminad/internal/httpapi"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP daemon",
		Example: "  luminad serve --ckpt /data/ckpt/lumina-5b --ema\n" +
			"  luminad serve -c luminad.yaml --addr :9000",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpapi.SetBaseContext(ctx)
	httpapi.SetSamplingDefaults(cfg.Sampling.Steps, cfg.Sampling.CFGScale, cfg.Sampling.Solver, cfg.Sampling.TimeShift)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)

	hub := httpapi.NewHub()
	defer hub.Close()

	pool, ckpt, err := buildPool(ctx, cfg, hub)
	if err != nil {
		return err
	}
	defer pool.Close()

	mux := httpapi.NewMux(pool, ckpt.Info, hub)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("luminad listening on %s (ckpt: %s, model: %s)", cfg.Addr, cfg.Ckpt, ckpt.Info.Model)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
	return nil
}
