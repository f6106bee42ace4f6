// Command sentinel runs the HTTP intrusion-detection reverse proxy: it
// terminates client connections, runs every request through the
// acquisition -> filter -> typing -> extraction -> model pipeline, and
// forwards clean requests upstream. See SPEC_FULL.md.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/cc-sentinel/sentinel/internal/config"
	"github.com/cc-sentinel/sentinel/internal/slog"
	"github.com/cc-sentinel/sentinel/internal/telemetry"
)

func main() {
	cliInit()

	slog.SetLevel(flagLogLevel)
	slog.SetDateTime(flagLogDateTime)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			slog.Fatalf("gops/agent.Listen failed: %v", err)
		}
	}

	config.Init(flagConfigFile)
	cfg := config.Keys

	metrics := telemetry.NewMetrics()

	pipeline, err := buildPipeline(cfg, metrics)
	if err != nil {
		slog.Fatalf("server: building pipeline: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- pipeline.acquisition.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			slog.Errorf("server: listener exited: %v", err)
		}
	case <-sigs:
		slog.Info("server: shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pipeline.shutdown(ctx)

	slog.Info("server: graceful shutdown complete")
}
