package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/rest-records-fetcher/internal/app"
	"github.com/samvad-hq/rest-records-fetcher/internal/config"
	"github.com/samvad-hq/rest-records-fetcher/internal/logger"
)

func main() {
	if err := run(os.Stdout); err != nil {
		os.Exit(exitCode(os.Stderr, err))
	}
}

// exitCode reports err on w and returns the process exit status.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "fetch failed: %v\n", err)
	return 1
}

func run(out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.DebugObj("fetcher starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := app.NewRunner(ctx, cfg, logger.New(log), out)
	if err != nil {
		logger.ErrorObj("failed to initialize runner", "error", err)
		return err
	}
	defer runner.Close()

	return runner.Run(ctx)
}
