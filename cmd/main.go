package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/libsync/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})
	err := runner.app().Run(ctx, os.Args)

	switch code := exitCode(err); code {
	case exitOK:
	case exitUnresolved:
		logger.Warn("batch finished with unresolved tracks", "error", err)
		stop()
		os.Exit(code)
	default:
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			return
		}
		logger.Error("application error", "error", err)
		stop()
		os.Exit(code)
	}
}
