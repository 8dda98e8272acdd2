package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
)

// Clock is the time source for polling. Tests substitute a fake that advances instantly.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Indexer is the part of the media server that rescans the library.
type Indexer interface {
	RefreshIndex(ctx context.Context) error
	IndexStatus(ctx context.Context) (models.IndexState, error)
}

// WaitOptions bound an index refresh.
type WaitOptions struct {
	// InitialDelay is slept once after the rescan is requested, before the first poll.
	InitialDelay time.Duration
	PollInterval time.Duration
	// Timeout is measured from the rescan request.
	Timeout time.Duration
}

// DefaultWaitOptions mirrors the shipped config.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{InitialDelay: 2 * time.Second, PollInterval: 10 * time.Second, Timeout: 30 * time.Minute}
}

// IndexWaiter requests a rescan and blocks until the server reports idle.
type IndexWaiter struct {
	indexer Indexer
	clock   Clock
	opts    WaitOptions
	logger  *log.Logger
}

// NewIndexWaiter creates a waiter. A nil clock uses the wall clock; a nil logger discards output.
func NewIndexWaiter(indexer Indexer, opts WaitOptions, clock Clock, logger *log.Logger) *IndexWaiter {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &IndexWaiter{indexer: indexer, clock: clock, opts: opts, logger: logger}
}

// Wait triggers a rescan and polls until it finishes.
//
// onPoll, when non-nil, is called after every poll that still reports scanning. The wait fails with
// [shared.ErrTimeout] once Timeout has elapsed and returns ctx.Err() as soon as ctx is done.
func (w *IndexWaiter) Wait(ctx context.Context, onPoll func(poll int, elapsed time.Duration)) error {
	if err := w.indexer.RefreshIndex(ctx); err != nil {
		return fmt.Errorf("request library rescan: %w", err)
	}
	start := w.clock.Now()
	w.logger.Info("library rescan requested")

	if err := w.sleep(ctx, w.opts.InitialDelay); err != nil {
		return err
	}

	for poll := 1; ; poll++ {
		state, err := w.indexer.IndexStatus(ctx)
		if err != nil {
			return fmt.Errorf("poll library rescan: %w", err)
		}

		elapsed := w.clock.Now().Sub(start)
		if state == models.IndexIdle {
			w.logger.Info("library rescan finished", "polls", poll, "elapsed", elapsed)
			return nil
		}

		w.logger.Info("library rescan running", "poll", poll, "elapsed", elapsed)
		if onPoll != nil {
			onPoll(poll, elapsed)
		}

		if elapsed >= w.opts.Timeout {
			return fmt.Errorf("%w: %w: library rescan still running after %s",
				shared.ErrServiceUnavailable, shared.ErrTimeout, elapsed)
		}

		if err := w.sleep(ctx, w.opts.PollInterval); err != nil {
			return err
		}
	}
}

func (w *IndexWaiter) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.clock.After(d):
		return nil
	}
}
