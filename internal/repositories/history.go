package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/tasks"
)

var _ tasks.Recorder = (*History)(nil)

// History implements tasks.Recorder on top of [BatchRepository] and [OutcomeRepository].
type History struct {
	batches  *BatchRepository
	outcomes *OutcomeRepository
}

// NewHistory creates a History backed by db
func NewHistory(db *sql.DB) *History {
	return &History{batches: NewBatchRepository(db), outcomes: NewOutcomeRepository(db)}
}

// RecordBatch stores the batch summary followed by every track outcome.
func (h *History) RecordBatch(ctx context.Context, result *tasks.BatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	run := result.BatchRun()
	if err := h.batches.Create(run); err != nil {
		return fmt.Errorf("failed to record batch %s: %w", result.ID, err)
	}

	if err := h.outcomes.CreateAll(result.OutcomeRecords()); err != nil {
		return fmt.Errorf("failed to record outcomes of batch %s: %w", result.ID, err)
	}
	return nil
}

// Recent returns up to limit batches, newest first.
func (h *History) Recent(limit int) ([]*models.BatchRun, error) {
	return h.batches.List(map[string]any{"limit": limit})
}

// Lookup finds a batch by id or sequence number and returns it with its outcomes.
func (h *History) Lookup(ref string) (*models.BatchRun, []*models.TrackOutcomeRecord, error) {
	batch, err := h.batches.Get(ref)
	if errors.Is(err, ErrNotFound) {
		if seq, convErr := strconv.Atoi(ref); convErr == nil {
			batch, err = h.batches.GetBySequence(seq)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	outcomes, err := h.outcomes.ListByBatch(batch.ID())
	if err != nil {
		return nil, nil, err
	}
	return batch, outcomes, nil
}

// Unresolved lists failed outcomes across all batches, oldest first.
func (h *History) Unresolved(limit int) ([]*models.TrackOutcomeRecord, error) {
	return h.outcomes.List(map[string]any{"status": models.OutcomeFailed, "limit": limit})
}
