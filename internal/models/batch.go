package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// BatchStatus is the terminal state of a reconciliation batch.
type BatchStatus string

const (
	BatchRunning   BatchStatus = "running"
	BatchSucceeded BatchStatus = "succeeded"
	// BatchPartial means the playlist was written but at least one track failed.
	BatchPartial BatchStatus = "partial"
	BatchFailed  BatchStatus = "failed"
)

// BatchMode distinguishes imported batches from manual and library playlist runs.
type BatchMode string

const (
	ModeImport  BatchMode = "import"
	ModeManual  BatchMode = "manual"
	ModeLibrary BatchMode = "library"
)

// OutcomeStatus is the terminal state of a track within a batch.
type OutcomeStatus string

const (
	OutcomeResolved OutcomeStatus = "resolved"
	OutcomeFailed   OutcomeStatus = "failed"
)

// BatchRun is the persisted summary of one batch.
type BatchRun struct {
	Mode         BatchMode   `json:"mode"`
	PlaylistName string      `json:"playlist_name"`
	PlaylistID   string      `json:"playlist_id,omitempty"`
	Status       BatchStatus `json:"status"`
	Total        int         `json:"total"`
	Resolved     int         `json:"resolved"`
	Failed       int         `json:"failed"`
	FinalCount   int         `json:"final_count"`
	Error        string      `json:"error,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`

	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
}

// NewBatchRun creates a running batch with the given id.
func NewBatchRun(id string, mode BatchMode, playlist string, startedAt time.Time) *BatchRun {
	return &BatchRun{
		Mode:         mode,
		PlaylistName: playlist,
		Status:       BatchRunning,
		StartedAt:    startedAt,
		id:           id,
		createdAt:    startedAt,
		updatedAt:    startedAt,
	}
}

// MarshalJSON adds the id and sequence number to the exported fields.
func (b *BatchRun) MarshalJSON() ([]byte, error) {
	type fields BatchRun
	return json.Marshal(struct {
		ID       string `json:"id"`
		Sequence int    `json:"sequence"`
		*fields
	}{b.id, b.sequence, (*fields)(b)})
}

func (b *BatchRun) ID() string           { return b.id }
func (b *BatchRun) Sequence() int        { return b.sequence }
func (b *BatchRun) CreatedAt() time.Time { return b.createdAt }
func (b *BatchRun) UpdatedAt() time.Time { return b.updatedAt }

// SetID is used by repositories when hydrating rows.
func (b *BatchRun) SetID(id string)          { b.id = id }
func (b *BatchRun) SetSequence(seq int)      { b.sequence = seq }
func (b *BatchRun) SetCreatedAt(t time.Time) { b.createdAt = t }
func (b *BatchRun) SetUpdatedAt(t time.Time) { b.updatedAt = t }

// Validate checks the counts are consistent.
func (b *BatchRun) Validate() error {
	if b.id == "" {
		return fmt.Errorf("batch id is required")
	}
	if b.PlaylistName == "" {
		return fmt.Errorf("batch playlist name is required")
	}
	if b.Resolved+b.Failed > b.Total {
		return fmt.Errorf("batch counts exceed total: %d resolved + %d failed > %d", b.Resolved, b.Failed, b.Total)
	}
	switch b.Status {
	case BatchRunning, BatchSucceeded, BatchPartial, BatchFailed:
	default:
		return fmt.Errorf("unknown batch status %q", b.Status)
	}
	return nil
}

// Duration reports how long a finished batch took.
func (b *BatchRun) Duration() time.Duration {
	if b.FinishedAt == nil {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}

// TrackOutcomeRecord is the persisted outcome of one track.
type TrackOutcomeRecord struct {
	BatchID     string        `json:"batch_id"`
	Position    int           `json:"position"`
	Title       string        `json:"title"`
	Artist      string        `json:"artist,omitempty"`
	Album       string        `json:"album,omitempty"`
	SourcePath  string        `json:"source_path,omitempty"`
	LibraryPath string        `json:"library_path,omitempty"`
	RemoteID    string        `json:"remote_id,omitempty"`
	Status      OutcomeStatus `json:"status"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Error       string        `json:"error,omitempty"`

	id        string
	createdAt time.Time
}

func (o *TrackOutcomeRecord) ID() string           { return o.id }
func (o *TrackOutcomeRecord) CreatedAt() time.Time { return o.createdAt }
func (o *TrackOutcomeRecord) UpdatedAt() time.Time { return o.createdAt }

func (o *TrackOutcomeRecord) SetID(id string)          { o.id = id }
func (o *TrackOutcomeRecord) SetCreatedAt(t time.Time) { o.createdAt = t }

// Validate requires a batch and a known status; failures must carry an error kind.
func (o *TrackOutcomeRecord) Validate() error {
	if o.BatchID == "" {
		return fmt.Errorf("outcome batch id is required")
	}
	switch o.Status {
	case OutcomeResolved:
		if o.RemoteID == "" {
			return fmt.Errorf("resolved outcome requires a remote id")
		}
	case OutcomeFailed:
		if o.ErrorKind == "" {
			return fmt.Errorf("failed outcome requires an error kind")
		}
	default:
		return fmt.Errorf("unknown outcome status %q", o.Status)
	}
	return nil
}
