package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/libsync/internal/matcher"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
)

// Error kinds recorded against failed tracks.
const (
	KindAttribution = "attribution_ambiguous"
	KindFiling      = "filing_failed"
	KindNoMatch     = "no_match"
	KindService     = "service_unavailable"
	KindOther       = "other"
	// KindAborted marks tracks left pending when a fatal error stopped the batch.
	KindAborted     = "aborted"
)

// ErrorKind classifies a per-track error for reports and history.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrAttributionAmbiguous):
		return KindAttribution
	case errors.Is(err, shared.ErrFilingFailed):
		return KindFiling
	case errors.Is(err, shared.ErrNoMatchFound):
		return KindNoMatch
	case errors.Is(err, shared.ErrServiceUnavailable):
		return KindService
	default:
		return KindOther
	}
}

// TrackOutcome is the terminal state of one input track. Exactly one of a remote id on Track or Err is set.
type TrackOutcome struct {
	Position int
	Track    *models.Track
	Err      error
}

// Resolved reports whether the track was matched to a remote id.
func (o TrackOutcome) Resolved() bool {
	return o.Err == nil && o.Track != nil && o.Track.Resolved()
}

// RemoteID is the matched id, or "".
func (o TrackOutcome) RemoteID() string {
	if o.Track == nil {
		return ""
	}
	id, _ := o.Track.RemoteID()
	return id
}

func (o TrackOutcome) Kind() string { return ErrorKind(o.Err) }

// Terms lists the search terms tried for an unmatched track.
func (o TrackOutcome) Terms() []string {
	var nm *matcher.NoMatchError
	if errors.As(o.Err, &nm) {
		return nm.Terms()
	}
	return nil
}

// Candidates lists what the server returned for an unmatched track.
func (o TrackOutcome) Candidates() []models.Candidate {
	var nm *matcher.NoMatchError
	if errors.As(o.Err, &nm) {
		return nm.Candidates()
	}
	return nil
}

// Label identifies the track in reports, falling back to the source path.
func (o TrackOutcome) Label() string {
	if o.Track == nil {
		return "?"
	}
	if o.Track.Title != "" {
		return o.Track.String()
	}
	return o.Track.SourcePath
}

// BatchResult is the summary of one batch: every input track in input order plus the playlist state.
type BatchResult struct {
	ID              string
	Mode            models.BatchMode
	PlaylistName    string
	PlaylistID      string
	PlaylistCreated bool
	// Added is the number of ids written to the playlist.
	Added      int
	FinalCount int
	Outcomes   []TrackOutcome
	StartedAt  time.Time
	FinishedAt time.Time
	// Err is the fatal error that stopped the batch, if any.
	Err error
}

func newBatchResult(mode models.BatchMode, playlist string, started time.Time) *BatchResult {
	return &BatchResult{ID: shared.GenerateID(), Mode: mode, PlaylistName: playlist, StartedAt: started}
}

// Resolved returns the outcomes with a remote id, in input order.
func (r *BatchResult) Resolved() []TrackOutcome {
	var out []TrackOutcome
	for _, o := range r.Outcomes {
		if o.Resolved() {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the outcomes with a deferred error, in input order.
func (r *BatchResult) Failed() []TrackOutcome {
	var out []TrackOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// ResolvedIDs returns the remote ids of resolved tracks in input order.
func (r *BatchResult) ResolvedIDs() []string {
	var ids []string
	for _, o := range r.Resolved() {
		ids = append(ids, o.RemoteID())
	}
	return ids
}

// Status derives the terminal batch status.
func (r *BatchResult) Status() models.BatchStatus {
	switch {
	case r.Err != nil:
		return models.BatchFailed
	case r.FinishedAt.IsZero():
		return models.BatchRunning
	case len(r.Failed()) > 0:
		return models.BatchPartial
	default:
		return models.BatchSucceeded
	}
}

// Duration reports how long the batch ran.
func (r *BatchResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// MatchPercentage is the share of input tracks that resolved.
func (r *BatchResult) MatchPercentage() float64 {
	if len(r.Outcomes) == 0 {
		return 0
	}
	return float64(len(r.Resolved())) / float64(len(r.Outcomes)) * 100
}

// BatchRun converts the result into its persisted form.
func (r *BatchResult) BatchRun() *models.BatchRun {
	run := models.NewBatchRun(r.ID, r.Mode, r.PlaylistName, r.StartedAt)
	run.PlaylistID = r.PlaylistID
	run.Status = r.Status()
	run.Total = len(r.Outcomes)
	run.Resolved = len(r.Resolved())
	run.Failed = len(r.Failed())
	run.FinalCount = r.FinalCount
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		run.FinishedAt = &finished
	}
	return run
}

// OutcomeRecords converts every outcome into its persisted form.
func (r *BatchResult) OutcomeRecords() []*models.TrackOutcomeRecord {
	records := make([]*models.TrackOutcomeRecord, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		rec := &models.TrackOutcomeRecord{BatchID: r.ID, Position: o.Position}
		if o.Track != nil {
			rec.Title = o.Track.Title
			rec.Artist = o.Track.Artist
			rec.Album = o.Track.Album
			rec.SourcePath = o.Track.SourcePath
			rec.LibraryPath = o.Track.LibraryPath()
			rec.RemoteID = o.RemoteID()
		}
		switch {
		case o.Err != nil:
			rec.Status = models.OutcomeFailed
			rec.ErrorKind = o.Kind()
			rec.Error = o.Err.Error()
		case o.Resolved():
			rec.Status = models.OutcomeResolved
		default:
			rec.Status = models.OutcomeFailed
			rec.ErrorKind = KindAborted
			rec.Error = "batch stopped before the track was resolved"
		}
		records = append(records, rec)
	}
	return records
}

// BatchError aggregates every deferred per-track failure of a batch that otherwise completed.
// The playlist has already been written when it is returned.
type BatchError struct {
	Total    int
	Failures []TrackOutcome
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d tracks unresolved", len(e.Failures), e.Total)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  #%d %s: %v", f.Position+1, f.Label(), f.Err)
	}
	return b.String()
}

// Unwrap exposes each per-track error so errors.Is matches any of them.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
