package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/dustin/go-humanize"
)

var (
	_ list.Item = batchItem{}
	_ list.Item = outcomeItem{}
)

// batchItem wraps [models.BatchRun] to implement [list.Item].
type batchItem struct {
	batch *models.BatchRun
}

func (i batchItem) FilterValue() string { return i.batch.PlaylistName }
func (i batchItem) Title() string {
	return fmt.Sprintf("#%d %s", i.batch.Sequence(), i.batch.PlaylistName)
}
func (i batchItem) Description() string {
	desc := fmt.Sprintf("%s • %s • %d/%d resolved", i.batch.Mode, i.batch.Status, i.batch.Resolved, i.batch.Total)
	if !i.batch.StartedAt.IsZero() {
		desc = fmt.Sprintf("%s • %s", desc, humanize.Time(i.batch.StartedAt))
	}
	return desc
}

// outcomeItem wraps [models.TrackOutcomeRecord] to implement [list.Item].
type outcomeItem struct {
	outcome *models.TrackOutcomeRecord
}

func (i outcomeItem) FilterValue() string { return i.outcome.Title }
func (i outcomeItem) Title() string {
	label := i.outcome.Title
	if label == "" {
		label = i.outcome.SourcePath
	}
	if i.outcome.Status == models.OutcomeResolved {
		return styles.ok.Render("✓ ") + label
	}
	return styles.err.Render("✗ ") + label
}
func (i outcomeItem) Description() string {
	if i.outcome.Status != models.OutcomeResolved {
		return fmt.Sprintf("%s • %s", i.outcome.ErrorKind, i.outcome.Error)
	}
	desc := i.outcome.Artist
	if i.outcome.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.outcome.Album)
	}
	return desc
}
