package metrics

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
	"github.com/desertthunder/libsync/internal/tasks"
	tu "github.com/desertthunder/libsync/internal/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func partialBatch(t *testing.T) *tasks.BatchResult {
	t.Helper()
	home := &models.Track{Title: "Home", Artist: "Cavetown"}
	if err := home.AssignRemoteID("id1"); err != nil {
		t.Fatalf("failed to assign id: %v", err)
	}
	started := time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)
	return &tasks.BatchResult{
		Mode:         models.ModeImport,
		PlaylistName: "2024 01 January",
		PlaylistID:   "pl-1",
		FinalCount:   12,
		StartedAt:    started,
		FinishedAt:   started.Add(90 * time.Second),
		Outcomes: []tasks.TrackOutcome{
			{Position: 0, Track: home},
			{Position: 1, Track: &models.Track{Title: "Blueberry"}, Err: fmt.Errorf("%w: Blueberry", shared.ErrNoMatchFound)},
			{Position: 2, Track: &models.Track{Title: "s"}, Err: fmt.Errorf("%w: copy", shared.ErrFilingFailed)},
		},
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	result := partialBatch(t)
	r.Observe(result)
	r.Observe(result)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"partial batches", testutil.ToFloat64(r.batches.WithLabelValues("import", "partial")), 2},
		{"resolved tracks", testutil.ToFloat64(r.tracks.WithLabelValues("resolved")), 2},
		{"failed tracks", testutil.ToFloat64(r.tracks.WithLabelValues("failed")), 4},
		{"no match failures", testutil.ToFloat64(r.failures.WithLabelValues(tasks.KindNoMatch)), 2},
		{"filing failures", testutil.ToFloat64(r.failures.WithLabelValues(tasks.KindFiling)), 2},
		{"duration", testutil.ToFloat64(r.duration), 90},
		{"finished at", testutil.ToFloat64(r.lastFinished), float64(result.FinishedAt.Unix())},
		{"playlist size", testutil.ToFloat64(r.playlistSize.WithLabelValues("2024 01 January")), 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestRecorderSkipsUnsyncedPlaylist(t *testing.T) {
	r := NewRecorder()
	result := partialBatch(t)
	result.PlaylistID = ""
	r.Observe(result)

	if n := testutil.CollectAndCount(r.playlistSize); n != 0 {
		t.Errorf("expected no playlist series, got %d", n)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Observe(partialBatch(t))

	path := filepath.Join(t.TempDir(), "libsync.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("failed to write textfile: %v", err)
	}

	content := tu.MustReadFile(t, path)
	for _, want := range []string{
		`libsync_batches_total{mode="import",status="partial"} 1`,
		`libsync_playlist_tracks{playlist="2024 01 January"} 12`,
		"# TYPE libsync_track_failures_total counter",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("expected textfile to contain %q, got:\n%s", want, content)
		}
	}

	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "libsync.prom")); err == nil {
		t.Error("expected error for a missing directory")
	}
}
