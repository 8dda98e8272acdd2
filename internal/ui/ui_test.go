package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
	"github.com/desertthunder/libsync/internal/tasks"
)

type fakeHistory struct {
	batches  []*models.BatchRun
	outcomes []*models.TrackOutcomeRecord
	err      error
}

func (f *fakeHistory) Recent(limit int) ([]*models.BatchRun, error) {
	return f.batches, f.err
}

func (f *fakeHistory) Lookup(ref string) (*models.BatchRun, []*models.TrackOutcomeRecord, error) {
	for _, b := range f.batches {
		if b.ID() == ref {
			return b, f.outcomes, nil
		}
	}
	return nil, nil, errors.New("not found")
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newHistory() *fakeHistory {
	batch := models.NewBatchRun("b1", models.ModeImport, "2024 01 January", time.Now().Add(-time.Hour))
	batch.SetSequence(3)
	batch.Status = models.BatchPartial
	batch.Total, batch.Resolved, batch.Failed = 2, 1, 1

	return &fakeHistory{
		batches: []*models.BatchRun{batch},
		outcomes: []*models.TrackOutcomeRecord{
			{Position: 0, Title: "Home", Artist: "Cavetown", Status: models.OutcomeResolved, RemoteID: "id1"},
			{Position: 1, Title: "Blueberry", Status: models.OutcomeFailed, ErrorKind: "no_match", Error: "no match found"},
		},
	}
}

func TestModelHistory(t *testing.T) {
	t.Run("loads batches on init", func(t *testing.T) {
		m := NewModel(context.Background(), Options{History: newHistory()})
		m.Update(m.Init()())

		if got := len(m.batchList.Items()); got != 1 {
			t.Fatalf("expected 1 batch, got %d", got)
		}
		if m.view != HistoryView {
			t.Errorf("expected HistoryView, got %v", m.view)
		}
	})

	t.Run("shows outcomes failures first", func(t *testing.T) {
		m := NewModel(context.Background(), Options{History: newHistory()})
		m.Update(m.Init()())

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if cmd == nil {
			t.Fatal("expected a command to load outcomes")
		}
		m.Update(cmd())

		if m.view != OutcomeView {
			t.Fatalf("expected OutcomeView, got %v", m.view)
		}
		items := m.outcomeList.Items()
		if len(items) != 2 {
			t.Fatalf("expected 2 outcomes, got %d", len(items))
		}
		if first := items[0].(outcomeItem); first.outcome.Title != "Blueberry" {
			t.Errorf("expected the failure first, got %s", first.outcome.Title)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != HistoryView {
			t.Errorf("expected HistoryView after esc, got %v", m.view)
		}
	})

	t.Run("history error", func(t *testing.T) {
		m := NewModel(context.Background(), Options{History: &fakeHistory{err: shared.ErrServiceUnavailable}})
		m.Update(m.Init()())

		if !strings.Contains(m.View(), "service unavailable") {
			t.Errorf("expected error view, got %q", m.View())
		}
	})

	t.Run("without history", func(t *testing.T) {
		m := NewModel(context.Background(), Options{})
		m.Update(m.Init()())

		if got := len(m.batchList.Items()); got != 0 {
			t.Errorf("expected no batches, got %d", got)
		}
	})

	t.Run("start needs a batch func", func(t *testing.T) {
		m := NewModel(context.Background(), Options{History: newHistory()})
		m.Update(runes("s"))

		if m.view != HistoryView {
			t.Errorf("expected to stay on HistoryView, got %v", m.view)
		}
	})
}

func TestModelRun(t *testing.T) {
	track := &models.Track{Title: "Home", Artist: "Cavetown", Album: "Lemon Boy"}
	if err := track.AssignRemoteID("id1"); err != nil {
		t.Fatalf("failed to assign id: %v", err)
	}
	missing := &models.Track{Title: "Blueberry", Artist: "Manatee Commune", Album: "s"}

	result := &tasks.BatchResult{
		PlaylistName: "2024 01 January",
		PlaylistID:   "pl1",
		Added:        1,
		FinalCount:   1,
		Outcomes: []tasks.TrackOutcome{
			{Position: 0, Track: track},
			{Position: 1, Track: missing, Err: shared.ErrNoMatchFound},
		},
	}

	run := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error) {
		progress <- tasks.ProgressUpdate{Phase: tasks.MatchTracks, Step: 1, Total: 2, Data: &result.Outcomes[0]}
		progress <- tasks.ProgressUpdate{Phase: tasks.MatchTracks, Step: 2, Total: 2, Data: &result.Outcomes[1]}
		return result, &tasks.BatchError{Total: 2, Failures: result.Outcomes[1:]}
	}

	m := NewModel(context.Background(), Options{History: newHistory(), Run: run, Description: "Import /tmp/import"})
	m.Update(runes("s"))
	if m.view != ConfirmView {
		t.Fatalf("expected ConfirmView, got %v", m.view)
	}
	if !strings.Contains(m.View(), "Import /tmp/import") {
		t.Errorf("expected description in confirm view, got %q", m.View())
	}

	m.Update(runes("y"))
	if m.view != RunView {
		t.Fatalf("expected RunView, got %v", m.view)
	}

	for m.view == RunView {
		m.Update(waitForProgress(m.progressChan, m.done)())
	}

	if m.matched != 1 || m.unresolved != 1 {
		t.Errorf("expected 1 matched and 1 unresolved, got %d and %d", m.matched, m.unresolved)
	}
	if m.view != ResultView {
		t.Fatalf("expected ResultView, got %v", m.view)
	}

	view := m.View()
	for _, want := range []string{"Unresolved Tracks", "Resolved: 1/2", "Manatee Commune - Blueberry (s)"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected result view to contain %q, got %q", want, view)
		}
	}

	m.Update(runes("r"))
	if m.view != HistoryView || m.result != nil || m.err != nil {
		t.Errorf("expected reset to HistoryView, got view %v", m.view)
	}
}

func TestModelRunFailure(t *testing.T) {
	run := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error) {
		return &tasks.BatchResult{PlaylistName: "x"}, shared.ErrNotWritable
	}

	m := NewModel(context.Background(), Options{Run: run})
	m.view = ConfirmView
	m.Update(runes("y"))

	for m.view == RunView {
		m.Update(waitForProgress(m.progressChan, m.done)())
	}

	if !strings.Contains(m.View(), "Batch failed: directory not writable") {
		t.Errorf("expected failure view, got %q", m.View())
	}
}

func TestModelRunCancel(t *testing.T) {
	run := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error) {
		<-ctx.Done()
		return &tasks.BatchResult{PlaylistName: "x"}, ctx.Err()
	}

	m := NewModel(context.Background(), Options{Run: run})
	m.view = ConfirmView
	m.Update(runes("y"))
	m.Update(runes("q"))

	m.Update(waitForProgress(m.progressChan, m.done)())
	if m.view != ResultView {
		t.Fatalf("expected ResultView, got %v", m.view)
	}
	if !errors.Is(m.err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", m.err)
	}
}

func TestKeyMapForView(t *testing.T) {
	keys := newKeyMap()
	tests := []struct {
		name   string
		view   ViewState
		canRun bool
		want   []string
	}{
		{"history with runs", HistoryView, true, []string{"↑/k", "↓/j", "enter", "s", "q"}},
		{"history read only", HistoryView, false, []string{"↑/k", "↓/j", "enter", "q"}},
		{"confirm", ConfirmView, true, []string{"y", "n"}},
		{"running", RunView, true, []string{"q"}},
		{"result", ResultView, true, []string{"r", "q"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, b := range keys.forView(tt.view, tt.canRun) {
				got = append(got, b.Help().Key)
			}
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
