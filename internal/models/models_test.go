package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTrack(t *testing.T) {
	t.Run("library path is write once", func(t *testing.T) {
		track := &Track{Title: "Home", Artist: "Cavetown", Album: "Lemon Boy"}

		if err := track.AssignLibraryPath("/music/Cavetown/Lemon Boy/Home.mp3"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := track.AssignLibraryPath("/music/Cavetown/Lemon Boy/Home.mp3"); err != nil {
			t.Errorf("reassigning the same path should be a no-op, got %v", err)
		}
		if err := track.AssignLibraryPath("/elsewhere/Home.mp3"); !errors.Is(err, ErrAlreadyAssigned) {
			t.Errorf("expected ErrAlreadyAssigned, got %v", err)
		}
		if track.LibraryPath() != "/music/Cavetown/Lemon Boy/Home.mp3" {
			t.Errorf("library path changed to %s", track.LibraryPath())
		}
	})

	t.Run("remote id is write once", func(t *testing.T) {
		track := &Track{Title: "Home"}

		if track.Resolved() {
			t.Fatal("new track should be unresolved")
		}
		if err := track.AssignRemoteID(""); err == nil {
			t.Error("expected error for empty remote id")
		}
		if err := track.AssignRemoteID("abc"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := track.AssignRemoteID("def"); !errors.Is(err, ErrAlreadyAssigned) {
			t.Errorf("expected ErrAlreadyAssigned, got %v", err)
		}
		if id, ok := track.RemoteID(); !ok || id != "abc" {
			t.Errorf("expected resolved id abc, got %q %v", id, ok)
		}
	})

	t.Run("file name", func(t *testing.T) {
		track := &Track{Title: "Blueberry"}
		if track.FileName() != "Blueberry" {
			t.Errorf("unfiled track should use its title, got %s", track.FileName())
		}

		_ = track.AssignLibraryPath("/music/Manatee Commune/s/Blueberry.flac")
		if track.FileName() != "Blueberry.flac" {
			t.Errorf("expected basename, got %s", track.FileName())
		}
	})
}

func TestBatchRunValidate(t *testing.T) {
	now := time.Now()

	tc := []struct {
		name    string
		mutate  func(b *BatchRun)
		wantErr bool
	}{
		{name: "valid", mutate: func(b *BatchRun) {}},
		{name: "missing playlist", mutate: func(b *BatchRun) { b.PlaylistName = "" }, wantErr: true},
		{name: "counts exceed total", mutate: func(b *BatchRun) { b.Total = 1; b.Resolved = 1; b.Failed = 1 }, wantErr: true},
		{name: "unknown status", mutate: func(b *BatchRun) { b.Status = "paused" }, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBatchRun("id-1", ModeImport, "2024 01 January", now)
			tt.mutate(b)

			if err := b.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTrackOutcomeRecordValidate(t *testing.T) {
	resolved := &TrackOutcomeRecord{BatchID: "b", Status: OutcomeResolved}
	if err := resolved.Validate(); err == nil {
		t.Error("resolved outcome without remote id should fail validation")
	}

	failed := &TrackOutcomeRecord{BatchID: "b", Status: OutcomeFailed, ErrorKind: "no_match"}
	if err := failed.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBatchRunJSON(t *testing.T) {
	started := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	batch := NewBatchRun("b-1", ModeImport, "2024 01 January", started)
	batch.SetSequence(7)
	batch.Total = 2

	data, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded["id"] != "b-1" {
		t.Errorf("expected id b-1, got %v", decoded["id"])
	}
	if decoded["sequence"] != float64(7) {
		t.Errorf("expected sequence 7, got %v", decoded["sequence"])
	}
	if decoded["playlist_name"] != "2024 01 January" {
		t.Errorf("expected playlist name, got %v", decoded["playlist_name"])
	}
	if _, ok := decoded["finished_at"]; ok {
		t.Error("expected finished_at to be omitted for a running batch")
	}
}
