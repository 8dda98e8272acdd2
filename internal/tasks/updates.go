package tasks

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/desertthunder/libsync/internal/models"
)

// ProgressUpdate represents a progress event during a batch.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Batch phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Batch phase enumeration
type Phase int

const (
	VerifyLibrary Phase = iota
	FileTracks
	RefreshIndex
	MatchTracks
	FetchLibrary
	SyncPlaylist
	PurgeSources
	Finished
)

func (p Phase) String() string {
	switch p {
	case VerifyLibrary:
		return "verify_library"
	case FileTracks:
		return "file_tracks"
	case RefreshIndex:
		return "refresh_index"
	case MatchTracks:
		return "match_tracks"
	case FetchLibrary:
		return "fetch_library"
	case SyncPlaylist:
		return "sync_playlist"
	case PurgeSources:
		return "purge_sources"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

func verifyLibraryUpdate(root string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   VerifyLibrary,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Checking %s is writable...", root),
	}
}

// fileTrackUpdate carries the outcome so far as Data.
func fileTrackUpdate(step, total int, source string, outcome *TrackOutcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FileTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Filing %s", filepath.Base(source)),
		Data:    outcome,
	}
}

func refreshIndexUpdate(poll int, elapsed time.Duration) ProgressUpdate {
	msg := "Starting library rescan..."
	if poll > 0 {
		msg = fmt.Sprintf("Waiting for library rescan (%s)...", elapsed.Truncate(time.Second))
	}
	return ProgressUpdate{
		Phase:   RefreshIndex,
		Step:    poll,
		Total:   0,
		Message: msg,
	}
}

func matchTrackUpdate(step, total int, track *models.Track, outcome *TrackOutcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Matching: %s - %s", track.Artist, track.Title),
		Data:    outcome,
	}
}

func fetchLibraryUpdate(songs int) ProgressUpdate {
	msg := "Fetching server library..."
	if songs > 0 {
		msg = fmt.Sprintf("Fetched %d songs", songs)
	}
	return ProgressUpdate{
		Phase:   FetchLibrary,
		Step:    1,
		Total:   1,
		Message: msg,
	}
}

func syncPlaylistUpdate(name string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Adding %d tracks to %q...", count, name),
	}
}

func purgeSourcesUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PurgeSources,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removing %d imported files...", count),
	}
}

// finishedUpdate carries the [*BatchResult] as Data.
func finishedUpdate(result *BatchResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finished,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d of %d tracks resolved", len(result.Resolved()), len(result.Outcomes)),
		Data:    result,
	}
}
