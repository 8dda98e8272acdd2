package models

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrAlreadyAssigned is returned when a write-once track field is reassigned to a different value.
var ErrAlreadyAssigned = errors.New("value already assigned")

// Tags holds the raw metadata read from an audio file.
type Tags struct {
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
}

// Track is one imported audio file moving through reconciliation.
//
// Title, Artist and Album are canonical once attribution has run. The library path and the remote id
// are each assigned at most once; a track without a remote id after matching is unresolved.
type Track struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	SourcePath string `json:"source_path,omitempty"`

	libraryPath string
	remoteID    string
}

// LibraryPath returns where the track was filed, or "" before filing.
func (t *Track) LibraryPath() string { return t.libraryPath }

// AssignLibraryPath records the filed location. Reassigning the same path is a no-op.
func (t *Track) AssignLibraryPath(path string) error {
	if t.libraryPath != "" && t.libraryPath != path {
		return fmt.Errorf("%w: library path %q (have %q)", ErrAlreadyAssigned, path, t.libraryPath)
	}
	t.libraryPath = path
	return nil
}

// RemoteID returns the media server id and whether the track has been resolved.
func (t *Track) RemoteID() (string, bool) { return t.remoteID, t.remoteID != "" }

// AssignRemoteID records the media server id found by matching.
func (t *Track) AssignRemoteID(id string) error {
	if id == "" {
		return fmt.Errorf("remote id must not be empty")
	}
	if t.remoteID != "" && t.remoteID != id {
		return fmt.Errorf("%w: remote id %q (have %q)", ErrAlreadyAssigned, id, t.remoteID)
	}
	t.remoteID = id
	return nil
}

// Resolved reports whether matching assigned a remote id.
func (t *Track) Resolved() bool { return t.remoteID != "" }

// FileName is the basename used to recognise the track in remote paths.
// Tracks that were never filed fall back to their title.
func (t *Track) FileName() string {
	if t.libraryPath != "" {
		return filepath.Base(t.libraryPath)
	}
	return t.Title
}

func (t *Track) String() string {
	return fmt.Sprintf("%s - %s (%s)", t.Artist, t.Title, t.Album)
}
