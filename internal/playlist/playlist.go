// Package playlist keeps a named media server playlist in step with reconciled tracks.
//
// Writes are additive: ids are appended to whatever the playlist already holds, and the membership
// count is checked afterwards so a server that silently drops ids is caught.
package playlist

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
)

// Store is the playlist surface of a media server.
type Store interface {
	FindPlaylistByName(ctx context.Context, name string) (string, error)
	CreatePlaylist(ctx context.Context, name string) (string, error)
	GetPlaylistMembership(ctx context.Context, id string) (*models.Playlist, error)
	AddMembers(ctx context.Context, id string, ids []string) error
}

// SizeMismatchError reports a playlist whose count after adding differs from the expected count.
type SizeMismatchError struct {
	PlaylistID string
	Before     int
	Added      int
	After      int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%v: playlist %s expected %d members (%d + %d), found %d",
		shared.ErrPlaylistSizeMismatch, e.PlaylistID, e.Expected(), e.Before, e.Added, e.After)
}

func (e *SizeMismatchError) Unwrap() error { return shared.ErrPlaylistSizeMismatch }

// Expected is the count the playlist should have reached.
func (e *SizeMismatchError) Expected() int { return e.Before + e.Added }

// Result describes a completed synchronization.
type Result struct {
	PlaylistID string
	Created    bool
	Before     int
	FinalCount int
}

// Synchronizer adds tracks to playlists through a [Store].
type Synchronizer struct {
	store  Store
	logger *log.Logger
}

// NewSynchronizer creates a synchronizer. A nil logger discards output.
func NewSynchronizer(store Store, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Synchronizer{store: store, logger: logger}
}

// FindOrCreate returns the id of the playlist called name, creating it only when none exists.
//
// After creating, the playlist is looked up again; if the lookup misses it or returns a different id
// the call fails with [shared.ErrPlaylistNotFound] rather than risk writing to the wrong playlist.
func (s *Synchronizer) FindOrCreate(ctx context.Context, name string) (id string, created bool, err error) {
	if name == "" {
		return "", false, fmt.Errorf("%w: playlist name is empty", shared.ErrInvalidArgument)
	}

	id, err = s.store.FindPlaylistByName(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("find playlist %q: %w", name, err)
	}
	if id != "" {
		return id, false, nil
	}

	createdID, err := s.store.CreatePlaylist(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("create playlist %q: %w", name, err)
	}

	id, err = s.store.FindPlaylistByName(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("find created playlist %q: %w", name, err)
	}
	if id == "" {
		return "", false, fmt.Errorf("%w: %q missing after create", shared.ErrPlaylistNotFound, name)
	}
	if createdID != "" && id != createdID {
		return "", false, fmt.Errorf("%w: %q resolved to %s, created %s", shared.ErrPlaylistNotFound, name, id, createdID)
	}

	s.logger.Info("created playlist", "name", name, "id", id)
	return id, true, nil
}

// Sync adds ids to the playlist called name and returns its final member count.
//
// An empty ids list reads the current count and writes nothing. Otherwise the count after adding
// must equal the count before plus len(ids), or a [*SizeMismatchError] is returned.
func (s *Synchronizer) Sync(ctx context.Context, name string, ids []string) (int, error) {
	res, err := s.SyncDetailed(ctx, name, ids)
	if err != nil {
		return 0, err
	}
	return res.FinalCount, nil
}

// SyncDetailed is [Synchronizer.Sync] returning the playlist id and counts as well.
func (s *Synchronizer) SyncDetailed(ctx context.Context, name string, ids []string) (*Result, error) {
	id, created, err := s.FindOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("playlist", name, "id", id)

	before, err := s.store.GetPlaylistMembership(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read playlist %q: %w", name, err)
	}

	res := &Result{PlaylistID: id, Created: created, Before: before.Count, FinalCount: before.Count}
	if len(ids) == 0 {
		logger.Debug("nothing to add", "count", before.Count)
		return res, nil
	}

	if err := s.store.AddMembers(ctx, id, ids); err != nil {
		return nil, fmt.Errorf("add %d tracks to %q: %w", len(ids), name, err)
	}

	after, err := s.store.GetPlaylistMembership(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read playlist %q: %w", name, err)
	}

	if after.Count != before.Count+len(ids) {
		return nil, &SizeMismatchError{PlaylistID: id, Before: before.Count, Added: len(ids), After: after.Count}
	}

	logger.Info("playlist updated", "added", len(ids), "count", after.Count)
	res.FinalCount = after.Count
	return res, nil
}
