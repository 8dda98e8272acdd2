// package services defines interface MediaServer for interacting with media server HTTP APIs
//
// Jellyfin, Subsonic
package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
)

// Catalog is the searchable library of a media server.
type Catalog interface {
	// Search runs a free-text song search.
	Search(ctx context.Context, term string) ([]models.Candidate, error)

	// ResolvePath returns the server-side file path of a song.
	ResolvePath(ctx context.Context, id string) (string, error)

	// RefreshIndex starts a library rescan and returns without waiting for it.
	RefreshIndex(ctx context.Context) error

	// IndexStatus reports whether a rescan is in progress.
	IndexStatus(ctx context.Context) (models.IndexState, error)

	// LibrarySongs lists every song on the server.
	LibrarySongs(ctx context.Context) ([]models.Candidate, error)
}

// PlaylistStore manages playlists on a media server.
type PlaylistStore interface {
	// FindPlaylistByName returns the id of the playlist with exactly this name, or "" if there is none.
	FindPlaylistByName(ctx context.Context, name string) (string, error)

	// CreatePlaylist creates an empty playlist. The returned id may be "" for servers that do not report it.
	CreatePlaylist(ctx context.Context, name string) (string, error)

	// GetPlaylistMembership returns the playlist with its member count and ids.
	GetPlaylistMembership(ctx context.Context, id string) (*models.Playlist, error)

	// AddMembers appends ids to the playlist.
	AddMembers(ctx context.Context, id string, ids []string) error
}

// MediaServer is a catalog and playlist store behind one authenticated connection.
type MediaServer interface {
	Catalog
	PlaylistStore

	// Authenticate verifies credentials and prepares the connection for later calls.
	Authenticate(ctx context.Context) error

	// Name returns the name of the server implementation (e.g., "Jellyfin", "Subsonic")
	Name() string
}

// Options configures the HTTP behaviour shared by all implementations.
type Options struct {
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Timeout           time.Duration
	Logger            *log.Logger
}

// NewMediaServer builds the implementation selected by cfg.Kind. It does not authenticate.
func NewMediaServer(cfg shared.ServerConfig, logger *log.Logger) (MediaServer, error) {
	opts := Options{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout.Duration,
		Logger:            logger,
	}

	switch cfg.Kind {
	case "jellyfin":
		return NewJellyfinService(cfg.URL, cfg.Username, cfg.Password, opts), nil
	case "subsonic":
		return NewSubsonicService(cfg.URL, cfg.Username, cfg.Password, opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown server kind %q", shared.ErrInvalidConfig, cfg.Kind)
	}
}
