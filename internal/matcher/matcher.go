// Package matcher finds the media server item that corresponds to a filed track.
//
// Search quality differs widely between servers, so matching walks from the most to the least specific
// query and only accepts a candidate whose file path contains the track's library file name.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
)

// Catalog is the part of a media server the matcher queries.
type Catalog interface {
	Search(ctx context.Context, term string) ([]models.Candidate, error)
	ResolvePath(ctx context.Context, id string) (string, error)
}

// Attempt records one search and the candidates it returned.
type Attempt struct {
	Query      Query
	Candidates []models.Candidate
}

// NoMatchError reports a track no query could resolve. It carries everything needed to fix it by hand.
type NoMatchError struct {
	Track    models.Track
	Key      string
	Attempts []Attempt
}

func (e *NoMatchError) Error() string {
	terms := make([]string, len(e.Attempts))
	seen := 0
	for i, a := range e.Attempts {
		terms[i] = fmt.Sprintf("%q", a.Query.Term)
		seen += len(a.Candidates)
	}
	return fmt.Sprintf("%v: %s (tried %s, %d candidates without %q in path)",
		shared.ErrNoMatchFound, e.Track.Title, strings.Join(terms, ", "), seen, e.Key)
}

func (e *NoMatchError) Unwrap() error { return shared.ErrNoMatchFound }

// Terms returns the search terms that were tried.
func (e *NoMatchError) Terms() []string {
	terms := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		terms[i] = a.Query.Term
	}
	return terms
}

// Candidates returns every candidate seen across all attempts.
func (e *NoMatchError) Candidates() []models.Candidate {
	var all []models.Candidate
	for _, a := range e.Attempts {
		all = append(all, a.Candidates...)
	}
	return all
}

// Matcher resolves tracks against a [Catalog].
type Matcher struct {
	catalog Catalog
	logger  *log.Logger
}

// NewMatcher creates a matcher. A nil logger discards output.
func NewMatcher(catalog Catalog, logger *log.Logger) *Matcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Matcher{catalog: catalog, logger: logger}
}

// Match returns the remote id of track and assigns it to the track.
//
// Each query from [Queries] runs in order. A candidate is accepted when its path, lower-cased and
// trimmed, contains the lower-cased trimmed file name of the track; the first such candidate wins.
// Queries that return nothing acceptable fall through to the next. A candidate whose path lookup
// reports [shared.ErrTrackNotFound] is skipped. Other catalog errors are returned as-is and never
// reported as a missing match.
func (m *Matcher) Match(ctx context.Context, track *models.Track) (string, error) {
	key := Key(track.FileName())
	logger := m.logger.With("track", track.Title, "key", key)

	var attempts []Attempt
	for _, q := range Queries(track.Title, track.Artist, track.Album) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if q.Term == "" {
			continue
		}

		candidates, err := m.catalog.Search(ctx, q.Term)
		if err != nil {
			return "", fmt.Errorf("search %q: %w", q.Term, err)
		}
		logger.Debug("searched", "level", q.Level, "term", q.Term, "candidates", len(candidates))

		for i := range candidates {
			c := &candidates[i]
			if c.Path == "" {
				path, err := m.catalog.ResolvePath(ctx, c.ID)
				switch {
				case errors.Is(err, shared.ErrTrackNotFound):
					logger.Warn("skipping candidate without a file", "id", c.ID, "error", err)
					continue
				case err != nil:
					return "", fmt.Errorf("resolve path of %s: %w", c.ID, err)
				}
				c.Path = path
			}

			if key != "" && strings.Contains(Key(c.Path), key) {
				if err := track.AssignRemoteID(c.ID); err != nil {
					return "", err
				}
				logger.Info("matched", "level", q.Level, "id", c.ID)
				return c.ID, nil
			}
		}
		attempts = append(attempts, Attempt{Query: q, Candidates: candidates})
	}

	err := &NoMatchError{Track: *track, Key: key, Attempts: attempts}
	logger.Warn("no match", "terms", err.Terms(), "candidates", len(err.Candidates()))
	return "", err
}

// Key normalizes a file name or path for comparison.
func Key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsNoMatch reports whether err is a missing match rather than a catalog failure.
func IsNoMatch(err error) bool {
	return errors.Is(err, shared.ErrNoMatchFound)
}
