// Package attribution derives the canonical artist and album a track is filed and searched under.
//
// Tagging conventions differ between sources: compilations carry "Various Artists" as the album artist,
// collaborations list several artists separated by ";", and some taggers put a featured artist in the
// track artist while the album artist holds the primary one. [Resolver] reduces these to one artist
// string that is stable across the tracks of an album.
package attribution

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
)

// UnknownArtist is used under [Loose] when neither tag names an artist.
const UnknownArtist = "Unknown Artist"

// Policy decides what happens when the track and album artists disagree and neither is generic.
type Policy int

const (
	// Loose logs the disagreement and keeps the track artist.
	Loose Policy = iota
	// Strict fails the track with [shared.ErrAttributionAmbiguous].
	Strict
)

// ParsePolicy converts a config value ("strict" or "loose") to a [Policy].
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "loose":
		return Loose, nil
	case "strict":
		return Strict, nil
	default:
		return Loose, fmt.Errorf("%w: attribution policy %q", shared.ErrInvalidConfig, s)
	}
}

func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "loose"
}

// Attribution is the canonical artist and album for a track.
type Attribution struct {
	Artist string
	Album  string
}

// AmbiguityError reports a track whose artists could not be reconciled under [Strict].
type AmbiguityError struct {
	TrackArtist string
	AlbumArtist string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("%v: track artist %q vs album artist %q", shared.ErrAttributionAmbiguous, e.TrackArtist, e.AlbumArtist)
}

func (e *AmbiguityError) Unwrap() error { return shared.ErrAttributionAmbiguous }

// genericArtists are album artist values that name no particular artist.
var genericArtists = map[string]struct{}{
	"":                {},
	"various":         {},
	"various artists": {},
	"va":              {},
	"v.a.":            {},
	"compilation":     {},
	"compilations":    {},
	"soundtrack":      {},
	"traditional":     {},
	"trad.":           {},
	"unknown":         {},
	"unknown artist":  {},
	"[unknown]":       {},
	"anonymous":       {},
}

// IsGeneric reports whether artist is a placeholder such as "Various Artists", "Traditional" or empty.
func IsGeneric(artist string) bool {
	key := strings.ToLower(strings.TrimSpace(artist))
	if _, ok := genericArtists[key]; ok {
		return true
	}
	return strings.Contains(key, "various artists")
}

// Resolver applies the attribution rules. It is safe for concurrent use.
type Resolver struct {
	policy Policy
	logger *log.Logger
}

// NewResolver creates a resolver. A nil logger discards the loose-policy warnings.
func NewResolver(policy Policy, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{policy: policy, logger: logger}
}

// Policy returns the configured policy.
func (r *Resolver) Policy() Policy { return r.policy }

// Resolve derives the canonical artist and album from tags.
//
//  1. Only the first ";"-separated artist of each field is considered.
//  2. An album artist contained in the track artist yields the track artist ("A" within "A feat. B").
//  3. Otherwise, when one side is generic, the other side wins.
//  4. Otherwise [Strict] fails and [Loose] keeps the track artist.
func (r *Resolver) Resolve(tags models.Tags) (Attribution, error) {
	trackArtist := Normalize(firstArtist(tags.Artist))
	albumArtist := Normalize(firstArtist(tags.AlbumArtist))
	album := Normalize(tags.Album)

	artist, err := r.pick(trackArtist, albumArtist)
	if err != nil {
		return Attribution{}, err
	}
	return Attribution{Artist: artist, Album: album}, nil
}

func (r *Resolver) pick(trackArtist, albumArtist string) (string, error) {
	switch {
	case albumArtist != "" && strings.Contains(trackArtist, albumArtist):
		return trackArtist, nil
	case trackArtist == "" && (albumArtist == "" || IsGeneric(albumArtist)):
		// No track artist and at most a compilation placeholder: nothing names the performer.
		if r.policy == Strict {
			return "", &AmbiguityError{AlbumArtist: albumArtist}
		}
		r.logger.Warn("no usable artist tags, using placeholder", "album_artist", albumArtist, "artist", UnknownArtist)
		return UnknownArtist, nil
	case IsGeneric(albumArtist) && !IsGeneric(trackArtist):
		return trackArtist, nil
	case IsGeneric(trackArtist) && !IsGeneric(albumArtist):
		return albumArtist, nil
	case IsGeneric(trackArtist) && IsGeneric(albumArtist):
		return trackArtist, nil
	}

	if r.policy == Strict {
		return "", &AmbiguityError{TrackArtist: trackArtist, AlbumArtist: albumArtist}
	}
	r.logger.Warn("artist tags disagree, using track artist", "track_artist", trackArtist, "album_artist", albumArtist)
	return trackArtist, nil
}

func firstArtist(s string) string {
	first, _, _ := strings.Cut(s, ";")
	return first
}

// Normalize trims s and replaces characters that cannot appear in a path segment with a space.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
