package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
	tu "github.com/desertthunder/libsync/internal/testing"
)

func TestSearchTerm(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "  Lemon Boy ", want: "Lemon Boy"},
		{name: "dash suffix", in: "Lemon Boy - Remastered 2019", want: "Remastered 2019"},
		{name: "dash keeps longest", in: "Home - Live", want: "Home"},
		{name: "en dash", in: "Sweet Tooth – Acoustic Version", want: "Acoustic Version"},
		{name: "apostrophe", in: "Don't Stop", want: "t Stop"},
		{name: "typographic apostrophe", in: "I’m Fine Thanks", want: "m Fine Thanks"},
		{name: "double quotes", in: `The "Blueberry" Song`, want: "Blueberry"},
		{name: "quote before dash", in: "Rock 'n' Roll - Extended", want: "Extended"},
		{name: "tie keeps first", in: "ab-cd", want: "ab"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := SearchTerm(tt.in); got != tt.want {
				t.Errorf("SearchTerm(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestQueries(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		album  string
		want   []string
	}{
		{name: "all fields", title: "Home", artist: "Cavetown", album: "Lemon Boy", want: []string{"Home Lemon Boy", "Home Cavetown", "Home"}},
		{name: "no album", title: "Home", artist: "Cavetown", want: []string{"Home Cavetown", "Home"}},
		{name: "title only", title: "Home", want: []string{"Home"}},
		{name: "album equals artist", title: "s", artist: "Manatee Commune", album: "Manatee Commune", want: []string{"s Manatee Commune", "s"}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Queries(tt.title, tt.artist, tt.album)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d queries, got %d: %+v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i].Term != tt.want[i] {
					t.Errorf("query %d: expected %q, got %q", i, tt.want[i], got[i].Term)
				}
			}
			if got[len(got)-1].Level != "title" {
				t.Errorf("loosest level must be last, got %s", got[len(got)-1].Level)
			}
		})
	}
}

func filedTrack(t *testing.T, title, artist, album, path string) *models.Track {
	t.Helper()
	track := &models.Track{Title: title, Artist: artist, Album: album}
	if err := track.AssignLibraryPath(path); err != nil {
		t.Fatal(err)
	}
	return track
}

func TestMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("first level match", func(t *testing.T) {
		server := tu.NewFakeMediaServer(
			models.Candidate{ID: "s1", Title: "Home", Artist: "Cavetown", Album: "Lemon Boy", Path: "/music/Cavetown/Lemon Boy/Home.mp3"},
		)
		track := filedTrack(t, "Home", "Cavetown", "Lemon Boy", "/library/Cavetown/Lemon Boy/Home.mp3")

		id, err := NewMatcher(server, nil).Match(ctx, track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "s1" {
			t.Errorf("expected s1, got %s", id)
		}
		if got, ok := track.RemoteID(); !ok || got != "s1" {
			t.Errorf("expected remote id assigned, got %q", got)
		}
		if len(server.SearchTerms) != 1 {
			t.Errorf("expected a single search, got %v", server.SearchTerms)
		}
	})

	t.Run("loosest level when stricter levels return nothing", func(t *testing.T) {
		// Album is tagged differently on the server, and the artist is missing from the index.
		server := tu.NewFakeMediaServer(
			models.Candidate{ID: "s2", Title: "Home", Album: "Lemon Boy EP", Path: "/music/x/Home.mp3"},
		)
		track := filedTrack(t, "Home", "Cavetown", "Lemon Boy Deluxe", "/library/Cavetown/Lemon Boy Deluxe/Home.mp3")

		id, err := NewMatcher(server, nil).Match(ctx, track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "s2" {
			t.Errorf("expected s2, got %s", id)
		}
		want := []string{"Home Lemon Boy Deluxe", "Home Cavetown", "Home"}
		if len(server.SearchTerms) != len(want) {
			t.Fatalf("expected terms %v, got %v", want, server.SearchTerms)
		}
		for i := range want {
			if server.SearchTerms[i] != want[i] {
				t.Errorf("term %d: expected %q, got %q", i, want[i], server.SearchTerms[i])
			}
		}
	})

	t.Run("disambiguation ignores case and surrounding whitespace", func(t *testing.T) {
		server := tu.NewFakeMediaServer(
			models.Candidate{ID: "wrong", Title: "Home", Artist: "Cavetown", Path: "/music/Cavetown/Other/Home (Demo).mp3"},
			models.Candidate{ID: "right", Title: "Home", Artist: "Cavetown", Path: "  /MUSIC/CAVETOWN/LEMON BOY/HOME.MP3 "},
		)
		track := filedTrack(t, "Home", "Cavetown", "", "/library/Cavetown/Lemon Boy/Home.mp3")

		id, err := NewMatcher(server, nil).Match(ctx, track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "right" {
			t.Errorf("expected right, got %s", id)
		}
	})

	t.Run("first satisfying candidate wins", func(t *testing.T) {
		server := tu.NewFakeMediaServer(
			models.Candidate{ID: "a", Title: "Home", Path: "/m/1/Home.mp3"},
			models.Candidate{ID: "b", Title: "Home", Path: "/m/2/Home.mp3"},
		)
		track := filedTrack(t, "Home", "", "", "/library/x/Home.mp3")

		id, err := NewMatcher(server, nil).Match(ctx, track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "a" {
			t.Errorf("expected a, got %s", id)
		}
	})

	t.Run("resolves missing paths", func(t *testing.T) {
		server := tu.NewFakeMediaServer(
			models.Candidate{ID: "j1", Title: "Blueberry", Artist: "Manatee Commune", Path: "/media/Manatee Commune/s/Blueberry.flac"},
		)
		server.HidePaths = true
		track := filedTrack(t, "Blueberry", "Manatee Commune", "s", "/library/Manatee Commune/s/Blueberry.flac")

		id, err := NewMatcher(server, nil).Match(ctx, track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "j1" || len(server.ResolveCalls) != 1 {
			t.Errorf("expected j1 via one path lookup, got %s after %v", id, server.ResolveCalls)
		}
	})

	t.Run("candidate without a file is skipped", func(t *testing.T) {
		server := tu.NewFakeMediaServer(
			models.Candidate{ID: "stale", Title: "Blueberry", Artist: "Manatee Commune", Path: "/media/Manatee Commune/s/Blueberry.flac"},
			models.Candidate{ID: "good", Title: "Blueberry", Artist: "Manatee Commune", Path: "/media/Manatee Commune/s/Blueberry.flac"},
		)
		server.HidePaths = true
		server.Vanish("stale")
		track := filedTrack(t, "Blueberry", "Manatee Commune", "s", "/library/Manatee Commune/s/Blueberry.flac")

		id, err := NewMatcher(server, nil).Match(ctx, track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "good" {
			t.Errorf("expected good, got %s", id)
		}
		if len(server.ResolveCalls) != 2 || server.ResolveCalls[0] != "stale" {
			t.Errorf("expected lookups of stale then good, got %v", server.ResolveCalls)
		}
	})

	t.Run("only candidate without a file is a missing match", func(t *testing.T) {
		server := tu.NewFakeMediaServer(
			models.Candidate{ID: "stale", Title: "Blueberry", Artist: "Manatee Commune", Path: "/media/Manatee Commune/s/Blueberry.flac"},
		)
		server.Vanish("stale")
		track := filedTrack(t, "Blueberry", "Manatee Commune", "s", "/library/Manatee Commune/s/Blueberry.flac")

		_, err := NewMatcher(server, nil).Match(ctx, track)
		if !errors.Is(err, shared.ErrNoMatchFound) {
			t.Fatalf("expected ErrNoMatchFound, got %v", err)
		}
		if len(server.SearchTerms) != 3 {
			t.Errorf("expected every level to be tried, got %v", server.SearchTerms)
		}
	})

	t.Run("path lookup outage propagates", func(t *testing.T) {
		server := tu.NewFakeMediaServer(
			models.Candidate{ID: "j1", Title: "Blueberry", Artist: "Manatee Commune", Path: "/media/Manatee Commune/s/Blueberry.flac"},
		)
		server.HidePaths = true
		server.Errors["ResolvePath"] = shared.ErrServiceUnavailable
		track := filedTrack(t, "Blueberry", "Manatee Commune", "s", "/library/Manatee Commune/s/Blueberry.flac")

		_, err := NewMatcher(server, nil).Match(ctx, track)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if errors.Is(err, shared.ErrNoMatchFound) {
			t.Errorf("outage must not read as a missing match: %v", err)
		}
	})

	t.Run("no match carries terms and candidates", func(t *testing.T) {
		server := tu.NewFakeMediaServer(
			models.Candidate{ID: "x", Title: "Home", Artist: "Someone Else", Path: "/music/Someone Else/Home Again.mp3"},
		)
		track := filedTrack(t, "Home", "Cavetown", "Lemon Boy", "/library/Cavetown/Lemon Boy/Home.mp3")

		_, err := NewMatcher(server, nil).Match(ctx, track)
		if !errors.Is(err, shared.ErrNoMatchFound) {
			t.Fatalf("expected ErrNoMatchFound, got %v", err)
		}

		var noMatch *NoMatchError
		if !errors.As(err, &noMatch) {
			t.Fatalf("expected *NoMatchError, got %T", err)
		}
		if len(noMatch.Terms()) != 3 {
			t.Errorf("expected 3 terms, got %v", noMatch.Terms())
		}
		if len(noMatch.Candidates()) != 1 {
			t.Errorf("expected the one candidate seen, got %v", noMatch.Candidates())
		}
		if track.Resolved() {
			t.Error("unmatched track must stay unresolved")
		}
	})

	t.Run("catalog errors propagate", func(t *testing.T) {
		server := tu.NewFakeMediaServer()
		server.Errors["Search"] = shared.ErrServiceUnavailable
		track := filedTrack(t, "Home", "Cavetown", "Lemon Boy", "/library/Cavetown/Lemon Boy/Home.mp3")

		_, err := NewMatcher(server, nil).Match(ctx, track)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Fatalf("expected ErrServiceUnavailable, got %v", err)
		}
		if IsNoMatch(err) {
			t.Error("service failure must not be reported as a missing match")
		}
	})

	t.Run("manual track uses title as key", func(t *testing.T) {
		server := tu.NewFakeMediaServer(
			models.Candidate{ID: "m1", Title: "Home", Artist: "Cavetown", Path: "/music/Cavetown/Lemon Boy/Home.mp3"},
		)
		track := &models.Track{Title: "Home", Artist: "Cavetown"}

		id, err := NewMatcher(server, nil).Match(ctx, track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "m1" {
			t.Errorf("expected m1, got %s", id)
		}
	})
}
