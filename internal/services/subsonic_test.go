package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
)

func subsonicOK(w http.ResponseWriter, payload map[string]any) {
	body := map[string]any{"status": "ok", "version": "1.16.1"}
	for k, v := range payload {
		body[k] = v
	}
	json.NewEncoder(w).Encode(map[string]any{"subsonic-response": body})
}

func subsonicFailed(w http.ResponseWriter, code int, message string) {
	json.NewEncoder(w).Encode(map[string]any{"subsonic-response": map[string]any{
		"status": "failed",
		"error":  map[string]any{"code": code, "message": message},
	}})
}

// subsonicStub verifies the salted token on every request before dispatching on the method name.
func subsonicStub(t *testing.T, handler func(method string, w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/rest/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		q := r.URL.Query()
		sum := md5.Sum([]byte("secret" + q.Get("s")))
		if q.Get("u") != "admin" || q.Get("t") != hex.EncodeToString(sum[:]) {
			subsonicFailed(w, 40, "Wrong username or password")
			return
		}
		if q.Get("f") != "json" || q.Get("c") != "libsync" || q.Get("v") == "" {
			t.Errorf("missing protocol parameters in %v", q)
		}

		handler(strings.TrimPrefix(r.URL.Path, "/rest/"), w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSubsonicService(t *testing.T) {
	ctx := context.Background()

	t.Run("Name", func(t *testing.T) {
		if svc := NewSubsonicService("http://localhost", "", "", Options{}); svc.Name() != "Subsonic" {
			t.Errorf("expected name to be 'Subsonic', got %s", svc.Name())
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		server := subsonicStub(t, func(method string, w http.ResponseWriter, r *http.Request) {
			if method != "ping" {
				t.Errorf("expected ping, got %s", method)
			}
			subsonicOK(w, nil)
		})

		if err := NewSubsonicService(server.URL, "admin", "secret", Options{}).Authenticate(ctx); err != nil {
			t.Errorf("expected no error, got %v", err)
		}

		err := NewSubsonicService(server.URL, "admin", "wrong", Options{}).Authenticate(ctx)
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}

		var se *SubsonicError
		if !errors.As(err, &se) || se.Code != 40 {
			t.Errorf("expected subsonic error 40, got %v", err)
		}
	})

	t.Run("Search", func(t *testing.T) {
		server := subsonicStub(t, func(method string, w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if method != "search3" || q.Get("query") != "Blueberry s" || q.Get("songCount") != "20" {
				t.Errorf("unexpected call %s %v", method, q)
			}
			subsonicOK(w, map[string]any{"searchResult3": map[string]any{
				"song": []map[string]string{
					{"id": "101", "title": "Blueberry", "artist": "Manatee Commune", "album": "s", "path": "Manatee Commune/s/Blueberry.flac"},
				},
			}})
		})

		candidates, err := NewSubsonicService(server.URL, "admin", "secret", Options{}).Search(ctx, "Blueberry s")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		want := models.Candidate{ID: "101", Title: "Blueberry", Artist: "Manatee Commune", Album: "s", Path: "Manatee Commune/s/Blueberry.flac"}
		if len(candidates) != 1 || candidates[0] != want {
			t.Errorf("expected %+v, got %+v", want, candidates)
		}
	})

	t.Run("ResolvePath", func(t *testing.T) {
		server := subsonicStub(t, func(method string, w http.ResponseWriter, r *http.Request) {
			subsonicOK(w, map[string]any{"song": map[string]string{"id": "101", "path": "Manatee Commune/s/Blueberry.flac"}})
		})

		path, err := NewSubsonicService(server.URL, "admin", "secret", Options{}).ResolvePath(ctx, "101")
		if err != nil || path != "Manatee Commune/s/Blueberry.flac" {
			t.Errorf("unexpected path %q (%v)", path, err)
		}
	})

	t.Run("ResolvePath of a removed song", func(t *testing.T) {
		server := subsonicStub(t, func(method string, w http.ResponseWriter, r *http.Request) {
			subsonicFailed(w, 70, "Song not found")
		})

		_, err := NewSubsonicService(server.URL, "admin", "secret", Options{}).ResolvePath(ctx, "101")
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
		if errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("a missing song is not an outage: %v", err)
		}
	})

	t.Run("ResolvePath server error stays fatal", func(t *testing.T) {
		server := subsonicStub(t, func(method string, w http.ResponseWriter, r *http.Request) {
			subsonicFailed(w, 0, "Database is locked")
		})

		_, err := NewSubsonicService(server.URL, "admin", "secret", Options{}).ResolvePath(ctx, "101")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Scan", func(t *testing.T) {
		var calls []string
		server := subsonicStub(t, func(method string, w http.ResponseWriter, r *http.Request) {
			calls = append(calls, method)
			switch method {
			case "startScan":
				subsonicOK(w, map[string]any{"scanStatus": map[string]any{"scanning": true, "count": 0}})
			case "getScanStatus":
				subsonicOK(w, map[string]any{"scanStatus": map[string]any{"scanning": len(calls) < 3, "count": 12}})
			}
		})
		svc := NewSubsonicService(server.URL, "admin", "secret", Options{})

		if err := svc.RefreshIndex(ctx); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		for i, want := range []models.IndexState{models.IndexScanning, models.IndexIdle} {
			got, err := svc.IndexStatus(ctx)
			if err != nil {
				t.Fatalf("status: %v", err)
			}
			if got != want {
				t.Errorf("poll %d: expected %v, got %v", i, want, got)
			}
		}
	})

	t.Run("Playlists", func(t *testing.T) {
		entries := []string{"1", "2"}
		server := subsonicStub(t, func(method string, w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			switch method {
			case "getPlaylists":
				subsonicOK(w, map[string]any{"playlists": map[string]any{"playlist": []map[string]any{
					{"id": "7", "name": "2024 01 January", "songCount": len(entries)},
				}}})
			case "createPlaylist":
				subsonicOK(w, map[string]any{"playlist": map[string]any{"id": "8", "name": q.Get("name")}})
			case "getPlaylist":
				if q.Get("id") != "7" {
					subsonicFailed(w, 70, "Playlist not found")
					return
				}
				entry := make([]map[string]string, len(entries))
				for i, id := range entries {
					entry[i] = map[string]string{"id": id}
				}
				subsonicOK(w, map[string]any{"playlist": map[string]any{"id": "7", "name": "2024 01 January", "songCount": len(entries), "entry": entry}})
			case "updatePlaylist":
				if q.Get("playlistId") != "7" || q.Has("songIdToRemove") {
					t.Errorf("unexpected update %v", q)
				}
				entries = append(entries, q["songIdToAdd"]...)
				subsonicOK(w, nil)
			default:
				t.Errorf("unexpected method %s", method)
			}
		})
		svc := NewSubsonicService(server.URL, "admin", "secret", Options{})

		id, err := svc.FindPlaylistByName(ctx, "2024 01 January")
		if err != nil || id != "7" {
			t.Fatalf("expected playlist 7, got %q (%v)", id, err)
		}

		if id, _ := svc.FindPlaylistByName(ctx, "ALL_SONGS"); id != "" {
			t.Errorf("expected no match, got %q", id)
		}

		if created, err := svc.CreatePlaylist(ctx, "ALL_SONGS"); err != nil || created != "8" {
			t.Errorf("expected created 8, got %q (%v)", created, err)
		}

		if err := svc.AddMembers(ctx, "7", []string{"3", "4", "5"}); err != nil {
			t.Fatalf("add members: %v", err)
		}

		pl, err := svc.GetPlaylistMembership(ctx, "7")
		if err != nil {
			t.Fatalf("membership: %v", err)
		}
		if pl.Count != 5 || len(pl.MemberIDs) != 5 || pl.MemberIDs[0] != "1" {
			t.Errorf("expected existing entries kept plus 3 added, got %+v", pl)
		}

		if _, err := svc.GetPlaylistMembership(ctx, "99"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("LibrarySongs", func(t *testing.T) {
		server := subsonicStub(t, func(method string, w http.ResponseWriter, r *http.Request) {
			switch method {
			case "getAlbumList2":
				subsonicOK(w, map[string]any{"albumList2": map[string]any{"album": []map[string]string{{"id": "al-1"}, {"id": "al-2"}}}})
			case "getAlbum":
				id := r.URL.Query().Get("id")
				subsonicOK(w, map[string]any{"album": map[string]any{"song": []map[string]string{{"id": id + "-t1"}, {"id": id + "-t2"}}}})
			}
		})

		songs, err := NewSubsonicService(server.URL, "admin", "secret", Options{}).LibrarySongs(ctx)
		if err != nil {
			t.Fatalf("library songs: %v", err)
		}
		if len(songs) != 4 || songs[3].ID != "al-2-t2" {
			t.Errorf("unexpected songs %+v", songs)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		_, err := NewSubsonicService(server.URL, "admin", "secret", Options{}).Search(ctx, "Home")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestNewMediaServer(t *testing.T) {
	cfg := shared.DefaultConfig().Server

	for kind, want := range map[string]string{"jellyfin": "Jellyfin", "subsonic": "Subsonic"} {
		cfg.Kind = kind
		server, err := NewMediaServer(cfg, nil)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if server.Name() != want {
			t.Errorf("%s: expected %s, got %s", kind, want, server.Name())
		}
	}

	cfg.Kind = "plex"
	if _, err := NewMediaServer(cfg, nil); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestChunk(t *testing.T) {
	got := chunk([]string{"a", "b", "c", "d", "e"}, 2)
	if len(got) != 3 || len(got[2]) != 1 || got[2][0] != "e" {
		t.Errorf("unexpected chunks %v", got)
	}
	if chunk(nil, 2) != nil {
		t.Error("expected no chunks for empty input")
	}
}
