package playlist

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/desertthunder/libsync/internal/shared"
	tu "github.com/desertthunder/libsync/internal/testing"
)

func ids(n int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("appends to existing playlist", func(t *testing.T) {
		server := tu.NewFakeMediaServer()
		server.AddPlaylist("2024 01 January", ids(10, "old")...)

		count, err := NewSynchronizer(server, nil).Sync(ctx, "2024 01 January", ids(3, "new"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 13 {
			t.Errorf("expected 13, got %d", count)
		}
		if len(server.Creates) != 0 {
			t.Errorf("existing playlist must not be recreated, got %v", server.Creates)
		}

		pl := server.Playlist("2024 01 January")
		if pl.MemberIDs[0] != "old0" || pl.MemberIDs[12] != "new2" {
			t.Errorf("expected old members kept and new appended, got %v", pl.MemberIDs)
		}
	})

	t.Run("creates missing playlist", func(t *testing.T) {
		server := tu.NewFakeMediaServer()

		res, err := NewSynchronizer(server, nil).SyncDetailed(ctx, "2024 01 January", []string{"a", "b"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Created || res.FinalCount != 2 || res.Before != 0 {
			t.Errorf("unexpected result %+v", res)
		}
		if len(server.Creates) != 1 {
			t.Errorf("expected one create, got %v", server.Creates)
		}
	})

	t.Run("dropped ids are a size mismatch", func(t *testing.T) {
		server := tu.NewFakeMediaServer()
		server.AddPlaylist("mix", ids(10, "old")...)
		server.DropOnAdd = 1

		_, err := NewSynchronizer(server, nil).Sync(ctx, "mix", ids(3, "new"))
		if !errors.Is(err, shared.ErrPlaylistSizeMismatch) {
			t.Fatalf("expected ErrPlaylistSizeMismatch, got %v", err)
		}

		var mismatch *SizeMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("expected *SizeMismatchError, got %T", err)
		}
		if mismatch.Expected() != 13 || mismatch.After != 12 {
			t.Errorf("expected 13 vs 12, got %d vs %d", mismatch.Expected(), mismatch.After)
		}
	})

	t.Run("created playlist not found again", func(t *testing.T) {
		server := tu.NewFakeMediaServer()
		server.HideCreated = true

		_, err := NewSynchronizer(server, nil).Sync(ctx, "mix", []string{"a"})
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
		}
		if len(server.AddCalls) != 0 {
			t.Error("no members should be added when the playlist cannot be found")
		}
	})

	t.Run("empty id list writes nothing", func(t *testing.T) {
		server := tu.NewFakeMediaServer()
		server.AddPlaylist("mix", "a", "b")

		count, err := NewSynchronizer(server, nil).Sync(ctx, "mix", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 2 || len(server.AddCalls) != 0 {
			t.Errorf("expected count 2 without writes, got %d after %v", count, server.AddCalls)
		}
	})

	t.Run("service errors propagate", func(t *testing.T) {
		for _, method := range []string{"FindPlaylistByName", "CreatePlaylist", "GetPlaylistMembership", "AddMembers"} {
			t.Run(method, func(t *testing.T) {
				server := tu.NewFakeMediaServer()
				server.Errors[method] = shared.ErrServiceUnavailable

				_, err := NewSynchronizer(server, nil).Sync(ctx, "mix", []string{"a"})
				if !errors.Is(err, shared.ErrServiceUnavailable) {
					t.Errorf("expected ErrServiceUnavailable, got %v", err)
				}
			})
		}
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := NewSynchronizer(tu.NewFakeMediaServer(), nil).Sync(ctx, "", []string{"a"})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
