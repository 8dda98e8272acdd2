package testing

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
)

// FakeMediaServer is an in-memory media server. Songs added with [FakeMediaServer.Stage] only become
// searchable after a refresh finishes, which takes ScanPolls status checks.
type FakeMediaServer struct {
	mu sync.Mutex

	// ScanPolls is how many IndexStatus calls report scanning after a refresh.
	ScanPolls int
	// HidePaths drops paths from search results so callers must resolve them.
	HidePaths bool
	// HideCreated makes FindPlaylistByName miss playlists created through CreatePlaylist.
	HideCreated bool
	// DropOnAdd silently discards this many ids from the next AddMembers call.
	DropOnAdd int
	// Errors injects a failure for the named method, e.g. "Search" or "AddMembers".
	Errors map[string]error

	songs     []models.Candidate
	staged    []models.Candidate
	playlists []*models.Playlist
	hidden    map[string]bool
	vanished  map[string]bool
	scanLeft  int
	nextID    int

	SearchTerms  []string
	ResolveCalls []string
	AddCalls     [][]string
	Refreshes    int
	StatusPolls  int
	Creates      []string
}

// NewFakeMediaServer creates a server already holding songs.
func NewFakeMediaServer(songs ...models.Candidate) *FakeMediaServer {
	return &FakeMediaServer{songs: songs, hidden: map[string]bool{}, vanished: map[string]bool{}, Errors: map[string]error{}}
}

// Vanish keeps id in search results without a path, and makes its path lookup report
// [shared.ErrTrackNotFound], like an item removed between search and lookup.
func (f *FakeMediaServer) Vanish(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vanished[id] = true
}

func (f *FakeMediaServer) Name() string { return "fake" }

// Stage queues a song that appears once the next refresh completes.
func (f *FakeMediaServer) Stage(c models.Candidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged = append(f.staged, c)
}

// AddPlaylist seeds an existing playlist and returns its id.
func (f *FakeMediaServer) AddPlaylist(name string, members ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("pl")
	f.playlists = append(f.playlists, &models.Playlist{ID: id, Name: name, Count: len(members), MemberIDs: members})
	return id
}

// Playlist returns a copy of the named playlist, or nil.
func (f *FakeMediaServer) Playlist(name string) *models.Playlist {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.playlists {
		if p.Name == name {
			cp := *p
			cp.MemberIDs = append([]string(nil), p.MemberIDs...)
			return &cp
		}
	}
	return nil
}

func (f *FakeMediaServer) Authenticate(ctx context.Context) error {
	return f.fail("Authenticate")
}

// Search matches songs whose title, artist, album and path together contain every word of term.
func (f *FakeMediaServer) Search(ctx context.Context, term string) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SearchTerms = append(f.SearchTerms, term)
	if err := f.fail("Search"); err != nil {
		return nil, err
	}

	words := strings.Fields(strings.ToLower(term))
	var out []models.Candidate
	for _, s := range f.songs {
		hay := strings.ToLower(strings.Join([]string{s.Title, s.Artist, s.Album, filepath.Base(s.Path)}, " "))
		if containsAll(hay, words) {
			if f.HidePaths || f.vanished[s.ID] {
				s.Path = ""
			}
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *FakeMediaServer) ResolvePath(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResolveCalls = append(f.ResolveCalls, id)
	if err := f.fail("ResolvePath"); err != nil {
		return "", err
	}
	if f.vanished[id] {
		return "", fmt.Errorf("%w: song %s has no file", shared.ErrTrackNotFound, id)
	}
	for _, s := range f.songs {
		if s.ID == id {
			return s.Path, nil
		}
	}
	return "", fmt.Errorf("song %s not found", id)
}

func (f *FakeMediaServer) RefreshIndex(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Refreshes++
	if err := f.fail("RefreshIndex"); err != nil {
		return err
	}
	f.scanLeft = f.ScanPolls
	if f.scanLeft == 0 {
		f.publish()
	}
	return nil
}

func (f *FakeMediaServer) IndexStatus(ctx context.Context) (models.IndexState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusPolls++
	if err := f.fail("IndexStatus"); err != nil {
		return models.IndexIdle, err
	}
	if f.scanLeft > 0 {
		f.scanLeft--
		if f.scanLeft == 0 {
			f.publish()
		}
		return models.IndexScanning, nil
	}
	return models.IndexIdle, nil
}

func (f *FakeMediaServer) LibrarySongs(ctx context.Context) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("LibrarySongs"); err != nil {
		return nil, err
	}
	return append([]models.Candidate(nil), f.songs...), nil
}

func (f *FakeMediaServer) FindPlaylistByName(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("FindPlaylistByName"); err != nil {
		return "", err
	}
	for _, p := range f.playlists {
		if p.Name == name && !f.hidden[p.ID] {
			return p.ID, nil
		}
	}
	return "", nil
}

func (f *FakeMediaServer) CreatePlaylist(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Creates = append(f.Creates, name)
	if err := f.fail("CreatePlaylist"); err != nil {
		return "", err
	}
	id := f.id("pl")
	f.playlists = append(f.playlists, &models.Playlist{ID: id, Name: name})
	if f.HideCreated {
		f.hidden[id] = true
	}
	return id, nil
}

func (f *FakeMediaServer) GetPlaylistMembership(ctx context.Context, id string) (*models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetPlaylistMembership"); err != nil {
		return nil, err
	}
	for _, p := range f.playlists {
		if p.ID == id {
			cp := *p
			cp.MemberIDs = append([]string(nil), p.MemberIDs...)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("playlist %s not found", id)
}

// AddMembers appends ids, keeping duplicates the way most servers do.
func (f *FakeMediaServer) AddMembers(ctx context.Context, id string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AddCalls = append(f.AddCalls, append([]string(nil), ids...))
	if err := f.fail("AddMembers"); err != nil {
		return err
	}
	for _, p := range f.playlists {
		if p.ID != id {
			continue
		}
		keep := ids
		if f.DropOnAdd > 0 && f.DropOnAdd <= len(ids) {
			keep = ids[:len(ids)-f.DropOnAdd]
			f.DropOnAdd = 0
		}
		p.MemberIDs = append(p.MemberIDs, keep...)
		p.Count = len(p.MemberIDs)
		return nil
	}
	return fmt.Errorf("playlist %s not found", id)
}

func (f *FakeMediaServer) publish() {
	f.songs = append(f.songs, f.staged...)
	f.staged = nil
}

func (f *FakeMediaServer) fail(method string) error {
	if f.Errors == nil {
		return nil
	}
	return f.Errors[method]
}

func (f *FakeMediaServer) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func containsAll(hay string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(hay, w) {
			return false
		}
	}
	return true
}
