package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
)

const (
	subsonicAPIVersion  = "1.15.0"
	subsonicClient      = "libsync"
	subsonicSongCount   = 20
	subsonicAlbumPage   = 500
	subsonicAddBatch    = 100
	subsonicErrNotFound = 70
)

// SubsonicService talks to servers implementing the Subsonic REST API.
type SubsonicService struct {
	*apiClient
	username string
	password string
}

// SubsonicSong is a song entry ("child" in the API schema).
type SubsonicSong struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Path   string `json:"path"`
}

// SubsonicPlaylist is a playlist with or without its entries.
type SubsonicPlaylist struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	SongCount int            `json:"songCount"`
	Entry     []SubsonicSong `json:"entry"`
}

// SubsonicError is the error element of a failed response.
type SubsonicError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *SubsonicError) Error() string {
	return fmt.Sprintf("subsonic error %d: %s", e.Code, e.Message)
}

type subsonicEnvelope struct {
	Response subsonicResponse `json:"subsonic-response"`
}

type subsonicResponse struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	Error         *SubsonicError `json:"error"`
	SearchResult3 struct {
		Song []SubsonicSong `json:"song"`
	} `json:"searchResult3"`
	Song       *SubsonicSong `json:"song"`
	ScanStatus struct {
		Scanning bool `json:"scanning"`
		Count    int  `json:"count"`
	} `json:"scanStatus"`
	Playlists struct {
		Playlist []SubsonicPlaylist `json:"playlist"`
	} `json:"playlists"`
	Playlist   *SubsonicPlaylist `json:"playlist"`
	AlbumList2 struct {
		Album []struct {
			ID string `json:"id"`
		} `json:"album"`
	} `json:"albumList2"`
	Album struct {
		Song []SubsonicSong `json:"song"`
	} `json:"album"`
}

// NewSubsonicService creates a client for the server at baseURL.
func NewSubsonicService(baseURL, username, password string, opts Options) *SubsonicService {
	return &SubsonicService{
		apiClient: newAPIClient(baseURL, opts),
		username:  username,
		password:  password,
	}
}

func (s *SubsonicService) Name() string { return "Subsonic" }

// call invokes a Subsonic method with signed credentials and returns the unwrapped response.
func (s *SubsonicService) call(ctx context.Context, method string, params url.Values) (*subsonicResponse, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}

	salt := strings.ReplaceAll(shared.GenerateID(), "-", "")[:12]
	sum := md5.Sum([]byte(s.password + salt))
	q.Set("u", s.username)
	q.Set("t", hex.EncodeToString(sum[:]))
	q.Set("s", salt)
	q.Set("v", subsonicAPIVersion)
	q.Set("c", subsonicClient)
	q.Set("f", "json")

	var env subsonicEnvelope
	if err := s.doRequest(ctx, http.MethodGet, "/rest/"+method, q, nil, &env); err != nil {
		return nil, err
	}

	resp := &env.Response
	if resp.Status != "ok" {
		if resp.Error == nil {
			return nil, fmt.Errorf("%w: %s: status %q", shared.ErrServiceUnavailable, method, resp.Status)
		}
		// 40 wrong credentials, 41 token auth unsupported, 50 not authorized
		switch resp.Error.Code {
		case 40, 41, 50:
			return nil, fmt.Errorf("%w: %w: %s: %w", shared.ErrServiceUnavailable, shared.ErrAuthFailed, method, resp.Error)
		}
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrServiceUnavailable, method, resp.Error)
	}
	return resp, nil
}

// Authenticate pings the server, which validates the credentials.
func (s *SubsonicService) Authenticate(ctx context.Context) error {
	if s.username == "" {
		return fmt.Errorf("%w: subsonic username", shared.ErrMissingCredentials)
	}
	if _, err := s.call(ctx, "ping", nil); err != nil {
		return fmt.Errorf("subsonic ping: %w", err)
	}
	s.logger.Info("authenticated", "server", s.Name(), "user", s.username)
	return nil
}

func (s *SubsonicService) Search(ctx context.Context, term string) ([]models.Candidate, error) {
	q := url.Values{}
	q.Set("query", term)
	q.Set("songCount", strconv.Itoa(subsonicSongCount))
	q.Set("artistCount", "0")
	q.Set("albumCount", "0")

	resp, err := s.call(ctx, "search3", q)
	if err != nil {
		return nil, err
	}

	out := make([]models.Candidate, 0, len(resp.SearchResult3.Song))
	for _, song := range resp.SearchResult3.Song {
		out = append(out, song.candidate())
	}
	return out, nil
}

func (s *SubsonicService) ResolvePath(ctx context.Context, id string) (string, error) {
	q := url.Values{}
	q.Set("id", id)

	resp, err := s.call(ctx, "getSong", q)
	if err != nil {
		var se *SubsonicError
		if errors.As(err, &se) && se.Code == subsonicErrNotFound {
			return "", fmt.Errorf("%w: song %s", shared.ErrTrackNotFound, id)
		}
		return "", err
	}
	if resp.Song == nil {
		return "", fmt.Errorf("%w: song %s", shared.ErrTrackNotFound, id)
	}
	return resp.Song.Path, nil
}

func (s *SubsonicService) RefreshIndex(ctx context.Context) error {
	_, err := s.call(ctx, "startScan", nil)
	return err
}

func (s *SubsonicService) IndexStatus(ctx context.Context) (models.IndexState, error) {
	resp, err := s.call(ctx, "getScanStatus", nil)
	if err != nil {
		return models.IndexIdle, err
	}
	if resp.ScanStatus.Scanning {
		return models.IndexScanning, nil
	}
	return models.IndexIdle, nil
}

// LibrarySongs pages through every album and collects its songs.
func (s *SubsonicService) LibrarySongs(ctx context.Context) ([]models.Candidate, error) {
	var out []models.Candidate
	for offset := 0; ; offset += subsonicAlbumPage {
		q := url.Values{}
		q.Set("type", "alphabeticalByName")
		q.Set("size", strconv.Itoa(subsonicAlbumPage))
		q.Set("offset", strconv.Itoa(offset))

		resp, err := s.call(ctx, "getAlbumList2", q)
		if err != nil {
			return nil, err
		}

		albums := resp.AlbumList2.Album
		for _, album := range albums {
			aq := url.Values{}
			aq.Set("id", album.ID)
			ar, err := s.call(ctx, "getAlbum", aq)
			if err != nil {
				return nil, err
			}
			for _, song := range ar.Album.Song {
				out = append(out, song.candidate())
			}
		}

		if len(albums) < subsonicAlbumPage {
			return out, nil
		}
	}
}

func (s *SubsonicService) FindPlaylistByName(ctx context.Context, name string) (string, error) {
	resp, err := s.call(ctx, "getPlaylists", nil)
	if err != nil {
		return "", err
	}
	for _, p := range resp.Playlists.Playlist {
		if p.Name == name {
			return p.ID, nil
		}
	}
	return "", nil
}

// CreatePlaylist returns "" on servers older than API 1.14, which do not echo the new playlist.
func (s *SubsonicService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	q.Set("name", name)

	resp, err := s.call(ctx, "createPlaylist", q)
	if err != nil {
		return "", err
	}
	if resp.Playlist == nil {
		return "", nil
	}
	return resp.Playlist.ID, nil
}

func (s *SubsonicService) GetPlaylistMembership(ctx context.Context, id string) (*models.Playlist, error) {
	q := url.Values{}
	q.Set("id", id)

	resp, err := s.call(ctx, "getPlaylist", q)
	if err != nil {
		var se *SubsonicError
		if errors.As(err, &se) && se.Code == subsonicErrNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
		}
		return nil, err
	}
	if resp.Playlist == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}

	pl := &models.Playlist{ID: resp.Playlist.ID, Name: resp.Playlist.Name, Count: resp.Playlist.SongCount}
	for _, e := range resp.Playlist.Entry {
		pl.MemberIDs = append(pl.MemberIDs, e.ID)
	}
	return pl, nil
}

// AddMembers appends ids with updatePlaylist's songIdToAdd, which never removes existing entries.
func (s *SubsonicService) AddMembers(ctx context.Context, id string, ids []string) error {
	for _, batch := range chunk(ids, subsonicAddBatch) {
		q := url.Values{}
		q.Set("playlistId", id)
		for _, songID := range batch {
			q.Add("songIdToAdd", songID)
		}
		if _, err := s.call(ctx, "updatePlaylist", q); err != nil {
			return err
		}
	}
	return nil
}

func (s SubsonicSong) candidate() models.Candidate {
	return models.Candidate{ID: s.ID, Path: s.Path, Title: s.Title, Artist: s.Artist, Album: s.Album}
}
