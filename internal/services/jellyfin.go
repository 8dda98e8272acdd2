package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
	"golang.org/x/oauth2"
)

const (
	jellyfinClient      = "libsync"
	jellyfinVersion     = "1.0.0"
	jellyfinRefreshTask = "RefreshLibrary"
	jellyfinPageSize    = 500
	jellyfinAddBatch    = 100
)

// JellyfinService talks to the Jellyfin REST API.
type JellyfinService struct {
	*apiClient
	username string
	password string
	deviceID string
	userID   string
}

// JellyfinItem is the subset of BaseItemDto fields used here.
type JellyfinItem struct {
	ID          string   `json:"Id"`
	Name        string   `json:"Name"`
	Album       string   `json:"Album"`
	AlbumArtist string   `json:"AlbumArtist"`
	Artists     []string `json:"Artists"`
	Path        string   `json:"Path"`
}

type jellyfinItems struct {
	Items            []JellyfinItem `json:"Items"`
	TotalRecordCount int            `json:"TotalRecordCount"`
}

type jellyfinSearchHints struct {
	SearchHints      []JellyfinItem `json:"SearchHints"`
	TotalRecordCount int            `json:"TotalRecordCount"`
}

type jellyfinAuthResponse struct {
	AccessToken string `json:"AccessToken"`
	User        struct {
		ID string `json:"Id"`
	} `json:"User"`
}

type jellyfinPlaybackInfo struct {
	MediaSources []struct {
		Path string `json:"Path"`
	} `json:"MediaSources"`
}

type jellyfinTask struct {
	Key   string `json:"Key"`
	State string `json:"State"`
}

// NewJellyfinService creates a client for the server at baseURL.
func NewJellyfinService(baseURL, username, password string, opts Options) *JellyfinService {
	return &JellyfinService{
		apiClient: newAPIClient(baseURL, opts),
		username:  username,
		password:  password,
		deviceID:  shared.GenerateID(),
	}
}

func (j *JellyfinService) Name() string { return "Jellyfin" }

// UserID returns the authenticated user's id, or "" before [JellyfinService.Authenticate].
func (j *JellyfinService) UserID() string { return j.userID }

// authorization renders the MediaBrowser authorization parameters, with the token when one is known.
func (j *JellyfinService) authorization(token string) string {
	parts := []string{
		fmt.Sprintf("Client=%q", jellyfinClient),
		fmt.Sprintf("Device=%q", jellyfinClient),
		fmt.Sprintf("DeviceId=%q", j.deviceID),
		fmt.Sprintf("Version=%q", jellyfinVersion),
	}
	if token != "" {
		parts = append(parts, fmt.Sprintf("Token=%q", token))
	}
	return strings.Join(parts, ", ")
}

// Authenticate signs in with username and password and routes later requests through an
// [oauth2.Transport] that sends the access token.
func (j *JellyfinService) Authenticate(ctx context.Context) error {
	if j.username == "" {
		return fmt.Errorf("%w: jellyfin username", shared.ErrMissingCredentials)
	}

	j.header.Set("Authorization", "MediaBrowser "+j.authorization(""))
	defer j.header.Del("Authorization")

	var auth jellyfinAuthResponse
	body := map[string]string{"Username": j.username, "Pw": j.password}
	if err := j.doRequest(ctx, http.MethodPost, "/Users/AuthenticateByName", nil, body, &auth); err != nil {
		return fmt.Errorf("jellyfin sign in: %w", err)
	}
	if auth.AccessToken == "" || auth.User.ID == "" {
		return fmt.Errorf("%w: jellyfin returned no access token", shared.ErrAuthFailed)
	}

	base := j.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	token := &oauth2.Token{AccessToken: j.authorization(auth.AccessToken), TokenType: "MediaBrowser"}
	j.httpClient = &http.Client{
		Timeout:   j.httpClient.Timeout,
		Transport: &oauth2.Transport{Source: oauth2.StaticTokenSource(token), Base: base},
	}
	j.userID = auth.User.ID

	j.logger.Info("authenticated", "server", j.Name(), "user", j.username)
	return nil
}

func (j *JellyfinService) requireUser() error {
	if j.userID == "" {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	return nil
}

func (j *JellyfinService) Search(ctx context.Context, term string) ([]models.Candidate, error) {
	if err := j.requireUser(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("searchTerm", term)
	q.Set("includeItemTypes", "Audio")
	q.Set("userId", j.userID)
	q.Set("limit", "50")

	var hints jellyfinSearchHints
	if err := j.doRequest(ctx, http.MethodGet, "/Search/Hints", q, nil, &hints); err != nil {
		return nil, err
	}

	out := make([]models.Candidate, 0, len(hints.SearchHints))
	for _, h := range hints.SearchHints {
		out = append(out, h.candidate())
	}
	return out, nil
}

func (j *JellyfinService) ResolvePath(ctx context.Context, id string) (string, error) {
	if err := j.requireUser(); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("userId", j.userID)

	var info jellyfinPlaybackInfo
	if err := j.doRequest(ctx, http.MethodGet, "/Items/"+url.PathEscape(id)+"/PlaybackInfo", q, nil, &info); err != nil {
		return "", err
	}
	if len(info.MediaSources) == 0 {
		return "", fmt.Errorf("%w: item %s has no media sources", shared.ErrTrackNotFound, id)
	}
	return info.MediaSources[0].Path, nil
}

func (j *JellyfinService) RefreshIndex(ctx context.Context) error {
	return j.doRequest(ctx, http.MethodPost, "/Library/Refresh", nil, nil, nil)
}

// IndexStatus reads the state of the RefreshLibrary scheduled task. Anything but Idle counts as scanning.
func (j *JellyfinService) IndexStatus(ctx context.Context) (models.IndexState, error) {
	var tasks []jellyfinTask
	q := url.Values{}
	q.Set("isHidden", "false")
	if err := j.doRequest(ctx, http.MethodGet, "/ScheduledTasks", q, nil, &tasks); err != nil {
		return models.IndexIdle, err
	}

	for _, t := range tasks {
		if t.Key != jellyfinRefreshTask {
			continue
		}
		if t.State == "Idle" {
			return models.IndexIdle, nil
		}
		return models.IndexScanning, nil
	}

	j.logger.Warn("scheduled task not found, assuming idle", "task", jellyfinRefreshTask)
	return models.IndexIdle, nil
}

func (j *JellyfinService) LibrarySongs(ctx context.Context) ([]models.Candidate, error) {
	if err := j.requireUser(); err != nil {
		return nil, err
	}

	var out []models.Candidate
	for start := 0; ; start += jellyfinPageSize {
		page, err := j.items(ctx, "Audio", "", start)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			out = append(out, item.candidate())
		}
		if len(page.Items) == 0 || start+len(page.Items) >= page.TotalRecordCount {
			return out, nil
		}
	}
}

func (j *JellyfinService) items(ctx context.Context, itemType, searchTerm string, start int) (*jellyfinItems, error) {
	q := url.Values{}
	q.Set("userId", j.userID)
	q.Set("includeItemTypes", itemType)
	q.Set("recursive", "true")
	q.Set("fields", "Path")
	q.Set("startIndex", strconv.Itoa(start))
	q.Set("limit", strconv.Itoa(jellyfinPageSize))
	if searchTerm != "" {
		q.Set("searchTerm", searchTerm)
	}

	var page jellyfinItems
	if err := j.doRequest(ctx, http.MethodGet, "/Items", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FindPlaylistByName returns the first playlist whose name equals name exactly.
func (j *JellyfinService) FindPlaylistByName(ctx context.Context, name string) (string, error) {
	if err := j.requireUser(); err != nil {
		return "", err
	}

	page, err := j.items(ctx, "Playlist", name, 0)
	if err != nil {
		return "", err
	}
	for _, item := range page.Items {
		if item.Name == name {
			return item.ID, nil
		}
	}
	return "", nil
}

func (j *JellyfinService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	if err := j.requireUser(); err != nil {
		return "", err
	}

	body := map[string]any{"Name": name, "Ids": []string{}, "UserId": j.userID, "MediaType": "Audio"}
	var created struct {
		ID string `json:"Id"`
	}
	if err := j.doRequest(ctx, http.MethodPost, "/Playlists", nil, body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (j *JellyfinService) GetPlaylistMembership(ctx context.Context, id string) (*models.Playlist, error) {
	if err := j.requireUser(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("userId", j.userID)

	var page jellyfinItems
	if err := j.doRequest(ctx, http.MethodGet, "/Playlists/"+url.PathEscape(id)+"/Items", q, nil, &page); err != nil {
		return nil, err
	}

	pl := &models.Playlist{ID: id, Count: page.TotalRecordCount, MemberIDs: make([]string, 0, len(page.Items))}
	for _, item := range page.Items {
		pl.MemberIDs = append(pl.MemberIDs, item.ID)
	}
	return pl, nil
}

// AddMembers appends ids in batches to keep query strings short.
func (j *JellyfinService) AddMembers(ctx context.Context, id string, ids []string) error {
	if err := j.requireUser(); err != nil {
		return err
	}

	for _, batch := range chunk(ids, jellyfinAddBatch) {
		q := url.Values{}
		q.Set("ids", strings.Join(batch, ","))
		q.Set("userId", j.userID)
		if err := j.doRequest(ctx, http.MethodPost, "/Playlists/"+url.PathEscape(id)+"/Items", q, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (i JellyfinItem) candidate() models.Candidate {
	artist := i.AlbumArtist
	if len(i.Artists) > 0 {
		artist = i.Artists[0]
	}
	return models.Candidate{ID: i.ID, Path: i.Path, Title: i.Name, Artist: artist, Album: i.Album}
}
