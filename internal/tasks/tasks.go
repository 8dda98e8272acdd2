package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/libsync/internal/attribution"
	"github.com/desertthunder/libsync/internal/library"
	"github.com/desertthunder/libsync/internal/matcher"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/playlist"
	"github.com/desertthunder/libsync/internal/services"
	"github.com/desertthunder/libsync/internal/shared"
)

// Reconciler runs batches against one media server.
type Reconciler interface {
	Run(ctx context.Context, progress chan<- ProgressUpdate, opts BatchOptions) (*BatchResult, error)
	RunManual(ctx context.Context, progress chan<- ProgressUpdate, opts ManualOptions) (*BatchResult, error)
	SyncLibrary(ctx context.Context, progress chan<- ProgressUpdate, name string) (*BatchResult, error)
}

// TagSource reads metadata from an audio file.
type TagSource interface {
	ReadTags(ctx context.Context, path string) (models.Tags, error)
}

// Recorder persists finished batches. Recording errors are logged, never returned.
type Recorder interface {
	RecordBatch(ctx context.Context, result *BatchResult) error
}

// BatchOptions configures [ReconcileEngine.Run].
type BatchOptions struct {
	// Sources are the files to import. When empty, every audio file in ImportDir is used.
	Sources   []string
	ImportDir string
	// PlaylistName defaults to the name derived from the batch start time.
	PlaylistName string
	// Purge deletes the source of every resolved track after the playlist is written.
	Purge bool
}

// ManualEntry is an artist and title supplied by the operator instead of a file.
type ManualEntry struct {
	Artist string
	Title  string
}

// ParseManualEntry splits "artist-title" on the first hyphen.
func ParseManualEntry(s string) (ManualEntry, error) {
	artist, title, ok := strings.Cut(s, "-")
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if !ok || artist == "" || title == "" {
		return ManualEntry{}, fmt.Errorf("%w: %q is not in artist-title form", shared.ErrInvalidArgument, s)
	}
	return ManualEntry{Artist: artist, Title: title}, nil
}

// ManualOptions configures [ReconcileEngine.RunManual].
type ManualOptions struct {
	Entries      []ManualEntry
	PlaylistName string
}

// Dependencies are the collaborators of a [ReconcileEngine]. Server, Resolver, Filer and Tags are required.
type Dependencies struct {
	Server   services.MediaServer
	Resolver *attribution.Resolver
	Filer    *library.Filer
	Tags     TagSource
	Recorder Recorder
	Wait     WaitOptions
	Clock    Clock
	Logger   *log.Logger
}

// ReconcileEngine implements [Reconciler].
//
// A batch files every source into the library, triggers one rescan, matches each filed track against
// the server catalog and appends the resolved ids to the batch playlist. Per-track failures are kept
// on the outcome and reported together in a [*BatchError] once the playlist has been written. Failures
// of the library root, the rescan, the catalog or the playlist stop the batch.
type ReconcileEngine struct {
	server   services.MediaServer
	resolver *attribution.Resolver
	filer    *library.Filer
	tags     TagSource
	matcher  *matcher.Matcher
	sync     *playlist.Synchronizer
	waiter   *IndexWaiter
	recorder Recorder
	clock    Clock
	logger   *log.Logger
}

// NewReconcileEngine creates an engine from deps.
func NewReconcileEngine(deps Dependencies) *ReconcileEngine {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = attribution.NewResolver(attribution.Loose, logger)
	}
	tags := deps.Tags
	if tags == nil {
		tags = library.NewTagReader()
	}

	return &ReconcileEngine{
		server:   deps.Server,
		resolver: resolver,
		filer:    deps.Filer,
		tags:     tags,
		matcher:  matcher.NewMatcher(deps.Server, logger.WithPrefix("matcher")),
		sync:     playlist.NewSynchronizer(deps.Server, logger.WithPrefix("playlist")),
		waiter:   NewIndexWaiter(deps.Server, deps.Wait, clock, logger.WithPrefix("rescan")),
		recorder: deps.Recorder,
		clock:    clock,
		logger:   logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *ReconcileEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run reconciles a batch of imported files.
//
// The returned result is never nil. The error is nil when every track resolved, a [*BatchError] when
// the playlist was written but some tracks were not, and any other error when the batch stopped early.
func (e *ReconcileEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts BatchOptions) (*BatchResult, error) {
	started := e.clock.Now()
	name := opts.PlaylistName
	if name == "" {
		name = shared.PlaylistName(started)
	}
	result := newBatchResult(models.ModeImport, name, started)
	logger := e.logger.With("batch", result.ID, "playlist", name)

	e.sendProgress(progress, verifyLibraryUpdate(e.filer.Root()))
	if err := library.VerifyWritable(e.filer.Root()); err != nil {
		return e.abort(ctx, progress, result, err)
	}

	sources := opts.Sources
	if len(sources) == 0 {
		if opts.ImportDir == "" {
			return e.abort(ctx, progress, result, fmt.Errorf("%w: no sources and no import directory", shared.ErrMissingArgument))
		}
		found, err := library.ScanDir(opts.ImportDir)
		if err != nil {
			return e.abort(ctx, progress, result, fmt.Errorf("scan import directory: %w", err))
		}
		sources = found
	}
	logger.Info("batch started", "tracks", len(sources))

	result.Outcomes = make([]TrackOutcome, len(sources))
	filed := 0
	for i, source := range sources {
		out := &result.Outcomes[i]
		out.Position = i

		track, err := e.prepare(ctx, source)
		out.Track = track
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return e.abort(ctx, progress, result, ctxErr)
			}
			out.Err = err
			logger.Error("track not filed", "source", source, "err", err)
		} else {
			filed++
		}
		e.sendProgress(progress, fileTrackUpdate(i+1, len(sources), source, out))
	}

	if filed > 0 {
		e.sendProgress(progress, refreshIndexUpdate(0, 0))
		err := e.waiter.Wait(ctx, func(poll int, elapsed time.Duration) {
			e.sendProgress(progress, refreshIndexUpdate(poll, elapsed))
		})
		if err != nil {
			return e.abort(ctx, progress, result, err)
		}
	} else {
		logger.Warn("nothing filed, skipping rescan")
	}

	if err := e.matchAll(ctx, progress, result, logger); err != nil {
		return e.abort(ctx, progress, result, err)
	}

	if err := e.syncResolved(ctx, progress, result, logger); err != nil {
		return e.abort(ctx, progress, result, err)
	}

	if opts.Purge {
		e.purge(progress, result, logger)
	}
	return e.complete(ctx, progress, result)
}

// RunManual matches operator-supplied entries and adds them to the playlist. Nothing is filed and no
// rescan is requested, so entries must already be in the server catalog.
func (e *ReconcileEngine) RunManual(ctx context.Context, progress chan<- ProgressUpdate, opts ManualOptions) (*BatchResult, error) {
	started := e.clock.Now()
	name := opts.PlaylistName
	if name == "" {
		name = shared.PlaylistName(started)
	}
	result := newBatchResult(models.ModeManual, name, started)
	logger := e.logger.With("batch", result.ID, "playlist", name)

	result.Outcomes = make([]TrackOutcome, len(opts.Entries))
	for i, entry := range opts.Entries {
		result.Outcomes[i] = TrackOutcome{
			Position: i,
			Track: &models.Track{
				Title:  attribution.Normalize(entry.Title),
				Artist: attribution.Normalize(entry.Artist),
			},
		}
	}
	logger.Info("manual batch started", "tracks", len(opts.Entries))

	if err := e.matchAll(ctx, progress, result, logger); err != nil {
		return e.abort(ctx, progress, result, err)
	}
	if err := e.syncResolved(ctx, progress, result, logger); err != nil {
		return e.abort(ctx, progress, result, err)
	}
	return e.complete(ctx, progress, result)
}

// SyncLibrary adds every song on the server that is not yet in the named playlist.
// Each added song becomes a resolved outcome.
func (e *ReconcileEngine) SyncLibrary(ctx context.Context, progress chan<- ProgressUpdate, name string) (*BatchResult, error) {
	result := newBatchResult(models.ModeLibrary, name, e.clock.Now())
	logger := e.logger.With("batch", result.ID, "playlist", name)

	e.sendProgress(progress, fetchLibraryUpdate(0))
	songs, err := e.server.LibrarySongs(ctx)
	if err != nil {
		return e.abort(ctx, progress, result, fmt.Errorf("list library songs: %w", err))
	}
	e.sendProgress(progress, fetchLibraryUpdate(len(songs)))

	id, _, err := e.sync.FindOrCreate(ctx, name)
	if err != nil {
		return e.abort(ctx, progress, result, err)
	}
	current, err := e.server.GetPlaylistMembership(ctx, id)
	if err != nil {
		return e.abort(ctx, progress, result, fmt.Errorf("read playlist %q: %w", name, err))
	}

	seen := make(map[string]bool, len(songs))
	for _, song := range songs {
		if song.ID == "" || seen[song.ID] || current.Contains(song.ID) {
			continue
		}
		seen[song.ID] = true

		track := &models.Track{Title: song.Title, Artist: song.Artist, Album: song.Album}
		if err := track.AssignRemoteID(song.ID); err != nil {
			return e.abort(ctx, progress, result, err)
		}
		result.Outcomes = append(result.Outcomes, TrackOutcome{Position: len(result.Outcomes), Track: track})
	}
	logger.Info("library compared", "songs", len(songs), "present", current.Count, "missing", len(result.Outcomes))

	if err := e.syncResolved(ctx, progress, result, logger); err != nil {
		return e.abort(ctx, progress, result, err)
	}
	if result.PlaylistID == "" {
		result.PlaylistID = id
		result.FinalCount = current.Count
	}
	return e.complete(ctx, progress, result)
}

// prepare reads tags, resolves attribution and files one source. The returned track is never nil.
func (e *ReconcileEngine) prepare(ctx context.Context, source string) (*models.Track, error) {
	track := &models.Track{SourcePath: source}

	tags, err := e.tags.ReadTags(ctx, source)
	if err != nil {
		return track, fmt.Errorf("%w: %w", shared.ErrFilingFailed, err)
	}
	track.Title = tags.Title
	track.Album = tags.Album

	attr, err := e.resolver.Resolve(tags)
	if err != nil {
		return track, err
	}
	track.Artist = attr.Artist
	track.Album = attr.Album

	if _, err := e.filer.File(ctx, track); err != nil {
		return track, err
	}
	return track, nil
}

// matchAll matches every outcome that has not failed yet. Missing matches are deferred; any other
// error is returned.
func (e *ReconcileEngine) matchAll(ctx context.Context, progress chan<- ProgressUpdate, result *BatchResult, logger *log.Logger) error {
	var pending []int
	for i, o := range result.Outcomes {
		if o.Err == nil {
			pending = append(pending, i)
		}
	}

	for step, i := range pending {
		out := &result.Outcomes[i]
		if _, err := e.matcher.Match(ctx, out.Track); err != nil {
			if !matcher.IsNoMatch(err) {
				return err
			}
			out.Err = err
			logger.Error("track not matched", "track", out.Track.String(), "terms", out.Terms(), "candidates", len(out.Candidates()))
		}
		e.sendProgress(progress, matchTrackUpdate(step+1, len(pending), out.Track, out))
	}
	return nil
}

// syncResolved writes the resolved ids to the playlist. With nothing resolved the playlist is left alone.
func (e *ReconcileEngine) syncResolved(ctx context.Context, progress chan<- ProgressUpdate, result *BatchResult, logger *log.Logger) error {
	ids := result.ResolvedIDs()
	if len(ids) == 0 {
		logger.Warn("no tracks resolved, playlist untouched")
		return nil
	}

	e.sendProgress(progress, syncPlaylistUpdate(result.PlaylistName, len(ids)))
	res, err := e.sync.SyncDetailed(ctx, result.PlaylistName, ids)
	if err != nil {
		return err
	}
	result.PlaylistID = res.PlaylistID
	result.PlaylistCreated = res.Created
	result.Added = len(ids)
	result.FinalCount = res.FinalCount
	return nil
}

// purge removes resolved sources. Failed sources stay in place for remediation.
func (e *ReconcileEngine) purge(progress chan<- ProgressUpdate, result *BatchResult, logger *log.Logger) {
	var paths []string
	for _, o := range result.Resolved() {
		if o.Track.SourcePath != "" && o.Track.SourcePath != o.Track.LibraryPath() {
			paths = append(paths, o.Track.SourcePath)
		}
	}
	if len(paths) == 0 {
		return
	}

	e.sendProgress(progress, purgeSourcesUpdate(len(paths)))
	if err := library.Purge(paths); err != nil {
		logger.Warn("purge incomplete", "err", err)
		return
	}
	logger.Info("purged sources", "count", len(paths))
}

func (e *ReconcileEngine) complete(ctx context.Context, progress chan<- ProgressUpdate, result *BatchResult) (*BatchResult, error) {
	result.FinishedAt = e.clock.Now()
	e.record(ctx, result)
	e.sendProgress(progress, finishedUpdate(result))

	failed := result.Failed()
	e.logger.Info("batch finished",
		"batch", result.ID,
		"playlist", result.PlaylistName,
		"resolved", len(result.Outcomes)-len(failed),
		"failed", len(failed),
		"count", result.FinalCount,
	)
	if len(failed) > 0 {
		return result, &BatchError{Total: len(result.Outcomes), Failures: failed}
	}
	return result, nil
}

func (e *ReconcileEngine) abort(ctx context.Context, progress chan<- ProgressUpdate, result *BatchResult, err error) (*BatchResult, error) {
	result.Err = err
	result.FinishedAt = e.clock.Now()
	e.logger.Error("batch stopped", "batch", result.ID, "playlist", result.PlaylistName, "err", err)
	e.record(ctx, result)
	e.sendProgress(progress, finishedUpdate(result))
	return result, err
}

// record persists the batch even when ctx was cancelled.
func (e *ReconcileEngine) record(ctx context.Context, result *BatchResult) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordBatch(context.WithoutCancel(ctx), result); err != nil {
		e.logger.Error("failed to record batch", "batch", result.ID, "err", err)
	}
}
