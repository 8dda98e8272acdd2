package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/libsync/internal/attribution"
	"github.com/desertthunder/libsync/internal/formatter"
	"github.com/desertthunder/libsync/internal/library"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
	"github.com/desertthunder/libsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Run files the given sources (default: every audio file in the import directory), rescans the
// library and adds the resolved tracks to the batch playlist.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	importDir := cmd.String("import-dir")
	if importDir == "" {
		importDir = config.Library.ImportDir
	}
	sources := cmd.Args().Slice()

	if len(sources) == 0 {
		if err := checkDirs(config, importDir); err != nil {
			return err
		}
	} else if err := library.VerifyWritable(config.Library.Root); err != nil {
		return err
	}

	engine, err := r.engine(ctx, config)
	if err != nil {
		return err
	}

	opts := tasks.BatchOptions{
		Sources:      sources,
		ImportDir:    importDir,
		PlaylistName: r.playlistName(cmd, config.Reconcile.PlaylistName),
		Purge:        cmd.Bool("purge") || config.Library.PurgeImport,
	}
	r.logger.Info("starting batch", "import_dir", importDir, "sources", len(sources), "purge", opts.Purge)

	result, err := r.runWithProgress(func(progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error) {
		return engine.Run(ctx, progress, opts)
	})
	return r.finish(cmd, config, format, result, err)
}

// Match resolves "artist-title" pairs without filing anything.
func (r *Runner) Match(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var entries []tasks.ManualEntry
	for _, s := range cmd.StringSlice("song") {
		entry, err := tasks.ParseManualEntry(s)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: at least one --song", shared.ErrMissingArgument)
	}

	engine, err := r.engine(ctx, config)
	if err != nil {
		return err
	}

	opts := tasks.ManualOptions{
		Entries:      entries,
		PlaylistName: r.playlistName(cmd, config.Reconcile.PlaylistName),
	}
	result, err := r.runWithProgress(func(progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error) {
		return engine.RunManual(ctx, progress, opts)
	})
	return r.finish(cmd, config, format, result, err)
}

// Library adds every server song missing from the library playlist.
func (r *Runner) Library(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	engine, err := r.engine(ctx, config)
	if err != nil {
		return err
	}

	name := cmd.String("playlist")
	if name == "" {
		name = config.Reconcile.LibraryPlaylist
	}

	result, err := r.runWithProgress(func(progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error) {
		return engine.SyncLibrary(ctx, progress, name)
	})
	return r.finish(cmd, config, formatter.FormatText, result, err)
}

// Scan triggers a library rescan and waits for the server to go idle.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	server, err := r.mediaServer(ctx, config)
	if err != nil {
		return err
	}

	started := r.now()
	waiter := tasks.NewIndexWaiter(server, waitOptions(config), r.clock, r.logger.WithPrefix("rescan"))
	r.writeProgress("Starting library rescan...\n")
	err = waiter.Wait(ctx, func(poll int, elapsed time.Duration) {
		r.writeProgress("Waiting for library rescan (%s)...\n", elapsed.Truncate(time.Second))
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Library rescan finished in %s\n", r.now().Sub(started).Truncate(time.Second))
	return nil
}

type resolved struct {
	Path        string      `json:"path"`
	Tags        models.Tags `json:"tags"`
	Artist      string      `json:"artist,omitempty"`
	Album       string      `json:"album,omitempty"`
	Destination string      `json:"destination,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Resolve reads each file's tags and prints where it would be filed. Nothing is copied.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one file", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	policy, err := attribution.ParsePolicy(config.Reconcile.AttributionPolicy)
	if err != nil {
		return err
	}

	reader := library.NewTagReader()
	resolver := attribution.NewResolver(policy, r.logger.WithPrefix("attribution"))
	filer := newFiler(config, r.logger)

	results := make([]resolved, 0, len(paths))
	for _, path := range paths {
		res := resolved{Path: path}
		tags, err := reader.ReadTags(ctx, path)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		res.Tags = tags

		attr, err := resolver.Resolve(tags)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		res.Artist, res.Album = attr.Artist, attr.Album
		res.Destination = filer.Destination(&models.Track{
			Title:      tags.Title,
			Artist:     attr.Artist,
			Album:      attr.Album,
			SourcePath: path,
		})
		results = append(results, res)
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}

	for _, res := range results {
		r.writePlain("%s\n", res.Path)
		r.writePlain("  tags:        title=%q artist=%q album_artist=%q album=%q\n",
			res.Tags.Title, res.Tags.Artist, res.Tags.AlbumArtist, res.Tags.Album)
		if res.Error != "" {
			r.writePlain("  error:       %s\n", res.Error)
			continue
		}
		r.writePlain("  attribution: %s / %s\n", res.Artist, res.Album)
		r.writePlain("  destination: %s\n", res.Destination)
	}
	return nil
}

// playlistName prefers --playlist, then the configured name. Empty lets the engine use the batch date.
func (r *Runner) playlistName(cmd *cli.Command, configured string) string {
	if name := cmd.String("playlist"); name != "" {
		return name
	}
	return configured
}

// finish records metrics, prints the summary and writes the report. The batch error is returned
// unchanged so the exit code reflects it.
func (r *Runner) finish(cmd *cli.Command, config *shared.Config, format formatter.Format, result *tasks.BatchResult, batchErr error) error {
	r.observe(config, result)
	if result == nil {
		return batchErr
	}

	summary, err := formatter.ReportToText(result)
	if err != nil {
		return err
	}
	r.writePlain("\n")
	r.writePlainHeader("Batch Complete")
	r.writePlain("%s", summary)

	if path := cmd.String("report"); path != "" {
		if err := formatter.WriteReport(result, path, format); err != nil {
			r.logger.Error("failed to write report", "path", path, "error", err)
		} else {
			r.writePlain("\nReport written to %s\n", path)
		}
	}
	return batchErr
}
