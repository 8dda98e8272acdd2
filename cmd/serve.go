package main

import (
	"context"

	"github.com/desertthunder/libsync/internal/server"
	"github.com/desertthunder/libsync/internal/shared"
	"github.com/desertthunder/libsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve exposes history, metrics and an import trigger over HTTP until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	r.progress = nil

	var history server.History
	if h, err := r.batchHistory(config); err != nil {
		r.logger.Warn("batch history unavailable", "error", err)
	} else {
		history = h
	}

	srv := server.New(ctx, server.Options{
		History:  history,
		Gatherer: r.metrics.Registry(),
		Logger:   r.logger.WithPrefix("http"),
		Run: func(ctx context.Context) (*tasks.BatchResult, error) {
			return r.importBatch(ctx, config, nil)
		},
	})
	return srv.ListenAndServe(cmd.String("addr"))
}

// importBatch runs the configured import (import_dir, playlist_name, purge_import) and records its metrics.
// It backs every trigger that has no per-run flags.
func (r *Runner) importBatch(ctx context.Context, config *shared.Config, progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error) {
	if err := checkDirs(config, config.Library.ImportDir); err != nil {
		return nil, err
	}
	engine, err := r.engine(ctx, config)
	if err != nil {
		return nil, err
	}
	result, err := engine.Run(ctx, progress, tasks.BatchOptions{
		ImportDir:    config.Library.ImportDir,
		PlaylistName: config.Reconcile.PlaylistName,
		Purge:        config.Library.PurgeImport,
	})
	r.observe(config, result)
	return result, err
}
