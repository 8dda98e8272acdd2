package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/libsync/internal/shared"
	"github.com/desertthunder/libsync/internal/tasks"
	"github.com/desertthunder/libsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for batch history and imports.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logPath, err := xdg.StateFile(filepath.Join("libsync", "tui.log"))
	if err != nil {
		return fmt.Errorf("failed to resolve log path: %w", err)
	}
	fileLogger, closer, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	if err := shared.ConfigureLogger(fileLogger, config.Logging); err != nil {
		return err
	}
	r.logger = fileLogger
	r.progress = nil

	history, err := r.batchHistory(config)
	if err != nil {
		return err
	}

	opts := ui.Options{
		History: history,
		Description: fmt.Sprintf("Import %s into %s\nPlaylist: %s\nPurge sources: %t",
			config.Library.ImportDir, config.Library.Root, playlistLabel(config), config.Library.PurgeImport),
		Run: func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error) {
			return r.importBatch(ctx, config, progress)
		},
	}

	p := tea.NewProgram(ui.NewModel(ctx, opts), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

func playlistLabel(config *shared.Config) string {
	if config.Reconcile.PlaylistName != "" {
		return config.Reconcile.PlaylistName
	}
	return "named after the batch date"
}
