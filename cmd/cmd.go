// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for configuration and the history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write an example config.toml (default: $XDG_CONFIG_HOME/libsync/config.toml)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// runCommand files the import directory, rescans and syncs the batch playlist.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Import new files into the library and add them to the batch playlist",
		ArgsUsage: "[FILE...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "import-dir",
				Usage: "Directory to import from (default: library.import_dir)",
			},
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Playlist name (default: reconcile.playlist_name, then the batch date)",
			},
			&cli.BoolFlag{
				Name:  "purge",
				Usage: "Delete the sources of resolved tracks once the playlist is written",
			},
			&cli.StringFlag{
				Name:    "report",
				Aliases: []string{"o"},
				Usage:   "Write the batch report to this file",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format: text, markdown, csv or json",
				Value:   "text",
			},
		},
		Action: r.Run,
	}
}

// matchCommand matches tracks typed in by hand.
func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Match \"artist-title\" pairs against the server and add them to a playlist",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "song",
				Aliases:  []string{"S"},
				Usage:    "Track as \"artist-title\", split on the first hyphen (repeatable)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Playlist name (default: reconcile.playlist_name, then today's date)",
			},
			&cli.StringFlag{
				Name:    "report",
				Aliases: []string{"o"},
				Usage:   "Write the batch report to this file",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format: text, markdown, csv or json",
				Value:   "text",
			},
		},
		Action: r.Match,
	}
}

// scanCommand triggers and awaits a library rescan.
func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "scan",
		Usage:  "Trigger a library rescan and wait for it to finish",
		Action: r.Scan,
	}
}

// resolveCommand prints tags and canonical attribution without touching the library.
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Show the tags, attribution and library destination of audio files",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
		},
		Action: r.Resolve,
	}
}

// libraryCommand syncs every song on the server into one playlist.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "Add every song on the server to the library playlist",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Playlist name (default: reconcile.library_playlist)",
			},
		},
		Action: r.Library,
	}
}

// historyCommand lists recorded batches.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List recent batches, or the tracks of one batch",
		ArgsUsage: "[BATCH]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of entries",
				Value:   20,
			},
			&cli.BoolFlag{
				Name:  "unresolved",
				Usage: "List unresolved tracks across all batches",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
		},
		Action: r.History,
	}
}

// tuiCommand returns the top-level TUI command for browsing history and running batches.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for batch history and imports",
		Action:  r.TUI,
	}
}

// serveCommand runs the HTTP status server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve batch history and metrics over HTTP, and start imports on POST /batches",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Listen address",
				Value:   "127.0.0.1:9464",
				Sources: cli.EnvVars("LIBSYNC_ADDR"),
			},
		},
		Action: r.Serve,
	}
}
