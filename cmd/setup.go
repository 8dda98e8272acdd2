package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/libsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration.
//
// The path comes from the argument, then --config, then the XDG config directory.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		path = cmd.String("config")
	}
	if path == "" {
		var err error
		if path, err = shared.DefaultConfigPath(); err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set library.root, library.import_dir and the [server] section\n")
	r.writePlain("2. Run 'libsync setup database' to create the history database\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	path, err := config.DatabasePath()
	if err != nil {
		return fmt.Errorf("failed to resolve database path: %w", err)
	}
	r.logger.Info("initializing database", "path", path)

	db, err := shared.OpenDatabase(config)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	statuses, err := shared.Migrations(db)
	if err != nil {
		return err
	}

	r.writePlain("Database: %s\n", path)
	for _, s := range statuses {
		mark := "pending"
		if s.Applied {
			mark = "applied"
		}
		r.writePlain("  %04d %-28s %s\n", s.Version, s.Name, mark)
	}
	r.logger.Infof("setup complete for database: %v", path)
	return nil
}
