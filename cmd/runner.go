package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/libsync/internal/attribution"
	"github.com/desertthunder/libsync/internal/library"
	"github.com/desertthunder/libsync/internal/metrics"
	"github.com/desertthunder/libsync/internal/repositories"
	"github.com/desertthunder/libsync/internal/services"
	"github.com/desertthunder/libsync/internal/shared"
	"github.com/desertthunder/libsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies not supplied through [RunnerOpts] are built on first use from the loaded config.
type Runner struct {
	config   *shared.Config
	server   services.MediaServer
	history  *repositories.History
	db       *sql.DB
	metrics  *metrics.Recorder
	logger   *log.Logger
	output   io.Writer
	clock    tasks.Clock
	authed   bool
	progress io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	Server  services.MediaServer
	History *repositories.History
	Logger  *log.Logger
	Output  io.Writer
	Clock   tasks.Clock
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = tasks.SystemClock()
	}

	return &Runner{
		config:   opts.Config,
		server:   opts.Server,
		history:  opts.History,
		metrics:  metrics.NewRecorder(),
		logger:   opts.Logger,
		output:   opts.Output,
		progress: opts.Output,
		clock:    opts.Clock,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, runCommand, matchCommand, scanCommand, resolveCommand, libraryCommand, historyCommand, tuiCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "libsync",
		Usage:   "File new music into a library and keep media server playlists in step",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (default: ./config.toml, then $XDG_CONFIG_HOME/libsync/config.toml)",
				Sources: cli.EnvVars("LIBSYNC_CONFIG"),
			},
		},
		Commands: r.register(),
		After: func(ctx context.Context, cmd *cli.Command) error {
			return r.Close()
		},
	}
}

// Close releases the history database if the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.history = nil
	return err
}

// loadConfig reads the config once. Commands that run without one (setup config) never call it.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := cmd.String("config")
	if path == "" {
		found, err := shared.FindConfig()
		if err != nil {
			return nil, fmt.Errorf("%w (run 'libsync setup config' to create one)", err)
		}
		path = found
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := shared.ConfigureLogger(r.logger, config.Logging); err != nil {
		return nil, err
	}
	r.logger.Debug("config loaded", "path", path)

	r.config = config
	return config, nil
}

// mediaServer returns an authenticated server. Authentication doubles as the reachability check.
func (r *Runner) mediaServer(ctx context.Context, cfg *shared.Config) (services.MediaServer, error) {
	if r.server == nil {
		server, err := services.NewMediaServer(cfg.Server, r.logger.WithPrefix("server"))
		if err != nil {
			return nil, err
		}
		r.server = server
	}

	if !r.authed {
		if err := r.server.Authenticate(ctx); err != nil {
			return nil, fmt.Errorf("%s at %s: %w", r.server.Name(), cfg.Server.URL, err)
		}
		r.authed = true
		r.logger.Info("connected", "server", r.server.Name(), "url", cfg.Server.URL)
	}
	return r.server, nil
}

// batchHistory opens the history database on first use.
func (r *Runner) batchHistory(cfg *shared.Config) (*repositories.History, error) {
	if r.history != nil {
		return r.history, nil
	}

	db, err := shared.OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	r.db = db
	r.history = repositories.NewHistory(db)
	return r.history, nil
}

// engine builds a reconcile engine for one command. History is optional; a database that cannot be
// opened only disables recording.
func (r *Runner) engine(ctx context.Context, cfg *shared.Config) (*tasks.ReconcileEngine, error) {
	server, err := r.mediaServer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	policy, err := attribution.ParsePolicy(cfg.Reconcile.AttributionPolicy)
	if err != nil {
		return nil, err
	}

	var recorder tasks.Recorder
	if history, err := r.batchHistory(cfg); err != nil {
		r.logger.Warn("batch history disabled", "error", err)
	} else {
		recorder = history
	}

	return tasks.NewReconcileEngine(tasks.Dependencies{
		Server:   server,
		Resolver: attribution.NewResolver(policy, r.logger.WithPrefix("attribution")),
		Filer:    newFiler(cfg, r.logger),
		Recorder: recorder,
		Wait:     waitOptions(cfg),
		Clock:    r.clock,
		Logger:   r.logger,
	}), nil
}

func newFiler(cfg *shared.Config, logger *log.Logger) *library.Filer {
	return library.NewFiler(cfg.Library.Root, library.FilerOptions{
		Asciify: cfg.Library.Asciify,
		Logger:  logger.WithPrefix("library"),
	})
}

func waitOptions(cfg *shared.Config) tasks.WaitOptions {
	return tasks.WaitOptions{
		InitialDelay: cfg.Reconcile.InitialDelay.Duration,
		PollInterval: cfg.Reconcile.PollInterval.Duration,
		Timeout:      cfg.Reconcile.RefreshTimeout.Duration,
	}
}

// checkDirs verifies the import directory exists and the library root is writable before anything is filed.
func checkDirs(cfg *shared.Config, importDir string) error {
	info, err := os.Stat(importDir)
	if err != nil {
		return fmt.Errorf("%w: import directory %s: %v", shared.ErrInvalidConfig, importDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: import directory %s is not a directory", shared.ErrInvalidConfig, importDir)
	}
	return library.VerifyWritable(cfg.Library.Root)
}

// observe updates run metrics and writes the textfile when one is configured.
func (r *Runner) observe(cfg *shared.Config, result *tasks.BatchResult) {
	if result == nil {
		return
	}
	r.metrics.Observe(result)

	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := r.metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		r.logger.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
	}
}

// printProgress writes updates until the channel is closed, then closes done.
func (r *Runner) printProgress(progressCh <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range progressCh {
		switch update.Phase {
		case tasks.FileTracks, tasks.MatchTracks:
			r.writeProgress("   [%d/%d] %s\n", update.Step, update.Total, update.Message)
		case tasks.Finished:
		default:
			r.writeProgress("%s\n", update.Message)
		}
	}
}

// runWithProgress runs fn with a progress channel printed to the output, closing it once fn returns.
func (r *Runner) runWithProgress(fn func(chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error)) (*tasks.BatchResult, error) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go r.printProgress(progressCh, done)

	result, err := fn(progressCh)
	close(progressCh)
	<-done
	return result, err
}

func (r *Runner) writeProgress(format string, args ...any) {
	if r.progress == nil {
		return
	}
	fmt.Fprintf(r.progress, format, args...)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// Exit codes
const (
	exitOK         = 0
	exitFatal      = 1
	exitUnresolved = 2
)

// exitCode maps a command error to the process exit status. A [*tasks.BatchError] means the
// playlist was written but some tracks need attention.
func exitCode(err error) int {
	var batchErr *tasks.BatchError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &batchErr):
		return exitUnresolved
	default:
		return exitFatal
	}
}

// now is the runner's clock reading, used for relative times in listings.
func (r *Runner) now() time.Time {
	return r.clock.Now()
}
