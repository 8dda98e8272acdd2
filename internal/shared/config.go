package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
)

const appName = "libsync"

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Library   LibraryConfig   `toml:"library"`
	Server    ServerConfig    `toml:"server"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Database  DatabaseConfig  `toml:"database"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Logging   LoggingConfig   `toml:"logging"`
}

// LibraryConfig locates the canonical library and the import staging directory.
type LibraryConfig struct {
	Root        string `toml:"root" validate:"required"`
	ImportDir   string `toml:"import_dir" validate:"required"`
	Asciify     bool   `toml:"asciify"`
	PurgeImport bool   `toml:"purge_import"`
}

// ServerConfig contains media server connection settings.
type ServerConfig struct {
	Kind              string   `toml:"kind" validate:"required,oneof=jellyfin subsonic"`
	URL               string   `toml:"url" validate:"required,url"`
	Username          string   `toml:"username" validate:"required"`
	Password          string   `toml:"password"`
	RequestsPerSecond float64  `toml:"requests_per_second" validate:"gt=0"`
	Timeout           Duration `toml:"timeout"`
}

// ReconcileConfig tunes attribution and the index refresh poll.
type ReconcileConfig struct {
	AttributionPolicy string   `toml:"attribution_policy" validate:"oneof=strict loose"`
	PlaylistName      string   `toml:"playlist_name"`
	LibraryPlaylist   string   `toml:"library_playlist" validate:"required"`
	InitialDelay      Duration `toml:"initial_delay"`
	PollInterval      Duration `toml:"poll_interval"`
	RefreshTimeout    Duration `toml:"refresh_timeout"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// MetricsConfig controls the Prometheus textfile written after each batch.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

// LoggingConfig controls level and output format.
type LoggingConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn error fatal"`
	Format string `toml:"format" validate:"omitempty,oneof=text json logfmt"`
}

// Duration is a [time.Duration] decoded from strings such as "10s" or "30m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, string(text))
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// envOverrides maps environment variables onto config fields. They take precedence over the file.
var envOverrides = []struct {
	name  string
	field func(*Config) *string
}{
	{"LIBSYNC_LIBRARY_ROOT", func(c *Config) *string { return &c.Library.Root }},
	{"LIBSYNC_IMPORT_DIR", func(c *Config) *string { return &c.Library.ImportDir }},
	{"LIBSYNC_SERVER_URL", func(c *Config) *string { return &c.Server.URL }},
	{"LIBSYNC_SERVER_USERNAME", func(c *Config) *string { return &c.Server.Username }},
	{"LIBSYNC_SERVER_PASSWORD", func(c *Config) *string { return &c.Server.Password }},
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
// Keys missing from the file keep their defaults, environment overrides are applied, and the result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config values with environment variables resolved through lookup.
// A variable that is set but empty is rejected.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, o := range envOverrides {
		v, ok := lookup(o.name)
		if !ok {
			continue
		}
		if v == "" {
			return fmt.Errorf("%w: environment variable %s is empty", ErrInvalidConfig, o.name)
		}
		*o.field(c) = v
	}
	return nil
}

// Validate checks the struct constraints and the relationships between fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Reconcile.PollInterval.Duration <= 0 {
		return fmt.Errorf("%w: reconcile.poll_interval must be positive", ErrInvalidConfig)
	}
	if c.Reconcile.RefreshTimeout.Duration < c.Reconcile.PollInterval.Duration {
		return fmt.Errorf("%w: reconcile.refresh_timeout is shorter than poll_interval", ErrInvalidConfig)
	}
	if filepath.Clean(c.Library.Root) == filepath.Clean(c.Library.ImportDir) {
		return fmt.Errorf("%w: library.root and library.import_dir must differ", ErrInvalidConfig)
	}
	return nil
}

// DatabasePath returns the configured database path, defaulting to the XDG data directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	return xdg.DataFile(filepath.Join(appName, appName+".db"))
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// FindConfig returns the first existing config file among ./config.toml and $XDG_CONFIG_HOME/libsync/config.toml.
func FindConfig() (string, error) {
	if _, err := os.Stat("config.toml"); err == nil {
		return "config.toml", nil
	}

	path, err := xdg.SearchConfigFile(filepath.Join(appName, "config.toml"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}
	return path, nil
}

// DefaultConfigPath returns the XDG location new config files are written to.
func DefaultConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(appName, "config.toml"))
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
