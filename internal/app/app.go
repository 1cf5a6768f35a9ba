package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nodectl/internal/envfile"
	"nodectl/internal/paths"
	"nodectl/internal/publicip"
	"nodectl/internal/settings"
	"nodectl/internal/speedtest"
	"nodectl/internal/storage"
	"nodectl/internal/storage/sqlite"
)

// EnvPrefix prefixes environment variables that override settings.
const EnvPrefix = "NODECTL"

// Settings keys read by the application.
const (
	KeySpeedTestMaxTime   = "speedtest.max_time"
	KeySpeedTestServer    = "speedtest.server"
	KeySpeedTestRateLimit = "speedtest.rate_limit_mb"
	KeyPublicIPTimeout    = "publicip.timeout"
	KeyPublicIPServices   = "publicip.services"
	KeyWatchInterval      = "publicip.watch_interval"
	KeyLogLevel           = "log_level"
)

// Options selects the files the application is built from. Empty fields
// fall back to the per-user defaults.
type Options struct {
	ConfigPath string
	DBPath     string
	EnvFile    string

	// LookupEnv reads the process environment. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// Environ lists the process environment. Defaults to os.Environ.
	Environ func() []string
}

// Settings layers, highest priority first.
const (
	LayerEnv      = "env"
	LayerEnvFile  = ".env"
	LayerFile     = "file"
	LayerDatabase = "database"
	LayerDefault  = "default"
)

var layers = []string{LayerEnv, LayerEnvFile, LayerFile, LayerDatabase, LayerDefault}

// App represents the application context
type App struct {
	Storage  storage.Storage
	Settings *settings.Layered
	Env      map[string]string
	Config   *Config

	lookupEnv func(string) (string, bool)
	environ   func() []string
	file      settings.Map
	defaults  settings.Map
}

// Config records where the application's files live.
type Config struct {
	DBPath     string
	ConfigPath string
	EnvFile    string
	DataDir    string
}

// New creates a new application instance
func New(opts Options) (*App, error) {
	dataDir, err := paths.DataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DBPath:     opts.DBPath,
		ConfigPath: opts.ConfigPath,
		EnvFile:    opts.EnvFile,
		DataDir:    dataDir,
	}
	if cfg.DBPath == "" {
		if cfg.DBPath, err = paths.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if cfg.ConfigPath == "" {
		if cfg.ConfigPath, err = paths.DefaultConfigFile(); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if cfg.EnvFile == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		cfg.EnvFile = filepath.Join(wd, envfile.FileName)
	}

	env, err := envfile.Load(cfg.EnvFile)
	if err != nil {
		return nil, err
	}

	file, err := settings.LoadFile(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings file: %w", err)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	lookupEnv := opts.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}

	app := &App{
		Storage:   store,
		Env:       env,
		Config:    cfg,
		lookupEnv: lookupEnv,
		environ:   environ,
		file:      file,
		defaults:  settings.Map{settings.KeyUserDataPath: dataDir},
	}

	if err := app.Reload(context.Background()); err != nil {
		store.Close()
		return nil, err
	}

	return app, nil
}

// Reload rebuilds the settings layers, picking up persisted changes.
func (a *App) Reload(ctx context.Context) error {
	stored, err := a.Storage.GetAllSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	a.Settings = settings.NewLayered(
		settings.Env{
			Prefix:     EnvPrefix,
			LookupFunc: a.lookupEnv,
			Names:      func() []string { return settings.EnvironNames(a.environ()) },
		},
		settings.EnvFromMap(EnvPrefix, a.Env),
		a.file,
		settings.Map(stored),
		a.defaults,
	)
	return nil
}

// StorageDir resolves the node's storage directory.
func (a *App) StorageDir() string {
	return settings.StorageDir(a.Settings)
}

// SpeedTestConfig builds a speed test configuration from settings.
func (a *App) SpeedTestConfig() (speedtest.Config, error) {
	maxTime, err := settings.Duration(a.Settings, KeySpeedTestMaxTime, speedtest.DefaultMaxTime)
	if err != nil {
		return speedtest.Config{}, err
	}
	rateLimit, err := settings.Float(a.Settings, KeySpeedTestRateLimit, 0)
	if err != nil {
		return speedtest.Config{}, err
	}
	server, _ := a.Settings.Get(KeySpeedTestServer)

	return speedtest.Config{
		Server:      server,
		MaxTime:     maxTime,
		RateLimitMB: rateLimit,
	}, nil
}

// ResolverConfig builds a public IP resolver configuration from settings.
func (a *App) ResolverConfig() (publicip.Config, error) {
	timeout, err := settings.Duration(a.Settings, KeyPublicIPTimeout, publicip.DefaultTimeout)
	if err != nil {
		return publicip.Config{}, err
	}
	return publicip.Config{
		Services: settings.List(a.Settings, KeyPublicIPServices),
		Timeout:  timeout,
	}, nil
}

// WatchInterval returns how often the IP watcher re-resolves.
func (a *App) WatchInterval() (time.Duration, error) {
	return settings.Duration(a.Settings, KeyWatchInterval, 5*time.Minute)
}

// Close closes the application and releases resources
func (a *App) Close() error {
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}

// Setting returns the effective value of key.
func (a *App) Setting(key string) (string, bool) {
	return a.Settings.Get(key)
}

// SettingOrigin names the layer that supplies key, or "" when none does.
func (a *App) SettingOrigin(key string) string {
	if i, ok := a.Settings.Origin(key); ok {
		return layers[i]
	}
	return ""
}
