package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodectl/internal/publicip"
	pkgerrors "nodectl/pkg/errors"
)

func newTestApp(t *testing.T, env map[string]string, files map[string]string) *App {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
	}

	a, err := New(Options{
		ConfigPath: filepath.Join(dir, "config.toml"),
		DBPath:     filepath.Join(dir, "test.db"),
		EnvFile:    filepath.Join(dir, ".env"),
		LookupEnv: func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		},
		Environ: func() []string {
			environ := make([]string, 0, len(env))
			for k, v := range env {
				environ = append(environ, k+"="+v)
			}
			return environ
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_DefaultStorageDir(t *testing.T) {
	a := newTestApp(t, nil, nil)

	assert.Equal(t, filepath.Join(a.Config.DataDir, "storage"), a.StorageDir())
	assert.Empty(t, a.Env)
}

func TestSettingOrigin(t *testing.T) {
	files := map[string]string{
		"config.toml": "[speedtest]\nmax_time = \"9s\"\n",
		".env":        "NODECTL_PUBLICIP_TIMEOUT=1s\n",
	}
	a := newTestApp(t, map[string]string{"NODECTL_STORAGE_DIR": "/from/env"}, files)

	assert.Equal(t, LayerEnv, a.SettingOrigin("storage.dir"))
	assert.Equal(t, LayerEnvFile, a.SettingOrigin(KeyPublicIPTimeout))
	assert.Equal(t, LayerFile, a.SettingOrigin(KeySpeedTestMaxTime))
	assert.Equal(t, LayerDatabase, a.SettingOrigin(KeyLogLevel))
	assert.Equal(t, LayerDefault, a.SettingOrigin("userDataPath"))
	assert.Empty(t, a.SettingOrigin("nope"))
}

func TestSettingsKeys_IncludeEnvOnly(t *testing.T) {
	a := newTestApp(t, map[string]string{"NODECTL_STORAGE_DIR": "/from/env"}, nil)

	assert.Contains(t, a.Settings.Keys(), "storage.dir")
	assert.Contains(t, a.Settings.Keys(), KeyLogLevel)
}

func TestNew_LayerPriority(t *testing.T) {
	files := map[string]string{
		"config.toml": "[storage]\ndir = \"/from/file\"\n[speedtest]\nmax_time = \"9s\"\n",
		".env":        "NODECTL_STORAGE_DIR=/from/dotenv\n",
	}

	a := newTestApp(t, nil, files)
	assert.Equal(t, "/from/dotenv", a.StorageDir())

	a = newTestApp(t, map[string]string{"NODECTL_STORAGE_DIR": "/from/env"}, files)
	assert.Equal(t, "/from/env", a.StorageDir())

	cfg, err := a.SpeedTestConfig()
	require.NoError(t, err)
	assert.Equal(t, 9*time.Second, cfg.MaxTime, "file beats persisted default")
	assert.Equal(t, "https://speed.cloudflare.com", cfg.Server)
}

func TestNew_MalformedEnvFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KEY=\"unterminated\n"), 0600))

	_, err := New(Options{
		ConfigPath: filepath.Join(dir, "config.toml"),
		DBPath:     filepath.Join(dir, "test.db"),
		EnvFile:    filepath.Join(dir, ".env"),
	})
	assert.ErrorIs(t, err, pkgerrors.ErrConfigParse)
}

func TestReload_PicksUpPersistedSettings(t *testing.T) {
	a := newTestApp(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, a.Storage.SetSetting(ctx, "storage.dir", "/persisted"))
	assert.NotEqual(t, "/persisted", a.StorageDir())

	require.NoError(t, a.Reload(ctx))
	assert.Equal(t, "/persisted", a.StorageDir())
}

func TestResolverConfig(t *testing.T) {
	a := newTestApp(t, map[string]string{
		"NODECTL_PUBLICIP_SERVICES": "http://a.example/, http://b.example/",
	}, nil)

	cfg, err := a.ResolverConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.example/", "http://b.example/"}, cfg.Services)
	assert.Equal(t, publicip.DefaultTimeout, cfg.Timeout)

	interval, err := a.WatchInterval()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, interval)
}

func TestSpeedTestConfig_InvalidSetting(t *testing.T) {
	a := newTestApp(t, map[string]string{"NODECTL_SPEEDTEST_MAX_TIME": "forever"}, nil)

	_, err := a.SpeedTestConfig()
	assert.Error(t, err)
}
