package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "nodectl/pkg/errors"
)

func TestStorageDir_Override(t *testing.T) {
	tests := []string{"/srv/node/storage", "relative/dir", "  spaced  ", ""}

	for _, dir := range tests {
		p := NewLayered(Map{KeyStorageDir: dir, KeyUserDataPath: "/home/u/.local/share/nodectl"})
		assert.Equal(t, dir, StorageDir(p), "override %q must be returned unmodified", dir)
	}
}

func TestStorageDir_Fallback(t *testing.T) {
	tests := []string{"/home/u/.local/share/nodectl", "data", ""}

	for _, base := range tests {
		p := NewLayered(Map{KeyUserDataPath: base})
		assert.Equal(t, filepath.Join(base, "storage"), StorageDir(p))
	}
}

func TestStorageDir_HigherLayerWins(t *testing.T) {
	p := NewLayered(
		Map{KeyStorageDir: "/from/env"},
		Map{KeyStorageDir: "/from/file"},
		Map{KeyUserDataPath: "/data"},
	)

	assert.Equal(t, "/from/env", StorageDir(p))
}

func TestLayered_Scope(t *testing.T) {
	p := NewLayered(Map{"speedtest.max_time": "5s", "publicip.watch.interval": "1m"})

	v, ok := p.Scope("speedtest").Get("max_time")
	assert.True(t, ok)
	assert.Equal(t, "5s", v)

	v, ok = p.Scope("publicip").Scope("watch").Get("interval")
	assert.True(t, ok)
	assert.Equal(t, "1m", v)

	_, ok = p.Scope("speedtest").Get("missing")
	assert.False(t, ok)
}

func TestLayered_SkipsNilSources(t *testing.T) {
	var missing Source
	p := NewLayered(missing, Map{"a": "1"})

	v, ok := p.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestLayered_Keys(t *testing.T) {
	p := NewLayered(
		Env{Prefix: "NODECTL", LookupFunc: os.LookupEnv},
		Map{"b": "1", "a": "2"},
		Map{"a": "3", "c": "4"},
	)

	assert.Equal(t, []string{"a", "b", "c"}, p.Keys())
}

func TestLayered_KeysFromEnv(t *testing.T) {
	environ := []string{
		"NODECTL_STORAGE_DIR=/env/storage",
		"NODECTL_LOG_LEVEL=debug",
		"HOME=/root",
		"NODECTL_=ignored",
	}
	env := Env{
		Prefix:     "NODECTL",
		LookupFunc: func(string) (string, bool) { return "", false },
		Names:      func() []string { return EnvironNames(environ) },
	}
	dotenv := EnvFromMap("NODECTL", map[string]string{
		"NODECTL_SPEEDTEST_SERVER": "http://dotenv",
		"OTHER":                    "x",
	})

	p := NewLayered(env, dotenv, Map{"log_level": "info", "speedtest.server": "https://speed"})

	// log_level maps back onto the stored key instead of "log.level".
	assert.Equal(t, []string{"log_level", "speedtest.server", "storage.dir"}, p.Keys())
}

func TestLayered_Origin(t *testing.T) {
	p := NewLayered(
		EnvFromMap("NODECTL", map[string]string{"NODECTL_STORAGE_DIR": "/dotenv"}),
		nil,
		Map{"storage.dir": "/db", "log_level": "info"},
	)

	i, ok := p.Origin("storage.dir")
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = p.Origin("log_level")
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = p.Origin("missing")
	assert.False(t, ok)
}

func TestEnvironNames(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, EnvironNames([]string{"A=1", "B=", "=broken", "novalue"}))
}

func TestEnv_Lookup(t *testing.T) {
	t.Setenv("NODECTL_STORAGE_DIR", "/env/storage")

	env := Env{Prefix: "NODECTL", LookupFunc: os.LookupEnv}

	assert.Equal(t, "NODECTL_STORAGE_DIR", env.EnvName(KeyStorageDir))
	assert.Equal(t, "NODECTL_USERDATAPATH", env.EnvName(KeyUserDataPath))

	v, ok := env.Lookup(KeyStorageDir)
	assert.True(t, ok)
	assert.Equal(t, "/env/storage", v)

	assert.Equal(t, "/env/storage", StorageDir(NewLayered(env, Map{KeyUserDataPath: "/data"})))
}

func TestEnvFromMap(t *testing.T) {
	env := EnvFromMap("NODECTL", map[string]string{"NODECTL_STORAGE_DIR": "/dotenv"})

	v, ok := env.Lookup(KeyStorageDir)
	assert.True(t, ok)
	assert.Equal(t, "/dotenv", v)

	_, ok = env.Lookup(KeyUserDataPath)
	assert.False(t, ok)

	var empty Env
	_, ok = empty.Lookup(KeyStorageDir)
	assert.False(t, ok)
}

func TestLoadFile_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[storage]
dir = "/srv/storage"

[speedtest]
max_time = "4s"
rate_limit_mb = 2.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	m, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/storage", m["storage.dir"])
	assert.Equal(t, "4s", m["speedtest.max_time"])
	assert.Equal(t, "2.5", m["speedtest.rate_limit_mb"])
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "storage:\n  dir: /yaml/storage\npublicip:\n  timeout: 800ms\n  unset: null\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	m, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/yaml/storage", m["storage.dir"])
	assert.Equal(t, "800ms", m["publicip.timeout"])
	_, ok := m["publicip.unset"]
	assert.False(t, ok)
}

func TestLoadFile_Missing(t *testing.T) {
	m, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))

	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage\ndir = "), 0600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_UnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("a=b"), 0600))

	_, err := LoadFile(path)
	assert.ErrorIs(t, err, pkgerrors.ErrSettingsFormat)
}

func TestDuration(t *testing.T) {
	p := NewLayered(Map{"speedtest.max_time": "7s", "bad": "soon", "empty": ""})

	d, err := Duration(p, "speedtest.max_time", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, d)

	d, err = Duration(p, "missing", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = Duration(p, "empty", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	_, err = Duration(p, "bad", time.Second)
	assert.ErrorContains(t, err, "setting bad")
}

func TestFloat(t *testing.T) {
	p := NewLayered(Map{"rate": "2.5", "bad": "fast"})

	f, err := Float(p, "rate", 0)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	f, err = Float(p, "missing", 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	_, err = Float(p, "bad", 0)
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	p := NewLayered(Map{"services": " http://a/ ,, http://b/ "})

	assert.Equal(t, []string{"http://a/", "http://b/"}, List(p, "services"))
	assert.Nil(t, List(p, "missing"))
}
