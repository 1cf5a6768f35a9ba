// Package settings implements the layered key/value settings used by nodectl.
//
// Keys use dot notation ("storage.dir"). A Provider answers lookups by
// asking each of its sources in priority order; Scope narrows a provider to
// a key prefix so that Scope("storage").Get("dir") reads "storage.dir".
package settings

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Well-known keys.
const (
	KeyUserDataPath = "userDataPath"
	KeyStorageDir   = "storage.dir"

	storageSegment = "storage"
)

// Provider is a scoped key/value settings lookup.
type Provider interface {
	// Get returns the value for key and whether it is present.
	Get(key string) (string, bool)
	// Scope returns a provider whose keys are relative to name.
	Scope(name string) Provider
}

// Source is a single settings layer.
type Source interface {
	Lookup(key string) (string, bool)
}

// Map is an in-memory Source.
type Map map[string]string

func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Layered resolves keys against its sources, first match wins.
type Layered struct {
	sources []Source
}

// NewLayered creates a provider from sources ordered by priority (highest first).
func NewLayered(sources ...Source) *Layered {
	return &Layered{sources: sources}
}

func (l *Layered) Get(key string) (string, bool) {
	if i, ok := l.Origin(key); ok {
		return l.sources[i].Lookup(key)
	}
	return "", false
}

// Origin returns the index of the source that supplies key.
func (l *Layered) Origin(key string) (int, bool) {
	for i, src := range l.sources {
		if src == nil {
			continue
		}
		if _, ok := src.Lookup(key); ok {
			return i, true
		}
	}
	return -1, false
}

func (l *Layered) Scope(name string) Provider {
	return &scoped{parent: l, prefix: name}
}

// Keys returns every key known to the sources, sorted. Map keys are listed
// as is; Env sources list their prefixed variables, mapped back onto a Map
// key when one has that variable name.
func (l *Layered) Keys() []string {
	seen := make(map[string]struct{})
	for _, src := range l.sources {
		if m, ok := src.(Map); ok {
			for k := range m {
				seen[k] = struct{}{}
			}
		}
	}
	for _, src := range l.sources {
		if e, ok := src.(Env); ok {
			for _, k := range e.keys(seen) {
				seen[k] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type scoped struct {
	parent Provider
	prefix string
}

func (s *scoped) Get(key string) (string, bool) {
	return s.parent.Get(s.prefix + "." + key)
}

func (s *scoped) Scope(name string) Provider {
	return &scoped{parent: s.parent, prefix: s.prefix + "." + name}
}

// StorageDir returns the "storage.dir" override when present, otherwise
// userDataPath joined with "storage". A present but empty override is
// returned as is.
func StorageDir(p Provider) string {
	if dir, ok := p.Scope("storage").Get("dir"); ok {
		return dir
	}
	base, _ := p.Get(KeyUserDataPath)
	return filepath.Join(base, storageSegment)
}

// Duration parses key as a time.Duration, returning def when absent.
func Duration(p Provider, key string, def time.Duration) (time.Duration, error) {
	v, ok := p.Get(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", key, err)
	}
	return d, nil
}

// Float parses key as a float64, returning def when absent.
func Float(p Provider, key string, def float64) (float64, error) {
	v, ok := p.Get(key)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", key, err)
	}
	return f, nil
}

// List splits a comma separated value, dropping blanks.
func List(p Provider, key string) []string {
	v, _ := p.Get(key)
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Env maps dot keys onto environment variable names: with prefix "NODECTL",
// "storage.dir" becomes NODECTL_STORAGE_DIR and "userDataPath" becomes
// NODECTL_USERDATAPATH. LookupFunc is os.LookupEnv for the process
// environment or a map lookup for a parsed .env file. Names, when set,
// enumerates the variable names so the source can list its keys.
type Env struct {
	Prefix     string
	LookupFunc func(string) (string, bool)
	Names      func() []string
}

// EnvName returns the variable name for key.
func (e Env) EnvName(key string) string {
	name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if e.Prefix == "" {
		return name
	}
	return e.Prefix + "_" + name
}

func (e Env) Lookup(key string) (string, bool) {
	if e.LookupFunc == nil {
		return "", false
	}
	return e.LookupFunc(e.EnvName(key))
}

// keys lists the prefixed variables as settings keys. A variable matching
// the EnvName of a known key maps to that key; any other becomes lower
// case with underscores read as dots.
func (e Env) keys(known map[string]struct{}) []string {
	if e.Names == nil || e.Prefix == "" {
		return nil
	}
	byName := make(map[string]string, len(known))
	for k := range known {
		byName[e.EnvName(k)] = k
	}

	prefix := e.Prefix + "_"
	var out []string
	for _, name := range e.Names() {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" {
			continue
		}
		if k, ok := byName[name]; ok {
			out = append(out, k)
			continue
		}
		out = append(out, strings.ToLower(strings.ReplaceAll(rest, "_", ".")))
	}
	return out
}

// EnvFromMap builds an Env source over parsed variables.
func EnvFromMap(prefix string, vars map[string]string) Env {
	return Env{
		Prefix: prefix,
		LookupFunc: func(name string) (string, bool) {
			v, ok := vars[name]
			return v, ok
		},
		Names: func() []string {
			names := make([]string, 0, len(vars))
			for name := range vars {
				names = append(names, name)
			}
			return names
		},
	}
}

// EnvironNames returns the variable names in an os.Environ style list.
func EnvironNames(environ []string) []string {
	names := make([]string, 0, len(environ))
	for _, kv := range environ {
		if name, _, ok := strings.Cut(kv, "="); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}
