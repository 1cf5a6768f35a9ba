// Package envfile loads KEY=VALUE configuration from ".env" files.
package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	pkgerrors "nodectl/pkg/errors"
)

// FileName is the conventional name of an environment file.
const FileName = ".env"

// Load parses the environment file at path. A missing file is not an error
// and yields an empty map.
func Load(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", pkgerrors.ErrConfigParse, path, err)
	}
	return vars, nil
}

// LoadDir parses the ".env" file inside dir.
func LoadDir(dir string) (map[string]string, error) {
	return Load(filepath.Join(dir, FileName))
}

// Apply exports vars into the process environment. Variables that are
// already set are left untouched. It returns the names that were set.
func Apply(vars map[string]string) ([]string, error) {
	var applied []string
	for name, value := range vars {
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			return applied, fmt.Errorf("failed to set %s: %w", name, err)
		}
		applied = append(applied, name)
	}
	return applied, nil
}
