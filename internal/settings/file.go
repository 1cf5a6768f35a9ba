package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	pkgerrors "nodectl/pkg/errors"
)

// LoadFile reads a TOML or YAML settings file and flattens nested tables
// into dot-notation keys. A missing file yields an empty Map.
func LoadFile(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Map{}, nil
		}
		return nil, err
	}

	var loaded map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &loaded)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrSettingsFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	return flattenMap(loaded, ""), nil
}

// flattenMap converts nested maps to dot-notation keys with string values.
// E.g., {"storage": {"dir": "/x"}} becomes {"storage.dir": "/x"}.
func flattenMap(m map[string]any, prefix string) Map {
	result := make(Map)

	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]any:
			for k, nv := range flattenMap(v, fullKey) {
				result[k] = nv
			}
		case nil:
			// An explicit null does not count as a value.
		default:
			result[fullKey] = fmt.Sprint(v)
		}
	}

	return result
}
