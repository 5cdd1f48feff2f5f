package speaker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Map maps speaker keys to display names.
type Map map[string]string

// LoadMap reads a speaker map. Files ending in .yaml or .yml are decoded as
// a YAML mapping, anything else as a JSON object.
//
// A missing file is not an error and yields an empty map, so every speaker
// falls back to its raw key. An empty path behaves the same way.
func LoadMap(path string) (Map, error) {
	if path == "" {
		return Map{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Map{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("speaker: read map %q: %w", path, err)
	}

	m := Map{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("speaker: decode map %q: %w", path, err)
	}
	if m == nil {
		m = Map{}
	}
	return m, nil
}
