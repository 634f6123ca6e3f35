package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DecodeTOML parses a TOML descriptor document: one table per model.
func DecodeTOML(data []byte) (RawTable, error) {
	var doc map[string]map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML capability table: %w", err)
	}
	return fromDocument(doc), nil
}

// DecodeYAML parses a YAML descriptor document: one mapping per model.
func DecodeYAML(data []byte) (RawTable, error) {
	var doc map[string]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML capability table: %w", err)
	}
	return fromDocument(doc), nil
}

// LoadOverlay reads a descriptor file, choosing the decoder by extension.
func LoadOverlay(path string) (RawTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capability overlay: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	case ".toml":
		return DecodeTOML(data)
	default:
		return nil, fmt.Errorf("unsupported capability overlay format %q", filepath.Ext(path))
	}
}

func fromDocument(doc map[string]map[string]any) RawTable {
	table := make(RawTable, len(doc))
	for name, fields := range doc {
		if fields == nil {
			fields = map[string]any{}
		}
		table[name] = RawProfile(fields)
	}
	return table
}
