package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names a document encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatOf maps a file extension (.yaml, .yml, .json) to its Format.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	default:
		return "", fmt.Errorf("unsupported config file extension: %q", ext)
	}
}

// FromFile loads a document, choosing the decoder by extension. ${VAR}
// references are expanded from the environment before decoding.
func FromFile(path string) (Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse([]byte(os.ExpandEnv(string(raw))), format)
}

// Parse decodes data in the given format. An empty document yields an
// empty Config.
func Parse(data []byte, format Format) (Config, error) {
	var doc map[string]any
	switch format {
	case YAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Config{}, fmt.Errorf("parse yaml: %w", err)
		}
	case JSON:
		if len(strings.TrimSpace(string(data))) == 0 {
			break
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return Config{}, fmt.Errorf("parse json: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format: %q", format)
	}
	return New(doc), nil
}

// FromYAML is Parse(data, YAML).
func FromYAML(data []byte) (Config, error) {
	return Parse(data, YAML)
}

// FromJSON is Parse(data, JSON).
func FromJSON(data []byte) (Config, error) {
	return Parse(data, JSON)
}
