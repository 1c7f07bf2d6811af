package gitplugin

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/midweste/wp-git-plugin-repository/internal/config"
)

// GetOutputMode returns the current output mode from config
func GetOutputMode() config.OutputMode {
	if getColorConfigFunc != nil && getColorConfigFunc().Output != "" {
		return getColorConfigFunc().Output
	}
	return config.OutputModeText
}

// ShouldUseStructuredOutput returns true if output should be machine readable
func ShouldUseStructuredOutput() bool {
	return GetOutputMode() != config.OutputModeText
}

// writeStructured encodes v in the given mode. TOML documents must be
// tables, so lists are wrapped under key.
func writeStructured(w io.Writer, mode config.OutputMode, key string, v any) error {
	switch mode {
	case config.OutputModeJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case config.OutputModeYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	case config.OutputModeTOML:
		if kind := reflect.ValueOf(v).Kind(); kind == reflect.Slice || kind == reflect.Array {
			v = map[string]any{key: v}
		}
		return toml.NewEncoder(w).Encode(v)
	default:
		return fmt.Errorf("unsupported output mode %q", mode)
	}
}
