package config

import (
	"fmt"
)

type ColorMode string

const (
	ColorModeAuto   ColorMode = "auto"   // Use colors only when TTY
	ColorModeAlways ColorMode = "always" // Always use colors
	ColorModeNever  ColorMode = "never"  // Never use colors
)

// String implements the flag.Value interface for ColorMode
func (c *ColorMode) String() string {
	if c == nil || *c == "" {
		return string(ColorModeAuto)
	}
	return string(*c)
}

// Set implements the flag.Value interface for ColorMode
func (c *ColorMode) Set(value string) error {
	switch value {
	case "always", "auto", "never":
		*c = ColorMode(value)
		return nil
	default:
		return fmt.Errorf("invalid color mode: %s (must be 'always', 'auto', or 'never')", value)
	}
}

// Type implements the flag.Value interface for ColorMode
func (c *ColorMode) Type() string {
	return "string"
}

type OutputMode string

const (
	OutputModeText OutputMode = "text"
	OutputModeJSON OutputMode = "json"
	OutputModeYAML OutputMode = "yaml"
	OutputModeTOML OutputMode = "toml"
)

// String implements the flag.Value interface for OutputMode
func (o *OutputMode) String() string {
	if o == nil || *o == "" {
		return string(OutputModeText)
	}
	return string(*o)
}

// Set implements the flag.Value interface for OutputMode
func (o *OutputMode) Set(value string) error {
	switch value {
	case "text", "json", "yaml", "toml":
		*o = OutputMode(value)
		return nil
	default:
		return fmt.Errorf("invalid output mode: %s (must be 'text', 'json', 'yaml', or 'toml')", value)
	}
}

// Type implements the flag.Value interface for OutputMode
func (o *OutputMode) Type() string {
	return "string"
}

type ConfigFlags struct {
	Version    bool
	ConfigFile string
	Color      ColorMode
	Output     OutputMode
}

type Config struct {
	Flags    ConfigFlags
	Settings Settings
}

func (c Config) GetConfigFlags() ConfigFlags {
	return c.Flags
}

func NewConfig(cfg Config) Config {
	return cfg
}
