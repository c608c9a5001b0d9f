package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "keystone"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "KEYSTONE"
)

// Loader resolves a Config from defaults, a YAML file and KEYSTONE_*
// environment variables, in increasing priority. Flags bound to the same
// viper instance win over all of them.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags
// bound by the root command take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a caller-owned viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load searches the standard paths for keystone.yaml and validates the result.
func (l *Loader) Load() (*Config, error) {
	return validated(l.LoadWithoutValidation())
}

// LoadWithoutValidation is Load without the final validation step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
	return l.read(true)
}

// LoadWithFile reads configFile instead of searching. An empty path falls
// back to Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return validated(l.LoadWithFileWithoutValidation(configFile))
}

// LoadWithFileWithoutValidation is LoadWithFile without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile == "" {
		return l.LoadWithoutValidation()
	}
	if _, err := os.Stat(configFile); err != nil {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}
	l.v.SetConfigFile(configFile)
	return l.read(false)
}

// read applies env and defaults, reads the selected file and decodes.
// With optional set, a missing file leaves defaults and env in effect.
func (l *Loader) read(optional bool) (*Config, error) {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// KEYSTONE_SERVER_PORT -> server.port
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !optional || !errors.As(err, &notFound) {
			if used := l.v.ConfigFileUsed(); used != "" {
				return nil, fmt.Errorf("error reading config file %s: %w", used, err)
			}
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func validated(cfg *Config, err error) (*Config, error) {
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// GetConfigFileUsed returns the path of the config file that was read.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// defaultSettings flattens DefaultConfig into viper keys. Every key must be
// listed so that AutomaticEnv can override it during Unmarshal.
func defaultSettings() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"log_level": d.LogLevel,
		"verbose":   d.Verbose,

		"store.path": d.Store.Path,
		"store.key":  d.Store.Key,

		"editor.selection_radius": d.Editor.SelectionRadius,
		"editor.nudge_step":       d.Editor.NudgeStep,

		"effect.solver_method":    d.Effect.SolverMethod,
		"effect.edge_smoothness":  d.Effect.EdgeSmoothness,
		"effect.background_color": d.Effect.BackgroundColor,
		"effect.fit_mode":         d.Effect.FitMode,

		"server.host":                 d.Server.Host,
		"server.port":                 d.Server.Port,
		"server.cors_origin":          d.Server.CORSOrigin,
		"server.tick_ms":              d.Server.TickMS,
		"server.shutdown_timeout":     d.Server.ShutdownTimeout,
		"server.preview_width":        d.Server.PreviewWidth,
		"server.preview_height":       d.Server.PreviewHeight,
		"server.mutations_per_minute": d.Server.MutationsPerMinute,

		"viewer.width":      d.Viewer.Width,
		"viewer.height":     d.Viewer.Height,
		"viewer.fullscreen": d.Viewer.Fullscreen,
		"viewer.title":      d.Viewer.Title,
		"viewer.source":     d.Viewer.Source,
		"viewer.grid_cells": d.Viewer.GridCells,
	}
}

func (l *Loader) setDefaults() {
	for k, v := range defaultSettings() {
		l.v.SetDefault(k, v)
	}
}

// GenerateDefaultConfigFile writes a configuration file holding only the
// defaults. An empty filename writes keystone.yaml.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	v := viper.New()
	NewLoaderWithViper(v).setDefaults()
	return v.WriteConfigAs(filename)
}

// GetConfigSearchPaths returns the directories searched for keystone.yaml,
// highest priority first.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(xdg, ConfigFileName))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	return append(paths, "/etc/"+ConfigFileName)
}

// PrintConfigInfo describes where configuration is read from.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	used := l.GetConfigFileUsed()
	if used == "" {
		used = "(none, defaults and environment only)"
	}
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", used)
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
