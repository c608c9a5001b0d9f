package config

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/homography"
	"github.com/MeKo-Tech/keystone/internal/server"
	"github.com/MeKo-Tech/keystone/internal/store"
	"github.com/MeKo-Tech/keystone/internal/utils"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Store: StoreConfig{
			Path: "",
			Key:  store.DefaultKey,
		},
		Editor: EditorConfig{
			SelectionRadius: editor.DefaultConfig().SelectionRadius,
			NudgeStep:       effect.DefaultNudgeStep,
		},
		Effect: EffectConfig{
			SolverMethod:    string(homography.MethodSVD),
			EdgeSmoothness:  0,
			BackgroundColor: "#000000",
			FitMode:         string(utils.FitStretch),
		},
		Server: ServerConfig{
			Host:               "localhost",
			Port:               8080,
			CORSOrigin:         "*",
			TickMS:             16,
			ShutdownTimeout:    10,
			PreviewWidth:       640,
			PreviewHeight:      360,
			MutationsPerMinute: 120,
		},
		Viewer: ViewerConfig{
			Width:     1280,
			Height:    720,
			Title:     "keystone",
			GridCells: 8,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Store.Key == "" {
		return errors.New("invalid store key: must not be empty")
	}

	if c.Editor.SelectionRadius <= 0 {
		return fmt.Errorf("invalid editor.selection_radius: %g (must be positive)", c.Editor.SelectionRadius)
	}
	if c.Editor.NudgeStep <= 0 {
		return fmt.Errorf("invalid editor.nudge_step: %g (must be positive)", c.Editor.NudgeStep)
	}

	if _, err := homography.ParseMethod(c.Effect.SolverMethod); err != nil {
		return fmt.Errorf("invalid effect.solver_method: %w", err)
	}
	if err := validateThreshold(c.Effect.EdgeSmoothness, "effect.edge_smoothness"); err != nil {
		return err
	}
	if _, err := ParseColor(c.Effect.BackgroundColor); err != nil {
		return fmt.Errorf("invalid effect.background_color: %w", err)
	}
	if _, err := utils.ParseFitMode(c.Effect.FitMode); err != nil {
		return fmt.Errorf("invalid effect.fit_mode: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.TickMS <= 0 {
		return fmt.Errorf("invalid server tick: %d ms (must be positive)", c.Server.TickMS)
	}
	if c.Server.PreviewWidth <= 0 || c.Server.PreviewHeight <= 0 {
		return fmt.Errorf("invalid preview size: %dx%d (must be positive)", c.Server.PreviewWidth, c.Server.PreviewHeight)
	}
	if c.Server.MutationsPerMinute < 0 {
		return fmt.Errorf("invalid server.mutations_per_minute: %d (must be >= 0)", c.Server.MutationsPerMinute)
	}

	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		return fmt.Errorf("invalid viewer size: %dx%d (must be positive)", c.Viewer.Width, c.Viewer.Height)
	}
	if c.Viewer.GridCells <= 0 {
		return fmt.Errorf("invalid viewer.grid_cells: %d (must be positive)", c.Viewer.GridCells)
	}

	return nil
}

// SlogLevel maps the configured log level onto slog. Verbose forces debug.
func (c *Config) SlogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ToEffectOptions builds controller options. The store and renderer are
// supplied by the caller.
func (c *Config) ToEffectOptions(s store.Store, r effect.Renderer, logger *slog.Logger) (effect.Options, error) {
	method, err := homography.ParseMethod(c.Effect.SolverMethod)
	if err != nil {
		return effect.Options{}, err
	}
	params, err := c.ToParams()
	if err != nil {
		return effect.Options{}, err
	}
	return effect.Options{
		Store: s,
		Key:   c.Store.Key,
		Editor: editor.Config{
			SelectionRadius: c.Editor.SelectionRadius,
			Logger:          logger,
		},
		Method:    method,
		NudgeStep: c.Editor.NudgeStep,
		Params:    params,
		Renderer:  r,
		Logger:    logger,
	}, nil
}

// ToParams converts the renderer settings.
func (c *Config) ToParams() (effect.Params, error) {
	bg, err := ParseColor(c.Effect.BackgroundColor)
	if err != nil {
		return effect.Params{}, err
	}
	return effect.Params{EdgeSmoothness: c.Effect.EdgeSmoothness, Background: bg}, nil
}

// OpenStore opens the configured store: a file store when a path is set,
// otherwise an in-memory one.
func (c *Config) OpenStore() (store.Store, error) {
	if c.Store.Path == "" {
		return store.NewMemoryStore(), nil
	}
	return store.OpenFileStore(c.Store.Path)
}

// TickInterval returns the server tick period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Server.TickMS) * time.Millisecond
}

// ToServerConfig converts the server settings.
func (c *Config) ToServerConfig(logger *slog.Logger) server.Config {
	return server.Config{
		CORSOrigin:         c.Server.CORSOrigin,
		Tick:               c.TickInterval(),
		MutationsPerMinute: c.Server.MutationsPerMinute,
		Logger:             logger,
	}
}

// ParseColor parses #RGB, #RRGGBB or #RRGGBBAA.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q (want #RGB, #RRGGBB or #RRGGBBAA)", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
