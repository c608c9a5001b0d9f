//nolint:lll
package config

// Config represents the complete configuration for keystone. It covers all
// commands (solve, corners, warp, serve, view) and is loaded from
// configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Calibration persistence
	Store StoreConfig `mapstructure:"store" yaml:"store" json:"store"`

	// Corner editing
	Editor EditorConfig `mapstructure:"editor" yaml:"editor" json:"editor"`

	// Homography and rendering
	Effect EffectConfig `mapstructure:"effect" yaml:"effect" json:"effect"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Desktop viewer
	Viewer ViewerConfig `mapstructure:"viewer" yaml:"viewer" json:"viewer"`
}

// StoreConfig selects where corners are persisted. An empty path keeps them
// in memory only.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
	Key  string `mapstructure:"key" yaml:"key" json:"key"`
}

// EditorConfig contains corner editor settings.
type EditorConfig struct {
	SelectionRadius float64 `mapstructure:"selection_radius" yaml:"selection_radius" json:"selection_radius"`
	NudgeStep       float64 `mapstructure:"nudge_step" yaml:"nudge_step" json:"nudge_step"`
}

// EffectConfig contains solver and renderer settings.
type EffectConfig struct {
	SolverMethod    string  `mapstructure:"solver_method" yaml:"solver_method" json:"solver_method"`
	EdgeSmoothness  float64 `mapstructure:"edge_smoothness" yaml:"edge_smoothness" json:"edge_smoothness"`
	BackgroundColor string  `mapstructure:"background_color" yaml:"background_color" json:"background_color"`
	FitMode         string  `mapstructure:"fit_mode" yaml:"fit_mode" json:"fit_mode"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	TickMS          int    `mapstructure:"tick_ms" yaml:"tick_ms" json:"tick_ms"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	PreviewWidth    int    `mapstructure:"preview_width" yaml:"preview_width" json:"preview_width"`
	PreviewHeight   int    `mapstructure:"preview_height" yaml:"preview_height" json:"preview_height"`

	// MutationsPerMinute caps PUT/POST/DELETE requests per client; 0 disables.
	MutationsPerMinute int `mapstructure:"mutations_per_minute" yaml:"mutations_per_minute" json:"mutations_per_minute"`
}

// ViewerConfig contains desktop viewer settings.
type ViewerConfig struct {
	Width      int    `mapstructure:"width" yaml:"width" json:"width"`
	Height     int    `mapstructure:"height" yaml:"height" json:"height"`
	Fullscreen bool   `mapstructure:"fullscreen" yaml:"fullscreen" json:"fullscreen"`
	Title      string `mapstructure:"title" yaml:"title" json:"title"`
	Source     string `mapstructure:"source" yaml:"source" json:"source"`
	GridCells  int    `mapstructure:"grid_cells" yaml:"grid_cells" json:"grid_cells"`
}
