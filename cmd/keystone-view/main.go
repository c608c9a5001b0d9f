package main

import (
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/keystone/internal/config"
	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/utils"
	"github.com/MeKo-Tech/keystone/internal/version"
	"github.com/MeKo-Tech/keystone/internal/viewer"
	"github.com/MeKo-Tech/keystone/internal/warp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "keystone-view [IMAGE]",
		Short: "Full-screen keystone viewer with interactive corner editing",
		Long: `Show an image (or a calibration grid) through the keystone correction and
edit the viewport corners interactively.

Controls:
  Ctrl+H        enter edit mode
  Ctrl          leave edit mode and save the corners
  drag          move the corner under the pointer (mouse or touch)
  0-3 (held)    select corners
  arrow keys    nudge the selected corners
  R             reset to the unit square
  Esc           quit (outside edit mode)`,
		Version:      version.String(),
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			bind := map[string]string{
				"store.path":        "store",
				"viewer.fullscreen": "fullscreen",
				"viewer.width":      "width",
				"viewer.height":     "height",
				"log_level":         "log-level",
			}
			for key, flag := range bind {
				_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
			}

			cfg, err := config.NewLoaderWithViper(v).LoadWithFile(cfgFile)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Viewer.Source = args[0]
			}

			slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			})))
			return run(cfg)
		},
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/keystone, /etc/keystone)")
	rootCmd.Flags().String("store", "", "corner store file (YAML); empty keeps corners in memory")
	rootCmd.Flags().Bool("fullscreen", false, "start in fullscreen mode")
	rootCmd.Flags().Int("width", 1280, "window width")
	rootCmd.Flags().Int("height", 720, "window height")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return rootCmd
}

func run(cfg *config.Config) error {
	w, h := cfg.Viewer.Width, cfg.Viewer.Height

	src, err := loadSource(cfg, w, h)
	if err != nil {
		return err
	}

	st, err := cfg.OpenStore()
	if err != nil {
		return fmt.Errorf("failed to open corner store: %w", err)
	}
	renderer := warp.NewRenderer(w, h)
	opts, err := cfg.ToEffectOptions(st, renderer, slog.Default())
	if err != nil {
		return err
	}
	ctrl, err := effect.New(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize controller: %w", err)
	}

	game, err := viewer.New(viewer.Options{
		Controller: ctrl,
		Renderer:   renderer,
		Source:     src,
		Logger:     slog.Default(),
	})
	if err != nil {
		return err
	}

	slog.Info("Starting viewer", "source", cfg.Viewer.Source, "store", cfg.Store.Path)
	return viewer.Run(game, viewer.WindowOptions{
		Title:      cfg.Viewer.Title,
		Width:      w,
		Height:     h,
		Fullscreen: cfg.Viewer.Fullscreen,
	})
}

// loadSource returns the configured image fitted to the window, or a grid.
func loadSource(cfg *config.Config, w, h int) (image.Image, error) {
	if cfg.Viewer.Source == "" {
		return warp.Grid(w, h, cfg.Viewer.GridCells), nil
	}
	img, _, err := utils.LoadImage(cfg.Viewer.Source)
	if err != nil {
		return nil, err
	}
	mode, err := utils.ParseFitMode(cfg.Effect.FitMode)
	if err != nil {
		return nil, err
	}
	params, err := cfg.ToParams()
	if err != nil {
		return nil, err
	}
	return utils.FitImage(img, w, h, mode, params.Background)
}
