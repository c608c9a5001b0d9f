package cmd

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/keystone/internal/config"
	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/utils"
	"github.com/MeKo-Tech/keystone/internal/warp"
	"github.com/spf13/cobra"
)

// warpCmd represents the warp command.
var warpCmd = &cobra.Command{
	Use:   "warp [INPUT] OUTPUT",
	Short: "Apply the keystone correction to an image",
	Long: `Warp an image so that it fills the quadrilateral spanned by the viewport
corners. The corners come from the corner store, or from --corners.

Without INPUT a calibration grid is rendered instead. Supported input formats
are JPEG, PNG and BMP; the output format follows the OUTPUT extension.

Examples:
  keystone warp photo.jpg out.png --store corners.yaml
  keystone warp out.png --corners "0.1,0.1 0.9,0 1,1 0,0.95" --overlay
  keystone warp photo.jpg out.png --width 1920 --height 1080 --fit pad`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyStoreFlags(cmd, cfg)
		if cmd.Flags().Changed("fit") {
			cfg.Effect.FitMode, _ = cmd.Flags().GetString("fit")
		}
		if cmd.Flags().Changed("edge-smoothness") {
			cfg.Effect.EdgeSmoothness, _ = cmd.Flags().GetFloat64("edge-smoothness")
		}
		if cmd.Flags().Changed("background") {
			cfg.Effect.BackgroundColor, _ = cmd.Flags().GetString("background")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		output := args[len(args)-1]
		if !utils.IsSupportedImage(output) {
			return fmt.Errorf("unsupported output format: %s", output)
		}

		width, _ := cmd.Flags().GetInt("width")
		height, _ := cmd.Flags().GetInt("height")

		var src image.Image
		if len(args) == 2 {
			img, meta, err := utils.LoadImage(args[0])
			if err != nil {
				return err
			}
			slog.Debug("Loaded input image", "path", args[0], "width", meta.Width, "height", meta.Height, "format", meta.Format)
			src = img
			if width <= 0 {
				width = meta.Width
			}
			if height <= 0 {
				height = meta.Height
			}
		}
		if width <= 0 || height <= 0 {
			width, height = cfg.Viewer.Width, cfg.Viewer.Height
		}
		if src == nil {
			src = warp.Grid(width, height, cfg.Viewer.GridCells)
		}

		out, corners, err := warpImage(cmd, cfg, src, width, height)
		if err != nil {
			return err
		}

		if overlay, _ := cmd.Flags().GetBool("overlay"); overlay {
			col, err := config.ParseColor(mustGetString(cmd, "overlay-color"))
			if err != nil {
				return err
			}
			utils.DrawCorners(out, corners, col, 2)
		}

		if err := utils.SaveImage(out, output); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %dx%d image to %s\n", width, height, output)
		return nil
	},
}

// warpImage fits src to the output size and runs it through the controller's
// renderer.
func warpImage(cmd *cobra.Command, cfg *config.Config, src image.Image, width, height int) (*image.RGBA, geom.CornerSet, error) {
	mode, err := utils.ParseFitMode(cfg.Effect.FitMode)
	if err != nil {
		return nil, geom.CornerSet{}, err
	}
	params, err := cfg.ToParams()
	if err != nil {
		return nil, geom.CornerSet{}, err
	}
	fitted, err := utils.FitImage(src, width, height, mode, params.Background)
	if err != nil {
		return nil, geom.CornerSet{}, err
	}

	renderer := warp.NewRenderer(width, height)
	ctrl, _, err := newController(cfg, renderer)
	if err != nil {
		return nil, geom.CornerSet{}, err
	}

	if cmd.Flags().Changed("corners") {
		corners, err := parseCornerSet(mustGetString(cmd, "corners"))
		if err != nil {
			return nil, geom.CornerSet{}, fmt.Errorf("invalid --corners: %w", err)
		}
		if err := ctrl.Editor().SetCorners(corners.Slice()); err != nil {
			return nil, geom.CornerSet{}, err
		}
		if _, _, err := ctrl.Tick(effect.Frame{}); err != nil {
			return nil, geom.CornerSet{}, err
		}
	}

	slog.Debug("Warping image", "width", width, "height", height, "matrix", ctrl.Matrix().Vector())
	return renderer.Render(fitted), ctrl.Corners(), nil
}

func mustGetString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func init() {
	rootCmd.AddCommand(warpCmd)
	addStoreFlags(warpCmd)
	warpCmd.Flags().String("corners", "", "viewport corners as four x,y pairs (overrides the store)")
	warpCmd.Flags().Int("width", 0, "output width (default input width)")
	warpCmd.Flags().Int("height", 0, "output height (default input height)")
	warpCmd.Flags().String("fit", "stretch", "how the input is fitted to the output size: stretch, fill or pad")
	warpCmd.Flags().Float64("edge-smoothness", 0, "width of the blended border (0..1)")
	warpCmd.Flags().String("background", "#000000", "background color (hex)")
	warpCmd.Flags().Bool("overlay", false, "draw the corner outline onto the output")
	warpCmd.Flags().String("overlay-color", "#FFFF00", "overlay color (hex)")
}
