package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/keystone/internal/config"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/store"
	"github.com/spf13/cobra"
)

// cornersCmd groups the corner store subcommands.
var cornersCmd = &cobra.Command{
	Use:   "corners",
	Short: "Inspect and edit the stored viewport corners",
	Long: `Inspect and edit the viewport corners persisted in the corner store.

The store is a YAML file selected with --store or store.path in the
configuration. Corners are kept under --key (default "homography").

Examples:
  keystone corners show --store corners.yaml
  keystone corners set "0.05,0 1,0.02 0.97,1 0,0.98" --store corners.yaml
  keystone corners reset --store corners.yaml
  keystone corners clear --store corners.yaml`,
}

var cornersShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored corners",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyStoreFlags(cmd, cfg)

		st, err := cfg.OpenStore()
		if err != nil {
			return err
		}
		corners := store.LoadCorners(st, cfg.Store.Key, nil)

		format, _ := cmd.Flags().GetString("format")
		out := cmd.OutOrStdout()
		switch format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(corners.Slice())
		case "text", "":
			for i, p := range corners {
				_, _ = fmt.Fprintf(out, "%d: %g,%g\n", i, p.X, p.Y)
			}
			return nil
		default:
			return fmt.Errorf("unsupported format: %s (must be text or json)", format)
		}
	},
}

var cornersSetCmd = &cobra.Command{
	Use:   "set POINTS",
	Short: "Replace the stored corners",
	Long: `Replace the stored corners with four "x,y" pairs given in corner order:
bottom-left, bottom-right, top-right, top-left.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		corners, err := parseCornerSet(args[0])
		if err != nil {
			return err
		}
		return saveCorners(cmd, corners)
	},
}

var cornersResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Store the unit square",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveCorners(cmd, geom.Canonical())
	},
}

var cornersClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored corners",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyStoreFlags(cmd, cfg)
		st, err := openPersistentStore(cfg)
		if err != nil {
			return err
		}
		if err := st.Delete(cfg.Store.Key); err != nil {
			return err
		}
		if err := st.Save(); err != nil {
			return fmt.Errorf("failed to save store: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %q from %s\n", cfg.Store.Key, cfg.Store.Path)
		return nil
	},
}

func saveCorners(cmd *cobra.Command, corners geom.CornerSet) error {
	cfg := GetConfig()
	applyStoreFlags(cmd, cfg)
	st, err := openPersistentStore(cfg)
	if err != nil {
		return err
	}
	if err := store.SaveCorners(st, cfg.Store.Key, corners); err != nil {
		return fmt.Errorf("failed to save corners: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", formatPoints(corners.Slice()), cfg.Store.Path)
	return nil
}

// openPersistentStore refuses to write to an in-memory store, where the
// change would be lost on exit.
func openPersistentStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, errors.New("no corner store configured (use --store or store.path)")
	}
	return cfg.OpenStore()
}

func init() {
	rootCmd.AddCommand(cornersCmd)
	for _, c := range []*cobra.Command{cornersShowCmd, cornersSetCmd, cornersResetCmd, cornersClearCmd} {
		addStoreFlags(c)
		cornersCmd.AddCommand(c)
	}
	cornersShowCmd.Flags().StringP("format", "f", "text", "output format: text or json")
}
