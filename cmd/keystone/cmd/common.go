package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/keystone/internal/config"
	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/store"
	"github.com/spf13/cobra"
)

// parsePoints reads "x,y" pairs separated by whitespace or semicolons.
func parsePoints(s string) ([]geom.Point, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	pts := make([]geom.Point, 0, len(fields))
	for _, f := range fields {
		x, y, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q (want x,y)", f)
		}
		px, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid x in %q: %w", f, err)
		}
		py, err := strconv.ParseFloat(strings.TrimSpace(y), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid y in %q: %w", f, err)
		}
		pts = append(pts, geom.Point{X: px, Y: py})
	}
	return pts, nil
}

// parseCornerSet is parsePoints restricted to exactly four points.
func parseCornerSet(s string) (geom.CornerSet, error) {
	pts, err := parsePoints(s)
	if err != nil {
		return geom.CornerSet{}, err
	}
	c, ok := geom.CornersFromSlice(pts)
	if !ok {
		return geom.CornerSet{}, fmt.Errorf("expected 4 points, got %d", len(pts))
	}
	return c, nil
}

func formatPoints(pts []geom.Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = strconv.FormatFloat(p.X, 'g', -1, 64) + "," + strconv.FormatFloat(p.Y, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// applyStoreFlags lets --store and --key override the configured store.
func applyStoreFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("store") {
		cfg.Store.Path, _ = cmd.Flags().GetString("store")
	}
	if cmd.Flags().Changed("key") {
		cfg.Store.Key, _ = cmd.Flags().GetString("key")
	}
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "", "corner store file (YAML); empty keeps corners in memory")
	cmd.Flags().String("key", store.DefaultKey, "key under which corners are stored")
}

// newController opens the configured store and builds a controller around r.
func newController(cfg *config.Config, r effect.Renderer) (*effect.Controller, store.Store, error) {
	st, err := cfg.OpenStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open corner store: %w", err)
	}
	opts, err := cfg.ToEffectOptions(st, r, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	ctrl, err := effect.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize controller: %w", err)
	}
	return ctrl, st, nil
}
