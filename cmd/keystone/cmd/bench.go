package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/keystone/internal/benchmark"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/homography"
	"github.com/spf13/cobra"
)

// benchCmd represents the bench command.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time the solver methods and the CPU warp",
	Long: `Run micro-benchmarks for both homography solver methods and for a
full-frame warp of the calibration grid.

The quadrilateral defaults to a mild keystone; use --corners to time another.

Examples:
  keystone bench
  keystone bench --iterations 5000 --size 256
  keystone bench --corners "0.1,0.1 0.9,0 1,1 0,0.95" --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		iterations, _ := cmd.Flags().GetInt("iterations")
		if iterations <= 0 {
			return fmt.Errorf("invalid iterations: %d (must be positive)", iterations)
		}
		size, _ := cmd.Flags().GetInt("size")
		if size <= 0 {
			return fmt.Errorf("invalid size: %d (must be positive)", size)
		}

		quad, err := parseCornerSet(mustGetString(cmd, "corners"))
		if err != nil {
			return fmt.Errorf("invalid --corners: %w", err)
		}
		h, err := homography.Solve(quad, geom.Canonical())
		if err != nil {
			return fmt.Errorf("solve failed: %w", err)
		}
		params, err := cfg.ToParams()
		if err != nil {
			return err
		}

		suite := benchmark.NewSuite()
		for _, m := range homography.Methods {
			suite.AddSolver(m, quad)
		}
		// Rendering is far slower than solving; scale it down.
		warpIterations := max(1, iterations/100)
		suite.AddWarp(h, params, size, size)

		names := suite.Names()
		results := make([]benchmark.Result, 0, len(names))
		for _, name := range names[:len(names)-1] {
			results = append(results, suite.Run(name, iterations))
		}
		results = append(results, suite.Run(names[len(names)-1], warpIterations))

		format, _ := cmd.Flags().GetString("format")
		out := cmd.OutOrStdout()
		switch format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
		case "text", "":
			benchmark.WriteResults(out, results)
		default:
			return fmt.Errorf("unsupported format: %s (must be text or json)", format)
		}

		for _, r := range results {
			if r.Error != nil {
				return fmt.Errorf("benchmark %s failed: %w", r.Name, r.Error)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntP("iterations", "n", 1000, "solver iterations (the warp runs 1/100 as many)")
	benchCmd.Flags().Int("size", 128, "edge length of the warped frame in pixels")
	benchCmd.Flags().String("corners", "0.05,0.02 0.95,0 1,1 0,0.97", "quadrilateral to solve")
	benchCmd.Flags().StringP("format", "f", "text", "output format: text or json")
}
