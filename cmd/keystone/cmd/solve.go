package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/homography"
	"github.com/spf13/cobra"
)

// SolveResult is the JSON output of the solve command.
type SolveResult struct {
	Method string       `json:"method"`
	From   []geom.Point `json:"from"`
	To     []geom.Point `json:"to"`
	Matrix geom.Matrix  `json:"matrix"`
	// Residual is the largest distance between H*from[i] and to[i].
	Residual float64 `json:"residual"`
}

// solveCmd represents the solve command.
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Compute the homography between two quadrilaterals",
	Long: `Compute the 3x3 projective matrix H with H*from[i] ~ to[i] for four point
correspondences. Points are given as "x,y" pairs separated by spaces or
semicolons, in corner order.

When --to is omitted the unit square (0,0) (1,0) (1,1) (0,1) is used, which
yields the correction matrix for a set of viewport corners.

Examples:
  keystone solve --from "0.1,0.1 0.9,0 1,1 0,0.95"
  keystone solve --from "0,0 2,0 2,2 0,2" --to "0,0 1,0 1,1 0,1" --format json
  keystone solve --from "0.1,0.1 0.9,0 1,1 0,0.95" --method linear`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		fromStr, _ := cmd.Flags().GetString("from")
		from, err := parseCornerSet(fromStr)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}

		to := geom.Canonical()
		if cmd.Flags().Changed("to") {
			toStr, _ := cmd.Flags().GetString("to")
			if to, err = parseCornerSet(toStr); err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
		}

		methodName := cfg.Effect.SolverMethod
		if cmd.Flags().Changed("method") {
			methodName, _ = cmd.Flags().GetString("method")
		}
		method, err := homography.ParseMethod(methodName)
		if err != nil {
			return err
		}

		h, err := homography.NewSolver(method).Solve(from, to)
		if err != nil {
			return fmt.Errorf("solve failed: %w", err)
		}

		result := SolveResult{
			Method:   string(method),
			From:     from.Slice(),
			To:       to.Slice(),
			Matrix:   h,
			Residual: residual(h, from, to),
		}

		format, _ := cmd.Flags().GetString("format")
		return writeSolveResult(cmd, result, format)
	},
}

func residual(h geom.Matrix, from, to geom.CornerSet) float64 {
	worst := 0.0
	for i := range from {
		got := homography.Transform(h, from[i])
		worst = max(worst, got.Dist(to[i]))
	}
	return worst
}

func writeSolveResult(cmd *cobra.Command, r SolveResult, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "text", "":
		_, _ = fmt.Fprintf(out, "method: %s\n", r.Method)
		_, _ = fmt.Fprintf(out, "from:   %s\n", formatPoints(r.From))
		_, _ = fmt.Fprintf(out, "to:     %s\n", formatPoints(r.To))
		_, _ = fmt.Fprintln(out, "matrix:")
		for _, row := range r.Matrix {
			_, _ = fmt.Fprintf(out, "  % .9f % .9f % .9f\n", row[0], row[1], row[2])
		}
		_, _ = fmt.Fprintf(out, "residual: %.3g\n", r.Residual)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (must be text or json)", format)
	}
}

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().String("from", "", "source quadrilateral as four x,y pairs (required)")
	solveCmd.Flags().String("to", "", "target quadrilateral as four x,y pairs (default unit square)")
	solveCmd.Flags().String("method", "svd", "solver method: svd or linear")
	solveCmd.Flags().StringP("format", "f", "text", "output format: text or json")
	_ = solveCmd.MarkFlagRequired("from")
}
