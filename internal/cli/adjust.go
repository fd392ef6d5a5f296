package cli

import (
	"fmt"
	"strconv"

	"github.com/ppiankov/realign/internal/consequence"
	"github.com/ppiankov/realign/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	adjustReason string
	adjustAction string
)

// adjustCmd represents the adjust command
var adjustCmd = &cobra.Command{
	Use:   "adjust <points>",
	Short: "Manually adjust the trust score",
	Long: `Apply an operator adjustment to the trust score. The adjustment is
recorded as a manual override with its reason.

Negative values must follow "--" so they are not parsed as flags:
  realign adjust 50 --reason "false positive"
  realign adjust --reason "repeat offence" -- -100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		points, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("points must be an integer: %w", err)
		}
		if adjustReason == "" {
			return fmt.Errorf("--reason is required")
		}

		return withApp(cmd.Context(), func(a *app) error {
			ev, err := a.monitor.Adjust(cmd.Context(), points, adjustReason, adjustAction)
			if err != nil {
				return err
			}
			if jsonOutput {
				return pipeline.RenderJSON(cmd.OutOrStdout(), ev)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Score adjusted by %+d: now %d (%s)\n",
				ev.PointsChange, ev.ResultingScore, consequence.LevelFor(ev.ResultingScore))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(adjustCmd)
	adjustCmd.Flags().StringVar(&adjustReason, "reason", "", "reason for the adjustment (required)")
	adjustCmd.Flags().StringVar(&adjustAction, "action", "", "action label recorded with the override")
}
