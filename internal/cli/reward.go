package cli

import (
	"fmt"

	"github.com/ppiankov/realign/internal/pipeline"
	"github.com/spf13/cobra"
)

// rewardCmd represents the reward command
var rewardCmd = &cobra.Command{
	Use:   "reward",
	Short: "Award any clean-streak reward that is due",
	Long: `Check the time since the last violation and award the highest
clean-streak tier reached that has not been awarded yet. Intended to be run
periodically, for example from cron.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			outcome, err := a.monitor.CheckRewards(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return pipeline.RenderJSON(out, outcome)
			}
			if len(outcome.Awards) == 0 {
				fmt.Fprintf(out, "No reward due (%.1f hours clean)\n", outcome.HoursClean)
			}
			for _, award := range outcome.Awards {
				fmt.Fprintf(out, "✓ %s: %+d points\n", award.Label, award.Points)
				if award.Event.BonusResponse != "" {
					fmt.Fprintf(out, "\n%s\n\n", award.Event.BonusResponse)
				}
			}
			fmt.Fprintf(out, "Score: %d\n", outcome.CurrentScore)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(rewardCmd)
}
