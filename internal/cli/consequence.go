package cli

import (
	"github.com/ppiankov/realign/internal/consequence"
	"github.com/ppiankov/realign/internal/pipeline"
	"github.com/spf13/cobra"
)

var simulateScore int

// consequenceCmd represents the consequence command
var consequenceCmd = &cobra.Command{
	Use:   "consequence",
	Short: "Explain the consequences in force and how to recover",
	Long: `Explain the consequence level for the current score, the next threshold
and what is required to restore normal operation.

With --simulate, show the consequences at a hypothetical score instead:
  realign consequence --simulate=-250`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cmd.Flags().Changed("simulate") {
			sim := consequence.Simulate(simulateScore)
			if jsonOutput {
				return pipeline.RenderJSON(out, sim)
			}
			pipeline.RenderSimulation(out, sim)
			return nil
		}

		return withApp(cmd.Context(), func(a *app) error {
			e, err := a.monitor.Explain(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return pipeline.RenderJSON(out, e)
			}
			pipeline.RenderExplanation(out, e)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(consequenceCmd)
	consequenceCmd.Flags().IntVar(&simulateScore, "simulate", 0, "show consequences for this score without touching the ledger")
}
