package cli

import (
	"github.com/ppiankov/realign/internal/pipeline"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show score, consequence level, streak and judge usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			s, err := a.monitor.Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return pipeline.RenderJSON(cmd.OutOrStdout(), s)
			}
			pipeline.RenderStatus(cmd.OutOrStdout(), s)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
