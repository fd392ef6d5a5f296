package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var flagReason string

// flagCmd represents the flag command
var flagCmd = &cobra.Command{
	Use:   "flag <text>",
	Short: "Flag a statement as a lie",
	Long: `Record a manually identified lie. No verification is performed; the
configured manual lie penalty is applied directly.

Example:
  realign flag "I can browse the web for you" --reason "no browsing tool"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("text is required")
		}
		return withApp(cmd.Context(), func(a *app) error {
			report, err := a.monitor.FlagLie(cmd.Context(), text, flagReason)
			if err != nil {
				return err
			}
			return printReport(cmd, report)
		})
	},
}

func init() {
	rootCmd.AddCommand(flagCmd)
	flagCmd.Flags().StringVar(&flagReason, "reason", "", "why the statement is false")
}
