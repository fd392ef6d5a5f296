package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ppiankov/realign/internal/consequence"
	"github.com/ppiankov/realign/internal/model"
	"github.com/ppiankov/realign/internal/pipeline"
	"github.com/spf13/cobra"
)

var applySend bool

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply [request.json]",
	Short: "Apply score consequences to a chat completion request",
	Long: `Read a chat completion request (JSON) from a file or stdin and apply the
consequences for the current score: model downgrade, context restriction, or
termination. Fields the engine does not act on are passed through unchanged.

Without --send the governed request is printed. With --send it is forwarded
to forward.base_url (OPENAI_API_KEY) and the provider response is printed.

On termination the structured error is printed, nothing is sent, and the
command fails.

Examples:
  realign apply request.json
  realign apply --send < request.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		var req model.ChatRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return fmt.Errorf("parse request: %w", err)
		}

		return withApp(cmd.Context(), func(a *app) error {
			var (
				out any
				err error
			)
			if applySend {
				out, err = a.monitor.Complete(cmd.Context(), req)
			} else {
				out, err = a.monitor.Apply(cmd.Context(), req)
			}

			var term *consequence.TerminationError
			if errors.As(err, &term) {
				if renderErr := pipeline.RenderJSON(cmd.OutOrStdout(), term); renderErr != nil {
					return renderErr
				}
				return err
			}
			if err != nil {
				return err
			}
			return pipeline.RenderJSON(cmd.OutOrStdout(), out)
		})
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().BoolVar(&applySend, "send", false, "forward the governed request and print the provider response")
}
