package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/realign/internal/model"
	"github.com/ppiankov/realign/internal/pipeline"
	"github.com/spf13/cobra"
)

var scoreTimeout time.Duration

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score [file]",
	Short: "Score assistant output and update the trust score",
	Long: `Score a piece of assistant output read from a file or stdin.

Pattern checks (em dashes, invisible characters, hedging, system
self-reference) always run. Capability claims are verified against the
evidence index when one is configured and the daily judge budget allows.

Examples:
  realign score response.txt
  pbpaste | realign score
  realign score --json response.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().DurationVar(&scoreTimeout, "timeout", 5*time.Minute, "overall timeout including verification")
}

func runScore(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no text to score")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), scoreTimeout)
	defer cancel()

	return withApp(ctx, func(a *app) error {
		report, err := a.monitor.ScoreText(ctx, text)
		if err != nil {
			return err
		}
		return printReport(cmd, report)
	})
}

func printReport(cmd *cobra.Command, report *model.Report) error {
	if jsonOutput {
		return pipeline.RenderJSON(cmd.OutOrStdout(), report)
	}
	pipeline.RenderReport(cmd.OutOrStdout(), report)
	return nil
}

// readInput reads the named file, or stdin when no file is given or it is "-"
func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}
