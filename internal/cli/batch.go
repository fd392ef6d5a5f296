package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/realign/internal/model"
	"github.com/ppiankov/realign/internal/pipeline"
	"github.com/ppiankov/realign/internal/worker"
	"github.com/spf13/cobra"
)

var (
	batchList        string
	batchConcurrency int
	batchTimeout     time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [files...]",
	Short: "Score many saved responses concurrently",
	Long: `Score a set of saved assistant responses. Each file is scored as one
response and recorded in the ledger.

Files can be given as arguments or listed one per line in a file (--list);
blank lines and lines starting with # are ignored.

Examples:
  realign batch transcripts/*.txt
  realign batch --list files.txt --concurrency 8`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVar(&batchList, "list", "", "file containing paths to score, one per line")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.batch_workers)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "overall timeout for the batch")
}

type batchRow struct {
	Name   string        `json:"name"`
	Report *model.Report `json:"report,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && batchList == "" {
		return fmt.Errorf("provide files as arguments or use --list")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	return withApp(ctx, func(a *app) error {
		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = a.config.Concurrency.BatchWorkers
		}
		processor := worker.NewBatchProcessor(a.monitor, concurrency)

		paths := args
		if batchList != "" {
			listed, err := worker.ReadPathsFromFile(batchList)
			if err != nil {
				return err
			}
			paths = append(paths, listed...)
		}

		start := time.Now()
		results, err := processor.ProcessFiles(ctx, paths)
		if err != nil {
			return err
		}
		worker.SortByPoints(results)

		out := cmd.OutOrStdout()
		if jsonOutput {
			rows := make([]batchRow, 0, len(results))
			for _, r := range results {
				row := batchRow{Name: r.Name, Report: r.Report}
				if r.Error != nil {
					row.Error = r.Error.Error()
				}
				rows = append(rows, row)
			}
			return pipeline.RenderJSON(out, rows)
		}

		for _, r := range results {
			switch {
			case r.Error != nil:
				fmt.Fprintf(out, "✗ %s: %v\n", r.Name, r.Error)
			case r.Report == nil || r.Report.Clean():
				fmt.Fprintf(out, "✓ %s\n", r.Name)
			default:
				fmt.Fprintf(out, "! %s: %+d points (%d violations)\n", r.Name, r.Report.PointsChange, len(r.Report.Violations))
			}
		}

		clean, flagged, failed := worker.Summarize(results)
		fmt.Fprintf(out, "\nProcessed %d documents in %s: %d clean, %d flagged, %d failed\n",
			len(results), time.Since(start).Round(time.Millisecond), clean, flagged, failed)

		if failed > 0 {
			return fmt.Errorf("%d documents failed", failed)
		}
		return nil
	})
}
