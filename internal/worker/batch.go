package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/realign/internal/model"
)

// Scorer scores one piece of assistant output and records the outcome
type Scorer interface {
	ScoreText(ctx context.Context, text string) (*model.Report, error)
}

// Document is a named piece of assistant output
type Document struct {
	Name string
	Text string
}

// ScoreJob represents a document scoring job
type ScoreJob struct {
	Index    int
	Document Document
	Scorer   Scorer
}

// Execute executes the scoring job
func (j *ScoreJob) Execute(ctx context.Context) Result {
	report, err := j.Scorer.ScoreText(ctx, j.Document.Text)
	return &ScoreResult{
		Index:  j.Index,
		Name:   j.Document.Name,
		Report: report,
		Error:  err,
	}
}

// ScoreResult represents the result of a scoring job
type ScoreResult struct {
	Index  int
	Name   string
	Report *model.Report
	Error  error
}

// GetError returns the error from the scoring result
func (r *ScoreResult) GetError() error {
	return r.Error
}

// BatchProcessor scores multiple documents concurrently. Ledger updates are
// serialised by the ledger store; only the analysis runs in parallel.
type BatchProcessor struct {
	scorer      Scorer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(scorer Scorer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		scorer:      scorer,
		concurrency: concurrency,
	}
}

// ProcessDocuments scores documents concurrently. Results are returned in
// input order; documents not reached before ctx is cancelled get ctx's error.
func (b *BatchProcessor) ProcessDocuments(ctx context.Context, docs []Document) []*ScoreResult {
	if len(docs) == 0 {
		return []*ScoreResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	jobs := make([]Job, len(docs))
	for i, doc := range docs {
		jobs[i] = &ScoreJob{
			Index:    i,
			Document: doc,
			Scorer:   b.scorer,
		}
	}

	scoreResults := make([]*ScoreResult, len(docs))
	for _, result := range pool.Run(jobs) {
		r := result.(*ScoreResult)
		scoreResults[r.Index] = r
	}

	for i, r := range scoreResults {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			scoreResults[i] = &ScoreResult{Index: i, Name: docs[i].Name, Error: err}
		}
	}

	return scoreResults
}

// ProcessFiles reads each file as one document and scores them concurrently
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) ([]*ScoreResult, error) {
	docs, err := ReadDocuments(paths)
	if err != nil {
		return nil, err
	}
	return b.ProcessDocuments(ctx, docs), nil
}

// ProcessList reads a list of file paths (one per line) and scores each file
func (b *BatchProcessor) ProcessList(ctx context.Context, listPath string) ([]*ScoreResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}
	return b.ProcessFiles(ctx, paths)
}

// ReadDocuments loads each path as one document, skipping duplicate paths
func ReadDocuments(paths []string) ([]Document, error) {
	seen := make(map[string]bool)
	docs := make([]Document, 0, len(paths))

	for _, path := range paths {
		if seen[path] {
			continue
		}
		seen[path] = true

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, Document{Name: path, Text: string(data)})
	}

	return docs, nil
}

// ReadPathsFromFile reads file paths from a file (one per line)
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}

// Summarize counts results by outcome
func Summarize(results []*ScoreResult) (clean, flagged, failed int) {
	for _, r := range results {
		switch {
		case r.Error != nil:
			failed++
		case r.Report != nil && r.Report.Clean():
			clean++
		default:
			flagged++
		}
	}
	return clean, flagged, failed
}

// SortByPoints orders results by point change, worst first. Failed results
// sort last.
func SortByPoints(results []*ScoreResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if (a.Report == nil) != (b.Report == nil) {
			return a.Report != nil
		}
		if a.Report == nil {
			return false
		}
		return a.Report.PointsChange < b.Report.PointsChange
	})
}
