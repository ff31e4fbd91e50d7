package history

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/johnayoung/go-crypto-scraper/internal/export"
	"github.com/johnayoung/go-crypto-scraper/internal/logger"
	"github.com/johnayoung/go-crypto-scraper/internal/models"
)

// NoDataMessage is printed instead of writing output when a run yields no rows.
const NoDataMessage = "No data available."

// HistoryRequest describes one history run.
type HistoryRequest struct {
	Symbols     []string
	Start       time.Time
	End         time.Time
	Destination export.Destination
	Format      string
}

// RunSummary reports what a run did.
type RunSummary struct {
	Symbols   int
	Failures  []SymbolFailure
	Rows      int
	Anomalies []models.Anomaly
	Written   bool
	Duration  time.Duration
}

// Succeeded returns the number of symbols that were not skipped.
func (s *RunSummary) Succeeded() int {
	return s.Symbols - len(s.Failures)
}

// Pipeline drives a run: aggregate, report failures, sort, write.
type Pipeline struct {
	aggregator *Aggregator
	newWriter  func(format string) (export.Writer, error)
	out        io.Writer
	logger     *slog.Logger
}

// NewPipeline creates a pipeline. Per-symbol diagnostics and the no-data message are
// printed to out.
func NewPipeline(aggregator *Aggregator, out io.Writer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		aggregator: aggregator,
		newWriter:  export.NewWriter,
		out:        out,
		logger:     logger,
	}
}

// WithWriter makes the pipeline use w for every format.
func (p *Pipeline) WithWriter(w export.Writer) *Pipeline {
	p.newWriter = func(string) (export.Writer, error) { return w, nil }
	return p
}

// Run executes req. Per-symbol failures are printed and never returned; the only
// errors returned are an unusable format and output write failures.
func (p *Pipeline) Run(ctx context.Context, req HistoryRequest) (*RunSummary, error) {
	began := time.Now()
	log := logger.FromContext(ctx, p.logger)

	if err := export.CheckTarget(req.Format, req.Destination); err != nil {
		return nil, err
	}
	writer, err := p.newWriter(req.Format)
	if err != nil {
		return nil, err
	}

	result := p.aggregator.Aggregate(ctx, req.Symbols, req.Start, req.End)
	for _, failure := range result.Failures {
		fmt.Fprintln(p.out, FailureMessage(failure))
	}

	summary := &RunSummary{
		Symbols:  len(req.Symbols),
		Failures: result.Failures,
		Rows:     result.Rows.Len(),
	}

	if result.Rows.IsEmpty() {
		fmt.Fprintln(p.out, NoDataMessage)
		summary.Duration = time.Since(began)
		log.Info("run produced no data",
			"symbols", summary.Symbols,
			"failed_symbols", len(summary.Failures))
		return summary, nil
	}

	sorted := models.SortDataset(result.Rows)

	summary.Anomalies = Inspect(sorted)
	if len(summary.Anomalies) > 0 {
		log.Info("dataset anomalies found", "count", len(summary.Anomalies))
		for _, anomaly := range summary.Anomalies {
			log.Debug("dataset anomaly",
				"type", string(anomaly.Type),
				"symbol", anomaly.Symbol,
				"date", anomaly.Date.Format(models.DateLayout),
				"description", anomaly.Description)
		}
	}

	err = logger.TimedOperation(ctx, p.logger, "write", func() error {
		return writer.Write(sorted, req.Destination)
	})
	if err != nil {
		return summary, err
	}

	summary.Written = true
	summary.Duration = time.Since(began)

	log.Info("run completed",
		"symbols", summary.Symbols,
		"failed_symbols", len(summary.Failures),
		"rows", summary.Rows,
		"symbols_with_data", len(sorted.Symbols()),
		"destination", req.Destination.String(),
		"duration", summary.Duration)

	return summary, nil
}

// FailureMessage renders the diagnostic line printed for a skipped symbol.
func FailureMessage(f SymbolFailure) string {
	return fmt.Sprintf("Error fetching data for %q: %v", f.Symbol, f.Err)
}
