package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/johnayoung/go-crypto-scraper/internal/errors"
	"github.com/johnayoung/go-crypto-scraper/internal/logger"
	"github.com/johnayoung/go-crypto-scraper/internal/models"
	"github.com/johnayoung/go-crypto-scraper/internal/source"
)

// Outcome labels reported to a Recorder
const (
	OutcomeSuccess = "success"
)

// Recorder receives one observation per processed symbol.
type Recorder interface {
	// RecordSymbol is called once per symbol with OutcomeSuccess or the error type
	// of the failure, the number of rows kept and the time spent on the symbol.
	RecordSymbol(symbol, outcome string, rows int, elapsed time.Duration)
}

// SymbolFailure pairs a symbol with the reason it contributed no rows.
type SymbolFailure struct {
	Symbol string
	Err    error
}

// AggregateResult is the outcome of one aggregation pass.
type AggregateResult struct {
	// Rows holds every successfully normalized row in symbol order, unsorted
	Rows models.Dataset
	// Failures lists the skipped symbols in processing order
	Failures []SymbolFailure
}

// symbolResult is the per-symbol success/error union produced by fetch and normalize.
type symbolResult struct {
	rows models.Dataset
	err  error
}

// Aggregator runs fetch and normalize over a list of symbols.
type Aggregator struct {
	fetcher  source.TableFetcher
	logger   *slog.Logger
	recorder Recorder

	// OnFailure, when set, is called for every skipped symbol as it happens
	OnFailure func(SymbolFailure)

	// now is replaced in tests
	now func() time.Time
}

// NewAggregator creates an aggregator. The recorder may be nil.
func NewAggregator(fetcher source.TableFetcher, logger *slog.Logger, recorder Recorder) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		fetcher:  fetcher,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Aggregate processes symbols strictly in order, one at a time. A failing symbol is
// recorded and skipped; it never stops the remaining symbols. Zero symbols, or all
// symbols failing, yields an empty dataset rather than an error.
func (a *Aggregator) Aggregate(ctx context.Context, symbols []string, start, end time.Time) *AggregateResult {
	result := &AggregateResult{Rows: make(models.Dataset, 0)}

	a.logger.DebugContext(ctx, "starting aggregation",
		"symbols", len(symbols),
		"start", start.Format(models.DateLayout),
		"end", end.Format(models.DateLayout))

	for _, symbol := range symbols {
		symbolCtx := logger.WithSymbol(ctx, symbol)
		began := a.now()

		res := a.processSymbol(symbolCtx, symbol, start, end)
		elapsed := a.now().Sub(began)

		if res.err != nil {
			failure := SymbolFailure{Symbol: symbol, Err: res.err}
			result.Failures = append(result.Failures, failure)

			// Expected failures are already printed as a diagnostic line
			level := slog.LevelDebug
			if !apperrors.IsSymbolScoped(res.err) {
				level = slog.LevelInfo
			}
			logger.FromContext(symbolCtx, a.logger).Log(symbolCtx, level, "skipping symbol",
				"error_type", string(apperrors.GetErrorType(res.err)),
				"error", res.err,
				"duration", elapsed)

			a.record(symbol, string(apperrors.GetErrorType(res.err)), 0, elapsed)
			if a.OnFailure != nil {
				a.OnFailure(failure)
			}
			continue
		}

		result.Rows = result.Rows.Append(res.rows...)

		logger.FromContext(symbolCtx, a.logger).Debug("symbol aggregated",
			"rows", len(res.rows),
			"duration", elapsed)
		a.record(symbol, OutcomeSuccess, len(res.rows), elapsed)
	}

	a.logger.DebugContext(ctx, "aggregation completed",
		"rows", result.Rows.Len(),
		"failed_symbols", len(result.Failures))

	return result
}

// processSymbol fetches and normalizes one symbol. Panics are converted into an
// InternalError so that a single symbol cannot unwind the batch.
func (a *Aggregator) processSymbol(ctx context.Context, symbol string, start, end time.Time) (res symbolResult) {
	defer func() {
		if r := recover(); r != nil {
			res = symbolResult{err: &apperrors.InternalError{
				Component: "history.aggregate",
				Value:     fmt.Sprintf("symbol %q: %v", symbol, r),
			}}
		}
	}()

	raw, err := a.fetcher.FetchRawTable(ctx, symbol, start, end)
	if err != nil {
		return symbolResult{err: err}
	}

	rows, err := Normalize(raw, symbol)
	if err != nil {
		return symbolResult{err: err}
	}

	return symbolResult{rows: rows}
}

func (a *Aggregator) record(symbol, outcome string, rows int, elapsed time.Duration) {
	if a.recorder == nil {
		return
	}
	a.recorder.RecordSymbol(symbol, outcome, rows, elapsed)
}
