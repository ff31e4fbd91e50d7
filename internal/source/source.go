// Package source defines the remote data source used by the scraper: a historical-data
// site that serves one HTML table per symbol and date range, and a JSON listing of the
// symbols it knows about.
package source

import (
	"context"
	"time"

	"github.com/johnayoung/go-crypto-scraper/internal/models"
)

// TableFetcher retrieves the raw historical table for one symbol.
//
// Implementations issue exactly one request per call and never retry; the caller
// decides what to do with a failure. The range is passed through unvalidated.
type TableFetcher interface {
	FetchRawTable(ctx context.Context, symbol string, start, end time.Time) (*RawTable, error)
}

// SymbolLister retrieves the identifiers of every symbol the source can serve.
type SymbolLister interface {
	ListSymbols(ctx context.Context) ([]models.Symbol, error)
}

// Source combines both capabilities of the remote data source.
type Source interface {
	TableFetcher
	SymbolLister
}

// RawTable is a table as extracted from a source document, prior to normalization.
// Every row has exactly len(Headers) cells.
type RawTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of data rows.
func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the index of the first header accepted by match, or -1.
func (t *RawTable) ColumnIndex(match func(header string) bool) int {
	for i, header := range t.Headers {
		if match(header) {
			return i
		}
	}
	return -1
}

// requestDateLayout is the date layout the historical-data endpoint expects.
const requestDateLayout = "20060102"
