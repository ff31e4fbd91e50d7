// Package models provides the data structures for daily cryptocurrency market history.
// A HistoryRow is one day's observation for one symbol; a Dataset is an ordered,
// non-deduplicated sequence of rows with a fixed column set.
package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout used to render row dates.
const DateLayout = "2006-01-02"

// Canonical column names, in output order.
const (
	ColumnSymbol    = "symbol"
	ColumnDate      = "date"
	ColumnOpen      = "open"
	ColumnHigh      = "high"
	ColumnLow       = "low"
	ColumnClose     = "close"
	ColumnVolume    = "volume"
	ColumnMarketCap = "market_cap"
)

// Columns is the fixed, ordered column set of every dataset.
var Columns = []string{
	ColumnSymbol,
	ColumnDate,
	ColumnOpen,
	ColumnHigh,
	ColumnLow,
	ColumnClose,
	ColumnVolume,
	ColumnMarketCap,
}

// NumericColumns lists the columns coerced with the numeric-or-missing rule.
var NumericColumns = []string{
	ColumnOpen,
	ColumnHigh,
	ColumnLow,
	ColumnClose,
	ColumnVolume,
	ColumnMarketCap,
}

// HistoryRow represents the OHLCV and market cap values of one symbol on one day.
// Numeric fields with Valid == false are missing, which is distinct from zero.
type HistoryRow struct {
	Symbol    string              `json:"symbol" db:"symbol"`
	Date      time.Time           `json:"date" db:"date"`
	Open      decimal.NullDecimal `json:"open" db:"open"`
	High      decimal.NullDecimal `json:"high" db:"high"`
	Low       decimal.NullDecimal `json:"low" db:"low"`
	Close     decimal.NullDecimal `json:"close" db:"close"`
	Volume    decimal.NullDecimal `json:"volume" db:"volume"`
	MarketCap decimal.NullDecimal `json:"market_cap" db:"market_cap"`
}

// ValidationError represents a row validation error with specific field context.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks the row invariants: a non-empty symbol and a set date.
// Numeric fields are never validated since any of them may be missing.
func (r *HistoryRow) Validate() error {
	if r.Symbol == "" {
		return &ValidationError{Field: ColumnSymbol, Message: "symbol cannot be empty"}
	}
	if r.Date.IsZero() {
		return &ValidationError{Field: ColumnDate, Message: "date cannot be zero"}
	}
	return nil
}

// Numeric returns the value of a numeric column by canonical name.
func (r *HistoryRow) Numeric(column string) (decimal.NullDecimal, bool) {
	switch column {
	case ColumnOpen:
		return r.Open, true
	case ColumnHigh:
		return r.High, true
	case ColumnLow:
		return r.Low, true
	case ColumnClose:
		return r.Close, true
	case ColumnVolume:
		return r.Volume, true
	case ColumnMarketCap:
		return r.MarketCap, true
	default:
		return decimal.NullDecimal{}, false
	}
}

// SetNumeric assigns a numeric column by canonical name.
func (r *HistoryRow) SetNumeric(column string, value decimal.NullDecimal) bool {
	switch column {
	case ColumnOpen:
		r.Open = value
	case ColumnHigh:
		r.High = value
	case ColumnLow:
		r.Low = value
	case ColumnClose:
		r.Close = value
	case ColumnVolume:
		r.Volume = value
	case ColumnMarketCap:
		r.MarketCap = value
	default:
		return false
	}
	return true
}

// Record renders the row as text fields in Columns order. Missing values render
// as empty fields.
func (r *HistoryRow) Record() []string {
	record := make([]string, 0, len(Columns))
	record = append(record, r.Symbol, r.Date.Format(DateLayout))
	for _, column := range NumericColumns {
		value, _ := r.Numeric(column)
		record = append(record, FormatNullDecimal(value))
	}
	return record
}

// String returns a human-readable representation of the row.
func (r *HistoryRow) String() string {
	return fmt.Sprintf("HistoryRow{Symbol: %s, Date: %s, O: %s, H: %s, L: %s, C: %s, V: %s, MC: %s}",
		r.Symbol, r.Date.Format(DateLayout),
		FormatNullDecimal(r.Open), FormatNullDecimal(r.High), FormatNullDecimal(r.Low),
		FormatNullDecimal(r.Close), FormatNullDecimal(r.Volume), FormatNullDecimal(r.MarketCap))
}

// FormatNullDecimal renders a value, or the empty string when it is missing.
func FormatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// Dataset is an ordered sequence of history rows.
type Dataset []HistoryRow

// Len returns the number of rows.
func (ds Dataset) Len() int { return len(ds) }

// IsEmpty reports whether the dataset holds no rows.
func (ds Dataset) IsEmpty() bool { return len(ds) == 0 }

// Append returns the dataset with rows appended in order.
func (ds Dataset) Append(rows ...HistoryRow) Dataset {
	return append(ds, rows...)
}

// Symbols returns the distinct symbols in first-seen order.
func (ds Dataset) Symbols() []string {
	seen := make(map[string]struct{})
	symbols := make([]string, 0)
	for _, row := range ds {
		if _, ok := seen[row.Symbol]; ok {
			continue
		}
		seen[row.Symbol] = struct{}{}
		symbols = append(symbols, row.Symbol)
	}
	return symbols
}

// Less orders rows by date, then symbol.
func Less(a, b *HistoryRow) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.Symbol < b.Symbol
}

// SortDataset returns a copy of ds stably sorted by (date ascending, symbol ascending).
// Rows with equal keys keep their relative order. The input is not modified.
func SortDataset(ds Dataset) Dataset {
	sorted := make(Dataset, len(ds))
	copy(sorted, ds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Less(&sorted[i], &sorted[j])
	})
	return sorted
}

// IsSorted reports whether ds is non-decreasing by (date, symbol).
func IsSorted(ds Dataset) bool {
	for i := 1; i < len(ds); i++ {
		if Less(&ds[i], &ds[i-1]) {
			return false
		}
	}
	return true
}
