// Package history turns raw per-symbol tables into one combined, ordered dataset.
//
// The Normalizer maps a RawTable onto canonical HistoryRows, the Aggregator runs
// fetch and normalize over a list of symbols while isolating per-symbol failures,
// and the Pipeline drives a whole run from request to written output.
package history

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	apperrors "github.com/johnayoung/go-crypto-scraper/internal/errors"
	"github.com/johnayoung/go-crypto-scraper/internal/models"
	"github.com/johnayoung/go-crypto-scraper/internal/source"
)

// dateLayouts are tried in order when parsing a table's date column.
var dateLayouts = []string{
	"Jan 2, 2006",
	"Jan 02, 2006",
	"January 2, 2006",
	"2006-01-02",
	"01/02/2006",
	time.RFC3339,
	"02 Jan 2006",
}

// errNoDateColumn is the cause of a DateParseError for tables without a date column.
var errNoDateColumn = fmt.Errorf("no %q column", models.ColumnDate)

// Normalize converts the raw table of one symbol into canonical rows.
//
// Rows keep the table's order and columns outside the canonical set are dropped.
// Any unparseable date rejects the whole table. Numeric cells that cannot be read
// as numbers, and numeric columns the table lacks, become missing values.
func Normalize(raw *source.RawTable, symbol string) (models.Dataset, error) {
	if raw == nil {
		return nil, &apperrors.InternalError{Component: "history.normalize", Value: "nil table for " + symbol}
	}

	dateIdx := raw.ColumnIndex(headerMatcher(models.ColumnDate))
	if dateIdx < 0 {
		return nil, &apperrors.DateParseError{Symbol: symbol, Row: -1, Cause: errNoDateColumn}
	}

	numericIdx := make(map[string]int, len(models.NumericColumns))
	for _, column := range models.NumericColumns {
		if idx := raw.ColumnIndex(headerMatcher(column)); idx >= 0 {
			numericIdx[column] = idx
		}
	}
	if len(numericIdx) == 0 {
		return nil, &apperrors.SchemaError{Symbol: symbol, Column: models.ColumnClose}
	}

	rows := make(models.Dataset, 0, raw.Len())
	for i, cells := range raw.Rows {
		date, err := ParseDate(cell(cells, dateIdx))
		if err != nil {
			return nil, &apperrors.DateParseError{
				Symbol: symbol,
				Row:    i,
				Value:  cell(cells, dateIdx),
				Cause:  err,
			}
		}

		row := models.HistoryRow{Symbol: symbol, Date: date}
		if err := row.Validate(); err != nil {
			return nil, invalidRowError(symbol, i, cell(cells, dateIdx), err)
		}
		for column, idx := range numericIdx {
			row.SetNumeric(column, ParseNumeric(cell(cells, idx)))
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// invalidRowError maps a row invariant violation to the error of the stage that owns
// it: an empty symbol is a fetch error, a zero date a date error.
func invalidRowError(symbol string, row int, dateCell string, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) && verr.Field == models.ColumnDate {
		return &apperrors.DateParseError{Symbol: symbol, Row: row, Value: dateCell, Cause: err}
	}
	return &apperrors.FetchError{Symbol: symbol, Cause: err}
}

// ParseDate parses a source date into a UTC calendar date.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format %q", value)
}

// ParseNumeric applies the numeric-or-missing rule to one cell. Thousands separators
// and currency signs are ignored; anything else that does not parse is missing.
func ParseNumeric(value string) decimal.NullDecimal {
	cleaned := strings.NewReplacer(",", "", "$", "").Replace(strings.TrimSpace(value))
	if cleaned == "" {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// headerMatcher matches a source header against a canonical column name, ignoring
// case and anything that is not a letter or digit ("Close**" matches "close").
func headerMatcher(column string) func(string) bool {
	want := headerKey(column)
	return func(header string) bool {
		return headerKey(header) == want
	}
}

func headerKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}
