package history

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/johnayoung/go-crypto-scraper/internal/errors"
	"github.com/johnayoung/go-crypto-scraper/internal/export"
	"github.com/johnayoung/go-crypto-scraper/internal/logger"
	"github.com/johnayoung/go-crypto-scraper/internal/models"
	"github.com/johnayoung/go-crypto-scraper/internal/source"
)

// recordingWriter keeps the datasets it was asked to write.
type recordingWriter struct {
	written []models.Dataset
	err     error
}

func (w *recordingWriter) Write(ds models.Dataset, _ export.Destination) error {
	w.written = append(w.written, ds)
	return w.err
}

func newTestPipeline(fetcher source.TableFetcher, diagnostics *bytes.Buffer) *Pipeline {
	agg := NewAggregator(fetcher, logger.Discard(), nil)
	return NewPipeline(agg, diagnostics, logger.Discard())
}

func TestPipeline_Run(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.errs["aaa"] = &apperrors.FetchError{Symbol: "aaa", Cause: fmt.Errorf("connection refused")}
	fetcher.tables["litecoin"] = historyTable("Apr 29, 2013", "Apr 28, 2013")
	fetcher.tables["bitcoin"] = historyTable("Apr 29, 2013", "Apr 28, 2013")

	var diagnostics, out bytes.Buffer
	p := newTestPipeline(fetcher, &diagnostics).WithWriter(export.NewCSVWriter(&out))

	summary, err := p.Run(context.Background(), HistoryRequest{
		Symbols:     []string{"litecoin", "aaa", "bitcoin"},
		Start:       rangeStart,
		End:         rangeEnd,
		Destination: export.Stdout,
		Format:      export.FormatCSV,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Symbols)
	assert.Equal(t, 2, summary.Succeeded())
	assert.Equal(t, 4, summary.Rows)
	assert.True(t, summary.Written)

	assert.Equal(t, `Error fetching data for "aaa": fetch "aaa": connection refused`+"\n", diagnostics.String())

	records, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, models.Columns, records[0])

	var keys []string
	for _, record := range records[1:] {
		keys = append(keys, record[1]+"/"+record[0])
	}
	assert.Equal(t, []string{
		"2013-04-28/bitcoin",
		"2013-04-28/litecoin",
		"2013-04-29/bitcoin",
		"2013-04-29/litecoin",
	}, keys)

	// Market cap cells were "-" and render as empty fields
	assert.Equal(t, "", records[1][7])
}

func TestPipeline_NoData(t *testing.T) {
	t.Run("empty symbol list", func(t *testing.T) {
		var diagnostics bytes.Buffer
		writer := &recordingWriter{}
		p := newTestPipeline(newMockFetcher(), &diagnostics).WithWriter(writer)

		summary, err := p.Run(context.Background(), HistoryRequest{Start: rangeStart, End: rangeEnd})
		require.NoError(t, err)

		assert.Equal(t, NoDataMessage+"\n", diagnostics.String())
		assert.Empty(t, writer.written)
		assert.False(t, summary.Written)
	})

	t.Run("every symbol failing writes no file", func(t *testing.T) {
		var diagnostics bytes.Buffer
		path := filepath.Join(t.TempDir(), "history.csv")
		p := newTestPipeline(newMockFetcher(), &diagnostics)

		summary, err := p.Run(context.Background(), HistoryRequest{
			Symbols:     []string{"aaa", "bbb"},
			Start:       rangeStart,
			End:         rangeEnd,
			Destination: export.Destination{Path: path},
			Format:      export.FormatCSV,
		})
		require.NoError(t, err)
		assert.Len(t, summary.Failures, 2)

		lines := strings.Split(strings.TrimSpace(diagnostics.String()), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], `Error fetching data for "aaa"`))
		assert.True(t, strings.HasPrefix(lines[1], `Error fetching data for "bbb"`))
		assert.Equal(t, NoDataMessage, lines[2])

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestPipeline_OutputErrorIsFatal(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.tables["bitcoin"] = historyTable("Apr 28, 2013")

	writer := &recordingWriter{err: &apperrors.OutputWriteError{
		Destination: "out.csv", Op: "create", Cause: os.ErrPermission,
	}}
	var diagnostics bytes.Buffer
	p := newTestPipeline(fetcher, &diagnostics).WithWriter(writer)

	summary, err := p.Run(context.Background(), HistoryRequest{
		Symbols:     []string{"bitcoin"},
		Start:       rangeStart,
		End:         rangeEnd,
		Destination: export.Destination{Path: "out.csv"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
	assert.Equal(t, apperrors.ErrorTypeOutput, apperrors.GetErrorType(err))
	require.NotNil(t, summary)
	assert.False(t, summary.Written)
}

func TestPipeline_UnknownFormat(t *testing.T) {
	var diagnostics bytes.Buffer
	fetcher := newMockFetcher()
	p := newTestPipeline(fetcher, &diagnostics)

	_, err := p.Run(context.Background(), HistoryRequest{Symbols: []string{"bitcoin"}, Format: "parquet"})
	require.Error(t, err)
	assert.Empty(t, fetcher.calls)
}

func TestPipeline_FileFormatToStdoutRefusedBeforeFetching(t *testing.T) {
	for _, format := range []string{export.FormatXLSX, "DuckDB"} {
		t.Run(format, func(t *testing.T) {
			var diagnostics bytes.Buffer
			fetcher := newMockFetcher()
			fetcher.tables["bitcoin"] = historyTable("Apr 28, 2013")

			_, err := newTestPipeline(fetcher, &diagnostics).Run(context.Background(), HistoryRequest{
				Symbols:     []string{"bitcoin", "aaa"},
				Destination: export.Stdout,
				Format:      format,
			})
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrorTypeOutput, apperrors.GetErrorType(err))
			assert.Contains(t, err.Error(), "requires a file path")
			assert.Empty(t, fetcher.calls)
			assert.Empty(t, diagnostics.String())
		})
	}
}

func TestPipeline_SortIsStable(t *testing.T) {
	fetcher := newMockFetcher()
	// Two rows share (date, symbol); their open prices record the table order
	fetcher.tables["bitcoin"] = &source.RawTable{
		Headers: fullHeaders,
		Rows: [][]string{
			{"Apr 29, 2013", "3", "", "", "", "", ""},
			{"Apr 28, 2013", "1", "", "", "", "", ""},
			{"Apr 28, 2013", "2", "", "", "", "", ""},
		},
	}

	writer := &recordingWriter{}
	var diagnostics bytes.Buffer
	_, err := newTestPipeline(fetcher, &diagnostics).WithWriter(writer).Run(context.Background(), HistoryRequest{
		Symbols: []string{"bitcoin"},
		Start:   rangeStart,
		End:     rangeEnd,
	})
	require.NoError(t, err)
	require.Len(t, writer.written, 1)

	ds := writer.written[0]
	require.Len(t, ds, 3)
	assert.True(t, ds[0].Open.Decimal.Equal(decimal.NewFromInt(1)))
	assert.True(t, ds[1].Open.Decimal.Equal(decimal.NewFromInt(2)))
	assert.True(t, ds[2].Open.Decimal.Equal(decimal.NewFromInt(3)))
	assert.True(t, models.IsSorted(ds))
}

func TestFailureMessage(t *testing.T) {
	msg := FailureMessage(SymbolFailure{Symbol: "aaa", Err: fmt.Errorf("boom")})
	assert.Equal(t, `Error fetching data for "aaa": boom`, msg)
}
