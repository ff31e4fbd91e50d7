package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/johnayoung/go-crypto-scraper/internal/models"
)

// CSVWriter writes datasets as comma-delimited text with a header row.
type CSVWriter struct {
	stdout io.Writer
}

// NewCSVWriter creates a CSV writer; stdout receives output for stdout destinations.
func NewCSVWriter(stdout io.Writer) *CSVWriter {
	return &CSVWriter{stdout: stdout}
}

// Write implements Writer. The header is models.Columns, dates use YYYY-MM-DD and
// missing values are empty fields.
func (w *CSVWriter) Write(ds models.Dataset, dest Destination) (err error) {
	out, err := Open(dest, w.stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = outputError(dest, "close", cerr)
		}
	}()

	return writeRecords(csv.NewWriter(out), ds, dest)
}

func writeRecords(writer *csv.Writer, ds models.Dataset, dest Destination) error {
	if err := writer.Write(models.Columns); err != nil {
		return outputError(dest, "write header to", err)
	}

	for i := range ds {
		if err := writer.Write(ds[i].Record()); err != nil {
			return outputError(dest, "write", fmt.Errorf("row %d: %w", i, err))
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return outputError(dest, "flush", err)
	}
	return nil
}
