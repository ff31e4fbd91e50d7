// Package export serializes a finalized history dataset to its destination.
//
// CSV is the primary format and may target standard output or a file. The XLSX and
// DuckDB writers produce the same columns and values in a workbook or a database
// table and always require a file path.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/johnayoung/go-crypto-scraper/internal/errors"
	"github.com/johnayoung/go-crypto-scraper/internal/models"
)

// Supported formats
const (
	FormatCSV    = "csv"
	FormatXLSX   = "xlsx"
	FormatDuckDB = "duckdb"
)

// Formats lists the supported output formats
var Formats = []string{FormatCSV, FormatXLSX, FormatDuckDB}

// Destination identifies where a dataset is written.
type Destination struct {
	// Path is a file path, or "" / "stdout" for standard output
	Path string
}

// Stdout is the standard output destination
var Stdout = Destination{Path: "stdout"}

// IsStdout reports whether d targets standard output.
func (d Destination) IsStdout() bool {
	return d.Path == "" || d.Path == "stdout" || d.Path == "-"
}

// String returns the destination as shown in diagnostics.
func (d Destination) String() string {
	if d.IsStdout() {
		return "stdout"
	}
	return d.Path
}

// Writer writes a sorted dataset to a destination. Any failure is returned as an
// *errors.OutputWriteError.
type Writer interface {
	Write(ds models.Dataset, dest Destination) error
}

// NormalizeFormat canonicalizes a format name. An empty name selects CSV.
func NormalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return FormatCSV
	}
	return format
}

// IsSupportedFormat reports whether format, in any case, names a known writer.
func IsSupportedFormat(format string) bool {
	format = NormalizeFormat(format)
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// NewWriter returns the writer for format. Stdout output of CSV goes to os.Stdout.
func NewWriter(format string) (Writer, error) {
	switch NormalizeFormat(format) {
	case FormatCSV:
		return NewCSVWriter(os.Stdout), nil
	case FormatXLSX:
		return NewXLSXWriter(), nil
	case FormatDuckDB:
		return NewDuckDBWriter(), nil
	default:
		return nil, unsupportedFormat(format)
	}
}

// CheckTarget reports whether format can be written to dest at all, so a run can
// be refused before any data is fetched.
func CheckTarget(format string, dest Destination) error {
	switch normalized := NormalizeFormat(format); normalized {
	case FormatCSV:
		return nil
	case FormatXLSX, FormatDuckDB:
		return requireFile(dest, normalized)
	default:
		return unsupportedFormat(format)
	}
}

func unsupportedFormat(format string) error {
	return fmt.Errorf("unsupported output format %q (supported: %s)", format, strings.Join(Formats, ", "))
}

// Open returns a writer for dest: stdout itself for standard output, otherwise a newly
// created or truncated file. Closing the result never closes stdout.
func Open(dest Destination, stdout io.Writer) (io.WriteCloser, error) {
	if dest.IsStdout() {
		return nopCloser{stdout}, nil
	}
	return createFile(dest)
}

// createFile creates or truncates dest's file, creating parent directories first.
func createFile(dest Destination) (*os.File, error) {
	if err := prepareParent(dest); err != nil {
		return nil, err
	}

	file, err := os.Create(dest.Path)
	if err != nil {
		return nil, outputError(dest, "create", err)
	}
	return file, nil
}

// prepareParent creates the parent directory of a file destination.
func prepareParent(dest Destination) error {
	dir := filepath.Dir(dest.Path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return outputError(dest, "create directory for", err)
	}
	return nil
}

// requireFile rejects standard output for formats that need a seekable file.
func requireFile(dest Destination, format string) error {
	if dest.IsStdout() {
		return outputError(dest, "write", fmt.Errorf("%s output requires a file path", format))
	}
	return nil
}

func outputError(dest Destination, op string, cause error) error {
	return &apperrors.OutputWriteError{Destination: dest.String(), Op: op, Cause: cause}
}

// nopCloser adapts the stdout writer to the close path of file destinations.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
