package source

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoTable is returned when a document contains no table structure.
var ErrNoTable = errors.New("no table found in document")

// ParseTable extracts the first table of an HTML document.
//
// Headers come from the table's thead row when present, otherwise from its first row.
// Data rows are every other row carrying td cells, padded or truncated to the header
// width. Cell text is trimmed and inner whitespace collapsed.
func ParseTable(r io.Reader) (*RawTable, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrNoTable
	}

	return extractTable(table)
}

func extractTable(table *goquery.Selection) (*RawTable, error) {
	// Only rows belonging to this table, not to tables nested inside it
	rows := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
	if rows.Length() == 0 {
		return nil, ErrNoTable
	}

	headerRow := rows.FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.ParentFiltered("thead").Length() > 0
	}).First()
	if headerRow.Length() == 0 {
		headerRow = rows.First()
	}

	headers := cellTexts(headerRow.Children().Filter("th, td"))
	if len(headers) == 0 {
		return nil, ErrNoTable
	}

	raw := &RawTable{Headers: headers, Rows: make([][]string, 0, rows.Length())}

	rows.Each(func(_ int, tr *goquery.Selection) {
		if tr.IsSelection(headerRow) || tr.ParentFiltered("thead").Length() > 0 {
			return
		}
		cells := tr.Children().Filter("td")
		if cells.Length() == 0 {
			return
		}
		raw.Rows = append(raw.Rows, fitWidth(cellTexts(cells), len(headers)))
	})

	return raw, nil
}

func cellTexts(cells *goquery.Selection) []string {
	texts := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		texts = append(texts, strings.Join(strings.Fields(cell.Text()), " "))
	})
	return texts
}

func fitWidth(cells []string, width int) []string {
	if len(cells) == width {
		return cells
	}
	fitted := make([]string, width)
	copy(fitted, cells)
	return fitted
}
