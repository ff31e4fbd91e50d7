package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/johnayoung/go-crypto-scraper/internal/models"
)

// SheetName is the worksheet holding the dataset in XLSX output
const SheetName = "history"

// XLSXWriter writes datasets to a single-sheet Excel workbook.
type XLSXWriter struct{}

// NewXLSXWriter creates an XLSX writer.
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{}
}

// Write implements Writer. Numeric values are stored as numbers and missing values
// are left blank.
func (w *XLSXWriter) Write(ds models.Dataset, dest Destination) (err error) {
	if err := requireFile(dest, FormatXLSX); err != nil {
		return err
	}
	if err := prepareParent(dest); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = outputError(dest, "close", cerr)
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return outputError(dest, "prepare", err)
	}

	header := make([]interface{}, len(models.Columns))
	for i, column := range models.Columns {
		header[i] = column
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return outputError(dest, "write header to", err)
	}

	for i := range ds {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return outputError(dest, "write", err)
		}
		values := xlsxRow(&ds[i])
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return outputError(dest, "write", fmt.Errorf("row %d: %w", i, err))
		}
	}

	if err := f.SaveAs(dest.Path); err != nil {
		return outputError(dest, "save", err)
	}
	return nil
}

func xlsxRow(row *models.HistoryRow) []interface{} {
	values := make([]interface{}, 0, len(models.Columns))
	values = append(values, row.Symbol, row.Date.Format(models.DateLayout))
	for _, column := range models.NumericColumns {
		value, _ := row.Numeric(column)
		if !value.Valid {
			values = append(values, nil)
			continue
		}
		f, _ := value.Decimal.Float64()
		values = append(values, f)
	}
	return values
}
