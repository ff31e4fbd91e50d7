package history

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-crypto-scraper/internal/models"
)

// Inspect reports logical inconsistencies and missing days in a dataset. Gaps are
// measured in (date, symbol) order, so unsorted input is sorted first. Missing
// values are skipped by every check.
func Inspect(ds models.Dataset) []models.Anomaly {
	if !models.IsSorted(ds) {
		ds = models.SortDataset(ds)
	}

	var anomalies []models.Anomaly

	lastDate := make(map[string]int)
	for i := range ds {
		row := &ds[i]
		anomalies = append(anomalies, logicAnomalies(row)...)

		if prev, ok := lastDate[row.Symbol]; ok {
			if gap := daysBetween(ds[prev].Date, row.Date) - 1; gap > 0 {
				anomalies = append(anomalies, models.Anomaly{
					Type:        models.AnomalyTypeSequenceGap,
					Symbol:      row.Symbol,
					Date:        row.Date,
					Description: fmt.Sprintf("%d missing day(s) since %s", gap, ds[prev].Date.Format(models.DateLayout)),
				})
			}
		}
		lastDate[row.Symbol] = i
	}

	return anomalies
}

func logicAnomalies(row *models.HistoryRow) []models.Anomaly {
	var found []models.Anomaly
	report := func(format string, args ...interface{}) {
		found = append(found, models.Anomaly{
			Type:        models.AnomalyTypeLogicError,
			Symbol:      row.Symbol,
			Date:        row.Date,
			Description: fmt.Sprintf(format, args...),
		})
	}

	for _, column := range models.NumericColumns {
		if value, _ := row.Numeric(column); value.Valid && value.Decimal.IsNegative() {
			report("%s is negative (%s)", column, value.Decimal)
		}
	}

	if !row.High.Valid || !row.Low.Valid {
		return found
	}
	if row.High.Decimal.LessThan(row.Low.Decimal) {
		report("high %s is below low %s", row.High.Decimal, row.Low.Decimal)
		return found
	}

	for _, price := range []struct {
		name  string
		value decimal.NullDecimal
	}{{models.ColumnOpen, row.Open}, {models.ColumnClose, row.Close}} {
		if !price.value.Valid {
			continue
		}
		if price.value.Decimal.GreaterThan(row.High.Decimal) || price.value.Decimal.LessThan(row.Low.Decimal) {
			report("%s %s is outside [%s, %s]", price.name, price.value.Decimal, row.Low.Decimal, row.High.Decimal)
		}
	}

	return found
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
