package history

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-crypto-scraper/internal/models"
)

func qualityRow(symbol string, day int, open, high, low, close string) models.HistoryRow {
	value := func(s string) decimal.NullDecimal {
		if s == "" {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(decimal.RequireFromString(s))
	}
	return models.HistoryRow{
		Symbol: symbol,
		Date:   time.Date(2013, 4, day, 0, 0, 0, 0, time.UTC),
		Open:   value(open),
		High:   value(high),
		Low:    value(low),
		Close:  value(close),
	}
}

func TestInspect_CleanDataset(t *testing.T) {
	ds := models.Dataset{
		qualityRow("bitcoin", 28, "135.30", "135.98", "132.10", "134.21"),
		qualityRow("litecoin", 28, "4.30", "4.40", "4.18", "4.35"),
		qualityRow("bitcoin", 29, "134.44", "147.49", "134.00", "144.54"),
		qualityRow("litecoin", 29, "", "", "", ""),
	}

	assert.Empty(t, Inspect(ds))
}

func TestInspect_LogicErrors(t *testing.T) {
	ds := models.Dataset{
		qualityRow("bitcoin", 28, "1", "1", "2", "1"),
		qualityRow("bitcoin", 29, "5", "4", "1", "2"),
		qualityRow("bitcoin", 30, "-1", "", "", ""),
	}

	anomalies := Inspect(ds)
	require.Len(t, anomalies, 3)
	for _, anomaly := range anomalies {
		assert.Equal(t, models.AnomalyTypeLogicError, anomaly.Type)
	}
	assert.Contains(t, anomalies[0].Description, "below low")
	assert.Contains(t, anomalies[1].Description, "open 5 is outside")
	assert.Contains(t, anomalies[2].Description, "open is negative")
}

func TestInspect_SequenceGaps(t *testing.T) {
	ds := models.Dataset{
		qualityRow("bitcoin", 1, "", "", "", ""),
		qualityRow("litecoin", 1, "", "", "", ""),
		qualityRow("litecoin", 2, "", "", "", ""),
		qualityRow("bitcoin", 4, "", "", "", ""),
		qualityRow("bitcoin", 4, "", "", "", ""),
	}

	anomalies := Inspect(ds)
	require.Len(t, anomalies, 1)
	assert.Equal(t, models.AnomalyTypeSequenceGap, anomalies[0].Type)
	assert.Equal(t, "bitcoin", anomalies[0].Symbol)
	assert.Equal(t, "2 missing day(s) since 2013-04-01", anomalies[0].Description)
}

func TestInspect_UnsortedInput(t *testing.T) {
	ds := models.Dataset{
		qualityRow("bitcoin", 4, "", "", "", ""),
		qualityRow("bitcoin", 1, "", "", "", ""),
		qualityRow("bitcoin", 2, "", "", "", ""),
	}

	anomalies := Inspect(ds)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "1 missing day(s) since 2013-04-02", anomalies[0].Description)
	assert.Equal(t, 4, ds[0].Date.Day(), "input is left untouched")
}
