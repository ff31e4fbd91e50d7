package export

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/johnayoung/go-crypto-scraper/internal/models"
)

// TableName is the table holding the dataset in DuckDB output
const TableName = "history"

const createHistoryTable = `
	CREATE OR REPLACE TABLE history (
		symbol VARCHAR NOT NULL,
		date DATE NOT NULL,
		open DOUBLE,
		high DOUBLE,
		low DOUBLE,
		close DOUBLE,
		volume DOUBLE,
		market_cap DOUBLE
	)`

// DuckDBWriter writes datasets into a DuckDB database file, replacing any previous
// history table.
type DuckDBWriter struct{}

// NewDuckDBWriter creates a DuckDB writer.
func NewDuckDBWriter() *DuckDBWriter {
	return &DuckDBWriter{}
}

// Write implements Writer. Rows are loaded in dataset order through the appender API;
// missing values are stored as NULL.
func (w *DuckDBWriter) Write(ds models.Dataset, dest Destination) (err error) {
	if err := requireFile(dest, FormatDuckDB); err != nil {
		return err
	}
	if err := prepareParent(dest); err != nil {
		return err
	}

	db, err := sql.Open("duckdb", dest.Path)
	if err != nil {
		return outputError(dest, "open", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = outputError(dest, "close", cerr)
		}
	}()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, createHistoryTable); err != nil {
		return outputError(dest, "create table in", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return outputError(dest, "connect to", err)
	}
	defer conn.Close()

	return conn.Raw(func(dc interface{}) error {
		driverConn, ok := dc.(*duckdb.Conn)
		if !ok {
			return outputError(dest, "connect to", fmt.Errorf("underlying connection is not a DuckDB connection"))
		}
		return appendRows(driverConn, ds, dest)
	})
}

func appendRows(driverConn *duckdb.Conn, ds models.Dataset, dest Destination) error {
	appender, err := duckdb.NewAppenderFromConn(driverConn, "", TableName)
	if err != nil {
		return outputError(dest, "open appender for", err)
	}

	for i := range ds {
		if err := appender.AppendRow(duckdbRow(&ds[i])...); err != nil {
			_ = appender.Close()
			return outputError(dest, "append", fmt.Errorf("row %d: %w", i, err))
		}
	}

	// Close flushes the remaining rows
	if err := appender.Close(); err != nil {
		return outputError(dest, "flush", err)
	}
	return nil
}

func duckdbRow(row *models.HistoryRow) []driver.Value {
	values := make([]driver.Value, 0, len(models.Columns))
	values = append(values, row.Symbol, row.Date)
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
