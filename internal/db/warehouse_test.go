package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajjensen13/stockload/internal/model"
)

var tables = Tables{Dataset: "market", Prices: "stock_prices", Sectors: "stock_sectors"}

func TestSQL(t *testing.T) {
	assert.Equal(t, `SELECT DISTINCT ticker FROM "market"."stock_sectors" WHERE ticker = ANY($1)`, knownTickersSQL(tables))
	assert.Equal(t, `SELECT MAX(date) FROM "market"."stock_prices"`, latestDateSQL(tables))

	stmts := ensureDatasetSQL(tables)
	require.Len(t, stmts, 3)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "market"`, stmts[0])
	assert.Contains(t, stmts[1], `CREATE TABLE IF NOT EXISTS "market"."stock_prices"`)
	assert.Contains(t, stmts[2], `CREATE TABLE IF NOT EXISTS "market"."stock_sectors"`)
}

func TestSQLQuotesIdentifiers(t *testing.T) {
	odd := Tables{Dataset: `we"ird`, Prices: "p", Sectors: "s"}
	assert.Equal(t, `SELECT MAX(date) FROM "we""ird"."p"`, latestDateSQL(odd))
}

func TestPriceRow(t *testing.T) {
	row := priceRow(model.Price{
		Date:   civil.Date{Year: 2024, Month: time.January, Day: 9},
		Open:   1,
		High:   2,
		Low:    math.NaN(),
		Close:  1.5,
		Volume: math.Inf(1),
		Ticker: "AAPL",
	})
	require.Len(t, row, len(priceColumns))

	date := row[0].(pgtype.Date)
	assert.Equal(t, pgtype.Present, date.Status)
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), date.Time)

	assert.Equal(t, pgtype.Float8{Float: 1, Status: pgtype.Present}, row[1])
	assert.Equal(t, pgtype.Null, row[3].(pgtype.Float8).Status)
	assert.Equal(t, pgtype.Null, row[5].(pgtype.Float8).Status)
	assert.Equal(t, pgtype.Text{String: "AAPL", Status: pgtype.Present}, row[6])
}

func TestSectorRow(t *testing.T) {
	row := sectorRow(model.Sector{Ticker: "XOM", Sector: "Energy"})
	require.Len(t, row, len(sectorColumns))
	assert.Equal(t, pgtype.Text{String: "XOM", Status: pgtype.Present}, row[0])
	assert.Equal(t, pgtype.Text{String: "Energy", Status: pgtype.Present}, row[1])
}

func TestPermanentIfUndefined(t *testing.T) {
	missing := fmt.Errorf("query: %w", &pgconn.PgError{Code: undefinedTable})
	var permanent *backoff.PermanentError
	assert.True(t, errors.As(permanentIfUndefined(missing), &permanent))

	other := errors.New("connection refused")
	assert.Equal(t, other, permanentIfUndefined(other))
}

type scanFunc func(dest ...interface{}) error

func (f scanFunc) Scan(dest ...interface{}) error {
	return f(dest...)
}

type tickerRows struct {
	pgx.Rows
	tickers []string
	i       int
}

func (r *tickerRows) Next() bool {
	r.i++
	return r.i <= len(r.tickers)
}

func (r *tickerRows) Scan(dest ...interface{}) error {
	*dest[0].(*string) = r.tickers[r.i-1]
	return nil
}

func (r *tickerRows) Err() error { return nil }
func (r *tickerRows) Close()     {}

// fakeQuerier answers each call with the next queued result.
type fakeQuerier struct {
	rows    []pgx.Row
	queries []func() (pgx.Rows, error)
	calls   int
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	q := f.queries[f.calls]
	f.calls++
	return q()
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	r := f.rows[f.calls]
	f.calls++
	return r
}

func scanDate(d pgtype.Date) pgx.Row {
	return scanFunc(func(dest ...interface{}) error {
		*dest[0].(*pgtype.Date) = d
		return nil
	})
}

func scanErr(err error) pgx.Row {
	return scanFunc(func(dest ...interface{}) error { return err })
}

func testWarehouse(q querier, notified *int) *Warehouse {
	return &Warehouse{
		q:      q,
		tables: tables,
		bo:     backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3),
		bon:    func(error, time.Duration) { *notified++ },
	}
}

func TestLatestDate(t *testing.T) {
	t.Run("empty table", func(t *testing.T) {
		var notified int
		q := &fakeQuerier{rows: []pgx.Row{scanDate(pgtype.Date{Status: pgtype.Null})}}
		got, err := testWarehouse(q, &notified).LatestDate(context.Background())
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Equal(t, 1, q.calls)
	})

	t.Run("stored date", func(t *testing.T) {
		var notified int
		stored := pgtype.Date{Time: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), Status: pgtype.Present}
		q := &fakeQuerier{rows: []pgx.Row{scanDate(stored)}}
		got, err := testWarehouse(q, &notified).LatestDate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &civil.Date{Year: 2024, Month: time.January, Day: 9}, got)
	})

	t.Run("transient error is retried", func(t *testing.T) {
		var notified int
		stored := pgtype.Date{Time: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), Status: pgtype.Present}
		q := &fakeQuerier{rows: []pgx.Row{scanErr(errors.New("connection reset")), scanDate(stored)}}
		got, err := testWarehouse(q, &notified).LatestDate(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Equal(t, 2, q.calls)
		assert.Equal(t, 1, notified)
	})

	t.Run("missing table is not retried", func(t *testing.T) {
		var notified int
		q := &fakeQuerier{rows: []pgx.Row{scanErr(&pgconn.PgError{Code: undefinedTable})}}
		_, err := testWarehouse(q, &notified).LatestDate(context.Background())
		var pgErr *pgconn.PgError
		require.True(t, errors.As(err, &pgErr))
		assert.Equal(t, undefinedTable, pgErr.Code)
		assert.Equal(t, 1, q.calls)
		assert.Zero(t, notified)
	})
}

func TestKnownTickers(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		var notified int
		q := &fakeQuerier{queries: []func() (pgx.Rows, error){
			func() (pgx.Rows, error) { return &tickerRows{tickers: []string{"AAPL"}}, nil },
		}}
		got, err := testWarehouse(q, &notified).KnownTickers(context.Background(), []string{"AAPL", "MSFT"})
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL"}, got)
	})

	t.Run("missing table is not retried", func(t *testing.T) {
		var notified int
		q := &fakeQuerier{queries: []func() (pgx.Rows, error){
			func() (pgx.Rows, error) { return nil, &pgconn.PgError{Code: undefinedTable} },
		}}
		_, err := testWarehouse(q, &notified).KnownTickers(context.Background(), []string{"AAPL"})
		assert.Error(t, err)
		assert.Equal(t, 1, q.calls)
		assert.Zero(t, notified)
	})
}
