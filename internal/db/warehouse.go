/*
Copyright © 2020 A. Jensen <jensen.aaro@gmail.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package db is the Postgres warehouse: one schema (the dataset) holding an
// append-only prices table and a sectors table.
package db

import (
	"cloud.google.com/go/civil"
	"cloud.google.com/go/logging"
	"context"
	"errors"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"math"
	"time"

	"github.com/ajjensen13/stockload/internal/extract"
	"github.com/ajjensen13/stockload/internal/model"
	"github.com/ajjensen13/stockload/internal/util"
)

const undefinedTable = "42P01"

var (
	priceColumns  = []string{"date", "open", "high", "low", "close", "volume", "ticker"}
	sectorColumns = []string{"ticker", "sector"}
)

type Tables struct {
	Dataset string
	Prices  string
	Sectors string
}

func (t Tables) PricesIdent() pgx.Identifier {
	return pgx.Identifier{t.Dataset, t.Prices}
}

func (t Tables) SectorsIdent() pgx.Identifier {
	return pgx.Identifier{t.Dataset, t.Sectors}
}

// querier is the read side of *pgxpool.Pool.
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type Warehouse struct {
	pool   *pgxpool.Pool
	q      querier
	tables Tables
	bo     backoff.BackOff
	bon    backoff.Notify
}

func NewWarehouse(pool *pgxpool.Pool, tables Tables, bo backoff.BackOff, bon backoff.Notify) *Warehouse {
	return &Warehouse{pool: pool, q: pool, tables: tables, bo: bo, bon: bon}
}

// KnownTickers returns the subset of tickers already present in the sectors table.
func (w *Warehouse) KnownTickers(ctx context.Context, tickers []string) ([]string, error) {
	ctx = util.WithLoggerValue(ctx, "table", w.tables.Sectors)

	var result []string
	err := w.retry(ctx, func() error {
		ctx, cancel := context.WithTimeout(ctx, util.ShortReqTimeout)
		defer cancel()

		rows, err := w.q.Query(ctx, knownTickersSQL(w.tables), tickers)
		if err != nil {
			return permanentIfUndefined(fmt.Errorf("failed to query known tickers: %w", err))
		}
		defer rows.Close()

		found := make([]string, 0, len(tickers))
		for rows.Next() {
			var ticker string
			err := rows.Scan(&ticker)
			if err != nil {
				return fmt.Errorf("failed to parse known ticker: %w", err)
			}
			found = append(found, ticker)
		}
		if err := rows.Err(); err != nil {
			return permanentIfUndefined(fmt.Errorf("failed to read known tickers: %w", err))
		}

		result = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.Logf(ctx, logging.Debug, "%d of %d tickers already known", len(result), len(tickers))
	return result, nil
}

// LatestDate returns MAX(date) of the prices table, or nil when the table is empty.
func (w *Warehouse) LatestDate(ctx context.Context) (*civil.Date, error) {
	ctx = util.WithLoggerValue(ctx, "table", w.tables.Prices)

	var result *civil.Date
	err := w.retry(ctx, func() error {
		ctx, cancel := context.WithTimeout(ctx, util.ShortReqTimeout)
		defer cancel()

		var latest pgtype.Date
		err := w.q.QueryRow(ctx, latestDateSQL(w.tables)).Scan(&latest)
		if err != nil {
			return permanentIfUndefined(fmt.Errorf("failed to query latest price date: %w", err))
		}

		d, err := extract.CoerceDate(latest)
		if err != nil {
			return backoff.Permanent(err)
		}

		result = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// EnsureDataset creates the schema and both tables when they are absent.
func (w *Warehouse) EnsureDataset(ctx context.Context) error {
	ctx = util.WithLoggerValue(ctx, "dataset", w.tables.Dataset)

	return util.RetryTx(ctx, w.pool, util.ShortReqTimeout, w.bo, w.bon, func(ctx context.Context, tx pgx.Tx) error {
		for _, stmt := range ensureDatasetSQL(w.tables) {
			_, err := tx.Exec(ctx, stmt)
			if err != nil {
				return fmt.Errorf("failed to create dataset %q: %w", w.tables.Dataset, err)
			}
		}
		util.Logf(ctx, logging.Debug, "dataset %q is present", w.tables.Dataset)
		return nil
	})
}

func (w *Warehouse) AppendPrices(ctx context.Context, prices []model.Price) (int64, error) {
	rows := make([][]interface{}, len(prices))
	for i, p := range prices {
		rows[i] = priceRow(p)
	}
	return w.copy(ctx, w.tables.PricesIdent(), priceColumns, rows)
}

func (w *Warehouse) AppendSectors(ctx context.Context, sectors []model.Sector) (int64, error) {
	rows := make([][]interface{}, len(sectors))
	for i, s := range sectors {
		rows[i] = sectorRow(s)
	}
	return w.copy(ctx, w.tables.SectorsIdent(), sectorColumns, rows)
}

func (w *Warehouse) copy(ctx context.Context, table pgx.Identifier, columns []string, rows [][]interface{}) (int64, error) {
	ctx = util.WithLoggerValue(ctx, "table", table.Sanitize())

	var copied int64
	err := util.RetryTx(ctx, w.pool, util.MedReqTimeout, w.bo, w.bon, func(ctx context.Context, tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to append %d rows to %s: %w", len(rows), table.Sanitize(), err)
		}
		copied = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	util.Logf(ctx, logging.Debug, "appended %d rows to %s", copied, table.Sanitize())
	return copied, nil
}

func (w *Warehouse) retry(ctx context.Context, op backoff.Operation) error {
	w.bo.Reset()
	return backoff.RetryNotify(op, backoff.WithContext(w.bo, ctx), w.bon)
}

// permanentIfUndefined stops retrying when the table does not exist yet.
func permanentIfUndefined(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return backoff.Permanent(err)
	}
	return err
}

func knownTickersSQL(t Tables) string {
	return `SELECT DISTINCT ticker FROM ` + t.SectorsIdent().Sanitize() + ` WHERE ticker = ANY($1)`
}

func latestDateSQL(t Tables) string {
	return `SELECT MAX(date) FROM ` + t.PricesIdent().Sanitize()
}

func ensureDatasetSQL(t Tables) []string {
	return []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{t.Dataset}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + t.PricesIdent().Sanitize() + ` (date DATE NOT NULL, open DOUBLE PRECISION, high DOUBLE PRECISION, low DOUBLE PRECISION, close DOUBLE PRECISION, volume DOUBLE PRECISION, ticker TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS ` + t.SectorsIdent().Sanitize() + ` (ticker TEXT NOT NULL, sector TEXT)`,
	}
}

func priceRow(p model.Price) []interface{} {
	var date pgtype.Date
	_ = date.Set(p.Date.In(time.UTC))

	var ticker pgtype.Text
	_ = ticker.Set(p.Ticker)

	return []interface{}{date, float8(p.Open), float8(p.High), float8(p.Low), float8(p.Close), float8(p.Volume), ticker}
}

func sectorRow(s model.Sector) []interface{} {
	var ticker, sector pgtype.Text
	_ = ticker.Set(s.Ticker)
	_ = sector.Set(s.Sector)
	return []interface{}{ticker, sector}
}

// float8 stores NaN and infinities as NULL.
func float8(v float64) pgtype.Float8 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return pgtype.Float8{Status: pgtype.Null}
	}
	return pgtype.Float8{Float: v, Status: pgtype.Present}
}
