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

// Package etl decides what the warehouse is missing and runs one
// extract, transform and load pass to fill it.
package etl

import (
	"cloud.google.com/go/civil"
	"cloud.google.com/go/logging"
	"context"
	"github.com/google/uuid"
	"time"

	"github.com/ajjensen13/stockload/internal/extract"
	"github.com/ajjensen13/stockload/internal/load"
	"github.com/ajjensen13/stockload/internal/market"
	"github.com/ajjensen13/stockload/internal/model"
	"github.com/ajjensen13/stockload/internal/transform"
	"github.com/ajjensen13/stockload/internal/universe"
	"github.com/ajjensen13/stockload/internal/util"
)

type Warehouse interface {
	KnownTickers(ctx context.Context, tickers []string) ([]string, error)
	LatestDate(ctx context.Context) (*civil.Date, error)
	load.Loader
}

type Config struct {
	Universe []string
	Location *time.Location
	Interval string
	// LatestOverride replaces the warehouse's latest price date when set.
	LatestOverride *civil.Date
}

type Pipeline struct {
	warehouse Warehouse
	prices    extract.PriceSource
	sectors   extract.SectorSource
	clock     market.Clock
	cfg       Config
}

func NewPipeline(wh Warehouse, prices extract.PriceSource, sectors extract.SectorSource, clock market.Clock, cfg Config) *Pipeline {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Pipeline{warehouse: wh, prices: prices, sectors: sectors, clock: clock, cfg: cfg}
}

type Summary struct {
	RunID    string
	Missing  []string
	Existing []string
	Params   extract.Params
	UpToDate bool
	Failed   []string
	Loaded   load.Info
}

// Run performs one pass. Only load failures are returned; lookup and
// per-ticker fetch failures are logged and degrade the run.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	s := Summary{RunID: uuid.New().String()}
	ctx = util.WithLoggerValue(ctx, "run_id", s.RunID)
	util.Logf(ctx, logging.Info, "starting etl process for %d tickers", len(p.cfg.Universe))

	known, err := p.warehouse.KnownTickers(ctx, p.cfg.Universe)
	if err != nil {
		util.Logf(ctx, logging.Error, "error validating tickers, treating all as missing: %v", err)
		known = nil
	}
	known = intersect(p.cfg.Universe, known)
	s.Missing = universe.Missing(p.cfg.Universe, known)

	latest := p.latestDate(ctx)
	s.Params = extract.DecideParams(latest, p.clock().In(p.cfg.Location))
	p.logParams(ctx, latest, s.Params)

	if !s.Params.Update && len(s.Missing) == 0 {
		util.Logf(ctx, logging.Info, "everything is up to date, no execution needed")
		s.UpToDate = true
		return s, nil
	}

	if s.Params.Update {
		s.Existing = known
	}

	res := extract.Run(ctx, p.prices, p.sectors, extract.Plan{
		Existing: s.Existing,
		Missing:  s.Missing,
		Params:   s.Params,
		Interval: p.cfg.Interval,
	})
	s.Failed = res.Failed

	if res.Empty() {
		util.Logf(ctx, logging.Warning, "no data extracted")
		return s, nil
	}

	prices, rejected := p.transformPrices(ctx, res)
	sectors := transform.Sectors(withoutTickers(res.Sectors, rejected))
	s.Failed = appendMissing(s.Failed, rejected)
	if len(prices) == 0 {
		if len(sectors) == 0 {
			util.Logf(ctx, logging.Warning, "no data to transform")
			return s, nil
		}
		util.Logf(ctx, logging.Info, "only sector data to load")
	}

	s.Loaded, err = load.Tables(ctx, p.warehouse, prices, sectors)
	if err != nil {
		return s, err
	}

	util.Logf(ctx, logging.Info, "etl process completed successfully: %d prices, %d sectors", s.Loaded.Prices, s.Loaded.Sectors)
	return s, nil
}

func (p *Pipeline) latestDate(ctx context.Context) *civil.Date {
	if p.cfg.LatestOverride != nil {
		util.Logf(ctx, logging.Notice, "using latest date override %s", p.cfg.LatestOverride)
		return p.cfg.LatestOverride
	}

	latest, err := p.warehouse.LatestDate(ctx)
	if err != nil {
		util.Logf(ctx, logging.Error, "error reading latest price date, assuming none: %v", err)
		return nil
	}
	return latest
}

func (p *Pipeline) logParams(ctx context.Context, latest *civil.Date, params extract.Params) {
	switch {
	case latest == nil:
		util.Logf(ctx, logging.Info, "no existing data found, full extraction will be performed")
	case params.Update:
		util.Logf(ctx, logging.Info, "update needed: %s < %s, start: %s", latest, params.Through, params.Start)
	default:
		util.Logf(ctx, logging.Info, "data is up to date, latest date: %s, last market close date: %s", latest, params.Through)
	}
}

// transformPrices also returns the symbols whose bars could not be transformed.
func (p *Pipeline) transformPrices(ctx context.Context, res extract.Result) ([]model.Price, []string) {
	ctx = util.WithLoggerValue(ctx, "action", "transform")

	var result []model.Price
	var rejected []string
	for _, bars := range res.Bars {
		rows, err := transform.Prices(bars)
		if err != nil {
			util.Logf(util.WithLoggerValue(ctx, "symbol", bars.Request.Symbol), logging.Error, "error during data transformation: %v", err)
			rejected = append(rejected, bars.Request.Symbol)
			continue
		}
		result = append(result, rows...)
	}
	return result, rejected
}

// withoutTickers drops the sectors of rejected tickers so a new ticker is
// not recorded as known without its history.
func withoutTickers(sectors []model.Sector, rejected []string) []model.Sector {
	if len(rejected) == 0 {
		return sectors
	}
	r := make(map[string]bool, len(rejected))
	for _, s := range rejected {
		r[s] = true
	}

	var result []model.Sector
	for _, s := range sectors {
		if !r[s.Ticker] {
			result = append(result, s)
		}
	}
	return result
}

func appendMissing(dst, src []string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

// intersect keeps the members of known that belong to the universe, in universe order.
func intersect(universe, known []string) []string {
	k := make(map[string]bool, len(known))
	for _, s := range known {
		k[s] = true
	}

	var result []string
	for _, s := range universe {
		if k[s] {
			result = append(result, s)
		}
	}
	return result
}
