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

package extract

import (
	"cloud.google.com/go/logging"
	"context"
	"errors"

	"github.com/ajjensen13/stockload/internal/api"
	"github.com/ajjensen13/stockload/internal/model"
	"github.com/ajjensen13/stockload/internal/util"
)

type PriceSource interface {
	Bars(ctx context.Context, req api.BarsRequest) (api.BarsResponse, error)
}

type SectorSource interface {
	Sector(ctx context.Context, symbol string) (string, error)
}

// Plan lists the tickers to fetch. Existing tickers get the incremental
// window from Params; Missing tickers get full history plus a sector.
type Plan struct {
	Existing []string
	Missing  []string
	Params   Params
	Interval string
}

type Result struct {
	Bars    []api.BarsResponse
	Sectors []model.Sector
	Failed  []string
}

func (r Result) Empty() bool {
	return len(r.Bars) == 0 && len(r.Sectors) == 0
}

// Run fetches the plan one ticker at a time. A failed ticker is logged,
// recorded in Result.Failed, and skipped. A new ticker's prices and sector
// are kept together: neither is returned unless both fetches succeed.
func Run(ctx context.Context, prices PriceSource, sectors SectorSource, plan Plan) Result {
	ctx = util.WithLoggerValue(ctx, "action", "extract")

	var result Result
	failed := make(map[string]bool)
	fail := func(symbol string) {
		if !failed[symbol] {
			failed[symbol] = true
			result.Failed = append(result.Failed, symbol)
		}
	}

	util.Logf(ctx, logging.Info, "fetching stock data for %d existing and %d new tickers", len(plan.Existing), len(plan.Missing))
	for _, symbol := range plan.Existing {
		req := api.BarsRequest{Symbol: symbol, Interval: plan.Interval, End: plan.Params.Through}
		if plan.Params.Start != nil {
			req.Start = *plan.Params.Start
		} else {
			req.Period = plan.Params.Period
		}
		bars, ok := fetchBars(ctx, prices, req)
		if !ok {
			fail(symbol)
			continue
		}
		result.Bars = append(result.Bars, bars...)
	}

	for _, symbol := range plan.Missing {
		req := api.BarsRequest{Symbol: symbol, Interval: plan.Interval, Period: api.PeriodMax, End: plan.Params.Through}
		bars, ok := fetchBars(ctx, prices, req)
		if !ok {
			fail(symbol)
			continue
		}
		sector, ok := fetchSector(ctx, sectors, symbol)
		if !ok {
			fail(symbol)
			continue
		}
		result.Bars = append(result.Bars, bars...)
		result.Sectors = append(result.Sectors, sector)
	}

	if len(result.Failed) > 0 {
		util.Logf(ctx, logging.Warning, "failed to fetch data for the following tickers: %v", result.Failed)
	}

	return result
}

// fetchBars reports ok for an empty answer too; ErrNoData is not a failure.
func fetchBars(ctx context.Context, prices PriceSource, req api.BarsRequest) ([]api.BarsResponse, bool) {
	ctx = util.WithLoggerValue(ctx, "symbol", req.Symbol)

	resp, err := prices.Bars(ctx, req)
	switch {
	case errors.Is(err, api.ErrNoData):
		util.Logf(ctx, logging.Warning, "no data found for %s", req)
		return nil, true
	case err != nil:
		util.Logf(ctx, logging.Error, "error fetching stock data for %s: %v", req, err)
		return nil, false
	}

	util.Logf(ctx, logging.Debug, "fetched %d bars for %s", len(resp.Response.Date), req)
	return []api.BarsResponse{resp}, true
}

func fetchSector(ctx context.Context, sectors SectorSource, symbol string) (model.Sector, bool) {
	ctx = util.WithLoggerValue(ctx, "symbol", symbol)

	sector, err := sectors.Sector(ctx, symbol)
	if err != nil {
		util.Logf(ctx, logging.Error, "error fetching sector data for %s, dropping its prices: %v", symbol, err)
		return model.Sector{}, false
	}
	return model.Sector{Ticker: symbol, Sector: sector}, true
}
