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

package api

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/Finnhub-Stock-API/finnhub-go"
	"github.com/antihax/optional"
	"github.com/markcheno/go-quote"

	"github.com/ajjensen13/stockload/internal/util"
)

const finnhubNoData = "no_data"

// Finnhub serves both price history and sector metadata.
type Finnhub struct {
	client   *finnhub.DefaultApiService
	apiKey   string
	throttle <-chan time.Time
	tz       *time.Location
}

// NewFinnhub returns a Finnhub source. Every call waits for a tick on throttle, when non-nil.
func NewFinnhub(client *finnhub.DefaultApiService, apiKey string, throttle <-chan time.Time, tz *time.Location) *Finnhub {
	return &Finnhub{client: client, apiKey: apiKey, throttle: throttle, tz: tz}
}

func (f *Finnhub) auth(ctx context.Context) context.Context {
	return context.WithValue(ctx, finnhub.ContextAPIKey, finnhub.APIKey{Key: f.apiKey})
}

func (f *Finnhub) Bars(ctx context.Context, req BarsRequest) (BarsResponse, error) {
	resolution, err := finnhubResolution(req.Interval)
	if err != nil {
		return BarsResponse{}, err
	}

	err = wait(ctx, f.throttle)
	if err != nil {
		return BarsResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, util.ShortReqTimeout)
	defer cancel()

	from, to := finnhubWindow(req, f.tz)
	candles, httpResp, err := f.client.StockCandles(f.auth(ctx), req.Symbol, resolution, from.Unix(), to.Unix(), nil)
	if err != nil {
		return BarsResponse{}, handleErr(fmt.Sprintf("error while requesting candles for stock %q", req.Symbol), httpResp, err)
	}

	if candles.S == finnhubNoData || len(candles.T) == 0 {
		return BarsResponse{}, fmt.Errorf("candles for stock %q: %w", req.Symbol, ErrNoData)
	}

	q, err := candlesToQuote(req.Symbol, candles)
	if err != nil {
		return BarsResponse{}, err
	}

	return BarsResponse{Request: req, Response: q}, nil
}

func (f *Finnhub) Sector(ctx context.Context, symbol string) (string, error) {
	err := wait(ctx, f.throttle)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, util.ShortReqTimeout)
	defer cancel()

	profile, httpResp, err := f.client.CompanyProfile2(f.auth(ctx), &finnhub.CompanyProfile2Opts{Symbol: optional.NewString(symbol)})
	if err != nil {
		return "", handleErr(fmt.Sprintf("error while getting company profile %q", symbol), httpResp, err)
	}

	if profile.FinnhubIndustry == "" {
		return UnknownSector, nil
	}
	return profile.FinnhubIndustry, nil
}

func finnhubResolution(interval string) (string, error) {
	switch interval {
	case "", "1d":
		return "D", nil
	case "1wk":
		return "W", nil
	case "1mo":
		return "M", nil
	default:
		return "", fmt.Errorf("finnhub: %q: %w", interval, ErrUnsupportedInterval)
	}
}

// finnhubWindow spans midnight of the first day through the last second of End.
func finnhubWindow(req BarsRequest, tz *time.Location) (from, to time.Time) {
	to = req.End.AddDays(1).In(tz).Add(-time.Second)
	if req.Period != "" {
		return time.Unix(0, 0).In(tz), to
	}
	return req.Start.In(tz), to
}

// candlesToQuote keys every daily candle by its UTC calendar date, which is how finnhub stamps them.
func candlesToQuote(symbol string, in finnhub.StockCandles) (quote.Quote, error) {
	l := len(in.T)
	switch {
	case len(in.O) != l:
		return quote.Quote{}, fmt.Errorf("len(open) = %d, len(timestamp) = %d for stock %q", len(in.O), l, symbol)
	case len(in.H) != l:
		return quote.Quote{}, fmt.Errorf("len(high) = %d, len(timestamp) = %d for stock %q", len(in.H), l, symbol)
	case len(in.L) != l:
		return quote.Quote{}, fmt.Errorf("len(low) = %d, len(timestamp) = %d for stock %q", len(in.L), l, symbol)
	case len(in.C) != l:
		return quote.Quote{}, fmt.Errorf("len(close) = %d, len(timestamp) = %d for stock %q", len(in.C), l, symbol)
	case len(in.V) != l:
		return quote.Quote{}, fmt.Errorf("len(volume) = %d, len(timestamp) = %d for stock %q", len(in.V), l, symbol)
	}

	q := quote.NewQuote(symbol, l)
	for ndx, ts := range in.T {
		q.Date[ndx] = civil.DateOf(time.Unix(ts, 0).UTC()).In(time.UTC)
		q.Open[ndx] = float64(in.O[ndx])
		q.High[ndx] = float64(in.H[ndx])
		q.Low[ndx] = float64(in.L[ndx])
		q.Close[ndx] = float64(in.C[ndx])
		q.Volume[ndx] = float64(in.V[ndx])
	}
	return q, nil
}
