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
	"github.com/markcheno/go-quote"
)

// tiingoEpoch stands in for "max"; tiingo starts its daily history in the 1960s.
var tiingoEpoch = civil.Date{Year: 1900, Month: time.January, Day: 1}

// Tiingo serves price history only. Pair it with Finnhub for sectors.
type Tiingo struct {
	token    string
	throttle <-chan time.Time
}

func NewTiingo(token string, throttle <-chan time.Time) *Tiingo {
	return &Tiingo{token: token, throttle: throttle}
}

func (t *Tiingo) Bars(ctx context.Context, req BarsRequest) (BarsResponse, error) {
	period, err := tiingoPeriod(req.Interval)
	if err != nil {
		return BarsResponse{}, err
	}

	err = wait(ctx, t.throttle)
	if err != nil {
		return BarsResponse{}, err
	}

	start := req.Start
	if req.Period != "" {
		start = tiingoEpoch
	}

	q, err := quote.NewQuoteFromTiingo(req.Symbol, start.String(), req.End.String(), period, t.token)
	if err != nil {
		return BarsResponse{}, fmt.Errorf("error while requesting tiingo prices for stock %q: %w", req.Symbol, err)
	}

	// go-quote answers a rejected request (bad token, 429, 5xx) with an
	// empty quote and no error, so an empty answer is a failure here.
	if len(q.Date) == 0 {
		return BarsResponse{}, fmt.Errorf("tiingo prices for stock %q: %w", req.Symbol, ErrEmptyResponse)
	}

	q.Symbol = req.Symbol
	return BarsResponse{Request: req, Response: q}, nil
}

func tiingoPeriod(interval string) (quote.Period, error) {
	switch interval {
	case "", "1d":
		return quote.Daily, nil
	case "1wk":
		return quote.Weekly, nil
	case "1mo":
		return quote.Monthly, nil
	default:
		return "", fmt.Errorf("tiingo: %q: %w", interval, ErrUnsupportedInterval)
	}
}
