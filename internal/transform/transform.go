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

package transform

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/ajjensen13/stockload/internal/api"
	"github.com/ajjensen13/stockload/internal/model"
)

var ErrLengthMismatch = errors.New("column length mismatch")

// Prices reshapes a provider response into price rows. Rows outside the
// requested window are dropped: before Start on incremental requests, and
// after End always.
func Prices(in api.BarsResponse) ([]model.Price, error) {
	q := in.Response
	symbol := strings.ToUpper(strings.TrimSpace(in.Request.Symbol))

	l := len(q.Date)
	switch {
	case l == 0:
		return nil, nil
	case len(q.Open) != l:
		return nil, fmt.Errorf("len(open) = %d, len(date) = %d for stock %q: %w", len(q.Open), l, symbol, ErrLengthMismatch)
	case len(q.High) != l:
		return nil, fmt.Errorf("len(high) = %d, len(date) = %d for stock %q: %w", len(q.High), l, symbol, ErrLengthMismatch)
	case len(q.Low) != l:
		return nil, fmt.Errorf("len(low) = %d, len(date) = %d for stock %q: %w", len(q.Low), l, symbol, ErrLengthMismatch)
	case len(q.Close) != l:
		return nil, fmt.Errorf("len(close) = %d, len(date) = %d for stock %q: %w", len(q.Close), l, symbol, ErrLengthMismatch)
	case len(q.Volume) != l:
		return nil, fmt.Errorf("len(volume) = %d, len(date) = %d for stock %q: %w", len(q.Volume), l, symbol, ErrLengthMismatch)
	}

	result := make([]model.Price, 0, l)
	for ndx, ts := range q.Date {
		d := civil.DateOf(ts)
		if !inWindow(in.Request, d) {
			continue
		}
		result = append(result, model.Price{
			Date:   d,
			Open:   q.Open[ndx],
			High:   q.High[ndx],
			Low:    q.Low[ndx],
			Close:  q.Close[ndx],
			Volume: q.Volume[ndx],
			Ticker: symbol,
		})
	}

	return result, nil
}

func inWindow(req api.BarsRequest, d civil.Date) bool {
	if req.End != (civil.Date{}) && d.After(req.End) {
		return false
	}
	if req.Period == "" && req.Start != (civil.Date{}) && d.Before(req.Start) {
		return false
	}
	return true
}

// Sectors drops blank tickers and fills a blank classification with the unknown sentinel.
func Sectors(in []model.Sector) []model.Sector {
	result := make([]model.Sector, 0, len(in))
	for _, s := range in {
		ticker := strings.ToUpper(strings.TrimSpace(s.Ticker))
		if ticker == "" {
			continue
		}
		sector := strings.TrimSpace(s.Sector)
		if sector == "" {
			sector = api.UnknownSector
		}
		result = append(result, model.Sector{Ticker: ticker, Sector: sector})
	}
	return result
}
