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

// Package api fetches daily price history and sector metadata from upstream providers.
package api

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/markcheno/go-quote"
)

// PeriodMax asks a provider for the full history it has.
const PeriodMax = "max"

// UnknownSector is recorded when a provider has no classification for a symbol.
const UnknownSector = "N/A"

const DefaultInterval = "1d"

var (
	ErrToManyRequests      = errors.New("error: too many requests")
	ErrNoData              = errors.New("provider returned no data")
	ErrEmptyResponse       = errors.New("provider returned an empty response")
	ErrUnsupportedInterval = errors.New("unsupported interval")
)

// BarsRequest selects a symbol's history either by Period or by the Start..End window.
// End is inclusive and is always set.
type BarsRequest struct {
	Symbol   string
	Interval string
	Period   string
	Start    civil.Date
	End      civil.Date
}

func (r BarsRequest) String() string {
	if r.Period != "" {
		return fmt.Sprintf("%s period=%s end=%s interval=%s", r.Symbol, r.Period, r.End, r.Interval)
	}
	return fmt.Sprintf("%s %s..%s interval=%s", r.Symbol, r.Start, r.End, r.Interval)
}

type BarsResponse struct {
	Request  BarsRequest
	Response quote.Quote
}

func wait(ctx context.Context, throttle <-chan time.Time) error {
	if throttle == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("aborting request: %w", ctx.Err())
	case <-throttle:
		return nil
	}
}

func handleErr(msg string, resp *http.Response, err error) error {
	switch {
	case resp == nil:
		break
	case resp.StatusCode == http.StatusTooManyRequests:
		err = fmt.Errorf("%s: %w", msg, ErrToManyRequests)
		msg = "rate limited"
	case resp.Body != nil:
		defer resp.Body.Close()
		body, readErr := ioutil.ReadAll(resp.Body)
		if readErr != nil {
			msg = fmt.Sprintf("error while to parsing error response %v. %s", readErr, msg)
			break
		}
		msg = fmt.Sprintf("%s (%s)", msg, body)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
