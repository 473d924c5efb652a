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
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgtype"

	"github.com/ajjensen13/stockload/internal/api"
	"github.com/ajjensen13/stockload/internal/market"
)

var ErrUnsupportedDate = errors.New("unsupported stored date type")

// Params tells the orchestrator what price history to request.
//
// Start is nil and Period is empty unless set. Update reports whether
// already-known tickers need an incremental fetch beginning at Start.
// Through is the last completed market close; no fetch goes past it.
type Params struct {
	Start   *civil.Date
	Period  string
	Update  bool
	Through civil.Date
}

// DecideParams compares the latest stored price date against the last
// completed market close as seen from now, which must already be in the
// exchange's location. It performs no I/O.
func DecideParams(latest *civil.Date, now time.Time) Params {
	through := market.LastClose(now)

	if latest == nil {
		return Params{Period: api.PeriodMax, Through: through}
	}

	if latest.Before(through) {
		start := latest.AddDays(1)
		return Params{Start: &start, Update: true, Through: through}
	}

	return Params{Through: through}
}

// CoerceDate accepts the shapes a stored date arrives in and returns nil
// for an absent one.
func CoerceDate(v interface{}) (*civil.Date, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case civil.Date:
		if v == (civil.Date{}) {
			return nil, nil
		}
		return &v, nil
	case *civil.Date:
		if v == nil {
			return nil, nil
		}
		return CoerceDate(*v)
	case time.Time:
		if v.IsZero() {
			return nil, nil
		}
		d := civil.DateOf(v)
		return &d, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return CoerceDate(*v)
	case pgtype.Date:
		if v.Status != pgtype.Present || v.InfinityModifier != pgtype.None {
			return nil, nil
		}
		d := civil.DateOf(v.Time)
		return &d, nil
	case string:
		return parseDate(v)
	default:
		return nil, fmt.Errorf("%T: %w", v, ErrUnsupportedDate)
	}
}

func parseDate(s string) (*civil.Date, error) {
	if s == "" {
		return nil, nil
	}

	d, err := civil.ParseDate(s)
	if err == nil {
		return &d, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		d = civil.DateOf(t)
		return &d, nil
	}

	dt, err := civil.ParseDateTime(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored date %q: %w", s, err)
	}
	return &dt.Date, nil
}
