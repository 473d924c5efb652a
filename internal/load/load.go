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

package load

import (
	"cloud.google.com/go/logging"
	"context"
	"errors"
	"fmt"

	"github.com/ajjensen13/stockload/internal/model"
	"github.com/ajjensen13/stockload/internal/util"
)

type Loader interface {
	EnsureDataset(ctx context.Context) error
	AppendPrices(ctx context.Context, prices []model.Price) (int64, error)
	AppendSectors(ctx context.Context, sectors []model.Sector) (int64, error)
}

type Info struct {
	Prices  int64
	Sectors int64
}

// Tables appends both row sets. A failure on one table is logged and does not
// stop the other; the returned error joins every failure.
func Tables(ctx context.Context, l Loader, prices []model.Price, sectors []model.Sector) (Info, error) {
	ctx = util.WithLoggerValue(ctx, "action", "load")

	var info Info
	if len(prices) == 0 && len(sectors) == 0 {
		return info, nil
	}

	err := l.EnsureDataset(ctx)
	if err != nil {
		util.Logf(ctx, logging.Error, "error creating dataset: %v", err)
	}

	var errs []error
	if len(prices) > 0 {
		n, err := l.AppendPrices(ctx, prices)
		if err != nil {
			err = fmt.Errorf("failed to load %d prices: %w", len(prices), err)
			util.Logf(ctx, logging.Error, "%v", err)
			errs = append(errs, err)
		}
		info.Prices = n
	}

	if len(sectors) > 0 {
		n, err := l.AppendSectors(ctx, sectors)
		if err != nil {
			err = fmt.Errorf("failed to load %d sectors: %w", len(sectors), err)
			util.Logf(ctx, logging.Error, "%v", err)
			errs = append(errs, err)
		}
		info.Sectors = n
	}

	return info, errors.Join(errs...)
}
