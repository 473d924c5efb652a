//go:build wireinject
// +build wireinject

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

package cmd

import (
	"context"
	"github.com/ajjensen13/gke"
	"github.com/google/wire"

	"github.com/ajjensen13/stockload/internal/db"
	"github.com/ajjensen13/stockload/internal/etl"
)

func loadRunConfig() (rc *runConfig, err error) {
	panic(wire.Build(provideRunConfig, provideAppConfig, provideAppSecrets, provideDbSecrets))
}

func logger() (lg gke.Logger, cleanup func()) {
	panic(wire.Build(provideLogger))
}

func newPipeline(ctx context.Context, lg gke.Logger, rc *runConfig) (p *etl.Pipeline, cleanup func(), err error) {
	panic(wire.Build(
		etl.NewPipeline,
		wire.Bind(new(etl.Warehouse), new(*db.Warehouse)),
		db.NewWarehouse,
		provideDbConnPool,
		provideDataSourceName,
		provideTables,
		provideBackoff,
		provideBackoffNotifier,
		provideApiServiceClient,
		provideThrottle,
		provideFinnhub,
		providePriceSource,
		provideSectorSource,
		provideTimezone,
		provideClock,
		provideEtlConfig,
	))
}
