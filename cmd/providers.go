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
	"errors"
	"fmt"
	"github.com/Finnhub-Stock-API/finnhub-go"
	"github.com/ajjensen13/gke"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"net/url"
	"os"
	"time"

	"github.com/ajjensen13/stockload/internal/api"
	"github.com/ajjensen13/stockload/internal/db"
	"github.com/ajjensen13/stockload/internal/etl"
	"github.com/ajjensen13/stockload/internal/extract"
	"github.com/ajjensen13/stockload/internal/market"
	"github.com/ajjensen13/stockload/internal/universe"
)

func provideAppConfig() (*appConfig, error) {
	var result appConfig
	err := readJson(appConfigName, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func provideAppSecrets() (*appSecrets, error) {
	var result appSecrets
	err := readJson(apiSecretName, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func provideDbSecrets() (*url.Userinfo, error) {
	return readUserinfo(dbSecretName)
}

func provideRunConfig(cfg *appConfig, secrets *appSecrets, ui *url.Userinfo) (*runConfig, error) {
	ui, err := applyEnv(os.Getenv, cfg, secrets, ui)
	if err != nil {
		return nil, err
	}
	return newRunConfig(*cfg, *secrets, ui)
}

func provideTimezone(rc *runConfig) (*time.Location, error) {
	return time.LoadLocation(rc.app.Timezone)
}

func provideClock() market.Clock {
	return time.Now
}

func provideApiServiceClient() *finnhub.DefaultApiService {
	return finnhub.NewAPIClient(finnhub.NewConfiguration()).DefaultApi
}

func provideThrottle(rc *runConfig) (*time.Ticker, func()) {
	ticker := time.NewTicker(rc.throttle)
	return ticker, ticker.Stop
}

func provideFinnhub(client *finnhub.DefaultApiService, rc *runConfig, throttle *time.Ticker, tz *time.Location) *api.Finnhub {
	return api.NewFinnhub(client, rc.secrets.ApiKey, throttle.C, tz)
}

func providePriceSource(rc *runConfig, fh *api.Finnhub, throttle *time.Ticker) (extract.PriceSource, error) {
	switch rc.app.Provider {
	case providerFinnhub:
		return fh, nil
	case providerTiingo:
		return api.NewTiingo(rc.secrets.TiingoToken, throttle.C), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", rc.app.Provider)
	}
}

func provideSectorSource(fh *api.Finnhub) extract.SectorSource {
	return fh
}

func provideUniverse(rc *runConfig) ([]string, error) {
	if tickers := universe.Normalize(rc.app.Tickers); len(tickers) > 0 {
		return tickers, nil
	}
	return universe.FromFile(rc.app.UniverseFile, rc.app.UniverseSize)
}

func provideEtlConfig(rc *runConfig, tz *time.Location) (etl.Config, error) {
	tickers, err := provideUniverse(rc)
	if err != nil {
		return etl.Config{}, err
	}
	return etl.Config{
		Universe:       tickers,
		Location:       tz,
		Interval:       rc.app.Interval,
		LatestOverride: rc.latest,
	}, nil
}

func provideTables(rc *runConfig) db.Tables {
	return db.Tables{
		Dataset: rc.app.Dataset,
		Prices:  rc.app.PricesTable,
		Sectors: rc.app.SectorsTable,
	}
}

func provideBackoff() backoff.BackOff {
	result := backoff.NewExponentialBackOff()
	result.InitialInterval = time.Second
	result.MaxElapsedTime = time.Minute
	return result
}

func provideBackoffNotifier(lg gke.Logger) backoff.Notify {
	return func(err error, duration time.Duration) {
		if errors.Is(err, context.DeadlineExceeded) {
			lg.Info(gke.NewFmtMsgData("warehouse request timed out, waiting %v before retrying: %v", duration, err))
			return
		}
		lg.Warning(gke.NewFmtMsgData("warehouse request failed, waiting %v before retrying: %v", duration, err))
	}
}

func provideDataSourceName(rc *runConfig) (dsn *url.URL, err error) {
	dsn, err = url.Parse(rc.app.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data source name: %w", err)
	}
	dsn.User = rc.db

	return dsn, nil
}

func provideDbConnPool(ctx context.Context, dsn *url.URL) (ret *pgxpool.Pool, cleanup func(), err error) {
	pool, err := pgxpool.Connect(ctx, dsn.String())
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open database connection pool: %w", err)
	}

	return pool, pool.Close, nil
}

func provideLogger() (lg gke.Logger, cleanup func()) {
	lg, cleanup, err := gke.NewLogger(context.Background())
	if err != nil {
		panic(err)
	}

	gke.LogEnv(lg)
	gke.LogMetadata(lg)

	return lg, cleanup
}
