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
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/ajjensen13/config"
	"github.com/spf13/cobra"

	"github.com/ajjensen13/stockload/internal/api"
	"github.com/ajjensen13/stockload/internal/extract"
	"github.com/ajjensen13/stockload/internal/market"
	"github.com/ajjensen13/stockload/internal/universe"
)

const (
	dbSecretName  = "stockload-db-secret.json"
	appConfigName = "stockload-config-cm.json"
	apiSecretName = "stockload-api-secret.json"

	envPrefix = "STOCKLOAD_"

	providerFinnhub = "finnhub"
	providerTiingo  = "tiingo"

	defaultThrottle = time.Second
)

var errMissingConfig = errors.New("missing required configuration")

type appConfig struct {
	DataSourceName     string   `json:"data_source_name"`
	Dataset            string   `json:"dataset"`
	PricesTable        string   `json:"prices_table"`
	SectorsTable       string   `json:"sectors_table"`
	Timezone           string   `json:"timezone"`
	Provider           string   `json:"provider"`
	Interval           string   `json:"interval"`
	Tickers            []string `json:"tickers"`
	UniverseFile       string   `json:"universe_file"`
	UniverseSize       int      `json:"universe_size"`
	Throttle           string   `json:"throttle"`
	LatestDateOverride string   `json:"latest_date_override"`
}

type appSecrets struct {
	ApiKey      string `json:"api_key"`
	TiingoToken string `json:"tiingo_token"`
}

// runConfig is the validated configuration for one run.
type runConfig struct {
	app      appConfig
	secrets  appSecrets
	db       *url.Userinfo
	throttle time.Duration
	latest   *civil.Date
}

// readJson treats an absent file as empty so that environment variables alone can configure a local run.
func readJson(name string, v interface{}) error {
	err := config.InterfaceJson(name, v)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func readUserinfo(name string) (*url.Userinfo, error) {
	ui, err := config.Userinfo(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return ui, err
}

// applyEnv overlays STOCKLOAD_* variables onto the file configuration.
func applyEnv(getenv func(string) string, cfg *appConfig, secrets *appSecrets, ui *url.Userinfo) (*url.Userinfo, error) {
	str := func(key string, dst *string) {
		if v := getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}

	str("DATA_SOURCE_NAME", &cfg.DataSourceName)
	str("DATASET", &cfg.Dataset)
	str("PRICES_TABLE", &cfg.PricesTable)
	str("SECTORS_TABLE", &cfg.SectorsTable)
	str("TIMEZONE", &cfg.Timezone)
	str("PROVIDER", &cfg.Provider)
	str("INTERVAL", &cfg.Interval)
	str("UNIVERSE_FILE", &cfg.UniverseFile)
	str("THROTTLE", &cfg.Throttle)
	str("LATEST_DATE_OVERRIDE", &cfg.LatestDateOverride)
	str("API_KEY", &secrets.ApiKey)
	str("TIINGO_TOKEN", &secrets.TiingoToken)

	if v := getenv(envPrefix + "TICKERS"); v != "" {
		cfg.Tickers = strings.Split(v, ",")
	}

	if v := getenv(envPrefix + "UNIVERSE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %sUNIVERSE_SIZE %q: %w", envPrefix, v, err)
		}
		cfg.UniverseSize = n
	}

	user := getenv(envPrefix + "DB_USER")
	if user == "" {
		return ui, nil
	}
	if password := getenv(envPrefix + "DB_PASSWORD"); password != "" {
		return url.UserPassword(user, password), nil
	}
	return url.User(user), nil
}

func withDefaults(cfg appConfig) appConfig {
	if cfg.Timezone == "" {
		cfg.Timezone = market.DefaultTimezone
	}
	if cfg.Provider == "" {
		cfg.Provider = providerFinnhub
	}
	if cfg.Interval == "" {
		cfg.Interval = api.DefaultInterval
	}
	if cfg.UniverseSize <= 0 {
		cfg.UniverseSize = universe.DefaultSize
	}
	return cfg
}

// missing names every required setting that is absent.
func missing(cfg appConfig, secrets appSecrets, ui *url.Userinfo) []string {
	var result []string
	require := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			result = append(result, name)
		}
	}

	require("data_source_name", cfg.DataSourceName)
	require("dataset", cfg.Dataset)
	require("prices_table", cfg.PricesTable)
	require("sectors_table", cfg.SectorsTable)
	require("api_key", secrets.ApiKey)
	if cfg.Provider == providerTiingo {
		require("tiingo_token", secrets.TiingoToken)
	}
	if ui == nil || ui.Username() == "" {
		result = append(result, "db_user")
	}
	if len(universe.Normalize(cfg.Tickers)) == 0 && cfg.UniverseFile == "" {
		result = append(result, "tickers|universe_file")
	}
	return result
}

func newRunConfig(cfg appConfig, secrets appSecrets, ui *url.Userinfo) (*runConfig, error) {
	cfg = withDefaults(cfg)

	if m := missing(cfg, secrets, ui); len(m) > 0 {
		return nil, fmt.Errorf("%w: %s", errMissingConfig, strings.Join(m, ", "))
	}

	switch cfg.Provider {
	case providerFinnhub, providerTiingo:
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	_, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	throttle := defaultThrottle
	if cfg.Throttle != "" {
		throttle, err = time.ParseDuration(cfg.Throttle)
		if err != nil {
			return nil, fmt.Errorf("invalid throttle %q: %w", cfg.Throttle, err)
		}
	}
	if throttle <= 0 {
		return nil, fmt.Errorf("invalid throttle %q: must be positive", cfg.Throttle)
	}

	latest, err := extract.CoerceDate(cfg.LatestDateOverride)
	if err != nil {
		return nil, fmt.Errorf("invalid latest_date_override: %w", err)
	}

	return &runConfig{app: cfg, secrets: secrets, db: ui, throttle: throttle, latest: latest}, nil
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the required configuration and exit",
	Run: func(cmd *cobra.Command, args []string) {
		lg, cleanup := logger()
		defer cleanup()

		rc, err := loadRunConfig()
		if err != nil {
			panic(lg.ErrorErr(err))
		}

		lg.Defaultf("configuration ok: provider=%s dataset=%s prices=%s sectors=%s timezone=%s", rc.app.Provider, rc.app.Dataset, rc.app.PricesTable, rc.app.SectorsTable, rc.app.Timezone)
	},
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}
