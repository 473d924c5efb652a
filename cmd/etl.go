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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajjensen13/stockload/internal/util"
)

// etlCmd represents the etl command
var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Fetch missing daily prices and sectors and append them to the warehouse",
	Long: `Compares the warehouse against the ticker universe and the last completed
market close. New tickers get their full price history and a sector; known
tickers get the days since the latest stored date. Nothing is fetched when the
warehouse is current.`,
	Run: func(cmd *cobra.Command, args []string) {
		lg, cleanup := logger()
		defer cleanup()

		rc, err := loadRunConfig()
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to load configuration: %w", err)))
		}

		ctx := util.WithLogger(context.Background(), lg)
		p, cleanup, err := newPipeline(ctx, lg, rc)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to setup etl pipeline: %w", err)))
		}
		defer cleanup()

		s, err := p.Run(ctx)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("etl run %s failed: %w", s.RunID, err)))
		}

		lg.Defaultf("etl run %s finished: %d new tickers, %d updated tickers, %d failed tickers, %d prices and %d sectors loaded",
			s.RunID, len(s.Missing), len(s.Existing), len(s.Failed), s.Loaded.Prices, s.Loaded.Sectors)
	},
}

func init() {
	rootCmd.AddCommand(etlCmd)
}
