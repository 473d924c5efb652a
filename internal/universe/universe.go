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

// Package universe builds the ordered list of ticker symbols the job maintains.
package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const DefaultSize = 1000

const (
	symbolColumn    = "Symbol"
	marketCapColumn = "Market Cap"
)

var ErrEmpty = errors.New("ticker universe is empty")

var symbolReplacer = strings.NewReplacer("/", "-")

// Normalize upper-cases, trims and de-duplicates symbols, keeping first-seen order.
// Share classes written as BRK/A become BRK-A.
func Normalize(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	result := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = symbolReplacer.Replace(strings.ToUpper(strings.TrimSpace(s)))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		result = append(result, s)
	}
	return result
}

func FromFile(filename string, size int) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open universe file: %w", err)
	}
	defer f.Close()

	result, err := FromCSV(f, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file %q: %w", filename, err)
	}
	return result, nil
}

type listing struct {
	symbol    string
	marketCap float64
}

// FromCSV reads a NASDAQ screener export and returns the size largest symbols by market cap.
// A non-positive size means DefaultSize.
func FromCSV(r io.Reader, size int) ([]string, error) {
	if size <= 0 {
		size = DefaultSize
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	symbolNdx, capNdx := -1, -1
	for ndx, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case symbolColumn:
			symbolNdx = ndx
		case marketCapColumn:
			capNdx = ndx
		}
	}
	if symbolNdx < 0 {
		return nil, fmt.Errorf("missing %q column", symbolColumn)
	}

	var listings []listing
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		if symbolNdx >= len(record) {
			continue
		}

		l := listing{symbol: record[symbolNdx]}
		if capNdx >= 0 && capNdx < len(record) {
			l.marketCap, _ = strconv.ParseFloat(strings.TrimSpace(record[capNdx]), 64)
		}
		listings = append(listings, l)
	}

	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].marketCap > listings[j].marketCap
	})

	symbols := make([]string, len(listings))
	for i, l := range listings {
		symbols[i] = l.symbol
	}

	symbols = Normalize(symbols)
	if len(symbols) > size {
		symbols = symbols[:size]
	}
	if len(symbols) == 0 {
		return nil, ErrEmpty
	}
	return symbols, nil
}

// Missing returns the members of universe absent from known, in universe order.
func Missing(universe, known []string) []string {
	k := make(map[string]bool, len(known))
	for _, s := range known {
		k[s] = true
	}

	var result []string
	for _, s := range universe {
		if !k[s] {
			result = append(result, s)
		}
	}
	return result
}
