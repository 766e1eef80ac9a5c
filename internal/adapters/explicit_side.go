package adapters

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ExplicitSideAdapter recovers trades from exchanges whose public daily
// archive is a CSV with an explicit side column
// (ts_ms,price,size,side[,liquidation]).
type ExplicitSideAdapter struct {
	// URLForDay builds the archive URL for one UTC calendar day.
	URLForDay func(symbol string, dayUTC int64) string
	// Decompress inflates a fetched archive body into raw CSV bytes. Side
	// derivation and archive compression are independent: some
	// explicit-side exchanges ship gzip, others zip. Defaults to gzip when
	// nil.
	Decompress func(ctx context.Context, body []byte) ([]byte, error)
}

// Recover implements Adapter.
func (a ExplicitSideAdapter) Recover(fetch Fetcher, symbol string, windows []Window) ([]RecoveredTrade, error) {
	days := calendarDays(windows)
	var out []RecoveredTrade

	for _, day := range days {
		url := a.URLForDay(symbol, day.UnixMilli())

		body, status, err := fetch(url)
		if err != nil {
			return nil, fmt.Errorf("adapters: fetch %s: %w", url, err)
		}
		if status == 404 {
			continue
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("adapters: fetch %s: status %d", url, status)
		}

		decompress := a.Decompress
		if decompress == nil {
			decompress = decompressGzip
		}
		csvBytes, err := decompress(context.Background(), body)
		if err != nil {
			return nil, err
		}

		trades, err := parseExplicitSideCSV(csvBytes)
		if err != nil {
			return nil, fmt.Errorf("adapters: parse %s: %w", url, err)
		}

		for _, t := range trades {
			if inAnyWindow(t.TS, windows) {
				out = append(out, t)
			}
		}
	}

	sortByTS(out)
	return out, nil
}

func parseExplicitSideCSV(data []byte) ([]RecoveredTrade, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1

	var out []RecoveredTrade
	for {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if len(row) < 4 {
			continue
		}

		ts, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			continue
		}

		side := SideSell
		if strings.TrimSpace(row[3]) == "1" {
			side = SideBuy
		}

		liquidation := false
		if len(row) >= 5 && strings.TrimSpace(row[4]) == "1" {
			liquidation = true
		}

		out = append(out, RecoveredTrade{TS: ts, Price: price, Size: size, Side: side, Liquidation: liquidation})
	}
	return out, nil
}
