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

// TickRuleAdapter recovers trades from exchanges whose public daily
// archive is a zip CSV without an explicit side column
// (ts_ms,price,size): side is inferred by the tick rule, inheriting the
// previous trade's side and flipping only on a strictly higher or lower
// price (Kraken convention, §4.11).
type TickRuleAdapter struct {
	URLForDay func(symbol string, dayUTC int64) string
}

// Recover implements Adapter.
func (a TickRuleAdapter) Recover(fetch Fetcher, symbol string, windows []Window) ([]RecoveredTrade, error) {
	days := calendarDays(windows)
	var out []RecoveredTrade

	var prevSide Side
	havePrev := false
	var prevPrice float64

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

		csvBytes, err := DecompressZipCSV(context.Background(), body)
		if err != nil {
			return nil, err
		}

		rows, err := parseTickRuleCSV(csvBytes)
		if err != nil {
			return nil, fmt.Errorf("adapters: parse %s: %w", url, err)
		}

		for _, row := range rows {
			side := tickRuleSide(prevSide, havePrev, prevPrice, row.price)
			prevSide, prevPrice, havePrev = side, row.price, true

			if inAnyWindow(row.ts, windows) {
				out = append(out, RecoveredTrade{TS: row.ts, Price: row.price, Size: row.size, Side: side})
			}
		}
	}

	sortByTS(out)
	return out, nil
}

type tickRow struct {
	ts    int64
	price float64
	size  float64
}

func parseTickRuleCSV(data []byte) ([]tickRow, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1

	var out []tickRow
	for {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if len(row) < 3 {
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

		out = append(out, tickRow{ts: ts, price: price, size: size})
	}
	return out, nil
}
