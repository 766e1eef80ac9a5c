package gapfix

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tucsky/aggr-ingest/internal/adapters"
	"github.com/tucsky/aggr-ingest/internal/trade"
)

// AppendMerge is a merge callback for Run: it appends recovered trades to
// the source file under rootPath, in the same whitespace-delimited logical
// line format the parser reads, de-duplicating by (ts, price, size, side)
// exactness against lines already present. Grounded on spec.md §4.12's
// "append to appropriate per-day file; de-duplicate by (ts, price, size,
// side) exactness" merge rule.
func AppendMerge(rootPath, relativePath, exchange, symbol string, trades []adapters.RecoveredTrade) (int, error) {
	fullPath := filepath.Join(rootPath, relativePath)

	existing, err := readDedupeKeys(fullPath)
	if err != nil {
		return 0, fmt.Errorf("gapfix: merge read %s: %w", relativePath, err)
	}

	f, err := os.OpenFile(fullPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("gapfix: merge open %s: %w", relativePath, err)
	}
	defer f.Close()

	var appended int
	w := bufio.NewWriter(f)
	for _, t := range trades {
		key := dedupeKey(t.TS, t.Price, t.Size, t.Side)
		if existing[key] {
			continue
		}
		existing[key] = true

		side := "0"
		if t.Side == adapters.SideBuy {
			side = "1"
		}
		liq := "0"
		if t.Liquidation {
			liq = "1"
		}
		if _, err := fmt.Fprintf(w, "%d %s %s %s %s\n",
			t.TS,
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			strconv.FormatFloat(t.Size, 'f', -1, 64),
			side, liq,
		); err != nil {
			return appended, fmt.Errorf("gapfix: merge write %s: %w", relativePath, err)
		}
		appended++
	}
	if err := w.Flush(); err != nil {
		return appended, fmt.Errorf("gapfix: merge flush %s: %w", relativePath, err)
	}
	return appended, nil
}

func readDedupeKeys(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	keys := map[string]bool{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var res trade.ParseResult
	for scanner.Scan() {
		line := scanner.Bytes()
		if !trade.Parse(line, trade.DefaultNotionalCeiling, &res) {
			continue
		}
		side := adapters.SideBuy
		if res.Trade.Side == trade.SideSell {
			side = adapters.SideSell
		}
		keys[dedupeKey(res.Trade.TS, res.Trade.Price, res.Trade.Size, side)] = true
	}
	return keys, scanner.Err()
}

func dedupeKey(ts int64, price, size float64, side adapters.Side) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(ts, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(price, 'f', -1, 64))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(size, 'f', -1, 64))
	b.WriteByte('|')
	if side == adapters.SideBuy {
		b.WriteByte('1')
	} else {
		b.WriteByte('0')
	}
	return b.String()
}
