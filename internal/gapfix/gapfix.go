// Package gapfix drives recovery of gap events: it extracts a time window
// from the event's line range, dispatches the exchange's adapter, merges
// recovered trades back into the logical store, and advances the queue
// row's status. Grounded on the teacher's daemon.go drive-loop-over-queue
// shape (sync/daemon.go), generalized from a filesystem event queue to a
// catalog gap-fix queue.
package gapfix

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"github.com/tucsky/aggr-ingest/internal/adapters"
	"github.com/tucsky/aggr-ingest/internal/catalog"
	"github.com/tucsky/aggr-ingest/internal/trade"
)

// Options configures a gap-fix pass.
type Options struct {
	Filter       catalog.GapEventFilter
	RootPathByID map[int64]string
	DryRun       bool
}

// Result summarizes one gap-fix pass.
type Result struct {
	Attempted       int
	Fetched         int
	Merged          int
	MissingAdapter  int
	AdapterErrors   int
}

// Run processes queue rows matching opts.Filter.
func Run(db *catalog.DB, registry *adapters.Registry, fetch adapters.Fetcher, merge func(rootPath, relativePath, exchange, symbol string, trades []adapters.RecoveredTrade) (int, error), opts Options, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.Default()
	}

	rows, err := db.IterateGapEventsForFix(opts.Filter)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, row := range rows {
		result.Attempted++

		window, err := extractWindow(opts.RootPathByID[row.RootID], row)
		if err != nil {
			log.Warn("gapfix: window extraction failed", "event", row.ID, "err", err)
			if !opts.DryRun {
				markStatus(db, row.ID, catalog.FailedStatus("window"))
			}
			continue
		}

		adapter, ok := registry.Get(row.Exchange)
		if !ok {
			result.MissingAdapter++
			if !opts.DryRun {
				markStatus(db, row.ID, catalog.FailedStatus("missing_adapter"))
			}
			continue
		}

		recovered, err := adapter.Recover(fetch, row.Symbol, []adapters.Window{window})
		if err != nil {
			result.AdapterErrors++
			if !opts.DryRun {
				markStatus(db, row.ID, catalog.FailedStatus("adapter_error"))
			}
			log.Warn("gapfix: adapter error", "event", row.ID, "exchange", row.Exchange, "err", err)
			continue
		}

		if len(recovered) == 0 {
			result.Fetched++
			if !opts.DryRun {
				markStatus(db, row.ID, catalog.GapFixStatusFetched)
			}
			continue
		}

		result.Fetched++
		if opts.DryRun {
			continue
		}

		n, err := merge(opts.RootPathByID[row.RootID], row.RelativePath, row.Exchange, row.Symbol, recovered)
		if err != nil {
			markStatus(db, row.ID, catalog.FailedStatus("merge"))
			log.Warn("gapfix: merge error", "event", row.ID, "err", err)
			continue
		}
		result.Merged += n

		if err := db.UpdateGapFixStatus(row.ID, catalog.GapFixStatusMerged, true); err != nil {
			return result, fmt.Errorf("gapfix: update status %d: %w", row.ID, err)
		}
	}

	return result, nil
}

func markStatus(db *catalog.DB, eventID int64, status catalog.GapFixStatus) {
	_ = db.UpdateGapFixStatus(eventID, status, true)
}

// extractWindow converts an event's line range into a time window by
// scanning the file's non-liquidation trade lines: the last valid trade
// strictly before StartLine anchors FromTs, the first valid trade at or
// after EndLine anchors ToTs. Liquidation rows never anchor a window.
func extractWindow(rootPath string, row catalog.Event) (adapters.Window, error) {
	f, err := os.Open(rootPath + "/" + row.RelativePath)
	if err != nil {
		return adapters.Window{}, fmt.Errorf("open %s: %w", row.RelativePath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var lineNo int64
	var fromTs, toTs int64
	haveFrom, haveTo := false, false
	var res trade.ParseResult

	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()

		if !trade.Parse(line, trade.DefaultNotionalCeiling, &res) || res.Trade.Liquidation {
			continue
		}

		if lineNo < row.StartLine {
			fromTs = res.Trade.TS
			haveFrom = true
		}
		if lineNo >= row.EndLine && !haveTo {
			toTs = res.Trade.TS
			haveTo = true
		}
		if haveFrom && haveTo {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return adapters.Window{}, fmt.Errorf("scan %s: %w", row.RelativePath, err)
	}
	if !haveFrom || !haveTo {
		return adapters.Window{}, fmt.Errorf("could not anchor window for event %d", row.ID)
	}

	return adapters.Window{FromTs: fromTs, ToTs: toTs}, nil
}
