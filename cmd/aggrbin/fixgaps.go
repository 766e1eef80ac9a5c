package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tucsky/aggr-ingest/internal/adapters"
	"github.com/tucsky/aggr-ingest/internal/catalog"
	"github.com/tucsky/aggr-ingest/internal/gapfix"
	"github.com/tucsky/aggr-ingest/internal/httpclient"
	"github.com/tucsky/aggr-ingest/internal/logging"
)

var fixgapsCmd = &cobra.Command{
	Use:   "fixgaps",
	Short: "Recover missing trades for queued gap events from per-exchange archives",
	RunE:  runFixgaps,
}

func init() {
	rootCmd.AddCommand(fixgapsCmd)
}

func runFixgaps(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	roots, err := db.ListRoots()
	if err != nil {
		return fmt.Errorf("aggrbin fixgaps: %w", err)
	}
	rootPathByID := make(map[int64]string, len(roots))
	for _, r := range roots {
		rootPathByID[r.ID] = r.Path
	}

	client := httpclient.New(httpclient.DefaultPolicy)

	filter := catalog.GapEventFilter{
		Collector:     cfg.Collector,
		Exchange:      cfg.Exchange,
		Symbol:        cfg.Symbol,
		RetryStatuses: splitRetryStatuses(flagRetry),
		Limit:         flagLimit,
	}
	if flagID != 0 {
		filter.EventID = flagID
	}

	log := logging.Sub("fixgaps")
	result, err := gapfix.Run(db, defaultAdapterRegistry(), adapters.FetchViaHTTPClient(client), gapfix.AppendMerge, gapfix.Options{
		Filter:       filter,
		RootPathByID: rootPathByID,
		DryRun:       flagDryRun,
	}, log)
	if err != nil {
		return fmt.Errorf("aggrbin fixgaps: %w", err)
	}

	log.Info("fixgaps complete",
		"attempted", result.Attempted,
		"fetched", result.Fetched,
		"merged", result.Merged,
		"missing_adapter", result.MissingAdapter,
		"adapter_errors", result.AdapterErrors,
	)
	return nil
}

// defaultAdapterRegistry wires the exchange archive URL builders this
// binary knows about. Each exchange's real archive layout is implementation
// detail the adapters themselves don't need to know beyond a URL-per-day
// function, per internal/adapters's Adapter interface.
func defaultAdapterRegistry() *adapters.Registry {
	reg := adapters.NewRegistry()
	reg.Register("BINANCE", adapters.ExplicitSideAdapter{
		URLForDay: func(symbol string, dayUTC int64) string {
			day := httpDateUTC(dayUTC)
			return fmt.Sprintf("https://data.binance.vision/data/spot/daily/aggTrades/%s/%s-aggTrades-%s.zip", symbol, symbol, day)
		},
		Decompress: adapters.DecompressZipCSV,
	})
	reg.Register("KRAKEN", adapters.TickRuleAdapter{
		URLForDay: func(symbol string, dayUTC int64) string {
			day := httpDateUTC(dayUTC)
			return fmt.Sprintf("https://support.kraken.com/hc/article_attachments/trades/%s/%s.zip", symbol, day)
		},
	})
	return reg
}

func httpDateUTC(tsMs int64) string {
	return time.UnixMilli(tsMs).UTC().Format("2006-01-02")
}
