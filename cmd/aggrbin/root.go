package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tucsky/aggr-ingest/internal/logging"
)

var (
	flagConfig    string
	flagNoConfig  bool
	flagLogDir    string
	flagDebug     bool

	flagRoot      string
	flagDB        string
	flagBatch     int
	flagInclude   []string
	flagCollector string
	flagExchange  string
	flagSymbol    string
	flagOutdir    string
	flagForce     bool
	flagTimeframe string
	flagFlush     int
	flagLimit     int
	flagRetry     []string
	flagDryRun    bool
	flagID        int64
	flagSparse    bool
)

var rootCmd = &cobra.Command{
	Use:           "aggrbin",
	Short:         "aggrbin - catalogs, processes and repairs exchange trade logs",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(flagLogDir, flagDebug)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to a JSON config file")
	pf.BoolVar(&flagNoConfig, "no-config", false, "ignore any config file, use flags and defaults only")
	pf.StringVar(&flagLogDir, "log-dir", "", "directory for rotating log files (console logging is always on)")
	pf.BoolVar(&flagDebug, "debug", false, "enable debug-level console logging")

	pf.StringVar(&flagRoot, "root", "", "filesystem root to scan")
	pf.StringVar(&flagDB, "db", "", "path to the catalog SQLite database")
	pf.IntVar(&flagBatch, "batch", 0, "catalog upsert batch size")
	pf.StringArrayVar(&flagInclude, "include", nil, "root-relative path prefix to restrict the walk to (repeatable)")
	pf.StringVar(&flagCollector, "collector", "", "restrict to a collector (RAM|PI)")
	pf.StringVar(&flagExchange, "exchange", "", "restrict to an exchange")
	pf.StringVar(&flagSymbol, "symbol", "", "restrict to a symbol")
	pf.StringVar(&flagOutdir, "outdir", "", "directory for written candle files")
	pf.BoolVar(&flagForce, "force", false, "reprocess files already marked processed")
	pf.StringVar(&flagTimeframe, "timeframe", "", "candle timeframe, e.g. 1m, 1h")
	pf.IntVar(&flagFlush, "flush-interval", 0, "seconds between periodic flushes")
	pf.IntVar(&flagLimit, "limit", 0, "maximum queue rows to process")
	pf.StringArrayVar(&flagRetry, "retry-status", nil, "comma-separated gap-fix statuses to retry (repeatable)")
	pf.BoolVar(&flagDryRun, "dry-run", false, "fetch and report without merging or advancing queue status")
	pf.Int64Var(&flagID, "id", 0, "restrict fixgaps to a single event id")
	pf.BoolVar(&flagSparse, "sparse-output", false, "force sparse candle file layout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
