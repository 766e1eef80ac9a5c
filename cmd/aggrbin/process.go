package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tucsky/aggr-ingest/internal/catalog"
	"github.com/tucsky/aggr-ingest/internal/config"
	"github.com/tucsky/aggr-ingest/internal/logging"
	"github.com/tucsky/aggr-ingest/internal/process"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Stream catalog files through the trade parser and write gap events and candle files",
	RunE:  runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	timeframeMs, err := config.TimeframeMs(cfg.Timeframe)
	if err != nil {
		return fmt.Errorf("aggrbin process: %w", err)
	}

	roots, err := db.ListRoots()
	if err != nil {
		return fmt.Errorf("aggrbin process: %w", err)
	}
	rootPathByID := make(map[int64]string, len(roots))
	for _, r := range roots {
		rootPathByID[r.ID] = r.Path
	}

	log := logging.Sub("process")
	result, err := process.Run(realFs, db, process.Options{
		Filter: catalog.FileFilter{
			Collector: cfg.Collector,
			Exchange:  cfg.Exchange,
			Symbol:    cfg.Symbol,
			Force:     cfg.Force,
		},
		Timeframe:            cfg.Timeframe,
		TimeframeMs:          timeframeMs,
		FlushIntervalSeconds: cfg.FlushIntervalSeconds,
		OutputDir:            cfg.OutDir,
		Sparse:               cfg.SparseOutput,
		Workers:              cfg.Workers,
		RootPathByID:         rootPathByID,
		NowMs:                func() int64 { return time.Now().UnixMilli() },
	}, log)
	if err != nil {
		return fmt.Errorf("aggrbin process: %w", err)
	}

	log.Info("process complete",
		"files_processed", result.FilesProcessed,
		"files_failed", result.FilesFailed,
		"trades_accepted", result.TradesAccepted,
		"trades_rejected", result.TradesRejected,
	)
	return nil
}
