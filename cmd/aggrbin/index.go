package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tucsky/aggr-ingest/internal/indexer"
	"github.com/tucsky/aggr-ingest/internal/logging"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Walk --root, classify every file, and upsert results into the catalog",
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Root == "" {
		return fmt.Errorf("aggrbin index: --root is required")
	}

	db, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log := logging.Sub("index")
	result, err := indexer.Index(realFs, cfg.Root, db, indexer.Options{
		BatchSize:       cfg.BatchSize,
		IncludePrefixes: cfg.IncludePaths,
	}, log)
	if err != nil {
		return fmt.Errorf("aggrbin index: %w", err)
	}

	log.Info("index complete",
		"seen", result.Seen,
		"inserted", result.Inserted,
		"existing", result.Existing,
		"conflicts", result.Conflicts,
		"skipped", result.Skipped,
	)
	return nil
}
