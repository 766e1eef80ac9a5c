// Package indexer drives internal/walk and internal/classify over a root
// and upserts the results into internal/catalog in batches, grounded on the
// teacher's ScanDir→Store pairing (sync/scanner.go + sync/store.go) adapted
// from a one-shot full-tree map into a streaming batched upsert.
package indexer

import (
	"log/slog"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/tucsky/aggr-ingest/internal/catalog"
	"github.com/tucsky/aggr-ingest/internal/classify"
	"github.com/tucsky/aggr-ingest/internal/walk"
)

// progressInterval is how often (in entries seen) the driver logs progress.
const progressInterval = 10_000

// Result summarizes one indexing pass.
type Result struct {
	Seen      int
	Inserted  int
	Existing  int
	Conflicts int
	Skipped   int
}

// Options configures an indexing pass.
type Options struct {
	BatchSize       int
	IncludePrefixes []string
	// RootHint seeds classify.Classify's collector hint (e.g. the root's
	// basename, "RAM" or "PI").
	RootHint string
	// NowMs is injected for deterministic conflict timestamps in tests.
	NowMs int64
}

// Index walks fsys at path, classifies every file, and upserts the results
// into db under rootPath's catalog root.
func Index(fsys afero.Fs, rootPath string, db *catalog.DB, opts Options, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.Default()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = catalog.DefaultBatchSize
	}

	rootID, err := db.EnsureRoot(rootPath)
	if err != nil {
		return Result{}, err
	}

	var result Result
	var batch []catalog.File
	var skippedLogged int

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := db.InsertFiles(batch, opts.NowMs)
		if err != nil {
			return err
		}
		result.Inserted += res.Inserted
		result.Existing += res.Existing
		result.Conflicts += res.Conflicts
		batch = batch[:0]
		return nil
	}

	walkOpts := walk.Options{IncludePrefixes: lo.Uniq(opts.IncludePrefixes)}
	err = walk.Walk(fsys, rootPath, walkOpts, func(entry walk.Entry) error {
		result.Seen++

		classified, classifyErr := classify.Classify(entry.RelPath, opts.RootHint)
		if classifyErr != nil {
			result.Skipped++
			if skippedLogged < 50 {
				log.Warn("indexer: unrecognized path", "path", entry.RelPath, "err", classifyErr)
				skippedLogged++
			}
		} else {
			batch = append(batch, catalog.File{
				RootID:       rootID,
				RelativePath: entry.RelPath,
				Collector:    catalog.Collector(classified.Collector),
				Era:          catalog.Era(classified.Era),
				Exchange:     classified.Exchange,
				Symbol:       classified.Symbol,
				StartTS:      classified.StartTS,
				HasStartTS:   true,
				Ext:          classified.Ext,
				CreatedAt:    opts.NowMs,
			})
		}

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}

		if result.Seen%progressInterval == 0 {
			log.Info("indexer: progress", "seen", result.Seen, "inserted", result.Inserted, "existing", result.Existing, "skipped", result.Skipped)
		}

		return nil
	})
	if err != nil {
		return result, err
	}

	if err := flush(); err != nil {
		return result, err
	}

	if err := db.TouchRootIndexed(rootID, opts.NowMs); err != nil {
		return result, err
	}

	log.Info("indexer: complete", "root", rootPath, "seen", result.Seen, "inserted", result.Inserted, "existing", result.Existing, "conflicts", result.Conflicts, "skipped", result.Skipped)
	return result, nil
}
