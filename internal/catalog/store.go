package catalog

import (
	"database/sql"
	"fmt"
)

// DefaultBatchSize is the default insert_files batch size.
const DefaultBatchSize = 1000

// EnsureRoot returns the id for path, creating the row if it does not yet
// exist. Idempotent: a repeated call with the same path returns the same id.
func (d *DB) EnsureRoot(path string) (int64, error) {
	res, err := d.sql.Exec(`INSERT INTO roots (path) VALUES (?) ON CONFLICT(path) DO NOTHING`, path)
	if err != nil {
		return 0, fmt.Errorf("catalog: ensure root: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("catalog: ensure root last insert id: %w", err)
		}
		return id, nil
	}

	var id int64
	if err := d.sql.QueryRow(`SELECT id FROM roots WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, fmt.Errorf("catalog: ensure root lookup: %w", err)
	}
	return id, nil
}

// TouchRootIndexed records the moment a root finished an indexing pass.
func (d *DB) TouchRootIndexed(rootID int64, tsMs int64) error {
	_, err := d.sql.Exec(`UPDATE roots SET last_indexed_at = ? WHERE id = ?`, tsMs, rootID)
	if err != nil {
		return fmt.Errorf("catalog: touch root indexed: %w", err)
	}
	return nil
}

// InsertFiles upserts a batch of files in one transaction. A second sighting
// of an existing (root_id, relative_path) key is counted as Existing; if its
// classification differs from the stored row, it is additionally counted as
// a Conflict and recorded in file_conflicts without overwriting the original.
func (d *DB) InsertFiles(batch []File, nowMs int64) (InsertResult, error) {
	var result InsertResult
	if len(batch) == 0 {
		return result, nil
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return result, fmt.Errorf("catalog: insert files begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	selectStmt, err := tx.Prepare(`
		SELECT collector, era, exchange, symbol, start_ts, ext
		FROM files WHERE root_id = ? AND relative_path = ?
	`)
	if err != nil {
		return result, fmt.Errorf("catalog: prepare select: %w", err)
	}
	defer selectStmt.Close()

	insertStmt, err := tx.Prepare(`
		INSERT INTO files (root_id, relative_path, collector, era, exchange, symbol, start_ts, ext, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(root_id, relative_path) DO NOTHING
	`)
	if err != nil {
		return result, fmt.Errorf("catalog: prepare insert: %w", err)
	}
	defer insertStmt.Close()

	conflictStmt, err := tx.Prepare(`
		INSERT INTO file_conflicts (root_id, relative_path, observed_collector, observed_era, observed_exchange, observed_symbol, observed_start_ts, observed_ext, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return result, fmt.Errorf("catalog: prepare conflict insert: %w", err)
	}
	defer conflictStmt.Close()

	for _, f := range batch {
		var stored File
		var exchange, symbol, ext sql.NullString
		var startTS sql.NullInt64
		err := selectStmt.QueryRow(f.RootID, f.RelativePath).Scan(&stored.Collector, &stored.Era, &exchange, &symbol, &startTS, &ext)
		if err == sql.ErrNoRows {
			res, insErr := insertStmt.Exec(f.RootID, f.RelativePath, string(f.Collector), string(f.Era), nullableString(f.Exchange), nullableString(f.Symbol), nullableInt64(f.StartTS, f.HasStartTS), nullableString(f.Ext), f.CreatedAt)
			if insErr != nil {
				return result, fmt.Errorf("catalog: insert file %s: %w", f.RelativePath, insErr)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				result.Inserted++
			} else {
				result.Existing++
			}
			continue
		}
		if err != nil {
			return result, fmt.Errorf("catalog: select file %s: %w", f.RelativePath, err)
		}

		result.Existing++
		stored.Exchange = exchange.String
		stored.Symbol = symbol.String
		stored.Ext = ext.String
		stored.StartTS = startTS.Int64
		stored.HasStartTS = startTS.Valid

		if differs(stored, f) {
			result.Conflicts++
			if _, err := conflictStmt.Exec(f.RootID, f.RelativePath, string(f.Collector), string(f.Era), nullableString(f.Exchange), nullableString(f.Symbol), nullableInt64(f.StartTS, f.HasStartTS), nullableString(f.Ext), nowMs); err != nil {
				return result, fmt.Errorf("catalog: record conflict %s: %w", f.RelativePath, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("catalog: insert files commit: %w", err)
	}
	return result, nil
}

func differs(stored, observed File) bool {
	return stored.Collector != observed.Collector ||
		stored.Era != observed.Era ||
		stored.Exchange != observed.Exchange ||
		stored.Symbol != observed.Symbol ||
		stored.StartTS != observed.StartTS ||
		stored.HasStartTS != observed.HasStartTS ||
		stored.Ext != observed.Ext
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(v int64, has bool) any {
	if !has {
		return nil
	}
	return v
}

// MarkProcessed records that a file was fully processed at tsMs, so a
// later run with force=false can skip it.
func (d *DB) MarkProcessed(rootID int64, relativePath string, tsMs int64) error {
	_, err := d.sql.Exec(`UPDATE files SET processed_at = ?, failed = 0, failed_reason = NULL WHERE root_id = ? AND relative_path = ?`, tsMs, rootID, relativePath)
	if err != nil {
		return fmt.Errorf("catalog: mark processed: %w", err)
	}
	return nil
}

// MarkFailed records a fatal per-file I/O error, without stopping the
// driver's iteration over the rest of the batch.
func (d *DB) MarkFailed(rootID int64, relativePath string, reason string) error {
	_, err := d.sql.Exec(`UPDATE files SET failed = 1, failed_reason = ? WHERE root_id = ? AND relative_path = ?`, reason, rootID, relativePath)
	if err != nil {
		return fmt.Errorf("catalog: mark failed: %w", err)
	}
	return nil
}

// FileFilter restricts ProcessableFiles to a subset of the catalog.
type FileFilter struct {
	Collector string
	Exchange  string
	Symbol    string
	Force     bool
}

// ProcessableFiles returns matching file rows. Unless Force is set, rows
// already processed or marked failed are excluded; with Force, processed_at
// and failed are ignored. Ordered by
// ascending start_ts (tiebreak root_id, relative_path) so that, within the
// same market, processing order follows the chronology of the data itself
// rather than filesystem path order (§5).
func (d *DB) ProcessableFiles(filter FileFilter) ([]File, error) {
	query := `SELECT root_id, relative_path, collector, era, exchange, symbol, start_ts, ext, created_at, processed_at, failed, failed_reason FROM files WHERE 1=1`
	var args []any

	if filter.Collector != "" {
		query += ` AND collector = ?`
		args = append(args, filter.Collector)
	}
	if filter.Exchange != "" {
		query += ` AND exchange = ?`
		args = append(args, filter.Exchange)
	}
	if filter.Symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, filter.Symbol)
	}
	if !filter.Force {
		query += ` AND processed_at IS NULL AND failed = 0`
	}
	query += ` ORDER BY start_ts, root_id, relative_path`

	rows, err := d.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: processable files: %w", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var f File
		var exchange, symbol, ext, failedReason sql.NullString
		var startTS, processedAt sql.NullInt64
		if err := rows.Scan(&f.RootID, &f.RelativePath, &f.Collector, &f.Era, &exchange, &symbol, &startTS, &ext, &f.CreatedAt, &processedAt, &f.Failed, &failedReason); err != nil {
			return nil, fmt.Errorf("catalog: scan processable file: %w", err)
		}
		f.Exchange = exchange.String
		f.Symbol = symbol.String
		f.Ext = ext.String
		f.StartTS = startTS.Int64
		f.HasStartTS = startTS.Valid
		f.ProcessedAt = processedAt.Int64
		f.FailedReason = failedReason.String
		out = append(out, f)
	}
	return out, rows.Err()
}
