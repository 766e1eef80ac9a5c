package catalog

import (
	"database/sql"
	"fmt"
)

// Root is a catalog root row.
type Root struct {
	ID            int64
	Path          string
	LastIndexedAt int64
	HasIndexed    bool
}

// ListRoots returns every known root, for driving RootPathByID lookups and
// the registry command's per-root report.
func (d *DB) ListRoots() ([]Root, error) {
	rows, err := d.sql.Query(`SELECT id, path, last_indexed_at FROM roots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list roots: %w", err)
	}
	defer rows.Close()

	var out []Root
	for rows.Next() {
		var r Root
		var lastIndexed sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Path, &lastIndexed); err != nil {
			return nil, fmt.Errorf("catalog: scan root: %w", err)
		}
		if lastIndexed.Valid {
			r.LastIndexedAt = lastIndexed.Int64
			r.HasIndexed = true
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarizes catalog contents for the registry CLI command.
type Stats struct {
	RootCount          int
	FileCount          int
	ProcessedFileCount int
	FailedFileCount    int
	EventCount         int
	GapFixByStatus     map[string]int
}

// Summarize computes a Stats snapshot over the whole catalog.
func (d *DB) Summarize() (Stats, error) {
	var s Stats
	s.GapFixByStatus = map[string]int{}

	if err := d.sql.QueryRow(`SELECT COUNT(*) FROM roots`).Scan(&s.RootCount); err != nil {
		return Stats{}, fmt.Errorf("catalog: count roots: %w", err)
	}
	if err := d.sql.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&s.FileCount); err != nil {
		return Stats{}, fmt.Errorf("catalog: count files: %w", err)
	}
	if err := d.sql.QueryRow(`SELECT COUNT(*) FROM files WHERE processed_at IS NOT NULL`).Scan(&s.ProcessedFileCount); err != nil {
		return Stats{}, fmt.Errorf("catalog: count processed files: %w", err)
	}
	if err := d.sql.QueryRow(`SELECT COUNT(*) FROM files WHERE failed = 1`).Scan(&s.FailedFileCount); err != nil {
		return Stats{}, fmt.Errorf("catalog: count failed files: %w", err)
	}
	if err := d.sql.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&s.EventCount); err != nil {
		return Stats{}, fmt.Errorf("catalog: count events: %w", err)
	}

	rows, err := d.sql.Query(`SELECT COALESCE(gap_fix_status, ''), COUNT(*) FROM events WHERE type = 'gap' GROUP BY gap_fix_status`)
	if err != nil {
		return Stats{}, fmt.Errorf("catalog: gap-fix breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("catalog: scan gap-fix breakdown: %w", err)
		}
		if status == "" {
			status = "new"
		}
		s.GapFixByStatus[status] = count
	}
	return s, rows.Err()
}
