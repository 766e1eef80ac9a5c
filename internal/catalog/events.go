package catalog

import (
	"database/sql"
	"fmt"
)

// InsertEvents appends the given coalesced event rows for one file in a
// single transaction. Gap events are inserted with gap_fix_status left
// NULL (GapFixStatusNew); other event types carry no fix status.
func (d *DB) InsertEvents(rootID int64, relativePath string, evs []Event) error {
	if len(evs) == 0 {
		return nil
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("catalog: insert events begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO events (root_id, relative_path, collector, exchange, symbol, type, start_line, end_line, ts, gap_ms, gap_miss, gap_end_ts, gap_fix_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("catalog: prepare insert event: %w", err)
	}
	defer stmt.Close()

	for _, e := range evs {
		var status any // NULL for every row: GapFixStatusNew for gap events
		if _, err := stmt.Exec(rootID, relativePath, string(e.Collector), nullableString(e.Exchange), nullableString(e.Symbol), e.Type, e.StartLine, e.EndLine, e.TS, e.GapMs, e.GapMiss, e.GapEndTS, status); err != nil {
			return fmt.Errorf("catalog: insert event: %w", err)
		}
	}

	return tx.Commit()
}

// GapEventFilter narrows IterateGapEventsForFix.
type GapEventFilter struct {
	Collector     string
	Exchange      string
	Symbol        string
	RetryStatuses []string
	Limit         int
	AfterID       int64
	// EventID, when non-zero, restricts to that single row by id,
	// ignoring the gap-fix status filter entirely (for --id reruns of a
	// specific event regardless of its current status).
	EventID int64
}

// IterateGapEventsForFix returns gap-fix queue rows (gap-typed events)
// matching filter, in ascending (symbol, ts, id) order (§3.3).
func (d *DB) IterateGapEventsForFix(filter GapEventFilter) ([]Event, error) {
	query := `
		SELECT id, root_id, relative_path, collector, exchange, symbol, type, start_line, end_line, ts, gap_ms, gap_miss, gap_end_ts, gap_fix_status, gap_fix_attempts
		FROM events
		WHERE type = 'gap'
	`
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
	if filter.EventID > 0 {
		query += ` AND id = ?`
		args = append(args, filter.EventID)
	} else if len(filter.RetryStatuses) > 0 {
		placeholders := ""
		for i, st := range filter.RetryStatuses {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, st)
		}
		query += fmt.Sprintf(` AND COALESCE(gap_fix_status, '') IN (%s)`, placeholders)
	} else {
		query += ` AND COALESCE(gap_fix_status, '') = ''`
	}
	if filter.AfterID > 0 {
		query += ` AND id > ?`
		args = append(args, filter.AfterID)
	}
	query += ` ORDER BY symbol, ts, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := d.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: iterate gap events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var exchange, symbol, status sql.NullString
		if err := rows.Scan(&e.ID, &e.RootID, &e.RelativePath, &e.Collector, &exchange, &symbol, &e.Type, &e.StartLine, &e.EndLine, &e.TS, &e.GapMs, &e.GapMiss, &e.GapEndTS, &status, &e.GapFixAttempts); err != nil {
			return nil, fmt.Errorf("catalog: scan gap event: %w", err)
		}
		e.Exchange = exchange.String
		e.Symbol = symbol.String
		e.GapFixStatus = GapFixStatus(status.String)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateGapFixStatus sets a queue entry's status. The new status is written
// as given: it is not checked against the row's current status, so this
// method does not itself keep transitions forward-only.
func (d *DB) UpdateGapFixStatus(eventID int64, status GapFixStatus, incrementAttempt bool) error {
	query := `UPDATE events SET gap_fix_status = ?`
	args := []any{string(status)}
	if incrementAttempt {
		query += `, gap_fix_attempts = gap_fix_attempts + 1`
	}
	query += ` WHERE id = ?`
	args = append(args, eventID)

	if _, err := d.sql.Exec(query, args...); err != nil {
		return fmt.Errorf("catalog: update gap fix status: %w", err)
	}
	return nil
}
