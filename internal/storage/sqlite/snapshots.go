package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"sprintboard/internal/models"
)

// ColumnCounts returns the current occupancy of every column on a board.
func (s *Store) ColumnCounts(ctx context.Context, boardID int64) ([]models.ColumnCount, error) {
	if _, err := getBoard(ctx, s.db, boardID); err != nil {
		return nil, err
	}
	return columnCounts(ctx, s.db, boardID)
}

func columnCounts(ctx context.Context, q querier, boardID int64) ([]models.ColumnCount, error) {
	rows, err := q.QueryContext(ctx, `SELECT c.id, c.name, COUNT(k.id)
        FROM columns c LEFT JOIN cards k ON k.column_id = c.id
        WHERE c.board_id = ?
        GROUP BY c.id, c.name
        ORDER BY c.position, c.id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("count column cards: %w", err)
	}
	defer rows.Close()

	counts := []models.ColumnCount{}
	for rows.Next() {
		var cc models.ColumnCount
		if err := rows.Scan(&cc.ColumnID, &cc.ColumnName, &cc.CardCount); err != nil {
			return nil, fmt.Errorf("scan column count: %w", err)
		}
		counts = append(counts, cc)
	}
	return counts, rows.Err()
}

// CaptureSnapshot records the column occupancy of a board for day
// (YYYY-MM-DD). A day that already has a snapshot is left untouched and
// captured reports false.
func (s *Store) CaptureSnapshot(ctx context.Context, boardID int64, day string) (captured bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getBoard(ctx, tx, boardID); err != nil {
			return err
		}
		counts, err := columnCounts(ctx, tx, boardID)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(counts)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO flow_snapshots(board_id, day, captured_at, columns) VALUES(?, ?, ?, ?)`,
			boardID, day, formatTime(s.Now()), string(payload))
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		n, _ := res.RowsAffected()
		captured = n > 0
		return nil
	})
	return captured, err
}

// SnapshotsBetween returns the stored snapshots of a board for days in
// [fromDay, toDay], oldest first.
func (s *Store) SnapshotsBetween(ctx context.Context, boardID int64, fromDay, toDay string) ([]models.StoredSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT board_id, day, captured_at, columns FROM flow_snapshots
        WHERE board_id = ? AND day >= ? AND day <= ? ORDER BY day ASC`, boardID, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.StoredSnapshot
	for rows.Next() {
		var (
			snap          models.StoredSnapshot
			captured, raw string
		)
		if err := rows.Scan(&snap.BoardID, &snap.Day, &captured, &raw); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.CapturedAt, err = parseTime(captured); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &snap.Columns); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", snap.Day, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
