package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sprintboard/internal/models"
)

type defaultColumn struct {
	name      string
	isBacklog bool
	isDone    bool
}

// defaultColumns is provisioned on every new board. The backlog column is
// the only place a backlog column is ever created.
var defaultColumns = []defaultColumn{
	{name: "Backlog", isBacklog: true},
	{name: "To Do"},
	{name: "In Progress"},
	{name: "Done", isDone: true},
}

// CreateBoard persists a board together with its default columns.
func (s *Store) CreateBoard(ctx context.Context, name string) (models.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Board{}, models.Validationf("board name must not be empty")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO boards(name, created_at) VALUES(?, ?)`, name, formatTime(s.Now()))
		if err != nil {
			return fmt.Errorf("insert board: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("board id: %w", err)
		}
		for pos, col := range defaultColumns {
			if _, err := tx.ExecContext(ctx, `INSERT INTO columns(board_id, name, position, is_backlog, is_done) VALUES(?, ?, ?, ?, ?)`,
				id, col.name, pos, col.isBacklog, col.isDone); err != nil {
				return fmt.Errorf("insert column %q: %w", col.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Board{}, err
	}

	s.logger.Info("board created", zap.Int64("board_id", id), zap.String("name", name))
	return s.GetBoard(ctx, id)
}

// GetBoard fetches a single board with its columns.
func (s *Store) GetBoard(ctx context.Context, id int64) (models.Board, error) {
	b, err := getBoard(ctx, s.db, id)
	if err != nil {
		return models.Board{}, err
	}
	cols, err := listColumns(ctx, s.db, id)
	if err != nil {
		return models.Board{}, err
	}
	b.Columns = cols
	return b, nil
}

func getBoard(ctx context.Context, q querier, id int64) (models.Board, error) {
	var (
		b       models.Board
		created string
	)
	err := q.QueryRowContext(ctx, `SELECT id, name, revision, created_at FROM boards WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.Revision, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Board{}, models.NotFoundf("board %d not found", id)
	}
	if err != nil {
		return models.Board{}, fmt.Errorf("get board: %w", err)
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return models.Board{}, err
	}
	return b, nil
}

// ListBoards retrieves all boards ordered by creation.
func (s *Store) ListBoards(ctx context.Context) ([]models.Board, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, revision, created_at FROM boards ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	boards := []models.Board{}
	for rows.Next() {
		var (
			b       models.Board
			created string
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Revision, &created); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		if b.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// DeleteBoard removes a board along with its columns, cards, sprints and snapshots.
func (s *Store) DeleteBoard(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.NotFoundf("board %d not found", id)
	}
	s.logger.Info("board deleted", zap.Int64("board_id", id))
	return nil
}

// BoardRevision returns the mutation counter of a board.
func (s *Store) BoardRevision(ctx context.Context, id int64) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM boards WHERE id = ?`, id).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.NotFoundf("board %d not found", id)
	}
	if err != nil {
		return 0, fmt.Errorf("board revision: %w", err)
	}
	return rev, nil
}

const columnFields = `id, board_id, name, position, is_backlog, is_done`

func scanColumn(row rowScanner) (models.Column, error) {
	var c models.Column
	if err := row.Scan(&c.ID, &c.BoardID, &c.Name, &c.Position, &c.IsBacklog, &c.IsDone); err != nil {
		return models.Column{}, err
	}
	return c, nil
}

// ListColumns returns the columns of a board in display order.
func (s *Store) ListColumns(ctx context.Context, boardID int64) ([]models.Column, error) {
	if _, err := getBoard(ctx, s.db, boardID); err != nil {
		return nil, err
	}
	return listColumns(ctx, s.db, boardID)
}

func listColumns(ctx context.Context, q querier, boardID int64) ([]models.Column, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+columnFields+` FROM columns WHERE board_id = ? ORDER BY position, id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var cols []models.Column
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// GetColumn fetches a column by id.
func (s *Store) GetColumn(ctx context.Context, id int64) (models.Column, error) {
	return getColumn(ctx, s.db, id)
}

func getColumn(ctx context.Context, q querier, id int64) (models.Column, error) {
	c, err := scanColumn(q.QueryRowContext(ctx, `SELECT `+columnFields+` FROM columns WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Column{}, models.NotFoundf("column %d not found", id)
	}
	if err != nil {
		return models.Column{}, fmt.Errorf("get column: %w", err)
	}
	return c, nil
}

func backlogColumn(ctx context.Context, q querier, boardID int64) (models.Column, error) {
	c, err := scanColumn(q.QueryRowContext(ctx, `SELECT `+columnFields+` FROM columns WHERE board_id = ? AND is_backlog = 1`, boardID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Column{}, models.NotFoundf("board %d has no backlog column", boardID)
	}
	if err != nil {
		return models.Column{}, fmt.Errorf("get backlog column: %w", err)
	}
	return c, nil
}

// CreateColumn appends a column to a board. Backlog columns are never created
// here; at most one column per board may be the done column.
func (s *Store) CreateColumn(ctx context.Context, boardID int64, name string, isDone bool) (models.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Column{}, models.Validationf("column name must not be empty")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getBoard(ctx, tx, boardID); err != nil {
			return err
		}
		var pos sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(position) FROM columns WHERE board_id = ?`, boardID).Scan(&pos); err != nil {
			return fmt.Errorf("select column position: %w", err)
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO columns(board_id, name, position, is_done) VALUES(?, ?, ?, ?)`,
			boardID, name, pos.Int64+1, isDone)
		if isUniqueViolation(err) {
			return models.Validationf("board %d already has a done column", boardID)
		}
		if err != nil {
			return fmt.Errorf("insert column: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("column id: %w", err)
		}
		return bumpRevision(ctx, tx, boardID)
	})
	if err != nil {
		return models.Column{}, err
	}
	return s.GetColumn(ctx, id)
}

// RenameColumn changes the display name of a column.
func (s *Store) RenameColumn(ctx context.Context, id int64, name string) (models.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Column{}, models.Validationf("column name must not be empty")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		col, err := getColumn(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE columns SET name = ? WHERE id = ?`, name, id); err != nil {
			return fmt.Errorf("rename column: %w", err)
		}
		return bumpRevision(ctx, tx, col.BoardID)
	})
	if err != nil {
		return models.Column{}, err
	}
	return s.GetColumn(ctx, id)
}

// DeleteColumn removes a column after checkColumnDeletable approves it. Cards
// still in the column move to the backlog column first, which applies the
// backlog policy and clears completed_at.
func (s *Store) DeleteColumn(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		col, err := getColumn(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkColumnDeletable(col); err != nil {
			return err
		}
		moved, err := s.evacuateColumn(ctx, tx, col)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM columns WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete column: %w", err)
		}
		s.logger.Info("column deleted", zap.Int64("column_id", id), zap.Int64("board_id", col.BoardID),
			zap.Int("cards_moved", moved))
		return bumpRevision(ctx, tx, col.BoardID)
	})
}

// checkColumnDeletable is the single guard for column deletion.
func checkColumnDeletable(col models.Column) error {
	if col.IsBacklog {
		return models.Validationf("column %q is the board's backlog column and cannot be deleted", col.Name)
	}
	return nil
}

// evacuateColumn moves every card of col to the end of the board's backlog
// column, keeping their relative order.
func (s *Store) evacuateColumn(ctx context.Context, tx *sql.Tx, col models.Column) (int, error) {
	cards, err := queryCards(ctx, tx, `column_id = ?`, col.ID)
	if err != nil {
		return 0, err
	}
	if len(cards) == 0 {
		return 0, nil
	}
	backlog, err := backlogColumn(ctx, tx, col.BoardID)
	if err != nil {
		return 0, err
	}
	now := formatTime(s.Now())
	for _, card := range cards {
		pos, err := nextPosition(ctx, tx, backlog.ID)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE cards SET column_id = ?, position = ?, completed_at = NULL, updated_at = ? WHERE id = ?`,
			backlog.ID, pos, now, card.ID); err != nil {
			return 0, fmt.Errorf("move card to backlog: %w", err)
		}
		if err := s.clearMembershipsOnBacklogEntry(ctx, tx, card); err != nil {
			return 0, err
		}
	}
	return len(cards), nil
}
