package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sprintboard/internal/models"
)

const sprintFields = `id, board_id, name, goal, start_date, end_date, status, created_at, started_at, closed_at`

// SprintKey is the composite ordering key of closed sprints.
type SprintKey struct {
	ClosedAt time.Time
	ID       int64
}

// NewSprint holds the fields of a sprint about to be created.
type NewSprint struct {
	BoardID   int64
	Name      string
	Goal      *string
	StartDate *time.Time
	EndDate   *time.Time
}

func scanSprint(row rowScanner) (models.Sprint, error) {
	var (
		sp                                models.Sprint
		goal, start, end, started, closed sql.NullString
		created, status                   string
	)
	if err := row.Scan(&sp.ID, &sp.BoardID, &sp.Name, &goal, &start, &end, &status, &created, &started, &closed); err != nil {
		return models.Sprint{}, err
	}
	sp.Status = models.SprintStatus(status)
	if goal.Valid {
		g := goal.String
		sp.Goal = &g
	}

	var err error
	if sp.CreatedAt, err = parseTime(created); err != nil {
		return models.Sprint{}, err
	}
	for _, f := range []struct {
		raw sql.NullString
		dst **time.Time
	}{
		{start, &sp.StartDate},
		{end, &sp.EndDate},
		{started, &sp.StartedAt},
		{closed, &sp.ClosedAt},
	} {
		if *f.dst, err = parseNullTime(f.raw); err != nil {
			return models.Sprint{}, err
		}
	}
	return sp, nil
}

func scanSprints(rows *sql.Rows) ([]models.Sprint, error) {
	defer rows.Close()
	sprints := []models.Sprint{}
	for rows.Next() {
		sp, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, sp)
	}
	return sprints, rows.Err()
}

// CreateSprint inserts a sprint in the future state.
func (s *Store) CreateSprint(ctx context.Context, in NewSprint) (models.Sprint, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getBoard(ctx, tx, in.BoardID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO sprints(board_id, name, goal, start_date, end_date, status, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)`,
			in.BoardID, in.Name, nullableString(in.Goal), nullableTime(in.StartDate), nullableTime(in.EndDate), models.SprintFuture, formatTime(s.Now()))
		if err != nil {
			return fmt.Errorf("insert sprint: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("sprint id: %w", err)
		}
		return bumpRevision(ctx, tx, in.BoardID)
	})
	if err != nil {
		return models.Sprint{}, err
	}
	s.logger.Info("sprint created", zap.Int64("sprint_id", id), zap.Int64("board_id", in.BoardID))
	return s.GetSprint(ctx, id)
}

// GetSprint fetches a sprint by id.
func (s *Store) GetSprint(ctx context.Context, id int64) (models.Sprint, error) {
	return getSprint(ctx, s.db, id)
}

func getSprint(ctx context.Context, q querier, id int64) (models.Sprint, error) {
	sp, err := scanSprint(q.QueryRowContext(ctx, `SELECT `+sprintFields+` FROM sprints WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sprint{}, models.NotFoundf("sprint %d not found", id)
	}
	if err != nil {
		return models.Sprint{}, fmt.Errorf("get sprint: %w", err)
	}
	return sp, nil
}

// StartSprint moves a future sprint to active. The active-sprint check and the
// status flip share one immediate transaction, and the partial unique index
// on active sprints rejects anything that slips past the check.
func (s *Store) StartSprint(ctx context.Context, id int64) (models.Sprint, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sp, err := getSprint(ctx, tx, id)
		if err != nil {
			return err
		}
		if sp.Status != models.SprintFuture {
			return models.Statef("sprint %d is %s; only future sprints can be started", id, sp.Status)
		}

		var activeID int64
		err = tx.QueryRowContext(ctx, `SELECT id FROM sprints WHERE board_id = ? AND status = ? LIMIT 1`, sp.BoardID, models.SprintActive).Scan(&activeID)
		switch {
		case err == nil:
			return models.Conflictf("board %d already has active sprint %d", sp.BoardID, activeID)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check active sprint: %w", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE sprints SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
			models.SprintActive, formatTime(s.Now()), id, models.SprintFuture)
		if isUniqueViolation(err) {
			return models.Conflictf("board %d already has an active sprint", sp.BoardID)
		}
		if err != nil {
			return fmt.Errorf("start sprint: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.Statef("sprint %d is no longer in the future state", id)
		}
		return bumpRevision(ctx, tx, sp.BoardID)
	})
	if err != nil {
		return models.Sprint{}, err
	}
	s.logger.Info("sprint started", zap.Int64("sprint_id", id))
	return s.GetSprint(ctx, id)
}

// CompleteSprint closes an active sprint. Card memberships are left intact.
func (s *Store) CompleteSprint(ctx context.Context, id int64) (models.Sprint, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sp, err := getSprint(ctx, tx, id)
		if err != nil {
			return err
		}
		if sp.Status != models.SprintActive {
			return models.Statef("sprint %d is %s; only active sprints can be completed", id, sp.Status)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sprints SET status = ?, closed_at = ? WHERE id = ?`,
			models.SprintClosed, formatTime(s.Now()), id); err != nil {
			return fmt.Errorf("complete sprint: %w", err)
		}
		return bumpRevision(ctx, tx, sp.BoardID)
	})
	if err != nil {
		return models.Sprint{}, err
	}
	s.logger.Info("sprint completed", zap.Int64("sprint_id", id))
	return s.GetSprint(ctx, id)
}

// RenameSprint overwrites the sprint name; last write wins.
func (s *Store) RenameSprint(ctx context.Context, id int64, name string) (models.Sprint, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sp, err := getSprint(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sprints SET name = ? WHERE id = ?`, name, id); err != nil {
			return fmt.Errorf("rename sprint: %w", err)
		}
		return bumpRevision(ctx, tx, sp.BoardID)
	})
	if err != nil {
		return models.Sprint{}, err
	}
	return s.GetSprint(ctx, id)
}

// DeleteSprint detaches the sprint from every card and then removes it.
// Active sprints must be completed first.
func (s *Store) DeleteSprint(ctx context.Context, id int64) error {
	var detached int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sp, err := getSprint(ctx, tx, id)
		if err != nil {
			return err
		}
		if sp.Status == models.SprintActive {
			return models.Statef("sprint %d is active; complete it before deleting", id)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM card_sprints WHERE sprint_id = ?`, id)
		if err != nil {
			return fmt.Errorf("detach sprint cards: %w", err)
		}
		detached, _ = res.RowsAffected()
		if _, err := tx.ExecContext(ctx, `DELETE FROM sprints WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete sprint: %w", err)
		}
		return bumpRevision(ctx, tx, sp.BoardID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("sprint deleted", zap.Int64("sprint_id", id), zap.Int64("cards_detached", detached))
	return nil
}

// ActiveSprint returns the active sprint of a board, or nil when there is none.
func (s *Store) ActiveSprint(ctx context.Context, boardID int64) (*models.Sprint, error) {
	sp, err := scanSprint(s.db.QueryRowContext(ctx, `SELECT `+sprintFields+` FROM sprints WHERE board_id = ? AND status = ?`, boardID, models.SprintActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active sprint: %w", err)
	}
	return &sp, nil
}

// UpcomingSprints lists future sprints by start date, undated ones last in
// creation order.
func (s *Store) UpcomingSprints(ctx context.Context, boardID int64) ([]models.Sprint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sprintFields+` FROM sprints
        WHERE board_id = ? AND status = ?
        ORDER BY start_date IS NULL, start_date ASC, id ASC`, boardID, models.SprintFuture)
	if err != nil {
		return nil, fmt.Errorf("list upcoming sprints: %w", err)
	}
	return scanSprints(rows)
}

// ClosedSprintsAfter returns up to limit closed sprints ordered by
// (closed_at DESC, id DESC), starting strictly after the given key.
func (s *Store) ClosedSprintsAfter(ctx context.Context, boardID int64, after *SprintKey, limit int) ([]models.Sprint, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		rows, err = s.db.QueryContext(ctx, `SELECT `+sprintFields+` FROM sprints
            WHERE board_id = ? AND status = ?
            ORDER BY closed_at DESC, id DESC LIMIT ?`, boardID, models.SprintClosed, limit)
	} else {
		closedAt := formatTime(after.ClosedAt)
		rows, err = s.db.QueryContext(ctx, `SELECT `+sprintFields+` FROM sprints
            WHERE board_id = ? AND status = ? AND (closed_at < ? OR (closed_at = ? AND id < ?))
            ORDER BY closed_at DESC, id DESC LIMIT ?`, boardID, models.SprintClosed, closedAt, closedAt, after.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list closed sprints: %w", err)
	}
	return scanSprints(rows)
}
