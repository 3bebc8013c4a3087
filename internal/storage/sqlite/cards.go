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

// BacklogPolicy decides which sprint memberships a card loses when it is
// moved into the board's backlog column.
type BacklogPolicy string

const (
	ClearAllMemberships   BacklogPolicy = "clear_all"
	ClearActiveMembership BacklogPolicy = "clear_active"
	KeepMemberships       BacklogPolicy = "keep"
)

// ParseBacklogPolicy validates a configured policy name.
func ParseBacklogPolicy(raw string) (BacklogPolicy, error) {
	switch p := BacklogPolicy(strings.TrimSpace(raw)); p {
	case ClearAllMemberships, ClearActiveMembership, KeepMemberships:
		return p, nil
	case "":
		return ClearAllMemberships, nil
	default:
		return "", fmt.Errorf("unknown backlog column policy %q", raw)
	}
}

const cardFields = `id, board_id, column_id, title, position, story_points, completed_at, created_at, updated_at`

func scanCard(row rowScanner) (models.Card, error) {
	var (
		c                models.Card
		points           sql.NullInt64
		completed        sql.NullString
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.BoardID, &c.ColumnID, &c.Title, &c.Position, &points, &completed, &created, &updated); err != nil {
		return models.Card{}, err
	}
	if points.Valid {
		p := int(points.Int64)
		c.StoryPoints = &p
	}
	var err error
	if c.CompletedAt, err = parseNullTime(completed); err != nil {
		return models.Card{}, err
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return models.Card{}, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return models.Card{}, err
	}
	c.SprintIDs = []int64{}
	return c, nil
}

// queryCards loads cards and their sprint memberships. The membership query
// receives the same args as the card query.
func queryCards(ctx context.Context, q querier, where string, args ...any) ([]models.Card, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+cardFields+` FROM cards WHERE `+where+` ORDER BY column_id, position, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	var cards []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return []models.Card{}, nil
	}
	if err := attachMemberships(ctx, q, cards, where, args...); err != nil {
		return nil, err
	}
	return cards, nil
}

type membership struct {
	sprintID  int64
	startedAt sql.NullString
}

func attachMemberships(ctx context.Context, q querier, cards []models.Card, where string, args ...any) error {
	rows, err := q.QueryContext(ctx, `SELECT cs.card_id, cs.sprint_id, s.started_at
        FROM card_sprints cs JOIN sprints s ON s.id = cs.sprint_id
        WHERE cs.card_id IN (SELECT id FROM cards WHERE `+where+`)
        ORDER BY cs.card_id, cs.sprint_id`, args...)
	if err != nil {
		return fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	byCard := make(map[int64][]membership)
	for rows.Next() {
		var (
			cardID int64
			m      membership
		)
		if err := rows.Scan(&cardID, &m.sprintID, &m.startedAt); err != nil {
			return fmt.Errorf("scan membership: %w", err)
		}
		byCard[cardID] = append(byCard[cardID], m)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range cards {
		ms := byCard[cards[i].ID]
		for _, m := range ms {
			cards[i].SprintIDs = append(cards[i].SprintIDs, m.sprintID)
		}
		cards[i].PrimarySprintID = primarySprint(ms)
	}
	return nil
}

// primarySprint picks the most recently started member sprint, falling back
// to the newest one when none has started.
func primarySprint(ms []membership) *int64 {
	if len(ms) == 0 {
		return nil
	}
	best := ms[0]
	for _, m := range ms[1:] {
		switch {
		case m.startedAt.Valid && !best.startedAt.Valid:
			best = m
		case m.startedAt.Valid == best.startedAt.Valid && m.startedAt.String > best.startedAt.String:
			best = m
		case m.startedAt.Valid == best.startedAt.Valid && m.startedAt.String == best.startedAt.String && m.sprintID > best.sprintID:
			best = m
		}
	}
	id := best.sprintID
	return &id
}

// CreateCard adds a card to a board. Without a column it lands in the backlog column.
func (s *Store) CreateCard(ctx context.Context, boardID int64, title string, columnID *int64) (models.Card, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Card{}, models.Validationf("card title must not be empty")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getBoard(ctx, tx, boardID); err != nil {
			return err
		}
		var (
			col models.Column
			err error
		)
		if columnID == nil {
			col, err = backlogColumn(ctx, tx, boardID)
		} else {
			col, err = getColumn(ctx, tx, *columnID)
		}
		if err != nil {
			return err
		}
		if col.BoardID != boardID {
			return models.Validationf("column %d does not belong to board %d", col.ID, boardID)
		}

		pos, err := nextPosition(ctx, tx, col.ID)
		if err != nil {
			return err
		}
		now := s.Now()
		var completed *string
		if col.IsDone {
			v := formatTime(now)
			completed = &v
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO cards(board_id, column_id, title, position, completed_at, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?, ?)`,
			boardID, col.ID, title, pos, nullableString(completed), formatTime(now), formatTime(now))
		if err != nil {
			return fmt.Errorf("insert card: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("card id: %w", err)
		}
		return bumpRevision(ctx, tx, boardID)
	})
	if err != nil {
		return models.Card{}, err
	}
	return s.GetCard(ctx, id)
}

// GetCard retrieves a card with its sprint memberships.
func (s *Store) GetCard(ctx context.Context, id int64) (models.Card, error) {
	return getCard(ctx, s.db, id)
}

func getCard(ctx context.Context, q querier, id int64) (models.Card, error) {
	cards, err := queryCards(ctx, q, `id = ?`, id)
	if err != nil {
		return models.Card{}, fmt.Errorf("get card: %w", err)
	}
	if len(cards) == 0 {
		return models.Card{}, models.NotFoundf("card %d not found", id)
	}
	return cards[0], nil
}

// ListCards returns every card on a board.
func (s *Store) ListCards(ctx context.Context, boardID int64) ([]models.Card, error) {
	if _, err := getBoard(ctx, s.db, boardID); err != nil {
		return nil, err
	}
	return queryCards(ctx, s.db, `board_id = ?`, boardID)
}

// CardsInBacklog returns the cards of a board that belong to no sprint,
// whatever column they sit in.
func (s *Store) CardsInBacklog(ctx context.Context, boardID int64) ([]models.Card, error) {
	if _, err := getBoard(ctx, s.db, boardID); err != nil {
		return nil, err
	}
	return queryCards(ctx, s.db, `board_id = ? AND NOT EXISTS (SELECT 1 FROM card_sprints m WHERE m.card_id = cards.id)`, boardID)
}

// CardsInSprint returns the cards holding membership in a sprint.
func (s *Store) CardsInSprint(ctx context.Context, sprintID int64) ([]models.Card, error) {
	if _, err := getSprint(ctx, s.db, sprintID); err != nil {
		return nil, err
	}
	return queryCards(ctx, s.db, `id IN (SELECT card_id FROM card_sprints WHERE sprint_id = ?)`, sprintID)
}

// MoveCard places a card in another column of its board. Entering the done
// column stamps completed_at, leaving it clears the stamp, and entering the
// backlog column applies the configured BacklogPolicy.
func (s *Store) MoveCard(ctx context.Context, cardID, columnID int64) (models.Card, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		card, err := getCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		target, err := getColumn(ctx, tx, columnID)
		if err != nil {
			return err
		}
		if target.BoardID != card.BoardID {
			return models.Validationf("column %d does not belong to board %d", columnID, card.BoardID)
		}
		if target.ID == card.ColumnID {
			return nil
		}

		pos, err := nextPosition(ctx, tx, target.ID)
		if err != nil {
			return err
		}
		var completed any
		switch {
		case target.IsDone && card.CompletedAt != nil:
			completed = formatTime(*card.CompletedAt)
		case target.IsDone:
			completed = formatTime(s.Now())
		}
		if _, err := tx.ExecContext(ctx, `UPDATE cards SET column_id = ?, position = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			target.ID, pos, completed, formatTime(s.Now()), cardID); err != nil {
			return fmt.Errorf("move card: %w", err)
		}

		if target.IsBacklog {
			if err := s.clearMembershipsOnBacklogEntry(ctx, tx, card); err != nil {
				return err
			}
		}
		return bumpRevision(ctx, tx, card.BoardID)
	})
	if err != nil {
		return models.Card{}, err
	}
	return s.GetCard(ctx, cardID)
}

// clearMembershipsOnBacklogEntry applies the backlog-column policy to a card
// that just entered the backlog column.
// TODO: confirm with product whether entering the backlog column should drop
// all memberships or only the active sprint; clear_all stays the default until then.
func (s *Store) clearMembershipsOnBacklogEntry(ctx context.Context, tx *sql.Tx, card models.Card) error {
	var (
		res sql.Result
		err error
	)
	switch s.policy {
	case KeepMemberships:
		return nil
	case ClearActiveMembership:
		res, err = tx.ExecContext(ctx, `DELETE FROM card_sprints WHERE card_id = ?
            AND sprint_id IN (SELECT id FROM sprints WHERE status = ?)`, card.ID, models.SprintActive)
	default:
		res, err = tx.ExecContext(ctx, `DELETE FROM card_sprints WHERE card_id = ?`, card.ID)
	}
	if err != nil {
		return fmt.Errorf("clear card memberships: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Debug("card entered backlog column", zap.Int64("card_id", card.ID),
		zap.String("policy", string(s.policy)), zap.Int64("memberships_cleared", n))
	return nil
}

// AssignCardToSprint adds the sprint to the card's memberships. Assigning an
// existing member again is a no-op.
func (s *Store) AssignCardToSprint(ctx context.Context, cardID, sprintID int64) (models.Card, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		boardID, err := sameBoard(ctx, tx, cardID, sprintID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO card_sprints(card_id, sprint_id) VALUES(?, ?)`, cardID, sprintID)
		if err != nil {
			return fmt.Errorf("assign card: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		return bumpRevision(ctx, tx, boardID)
	})
	if err != nil {
		return models.Card{}, err
	}
	return s.GetCard(ctx, cardID)
}

// UnassignCardFromSprint removes the sprint from the card's memberships.
// Removing a sprint the card is not in is a no-op.
func (s *Store) UnassignCardFromSprint(ctx context.Context, cardID, sprintID int64) (models.Card, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		boardID, err := sameBoard(ctx, tx, cardID, sprintID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM card_sprints WHERE card_id = ? AND sprint_id = ?`, cardID, sprintID)
		if err != nil {
			return fmt.Errorf("unassign card: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		return bumpRevision(ctx, tx, boardID)
	})
	if err != nil {
		return models.Card{}, err
	}
	return s.GetCard(ctx, cardID)
}

func sameBoard(ctx context.Context, q querier, cardID, sprintID int64) (int64, error) {
	var cardBoard int64
	err := q.QueryRowContext(ctx, `SELECT board_id FROM cards WHERE id = ?`, cardID).Scan(&cardBoard)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.NotFoundf("card %d not found", cardID)
	}
	if err != nil {
		return 0, fmt.Errorf("get card board: %w", err)
	}
	sp, err := getSprint(ctx, q, sprintID)
	if err != nil {
		return 0, err
	}
	if sp.BoardID != cardBoard {
		return 0, models.Validationf("card %d and sprint %d belong to different boards", cardID, sprintID)
	}
	return cardBoard, nil
}

// SetStoryPoints stores or clears the estimate of a card.
func (s *Store) SetStoryPoints(ctx context.Context, cardID int64, points *int) (models.Card, error) {
	var value any
	if points != nil {
		value = *points
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var boardID int64
		err := tx.QueryRowContext(ctx, `SELECT board_id FROM cards WHERE id = ?`, cardID).Scan(&boardID)
		if errors.Is(err, sql.ErrNoRows) {
			return models.NotFoundf("card %d not found", cardID)
		}
		if err != nil {
			return fmt.Errorf("get card board: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE cards SET story_points = ?, updated_at = ? WHERE id = ?`,
			value, formatTime(s.Now()), cardID); err != nil {
			return fmt.Errorf("set story points: %w", err)
		}
		return bumpRevision(ctx, tx, boardID)
	})
	if err != nil {
		return models.Card{}, err
	}
	return s.GetCard(ctx, cardID)
}

func nextPosition(ctx context.Context, q querier, columnID int64) (int64, error) {
	var position sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT MAX(position) FROM cards WHERE column_id = ?`, columnID).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("select position: %w", err)
	}
	if position.Valid {
		return position.Int64 + 1, nil
	}
	return 0, nil
}
