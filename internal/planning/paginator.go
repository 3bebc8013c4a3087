package planning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"sprintboard/internal/models"
	"sprintboard/internal/storage/sqlite"
)

// PageSize is the number of closed sprints per page.
const PageSize = 10

// ClosedSprintSource lists closed sprints by (closed_at DESC, id DESC).
type ClosedSprintSource interface {
	BoardRevision(ctx context.Context, boardID int64) (int64, error)
	ClosedSprintsAfter(ctx context.Context, boardID int64, after *sqlite.SprintKey, limit int) ([]models.Sprint, error)
}

// Paginator serves closed sprint history with a keyset cursor, so sprints
// closed between calls never shift a page boundary.
type Paginator struct {
	source ClosedSprintSource
	size   int
}

// NewPaginator returns a Paginator reading closed sprints from source.
func NewPaginator(source ClosedSprintSource) *Paginator {
	return &Paginator{source: source, size: PageSize}
}

// FirstPage returns the most recently closed sprints.
func (p *Paginator) FirstPage(ctx context.Context, boardID int64) (models.SprintPage, error) {
	return p.page(ctx, boardID, nil)
}

// LoadMore returns the page that follows cursor.
func (p *Paginator) LoadMore(ctx context.Context, boardID int64, cursor string) (models.SprintPage, error) {
	key, err := decodeCursor(boardID, cursor)
	if err != nil {
		return models.SprintPage{}, err
	}
	return p.page(ctx, boardID, key)
}

func (p *Paginator) page(ctx context.Context, boardID int64, after *sqlite.SprintKey) (models.SprintPage, error) {
	if _, err := p.source.BoardRevision(ctx, boardID); err != nil {
		return models.SprintPage{}, err
	}
	items, err := p.source.ClosedSprintsAfter(ctx, boardID, after, p.size+1)
	if err != nil {
		return models.SprintPage{}, err
	}

	page := models.SprintPage{Items: items}
	if len(items) > p.size {
		page.Items = items[:p.size]
		page.HasMore = true
		last := page.Items[len(page.Items)-1]
		page.Cursor = encodeCursor(boardID, last)
	}
	return page, nil
}

type cursorPayload struct {
	BoardID  int64     `json:"b"`
	ClosedAt time.Time `json:"t"`
	SprintID int64     `json:"s"`
}

func encodeCursor(boardID int64, last models.Sprint) string {
	payload := cursorPayload{BoardID: boardID, SprintID: last.ID}
	if last.ClosedAt != nil {
		payload.ClosedAt = *last.ClosedAt
	}
	raw, _ := json.Marshal(payload)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(boardID int64, cursor string) (*sqlite.SprintKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || cursor == "" {
		return nil, models.Validationf("invalid pagination cursor")
	}
	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.SprintID == 0 {
		return nil, models.Validationf("invalid pagination cursor")
	}
	if payload.BoardID != boardID {
		return nil, models.Validationf("pagination cursor belongs to another board")
	}
	return &sqlite.SprintKey{ClosedAt: payload.ClosedAt, ID: payload.SprintID}, nil
}
