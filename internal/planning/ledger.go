package planning

import (
	"context"

	"sprintboard/internal/models"
)

// PointStore persists card estimates.
type PointStore interface {
	SetStoryPoints(ctx context.Context, cardID int64, points *int) (models.Card, error)
}

// Ledger tracks the optional story point estimate of cards.
type Ledger struct {
	store PointStore
}

func NewLedger(store PointStore) *Ledger {
	return &Ledger{store: store}
}

// SetStoryPoints stores points on a card; nil clears the estimate.
func (l *Ledger) SetStoryPoints(ctx context.Context, cardID int64, points *int) (models.Card, error) {
	if points != nil && *points < 0 {
		return models.Card{}, models.Validationf("story points must be zero or positive, got %d", *points)
	}
	return l.store.SetStoryPoints(ctx, cardID, points)
}

// TotalPoints sums the estimates of cards, counting unestimated cards as zero.
func TotalPoints(cards []models.Card) int {
	total := 0
	for _, c := range cards {
		if c.StoryPoints != nil {
			total += *c.StoryPoints
		}
	}
	return total
}
