package planning

import (
	"context"

	"go.uber.org/zap"

	"sprintboard/internal/models"
)

// MembershipStore persists the card <-> sprint relation.
type MembershipStore interface {
	AssignCardToSprint(ctx context.Context, cardID, sprintID int64) (models.Card, error)
	UnassignCardFromSprint(ctx context.Context, cardID, sprintID int64) (models.Card, error)
	CardsInBacklog(ctx context.Context, boardID int64) ([]models.Card, error)
	CardsInSprint(ctx context.Context, sprintID int64) ([]models.Card, error)
	MoveCard(ctx context.Context, cardID, columnID int64) (models.Card, error)
}

// Backlog assigns cards to sprints. A card belongs to the backlog when it has
// no sprint membership, independent of its column.
type Backlog struct {
	store  MembershipStore
	logger *zap.Logger
}

// NewBacklog returns a Backlog backed by store.
func NewBacklog(store MembershipStore, logger *zap.Logger) *Backlog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backlog{store: store, logger: logger}
}

// AssignCardToSprint is idempotent; re-assigning returns the unchanged card.
func (b *Backlog) AssignCardToSprint(ctx context.Context, cardID, sprintID int64) (models.Card, error) {
	card, err := b.store.AssignCardToSprint(ctx, cardID, sprintID)
	if err != nil {
		return models.Card{}, err
	}
	b.logger.Debug("card assigned", zap.Int64("card_id", cardID), zap.Int64("sprint_id", sprintID))
	return card, nil
}

// UnassignCardFromSprint is idempotent; removing a non-member is a no-op.
func (b *Backlog) UnassignCardFromSprint(ctx context.Context, cardID, sprintID int64) (models.Card, error) {
	card, err := b.store.UnassignCardFromSprint(ctx, cardID, sprintID)
	if err != nil {
		return models.Card{}, err
	}
	b.logger.Debug("card unassigned", zap.Int64("card_id", cardID), zap.Int64("sprint_id", sprintID))
	return card, nil
}

// CardsInBacklog returns the cards of a board that belong to no sprint.
func (b *Backlog) CardsInBacklog(ctx context.Context, boardID int64) ([]models.Card, error) {
	return b.store.CardsInBacklog(ctx, boardID)
}

// CardsInSprint returns the current members of a sprint.
func (b *Backlog) CardsInSprint(ctx context.Context, sprintID int64) ([]models.Card, error) {
	return b.store.CardsInSprint(ctx, sprintID)
}

// MoveCard reports a kanban column change. Completion stamps and the
// backlog-column membership policy are applied by the store in the same
// transaction as the move.
func (b *Backlog) MoveCard(ctx context.Context, cardID, columnID int64) (models.Card, error) {
	return b.store.MoveCard(ctx, cardID, columnID)
}
