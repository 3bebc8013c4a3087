package metrics

import (
	"context"
	"fmt"
	"slices"

	"sprintboard/internal/models"
	"sprintboard/internal/planning"
)

// Velocity returns completed work for the most recent count closed sprints,
// oldest first. A card counts toward a sprint when it is a member and its
// completed_at falls within [sprint created_at, sprint closed_at].
func (e *Engine) Velocity(ctx context.Context, boardID int64, count int) ([]models.VelocityPoint, error) {
	if count <= 0 || count > MaxVelocitySprints {
		return nil, models.Validationf("sprint count must be between 1 and %d, got %d", MaxVelocitySprints, count)
	}
	rev, err := e.source.BoardRevision(ctx, boardID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("velocity:%d:%d:%d", boardID, count, rev)
	v, err := e.cache.get(key, func() (any, error) {
		return e.velocity(ctx, boardID, count)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]models.VelocityPoint)), nil
}

func (e *Engine) velocity(ctx context.Context, boardID int64, count int) ([]models.VelocityPoint, error) {
	sprints, err := e.source.ClosedSprintsAfter(ctx, boardID, nil, count)
	if err != nil {
		return nil, err
	}

	points := make([]models.VelocityPoint, len(sprints))
	for i, sp := range sprints {
		cards, err := e.source.CardsInSprint(ctx, sp.ID)
		if err != nil {
			return nil, err
		}
		// sprints arrive newest first; fill from the back for chronological order.
		points[len(sprints)-1-i] = velocityPoint(sp, cards)
	}
	return points, nil
}

func velocityPoint(sp models.Sprint, cards []models.Card) models.VelocityPoint {
	p := models.VelocityPoint{SprintID: sp.ID, SprintName: sp.Name}
	if sp.ClosedAt == nil {
		return p
	}
	p.ClosedAt = *sp.ClosedAt

	var done []models.Card
	for _, c := range cards {
		if c.CompletedAt == nil {
			continue
		}
		if c.CompletedAt.Before(sp.CreatedAt) || c.CompletedAt.After(*sp.ClosedAt) {
			continue
		}
		done = append(done, c)
	}
	p.CompletedCards = len(done)
	p.CompletedPoints = planning.TotalPoints(done)
	return p
}
