// Package planning holds the sprint and backlog rules that sit between the
// HTTP layer and storage: input validation, lifecycle transitions, card
// membership, closed-sprint paging and story point bookkeeping.
package planning

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"sprintboard/internal/models"
	"sprintboard/internal/storage/sqlite"
)

// SprintStore is the persistence the registry needs.
type SprintStore interface {
	BoardRevision(ctx context.Context, boardID int64) (int64, error)
	CreateSprint(ctx context.Context, in sqlite.NewSprint) (models.Sprint, error)
	GetSprint(ctx context.Context, id int64) (models.Sprint, error)
	StartSprint(ctx context.Context, id int64) (models.Sprint, error)
	CompleteSprint(ctx context.Context, id int64) (models.Sprint, error)
	RenameSprint(ctx context.Context, id int64, name string) (models.Sprint, error)
	DeleteSprint(ctx context.Context, id int64) error
	ActiveSprint(ctx context.Context, boardID int64) (*models.Sprint, error)
	UpcomingSprints(ctx context.Context, boardID int64) ([]models.Sprint, error)
}

// SprintInput describes a sprint to create.
type SprintInput struct {
	BoardID   int64
	Name      string
	Goal      *string
	StartDate *time.Time
	EndDate   *time.Time
}

// Registry owns sprint lifecycle: future -> active -> closed.
type Registry struct {
	store  SprintStore
	pages  *Paginator
	logger *zap.Logger
}

// NewRegistry wires a registry over store; closed sprints are listed through pages.
func NewRegistry(store SprintStore, pages *Paginator, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, pages: pages, logger: logger}
}

// CreateSprint validates the input and stores a new future sprint.
func (r *Registry) CreateSprint(ctx context.Context, in SprintInput) (models.Sprint, error) {
	name, err := validName(in.Name)
	if err != nil {
		return models.Sprint{}, err
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return models.Sprint{}, models.Validationf("sprint end date %s is before start date %s",
			in.EndDate.Format(time.DateOnly), in.StartDate.Format(time.DateOnly))
	}
	var goal *string
	if in.Goal != nil {
		if g := strings.TrimSpace(*in.Goal); g != "" {
			goal = &g
		}
	}
	return r.store.CreateSprint(ctx, sqlite.NewSprint{
		BoardID:   in.BoardID,
		Name:      name,
		Goal:      goal,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
	})
}

// GetSprint returns a sprint by id, or a not-found error.
func (r *Registry) GetSprint(ctx context.Context, id int64) (models.Sprint, error) {
	return r.store.GetSprint(ctx, id)
}

// StartSprint activates a future sprint. It fails with a conflict when the
// board already has an active sprint.
func (r *Registry) StartSprint(ctx context.Context, id int64) (models.Sprint, error) {
	sp, err := r.store.StartSprint(ctx, id)
	if err != nil {
		r.logger.Debug("start sprint rejected", zap.Int64("sprint_id", id), zap.Error(err))
		return models.Sprint{}, err
	}
	return sp, nil
}

// CompleteSprint closes an active sprint. Member cards keep their membership.
func (r *Registry) CompleteSprint(ctx context.Context, id int64) (models.Sprint, error) {
	return r.store.CompleteSprint(ctx, id)
}

// RenameSprint changes the name of a sprint in any state.
func (r *Registry) RenameSprint(ctx context.Context, id int64, name string) (models.Sprint, error) {
	name, err := validName(name)
	if err != nil {
		return models.Sprint{}, err
	}
	return r.store.RenameSprint(ctx, id, name)
}

// DeleteSprint removes a non-active sprint after detaching it from its cards.
func (r *Registry) DeleteSprint(ctx context.Context, id int64) error {
	return r.store.DeleteSprint(ctx, id)
}

// ListSprints returns the planning view of a board: the active sprint, the
// upcoming ones and the first page of closed sprints.
func (r *Registry) ListSprints(ctx context.Context, boardID int64) (models.SprintListing, error) {
	if _, err := r.store.BoardRevision(ctx, boardID); err != nil {
		return models.SprintListing{}, err
	}
	active, err := r.store.ActiveSprint(ctx, boardID)
	if err != nil {
		return models.SprintListing{}, err
	}
	upcoming, err := r.store.UpcomingSprints(ctx, boardID)
	if err != nil {
		return models.SprintListing{}, err
	}
	closed, err := r.pages.FirstPage(ctx, boardID)
	if err != nil {
		return models.SprintListing{}, err
	}
	return models.SprintListing{Active: active, Upcoming: upcoming, Closed: closed}, nil
}

func validName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", models.Validationf("sprint name must not be empty")
	}
	return name, nil
}
