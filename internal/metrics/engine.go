// Package metrics derives burndown, burnup, velocity and cumulative flow
// from current card and sprint state. Nothing here writes to storage.
package metrics

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"sprintboard/internal/models"
	"sprintboard/internal/planning"
	"sprintboard/internal/storage/sqlite"
)

// Source is the read-only state the engine derives metrics from.
type Source interface {
	BoardRevision(ctx context.Context, boardID int64) (int64, error)
	GetSprint(ctx context.Context, id int64) (models.Sprint, error)
	CardsInSprint(ctx context.Context, sprintID int64) ([]models.Card, error)
	ClosedSprintsAfter(ctx context.Context, boardID int64, after *sqlite.SprintKey, limit int) ([]models.Sprint, error)
	ListColumns(ctx context.Context, boardID int64) ([]models.Column, error)
	ColumnCounts(ctx context.Context, boardID int64) ([]models.ColumnCount, error)
	SnapshotsBetween(ctx context.Context, boardID int64, fromDay, toDay string) ([]models.StoredSnapshot, error)
}

// Unit selects how work is measured.
type Unit string

const (
	UnitCards  Unit = "cards"
	UnitPoints Unit = "points"
)

// ParseUnit accepts "cards" (the default) or "points".
func ParseUnit(raw string) (Unit, error) {
	switch Unit(raw) {
	case "", UnitCards:
		return UnitCards, nil
	case UnitPoints:
		return UnitPoints, nil
	default:
		return "", models.Validationf("unknown metrics unit %q; use cards or points", raw)
	}
}

const (
	// MaxFlowDays bounds the cumulative flow window.
	MaxFlowDays = 366
	// MaxVelocitySprints bounds the velocity window.
	MaxVelocitySprints = 100

	dayLayout = time.DateOnly
)

// Engine computes sprint and board metrics, caching results per board revision.
type Engine struct {
	source   Source
	logger   *zap.Logger
	now      func() time.Time
	loc      *time.Location
	cacheTTL time.Duration
	cacheLen int
	cache    *resultCache
}

// Option customizes an Engine.
type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the time zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithCache sets the result cache size and TTL. A zero TTL disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cacheLen = size
		e.cacheTTL = ttl
	}
}

func NewEngine(source Source, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		source:   source,
		logger:   logger,
		now:      time.Now,
		loc:      time.UTC,
		cacheTTL: 30 * time.Second,
		cacheLen: 512,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cache = newResultCache(e.cacheLen, e.cacheTTL, e.now)
	return e
}

func (e *Engine) today() time.Time {
	return startOfDay(e.now(), e.loc)
}

// SprintMetrics returns totals plus burndown and burnup series for a sprint,
// expressed in unit. Scope is the sprint's current membership.
func (e *Engine) SprintMetrics(ctx context.Context, sprintID int64, unit Unit) (models.SprintMetrics, error) {
	sp, err := e.source.GetSprint(ctx, sprintID)
	if err != nil {
		return models.SprintMetrics{}, err
	}
	rev, err := e.source.BoardRevision(ctx, sp.BoardID)
	if err != nil {
		return models.SprintMetrics{}, err
	}

	key := fmt.Sprintf("sprint:%d:%s:%d:%s", sprintID, unit, rev, e.today().Format(dayLayout))
	v, err := e.cache.get(key, func() (any, error) {
		cards, err := e.source.CardsInSprint(ctx, sprintID)
		if err != nil {
			return nil, err
		}
		return BuildSprintMetrics(sp, cards, unit, e.now(), e.loc), nil
	})
	if err != nil {
		return models.SprintMetrics{}, err
	}
	m := v.(models.SprintMetrics)
	m.Burndown = slices.Clone(m.Burndown)
	m.Burnup = slices.Clone(m.Burnup)
	return m, nil
}

// BuildSprintMetrics derives sprint metrics from a sprint and its member
// cards as of now. A card counts as completed on day d when its completed_at
// falls before the end of d. Clearing completed_at after the fact rewrites
// earlier days, so series reported at different times may disagree.
func BuildSprintMetrics(sp models.Sprint, cards []models.Card, unit Unit, now time.Time, loc *time.Location) models.SprintMetrics {
	var completed []models.Card
	for _, c := range cards {
		if c.CompletedAt != nil {
			completed = append(completed, c)
		}
	}

	m := models.SprintMetrics{
		SprintID:        sp.ID,
		Unit:            string(unit),
		TotalCards:      len(cards),
		CompletedCards:  len(completed),
		TotalPoints:     planning.TotalPoints(cards),
		CompletedPoints: planning.TotalPoints(completed),
		Burndown:        []models.DailyMetric{},
		Burnup:          []models.DailyMetric{},
	}

	total := m.TotalCards
	if unit == UnitPoints {
		total = m.TotalPoints
	}

	first, last := sprintDays(sp, now, loc)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		cutoff := day.AddDate(0, 0, 1)
		done := 0
		for _, c := range completed {
			if c.CompletedAt.Before(cutoff) {
				done += weight(c, unit)
			}
		}
		point := models.DailyMetric{
			Date:      day.Format(dayLayout),
			Remaining: total - done,
			Completed: done,
			Total:     total,
		}
		m.Burndown = append(m.Burndown, point)
		m.Burnup = append(m.Burnup, point)
	}
	return m
}

// sprintDays returns the first and last calendar day of the metric range,
// from the start date (or creation day) through min(today, end date).
func sprintDays(sp models.Sprint, now time.Time, loc *time.Location) (time.Time, time.Time) {
	first := startOfDay(sp.CreatedAt, loc)
	if sp.StartDate != nil {
		first = calendarDay(*sp.StartDate, loc)
	}
	last := startOfDay(now, loc)
	if sp.EndDate != nil {
		if end := calendarDay(*sp.EndDate, loc); end.Before(last) {
			last = end
		}
	}
	return first, last
}

func weight(c models.Card, unit Unit) int {
	if unit == UnitPoints {
		if c.StoryPoints == nil {
			return 0
		}
		return *c.StoryPoints
	}
	return 1
}

// calendarDay places the stored UTC date of a planned sprint boundary at
// midnight in loc. Planned dates are calendar days, not instants.
func calendarDay(d time.Time, loc *time.Location) time.Time {
	y, m, dd := d.UTC().Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, loc)
}

// startOfDay returns midnight in loc of the day that contains instant t.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
