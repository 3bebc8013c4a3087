// Package snapshot records the daily column occupancy of every board, which
// is the only history cumulative flow reads.
package snapshot

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sprintboard/internal/models"
)

// Store is the persistence the scheduler writes through.
type Store interface {
	ListBoards(ctx context.Context) ([]models.Board, error)
	CaptureSnapshot(ctx context.Context, boardID int64, day string) (bool, error)
}

// Result summarizes one pass over all boards.
type Result struct {
	Day      string
	Boards   int
	Captured int
	Skipped  int
	Failed   int
}

// Scheduler captures at most one snapshot per board per calendar day.
type Scheduler struct {
	store    Store
	logger   *zap.Logger
	interval time.Duration
	workers  int
	now      func() time.Time
	loc      *time.Location
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the time zone that decides which day a snapshot belongs to.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func New(store Store, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		store:    store,
		logger:   logger,
		interval: time.Hour,
		workers:  4,
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce captures today's snapshot for every board that lacks one. A board
// that fails is logged and counted; it never stops the others.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	day := s.now().In(s.loc).Format(time.DateOnly)
	boards, err := s.store.ListBoards(ctx)
	if err != nil {
		return Result{Day: day}, err
	}

	var captured, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, b := range boards {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			ok, err := s.store.CaptureSnapshot(gctx, b.ID, day)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					// deleted between listing and capture
					return nil
				}
				failed.Add(1)
				s.logger.Warn("snapshot failed", zap.Int64("board_id", b.ID), zap.String("day", day), zap.Error(err))
				return nil
			}
			if ok {
				captured.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{Day: day}, err
	}

	res := Result{
		Day:      day,
		Boards:   len(boards),
		Captured: int(captured.Load()),
		Failed:   int(failed.Load()),
	}
	res.Skipped = res.Boards - res.Captured - res.Failed
	s.logger.Info("snapshot pass finished",
		zap.String("day", day),
		zap.Int("boards", res.Boards),
		zap.Int("captured", res.Captured),
		zap.Int("failed", res.Failed))
	return res, nil
}

// Start runs a pass immediately and then on every tick until ctx is
// cancelled. It blocks; run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("snapshot scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("snapshot pass failed", zap.Error(err))
	}
}
