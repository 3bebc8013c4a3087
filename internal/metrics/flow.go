package metrics

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"sprintboard/internal/models"
)

// CumulativeFlow returns per-column card counts for each of the trailing days,
// oldest first. Past days come only from persisted daily snapshots; a day
// without one is reported as missing rather than filled in. Today falls back
// to live counts, flagged approximate, until its snapshot is taken.
func (e *Engine) CumulativeFlow(ctx context.Context, boardID int64, days int) ([]models.FlowSnapshot, error) {
	if days <= 0 || days > MaxFlowDays {
		return nil, models.Validationf("days must be between 1 and %d, got %d", MaxFlowDays, days)
	}
	rev, err := e.source.BoardRevision(ctx, boardID)
	if err != nil {
		return nil, err
	}

	today := e.today()
	key := fmt.Sprintf("flow:%d:%d:%d:%s", boardID, days, rev, today.Format(dayLayout))
	v, err := e.cache.get(key, func() (any, error) {
		return e.cumulativeFlow(ctx, boardID, days)
	})
	if err != nil {
		return nil, err
	}
	return cloneFlow(v.([]models.FlowSnapshot)), nil
}

// cloneFlow copies a cached series so callers cannot mutate the cache.
func cloneFlow(flow []models.FlowSnapshot) []models.FlowSnapshot {
	out := slices.Clone(flow)
	for i := range out {
		out[i].Columns = slices.Clone(out[i].Columns)
	}
	return out
}

func (e *Engine) cumulativeFlow(ctx context.Context, boardID int64, days int) ([]models.FlowSnapshot, error) {
	today := e.today()
	first := today.AddDate(0, 0, -(days - 1))

	columns, err := e.source.ListColumns(ctx, boardID)
	if err != nil {
		return nil, err
	}
	stored, err := e.source.SnapshotsBetween(ctx, boardID, first.Format(dayLayout), today.Format(dayLayout))
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]models.StoredSnapshot, len(stored))
	for _, s := range stored {
		byDay[s.Day] = s
	}

	out := make([]models.FlowSnapshot, 0, days)
	gaps := 0
	for day := first; !day.After(today); day = day.AddDate(0, 0, 1) {
		label := day.Format(dayLayout)
		if snap, ok := byDay[label]; ok {
			out = append(out, models.FlowSnapshot{
				Date:    label,
				Source:  models.FlowFromSnapshot,
				Columns: withCurrentColumns(snap.Columns, columns),
			})
			continue
		}
		if day.Equal(today) {
			live, err := e.source.ColumnCounts(ctx, boardID)
			if err != nil {
				return nil, err
			}
			out = append(out, models.FlowSnapshot{
				Date:        label,
				Source:      models.FlowLive,
				Approximate: true,
				Columns:     live,
			})
			continue
		}
		gaps++
		out = append(out, models.FlowSnapshot{
			Date:    label,
			Source:  models.FlowMissing,
			Columns: []models.ColumnCount{},
		})
	}

	if gaps > 0 {
		e.logger.Debug("cumulative flow has gaps", zap.Int64("board_id", boardID), zap.Int("missing_days", gaps))
	}
	return out, nil
}

// withCurrentColumns lays a snapshot's counts out in board column order,
// with zero counts for columns created after it was taken. Columns deleted
// since then keep their counts and follow the current ones.
func withCurrentColumns(counts []models.ColumnCount, columns []models.Column) []models.ColumnCount {
	byID := make(map[int64]models.ColumnCount, len(counts))
	for _, c := range counts {
		byID[c.ColumnID] = c
	}

	merged := make([]models.ColumnCount, 0, len(counts)+len(columns))
	current := make(map[int64]bool, len(columns))
	for _, col := range columns {
		current[col.ID] = true
		if c, ok := byID[col.ID]; ok {
			merged = append(merged, c)
			continue
		}
		merged = append(merged, models.ColumnCount{ColumnID: col.ID, ColumnName: col.Name})
	}
	for _, c := range counts {
		if !current[c.ColumnID] {
			merged = append(merged, c)
		}
	}
	return merged
}
