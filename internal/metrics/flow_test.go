package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard/internal/models"
)

func TestCumulativeFlowGapsAndLiveDay(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.store.CreateCard(ctx, e.board.ID, "One", nil)
	require.NoError(t, err)
	_, err = e.store.CaptureSnapshot(ctx, e.board.ID, "2024-01-05")
	require.NoError(t, err)

	_, err = e.store.CreateCard(ctx, e.board.ID, "Two", nil)
	require.NoError(t, err)
	_, err = e.store.CaptureSnapshot(ctx, e.board.ID, "2024-01-07")
	require.NoError(t, err)

	review, err := e.store.CreateColumn(ctx, e.board.ID, "Review", false)
	require.NoError(t, err)

	flow, err := e.engine.CumulativeFlow(ctx, e.board.ID, 4)
	require.NoError(t, err)
	require.Len(t, flow, 4)

	assert.Equal(t, "2024-01-05", flow[0].Date)
	assert.Equal(t, models.FlowFromSnapshot, flow[0].Source)
	assert.False(t, flow[0].Approximate)
	assert.Equal(t, 1, flow[0].Columns[0].CardCount)

	assert.Equal(t, "2024-01-06", flow[1].Date)
	assert.Equal(t, models.FlowMissing, flow[1].Source)
	assert.Empty(t, flow[1].Columns)

	assert.Equal(t, models.FlowFromSnapshot, flow[2].Source)
	assert.Equal(t, 2, flow[2].Columns[0].CardCount)
	last := flow[2].Columns[len(flow[2].Columns)-1]
	assert.Equal(t, review.ID, last.ColumnID)
	assert.Equal(t, 0, last.CardCount)

	assert.Equal(t, "2024-01-08", flow[3].Date)
	assert.Equal(t, models.FlowLive, flow[3].Source)
	assert.True(t, flow[3].Approximate)
	assert.Len(t, flow[3].Columns, 5)
}

func TestCumulativeFlowPrefersTodaysSnapshot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.store.CaptureSnapshot(ctx, e.board.ID, "2024-01-08")
	require.NoError(t, err)

	flow, err := e.engine.CumulativeFlow(ctx, e.board.ID, 1)
	require.NoError(t, err)
	require.Len(t, flow, 1)
	assert.Equal(t, models.FlowFromSnapshot, flow[0].Source)
	assert.False(t, flow[0].Approximate)
}

func TestCumulativeFlowValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.engine.CumulativeFlow(ctx, e.board.ID, 0)
	require.ErrorIs(t, err, models.ErrValidation)
	_, err = e.engine.CumulativeFlow(ctx, e.board.ID, MaxFlowDays+1)
	require.ErrorIs(t, err, models.ErrValidation)
	_, err = e.engine.CumulativeFlow(ctx, 404, 7)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestCumulativeFlowHonorsLocation(t *testing.T) {
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	e := newEnv(t, WithLocation(tokyo))
	e.clock.Advance(10 * time.Hour) // 2024-01-08 20:00 UTC is already the 9th in UTC+9

	flow, err := e.engine.CumulativeFlow(context.Background(), e.board.ID, 1)
	require.NoError(t, err)
	require.Len(t, flow, 1)
	assert.Equal(t, "2024-01-09", flow[0].Date)
}

func TestWithCurrentColumnsFollowsBoardOrder(t *testing.T) {
	columns := []models.Column{
		{ID: 1, Name: "Backlog", Position: 0},
		{ID: 4, Name: "Review", Position: 1},
		{ID: 2, Name: "Done", Position: 2},
	}
	counts := []models.ColumnCount{
		{ColumnID: 1, ColumnName: "Backlog", CardCount: 3},
		{ColumnID: 2, ColumnName: "Done", CardCount: 1},
		{ColumnID: 9, ColumnName: "Archived", CardCount: 2},
	}

	got := withCurrentColumns(counts, columns)
	want := []models.ColumnCount{
		{ColumnID: 1, ColumnName: "Backlog", CardCount: 3},
		{ColumnID: 4, ColumnName: "Review"},
		{ColumnID: 2, ColumnName: "Done", CardCount: 1},
		{ColumnID: 9, ColumnName: "Archived", CardCount: 2},
	}
	assert.Equal(t, want, got)
}
