package planning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard/internal/models"
)

func TestAssignTwiceMatchesAssignOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.createSprint(t, "Sprint")
	card, err := f.store.CreateCard(ctx, f.board.ID, "Task", nil)
	require.NoError(t, err)

	once, err := f.backlog.AssignCardToSprint(ctx, card.ID, sp.ID)
	require.NoError(t, err)
	twice, err := f.backlog.AssignCardToSprint(ctx, card.ID, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, once.SprintIDs, twice.SprintIDs)

	out, err := f.backlog.UnassignCardFromSprint(ctx, card.ID, sp.ID)
	require.NoError(t, err)
	assert.Empty(t, out.SprintIDs)
	out, err = f.backlog.UnassignCardFromSprint(ctx, card.ID, sp.ID)
	require.NoError(t, err)
	assert.Empty(t, out.SprintIDs)
}

func TestBacklogIgnoresColumn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.createSprint(t, "Sprint")

	var doing models.Column
	for _, c := range f.board.Columns {
		if c.Name == "In Progress" {
			doing = c
		}
	}

	loose, err := f.store.CreateCard(ctx, f.board.ID, "Unplanned but in progress", &doing.ID)
	require.NoError(t, err)
	planned, err := f.store.CreateCard(ctx, f.board.ID, "Planned", nil)
	require.NoError(t, err)
	_, err = f.backlog.AssignCardToSprint(ctx, planned.ID, sp.ID)
	require.NoError(t, err)

	backlog, err := f.backlog.CardsInBacklog(ctx, f.board.ID)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, loose.ID, backlog[0].ID)

	inSprint, err := f.backlog.CardsInSprint(ctx, sp.ID)
	require.NoError(t, err)
	require.Len(t, inSprint, 1)
	assert.Equal(t, planned.ID, inSprint[0].ID)

	_, err = f.backlog.CardsInSprint(ctx, 999)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestMoveIntoBacklogColumnReturnsCardToBacklog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.createSprint(t, "Sprint")

	var backlogCol, doing models.Column
	for _, c := range f.board.Columns {
		switch {
		case c.IsBacklog:
			backlogCol = c
		case c.Name == "In Progress":
			doing = c
		}
	}

	card, err := f.store.CreateCard(ctx, f.board.ID, "Task", &doing.ID)
	require.NoError(t, err)
	_, err = f.backlog.AssignCardToSprint(ctx, card.ID, sp.ID)
	require.NoError(t, err)

	card, err = f.backlog.MoveCard(ctx, card.ID, backlogCol.ID)
	require.NoError(t, err)
	assert.True(t, card.InBacklog())
}
