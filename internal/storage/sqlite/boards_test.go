package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard/internal/models"
)

func TestCreateBoardProvisionsColumns(t *testing.T) {
	s, _ := newTestStore(t)
	board := seedBoard(t, s)

	require.Len(t, board.Columns, 4)
	var backlog, done int
	for _, c := range board.Columns {
		if c.IsBacklog {
			backlog++
		}
		if c.IsDone {
			done++
		}
	}
	assert.Equal(t, 1, backlog)
	assert.Equal(t, 1, done)
	assert.True(t, board.Columns[0].IsBacklog)
}

func TestCreateBoardRequiresName(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.CreateBoard(context.Background(), "   ")
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestDeleteBacklogColumnRejected(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	backlog := columnByName(t, board, "Backlog")

	err := s.DeleteColumn(ctx, backlog.ID)
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "backlog column")

	cols, err := s.ListColumns(ctx, board.ID)
	require.NoError(t, err)
	assert.Len(t, cols, 4)
}

func TestDeleteNonBacklogColumn(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	todo := columnByName(t, board, "To Do")

	require.NoError(t, s.DeleteColumn(ctx, todo.ID))

	_, err := s.GetColumn(ctx, todo.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteColumnMovesCardsToBacklog(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	todo := columnByName(t, board, "To Do")
	backlog := columnByName(t, board, "Backlog")
	sp := seedSprint(t, s, board.ID, "Sprint 1")

	waiting, err := s.CreateCard(ctx, board.ID, "Already in backlog", nil)
	require.NoError(t, err)
	first, err := s.CreateCard(ctx, board.ID, "Write docs", &todo.ID)
	require.NoError(t, err)
	second, err := s.CreateCard(ctx, board.ID, "Fix build", &todo.ID)
	require.NoError(t, err)
	_, err = s.AssignCardToSprint(ctx, first.ID, sp.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteColumn(ctx, todo.ID))

	_, err = s.GetColumn(ctx, todo.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	cards, err := s.ListCards(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, cards, 3)
	var ids []int64
	for _, c := range cards {
		assert.Equal(t, backlog.ID, c.ColumnID)
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int64{waiting.ID, first.ID, second.ID}, ids)

	moved, err := s.GetCard(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, moved.SprintIDs, "default policy clears memberships on backlog entry")
}

func TestDeleteDoneColumnClearsCompletion(t *testing.T) {
	s, _ := newTestStore(t, WithBacklogPolicy(KeepMemberships))
	ctx := context.Background()
	board := seedBoard(t, s)
	done := columnByName(t, board, "Done")
	sp := seedSprint(t, s, board.ID, "Sprint 1")

	card, err := s.CreateCard(ctx, board.ID, "Shipped", &done.ID)
	require.NoError(t, err)
	require.NotNil(t, card.CompletedAt)
	_, err = s.AssignCardToSprint(ctx, card.ID, sp.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteColumn(ctx, done.ID))

	got, err := s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, columnByName(t, board, "Backlog").ID, got.ColumnID)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, []int64{sp.ID}, got.SprintIDs)
}

func TestCreateColumnSingleDone(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)

	review, err := s.CreateColumn(ctx, board.ID, "Review", false)
	require.NoError(t, err)
	assert.False(t, review.IsBacklog)
	assert.Equal(t, int64(4), review.Position)

	_, err = s.CreateColumn(ctx, board.ID, "Shipped", true)
	require.ErrorIs(t, err, models.ErrValidation)

	renamed, err := s.RenameColumn(ctx, review.ID, "Code review")
	require.NoError(t, err)
	assert.Equal(t, "Code review", renamed.Name)
}

func TestDeleteBoardCascades(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	sp := seedSprint(t, s, board.ID, "Sprint 1")
	card, err := s.CreateCard(ctx, board.ID, "Task", nil)
	require.NoError(t, err)
	_, err = s.AssignCardToSprint(ctx, card.ID, sp.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteBoard(ctx, board.ID))

	_, err = s.GetSprint(ctx, sp.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetCard(ctx, card.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	require.ErrorIs(t, s.DeleteBoard(ctx, board.ID), models.ErrNotFound)
}
