package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard/internal/models"
)

func TestCreateCardDefaultsToBacklogColumn(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)

	card, err := s.CreateCard(ctx, board.ID, "  Fix login  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Fix login", card.Title)
	assert.Equal(t, columnByName(t, board, "Backlog").ID, card.ColumnID)
	assert.Empty(t, card.SprintIDs)
	assert.Nil(t, card.CompletedAt)
	assert.Nil(t, card.StoryPoints)

	second, err := s.CreateCard(ctx, board.ID, "Second", nil)
	require.NoError(t, err)
	assert.Equal(t, card.Position+1, second.Position)
}

func TestCreateCardInForeignColumnRejected(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	one := seedBoard(t, s)
	two := seedBoard(t, s)
	foreign := columnByName(t, two, "To Do")

	_, err := s.CreateCard(ctx, one.ID, "Task", &foreign.ID)
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestAssignCardIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	sp := seedSprint(t, s, board.ID, "Sprint 1")
	card, err := s.CreateCard(ctx, board.ID, "Task", nil)
	require.NoError(t, err)

	first, err := s.AssignCardToSprint(ctx, card.ID, sp.ID)
	require.NoError(t, err)
	rev, err := s.BoardRevision(ctx, board.ID)
	require.NoError(t, err)

	second, err := s.AssignCardToSprint(ctx, card.ID, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, first.SprintIDs, second.SprintIDs)
	assert.Equal(t, []int64{sp.ID}, second.SprintIDs)

	same, err := s.BoardRevision(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, rev, same)
}

func TestUnassignNonMemberIsNoop(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	sp := seedSprint(t, s, board.ID, "Sprint 1")
	card, err := s.CreateCard(ctx, board.ID, "Task", nil)
	require.NoError(t, err)

	got, err := s.UnassignCardFromSprint(ctx, card.ID, sp.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SprintIDs)
}

func TestMultipleSprintMembership(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	a := seedSprint(t, s, board.ID, "A")
	b := seedSprint(t, s, board.ID, "B")
	card, err := s.CreateCard(ctx, board.ID, "Task", nil)
	require.NoError(t, err)

	_, err = s.AssignCardToSprint(ctx, card.ID, a.ID)
	require.NoError(t, err)
	card, err = s.AssignCardToSprint(ctx, card.ID, b.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, card.SprintIDs)
	require.NotNil(t, card.PrimarySprintID)
	assert.Equal(t, b.ID, *card.PrimarySprintID)

	clock.Advance(time.Hour)
	_, err = s.StartSprint(ctx, a.ID)
	require.NoError(t, err)
	card, err = s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, *card.PrimarySprintID)

	inA, err := s.CardsInSprint(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, inA, 1)

	backlog, err := s.CardsInBacklog(ctx, board.ID)
	require.NoError(t, err)
	assert.Empty(t, backlog)

	card, err = s.UnassignCardFromSprint(ctx, card.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, card.SprintIDs)
}

func TestAssignAcrossBoardsRejected(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	one := seedBoard(t, s)
	two := seedBoard(t, s)
	sp := seedSprint(t, s, two.ID, "Other")
	card, err := s.CreateCard(ctx, one.ID, "Task", nil)
	require.NoError(t, err)

	_, err = s.AssignCardToSprint(ctx, card.ID, sp.ID)
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = s.AssignCardToSprint(ctx, card.ID, 9999)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.AssignCardToSprint(ctx, 9999, sp.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestMoveCardTracksCompletion(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	done := columnByName(t, board, "Done")
	doing := columnByName(t, board, "In Progress")

	card, err := s.CreateCard(ctx, board.ID, "Task", &doing.ID)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	card, err = s.MoveCard(ctx, card.ID, done.ID)
	require.NoError(t, err)
	require.NotNil(t, card.CompletedAt)
	assert.Equal(t, clock.Now(), *card.CompletedAt)

	clock.Advance(time.Hour)
	card, err = s.MoveCard(ctx, card.ID, doing.ID)
	require.NoError(t, err)
	assert.Nil(t, card.CompletedAt)
	assert.Equal(t, doing.ID, card.ColumnID)
}

func TestMoveCardToBacklogColumnClearsAllMemberships(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	active := seedSprint(t, s, board.ID, "Active")
	future := seedSprint(t, s, board.ID, "Future")
	_, err := s.StartSprint(ctx, active.ID)
	require.NoError(t, err)

	doing := columnByName(t, board, "In Progress")
	card, err := s.CreateCard(ctx, board.ID, "Task", &doing.ID)
	require.NoError(t, err)
	_, err = s.AssignCardToSprint(ctx, card.ID, active.ID)
	require.NoError(t, err)
	_, err = s.AssignCardToSprint(ctx, card.ID, future.ID)
	require.NoError(t, err)

	card, err = s.MoveCard(ctx, card.ID, columnByName(t, board, "Backlog").ID)
	require.NoError(t, err)
	assert.Empty(t, card.SprintIDs)
	assert.True(t, card.InBacklog())
}

// Which memberships entering the backlog column should drop is still an open
// product question; this covers the alternative reading behind the policy switch.
func TestMoveCardToBacklogColumnClearActiveOnly(t *testing.T) {
	s, _ := newTestStore(t, WithBacklogPolicy(ClearActiveMembership))
	ctx := context.Background()
	board := seedBoard(t, s)
	active := seedSprint(t, s, board.ID, "Active")
	future := seedSprint(t, s, board.ID, "Future")
	_, err := s.StartSprint(ctx, active.ID)
	require.NoError(t, err)

	doing := columnByName(t, board, "In Progress")
	card, err := s.CreateCard(ctx, board.ID, "Task", &doing.ID)
	require.NoError(t, err)
	_, err = s.AssignCardToSprint(ctx, card.ID, active.ID)
	require.NoError(t, err)
	_, err = s.AssignCardToSprint(ctx, card.ID, future.ID)
	require.NoError(t, err)

	card, err = s.MoveCard(ctx, card.ID, columnByName(t, board, "Backlog").ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{future.ID}, card.SprintIDs)
}

func TestMoveCardKeepPolicy(t *testing.T) {
	s, _ := newTestStore(t, WithBacklogPolicy(KeepMemberships))
	ctx := context.Background()
	board := seedBoard(t, s)
	sp := seedSprint(t, s, board.ID, "Sprint")
	doing := columnByName(t, board, "In Progress")
	card, err := s.CreateCard(ctx, board.ID, "Task", &doing.ID)
	require.NoError(t, err)
	_, err = s.AssignCardToSprint(ctx, card.ID, sp.ID)
	require.NoError(t, err)

	card, err = s.MoveCard(ctx, card.ID, columnByName(t, board, "Backlog").ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{sp.ID}, card.SprintIDs)
}

func TestSetStoryPointsRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	card, err := s.CreateCard(ctx, board.ID, "Task", nil)
	require.NoError(t, err)

	five := 5
	card, err = s.SetStoryPoints(ctx, card.ID, &five)
	require.NoError(t, err)
	require.NotNil(t, card.StoryPoints)
	assert.Equal(t, 5, *card.StoryPoints)

	card, err = s.SetStoryPoints(ctx, card.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, card.StoryPoints)

	_, err = s.SetStoryPoints(ctx, 404, &five)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestCaptureSnapshotOncePerDay(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	_, err := s.CreateCard(ctx, board.ID, "Task", nil)
	require.NoError(t, err)

	captured, err := s.CaptureSnapshot(ctx, board.ID, "2024-03-04")
	require.NoError(t, err)
	assert.True(t, captured)

	_, err = s.CreateCard(ctx, board.ID, "Another", nil)
	require.NoError(t, err)
	captured, err = s.CaptureSnapshot(ctx, board.ID, "2024-03-04")
	require.NoError(t, err)
	assert.False(t, captured)

	snaps, err := s.SnapshotsBetween(ctx, board.ID, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Len(t, snaps[0].Columns, 4)
	assert.Equal(t, "Backlog", snaps[0].Columns[0].ColumnName)
	assert.Equal(t, 1, snaps[0].Columns[0].CardCount)

	_, err = s.CaptureSnapshot(ctx, 404, "2024-03-04")
	require.ErrorIs(t, err, models.ErrNotFound)
}
