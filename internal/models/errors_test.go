package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	err := Conflictf("board %d already has an active sprint", 7)

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrState))
	assert.Equal(t, "board 7 already has an active sprint", err.Error())

	wrapped := fmt.Errorf("start sprint: %w", err)
	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.Equal(t, KindConflict, KindOf(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
	assert.Equal(t, KindNotFound, KindOf(NotFoundf("sprint not found")))
}

func TestCardMembershipHelpers(t *testing.T) {
	c := Card{}
	assert.True(t, c.InBacklog())

	c.SprintIDs = []int64{3, 9}
	assert.False(t, c.InBacklog())
	assert.True(t, c.HasSprint(9))
	assert.False(t, c.HasSprint(4))
}
