package gameerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKey(t *testing.T) {
	cause := errors.New("piece 3 already used")
	err := fmt.Errorf("select: %w", ErrInvalidMove.Wrap(cause))

	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotYourTurn)
}

func TestFrom(t *testing.T) {
	e := From(fmt.Errorf("join: %w", ErrGameFull))
	assert.Equal(t, "ERR_GAME_FULL", e.Key)
	assert.Equal(t, KindConflict, e.Kind)

	e = From(errors.New("boom"))
	assert.Equal(t, ErrInternal.Key, e.Key)
	assert.Equal(t, KindInternal, e.Kind)
	assert.Contains(t, e.Error(), "boom")
}

func TestWrapDoesNotMutateSentinel(t *testing.T) {
	_ = ErrGameNotFound.Wrap(errors.New("x"))
	assert.Nil(t, ErrGameNotFound.Cause)
}
