package apperr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := NotFound("room 100 not found")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)

	wrapped := fmt.Errorf("join: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotFound)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeLaunchFailed, CodeOf(Wrap(CodeLaunchFailed, "spawn", io.EOF)))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.False(t, IsDomain(errors.New("boom")))
	assert.True(t, IsDomain(Conflict("game started")))
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(CodeFraming, "truncated payload", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "truncated payload: unexpected EOF", err.Error())
	assert.Equal(t, "truncated payload", MessageOf(err))
}
