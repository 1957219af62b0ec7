package exitcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(NotOwner, "peer QmA", nil)
	require.ErrorIs(t, err, ErrNotOwner)
	require.NotErrorIs(t, err, ErrNotExists)

	wrapped := fmt.Errorf("edit checker: %w", err)
	require.ErrorIs(t, wrapped, ErrNotOwner)
	require.Equal(t, NotOwner, CodeOf(wrapped))
}

func TestStoragef(t *testing.T) {
	cause := errors.New("disk full")
	err := Storagef(cause, "put block %s", "X")
	require.Equal(t, Storage, CodeOf(err))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "put block X")

	// Typed errors pass through untouched
	require.Same(t, ErrNotExists, Storagef(ErrNotExists, "ignored"))
	require.NoError(t, Storagef(nil, "nothing"))
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, Ok, CodeOf(nil))
	require.Equal(t, Storage, CodeOf(errors.New("boom")))
	require.Equal(t, AlreadyVoted, CodeOf(ErrAlreadyVoted))
	require.Equal(t, "NotCaller", NotCaller.String())
	require.Equal(t, "Code(42)", Code(42).String())
}
