package guard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockRejectsNestedEntry(t *testing.T) {
	var l Lock
	require.False(t, l.Held())

	release, err := l.Enter()
	require.NoError(t, err)
	require.True(t, l.Held())

	_, err = l.Enter()
	require.ErrorIs(t, err, ErrReentrantCall)

	release()
	require.False(t, l.Held())

	release, err = l.Enter()
	require.NoError(t, err)
	release()
}
