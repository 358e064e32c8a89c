package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardRejectsNestedEntry(t *testing.T) {
	guard := NewGuard()

	require.NoError(t, guard.Enter())
	assert.ErrorIs(t, guard.Enter(), ErrReentrantCall)

	guard.Leave()
	assert.NoError(t, guard.Enter())
	guard.Leave()
}
