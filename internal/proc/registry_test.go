package proc

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_CancelKillsOnce(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	kills := 0
	reg.Track("task1", func() { kills++ })

	assert.True(t, reg.Cancel("task1"))
	assert.Equal(t, 1, kills)

	// Second cancel for the same key is a no-op.
	assert.False(t, reg.Cancel("task1"))
	assert.Equal(t, 1, kills)
}

func TestRegistry_CancelAbsentKey(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	assert.False(t, reg.Cancel("ghost"))
}

func TestRegistry_UntrackSkipsKill(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	kills := 0
	reg.Track("task1", func() { kills++ })
	reg.Untrack("task1")

	assert.False(t, reg.Cancel("task1"))
	assert.Equal(t, 0, kills)

	// Untracking again is harmless.
	reg.Untrack("task1")
}

func TestRegistry_CancelAll(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	kills := 0
	reg.Track("a", func() { kills++ })
	reg.Track("b", func() { kills++ })
	reg.Track("c", func() { kills++ })

	assert.Equal(t, 3, reg.CancelAll())
	assert.Equal(t, 3, kills)
	assert.Empty(t, reg.Active())
	assert.Equal(t, 0, reg.CancelAll())
}

func TestRegistry_Active(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.Track("a", func() {})
	reg.Track("b", func() {})

	assert.ElementsMatch(t, []string{"a", "b"}, reg.Active())
}
