package actorid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPool_AcquireExhaustion(t *testing.T) {
	p := New(1, 2)

	l1, err := p.Acquire()
	require.NoError(t, err)
	l2, err := p.Acquire()
	require.NoError(t, err)

	_, err = p.Acquire()
	assert.ErrorIs(t, err, ErrExhausted)

	l1.Release()
	l3, err := p.Acquire()
	require.NoError(t, err)
	assert.True(t, p.Valid(l3.ID()))

	l2.Release()
	l3.Release()
}

func TestPool_ReleaseBumpsGenerationAndInvalidatesStaleID(t *testing.T) {
	p := New(1, 1)

	l1, err := p.Acquire()
	require.NoError(t, err)
	staleID := l1.ID()
	assert.True(t, p.Valid(staleID))

	l1.Release()
	assert.False(t, p.Valid(staleID), "id from a recycled slot must be rejected")

	l2, err := p.Acquire()
	require.NoError(t, err)
	assert.NotEqual(t, staleID.Generation, l2.ID().Generation)
	assert.True(t, p.Valid(l2.ID()))
	assert.False(t, p.Valid(staleID))
}

func TestPool_UnknownSlotOrSystemIsInvalid(t *testing.T) {
	p := New(7, 1)
	l, err := p.Acquire()
	require.NoError(t, err)
	defer l.Release()

	assert.False(t, p.Valid(ID{System: 7, Slot: 5, Generation: l.ID().Generation}))
	assert.False(t, p.Valid(ID{System: 8, Slot: l.ID().Slot, Generation: l.ID().Generation}))
}

// TestPool_LeaseExclusivityProperty drives randomized acquire/release
// sequences and checks that at most Cap() slots are ever simultaneously
// valid, and that every currently-valid ID is unique: at most one runner
// is ever bound to a given slot at a time.
func TestPool_LeaseExclusivityProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 8).Draw(rt, "capacity")
		p := New(1, capacity)

		var held []*Lease
		steps := rapid.IntRange(1, 200).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if len(held) > 0 && rapid.Boolean().Draw(rt, "release") {
				idx := rapid.IntRange(0, len(held)-1).Draw(rt, "which")
				held[idx].Release()
				held = append(held[:idx], held[idx+1:]...)
				continue
			}
			l, err := p.Acquire()
			if err != nil {
				assert.ErrorIs(rt, err, ErrExhausted)
				assert.Len(rt, held, capacity)
				continue
			}
			held = append(held, l)
		}

		seen := make(map[ID]bool, len(held))
		for _, l := range held {
			id := l.ID()
			assert.True(rt, p.Valid(id))
			assert.False(rt, seen[id], "duplicate live id %v", id)
			seen[id] = true
		}
		for _, l := range held {
			l.Release()
		}
	})
}
