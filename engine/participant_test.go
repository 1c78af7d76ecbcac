package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRosterAddRemove(t *testing.T) {
	r := NewRoster()
	require.NoError(t, r.Add(&Participant{Name: "alice"}))
	require.NoError(t, r.Add(&Participant{Name: "봇1", Bot: true}))
	assert.ErrorIs(t, r.Add(&Participant{Name: "alice"}), ErrNameTaken)

	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Joined("alice"))
	assert.True(t, r.IsBot("봇1"))
	assert.False(t, r.IsBot("alice"))
	assert.False(t, r.IsBot("ghost"))
	assert.Equal(t, []string{"alice", "봇1"}, r.Names())

	gone := r.Remove("alice")
	require.NotNil(t, gone)
	assert.Nil(t, r.Remove("alice"))
	assert.Equal(t, []string{"봇1"}, r.Names())
}

func TestRosterAssignScribePicksLongestJoinedBot(t *testing.T) {
	r := NewRoster()
	require.NoError(t, r.Add(&Participant{Name: "alice"}))
	assert.Nil(t, r.AssignScribe(), "no bot joined")

	require.NoError(t, r.Add(&Participant{Name: "봇1", Bot: true}))
	require.NoError(t, r.Add(&Participant{Name: "봇2", Bot: true}))

	s := r.AssignScribe()
	require.NotNil(t, s)
	assert.Equal(t, "봇1", s.Name)
	assert.Same(t, s, r.AssignScribe(), "the holder keeps the role")

	r.Remove("봇1")
	assert.Nil(t, r.Scribe())
	assert.Equal(t, "봇2", r.AssignScribe().Name)
}

func TestNewSamplingStaysInRange(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		s := newSampling(rnd)
		assert.GreaterOrEqual(t, s.Temperature, 0.6)
		assert.Less(t, s.Temperature, 1.1)
		assert.GreaterOrEqual(t, s.TopP, 0.8)
		assert.LessOrEqual(t, s.TopP, 1.0)
		assert.GreaterOrEqual(t, s.TopK, 20)
		assert.LessOrEqual(t, s.TopK, 50)
	}
}
