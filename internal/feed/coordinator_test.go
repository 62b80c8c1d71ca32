package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldLoadMore(t *testing.T) {
	eligible := ScrollState{DistanceFromTop: 0, HasMoreOlder: true, ItemCount: 10}

	cases := []struct {
		name   string
		mutate func(*ScrollState)
		want   bool
	}{
		{"at top with more history", func(*ScrollState) {}, true},
		{"below threshold", func(s *ScrollState) { s.DistanceFromTop = 50 }, false},
		{"fetch in flight", func(s *ScrollState) { s.IsFetchingOlder = true }, false},
		{"history exhausted", func(s *ScrollState) { s.HasMoreOlder = false }, false},
		{"errored", func(s *ScrollState) { s.Errored = true }, false},
		{"nothing loaded", func(s *ScrollState) { s.ItemCount = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := eligible
			tc.mutate(&s)
			assert.Equal(t, tc.want, ShouldLoadMore(s, 0))
		})
	}
}

func TestCoordinatorFiresOncePerCrossing(t *testing.T) {
	var loads int
	c := NewCoordinator(20, func() { loads++ })
	state := func(distance float64) ScrollState {
		return ScrollState{DistanceFromTop: distance, HasMoreOlder: true, ItemCount: 10}
	}

	assert.False(t, c.Observe(state(300)))
	assert.True(t, c.Observe(state(15)))
	assert.False(t, c.Observe(state(10)))
	assert.False(t, c.Observe(state(0)))
	assert.Equal(t, 1, loads)

	assert.False(t, c.Observe(state(120)))
	assert.True(t, c.Observe(state(5)))
	assert.Equal(t, 2, loads)
}

func TestCoordinatorWaitsForInFlightFetch(t *testing.T) {
	var loads int
	c := NewCoordinator(0, func() { loads++ })

	for i := 0; i < 5; i++ {
		c.Observe(ScrollState{DistanceFromTop: 0, IsFetchingOlder: true, HasMoreOlder: true, ItemCount: 10})
	}
	assert.Zero(t, loads)

	assert.True(t, c.Observe(ScrollState{DistanceFromTop: 0, HasMoreOlder: true, ItemCount: 10}))
	assert.Equal(t, 1, loads)
}

func TestCoordinatorStopsWhenHistoryExhausted(t *testing.T) {
	var loads int
	c := NewCoordinator(0, func() { loads++ })

	for i := 0; i < 3; i++ {
		c.Observe(ScrollState{DistanceFromTop: 100, ItemCount: 20})
		c.Observe(ScrollState{DistanceFromTop: 0, ItemCount: 20})
	}
	assert.Zero(t, loads)
}

func TestCoordinatorRearm(t *testing.T) {
	var loads int
	c := NewCoordinator(0, func() { loads++ })
	s := ScrollState{HasMoreOlder: true, ItemCount: 3}

	assert.True(t, c.Observe(s))
	assert.False(t, c.Observe(s))
	c.Rearm()
	assert.True(t, c.Observe(s))
	assert.Equal(t, 2, loads)
}
