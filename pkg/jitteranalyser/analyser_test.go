package jitteranalyser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecommendedSizeStartsAtInit(t *testing.T) {
	a := New(DefaultConfig(3, 9), 4)
	require.Equal(t, 4, a.RecommendedSize())
}

func TestGrowsOnSustainedJitter(t *testing.T) {
	a := New(DefaultConfig(3, 9), 4)

	base := int64(0)
	clockRate := uint32(8000)
	for i := 0; i < 80; i++ {
		arrival := base + int64(i)*20 + int64(i%5)*60 // irregular arrivals simulate jitter
		a.Observe(arrival, uint32(i*160), clockRate)
	}

	require.Greater(t, a.RecommendedSize(), 4)
}

func TestStateStartsNormal(t *testing.T) {
	a := New(DefaultConfig(3, 9), 4)
	require.Equal(t, stateNormal, a.State())
}

func TestStableArrivalsKeepStateCalm(t *testing.T) {
	a := New(DefaultConfig(3, 9), 4)
	clockRate := uint32(8000)
	for i := 0; i < 50; i++ {
		a.Observe(int64(i)*20, uint32(i*160), clockRate)
	}
	// perfectly regular arrivals -> zero jitter -> never classified BAD
	require.NotEqual(t, stateBad, a.State())
}
