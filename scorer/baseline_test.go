package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStats(t *testing.T) {
	mean, stddev := stats([]float64{72, 74, 76, 78})
	assert.InDelta(t, 75.0, mean, 1e-9)
	assert.InDelta(t, 2.23606, stddev, 1e-4)

	mean, stddev = stats(nil)
	assert.Zero(t, mean)
	assert.Zero(t, stddev)
}

func TestZScoreFlatBaseline(t *testing.T) {
	// a perfectly flat baseline must not divide by zero
	z := zScore(75, 72, 0)
	assert.InDelta(t, 300.0, z, 1e-9)

	assert.Zero(t, zScore(72, 72, 0))
}

func TestMapZScoreBands(t *testing.T) {
	cases := []struct {
		z        float64
		score    float64
		severity string
	}{
		{0, 0, "normal"},
		{0.5, 0.1, "normal"},
		{1.0, 0.2, "normal"},
		{1.5, 0.3, "low"},
		{2.0, 0.4, "low"},
		{2.5, 0.5, "medium"},
		{3.0, 0.6, "medium"},
		{3.5, 0.7, "high"},
		{4.0, 0.8, "high"},
		{5.0, 0.85, "critical"},
		{10.0, 1.0, "critical"},
		{100.0, 1.0, "critical"},
	}
	for _, tc := range cases {
		score, severity := mapZScore(tc.z)
		assert.InDelta(t, tc.score, score, 1e-9, "z=%v", tc.z)
		assert.Equal(t, tc.severity, severity, "z=%v", tc.z)
	}
}

func TestMapZScoreMonotonic(t *testing.T) {
	prev := -1.0
	for z := 0.0; z <= 8.0; z += 0.1 {
		score, _ := mapZScore(z)
		assert.GreaterOrEqual(t, score, prev, "z=%v", z)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
		prev = score
	}
}
