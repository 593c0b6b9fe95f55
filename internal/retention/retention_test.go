package retention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreBounds(t *testing.T) {
	tests := []struct {
		name        string
		ageHours    float64
		importance  float64
		accessCount int
	}{
		{"fresh", 0, 0.5, 1},
		{"old important", 720, 0.9, 1},
		{"old unimportant", 24, 0.2, 1},
		{"heavily accessed", 100, 0.7, 50},
		{"zero importance", 1, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Score(tt.ageHours, tt.importance, tt.accessCount)
			assert.GreaterOrEqual(t, r, 0.0)
			assert.LessOrEqual(t, r, 1.0)
		})
	}
}

func TestScoreMonotonicInAge(t *testing.T) {
	// For fixed importance and access count, retention never increases
	// with age.
	prev := 1.0
	for age := 0.0; age <= 720; age += 6 {
		r := Score(age, 0.6, 3)
		if r > prev {
			t.Fatalf("retention increased with age: %f at %fh > %f", r, age, prev)
		}
		prev = r
	}
}

func TestScoreFresh(t *testing.T) {
	assert.Equal(t, 1.0, Score(0, 0.5, 1))
	assert.Equal(t, 1.0, Score(-1, 0.5, 1))
}

func TestScoreZeroImportance(t *testing.T) {
	// Unimportant memories vanish fast, by design.
	assert.Equal(t, 0.0, Score(0.001, 0, 1))
}

func TestScoreDecayShape(t *testing.T) {
	// A low-importance item decays below 0.05 within a day.
	low := Score(24, 0.2, 1)
	assert.Less(t, low, 0.05)

	// A high-importance heavily-recalled item holds on for a month.
	high := Score(720, 0.9, 200)
	assert.Greater(t, high, 0.5*Score(720, 0.2, 200))
}

func TestAccessSlowsDecay(t *testing.T) {
	once := Score(48, 0.5, 1)
	often := Score(48, 0.5, 25)
	assert.Greater(t, often, once)
}

func TestStrength(t *testing.T) {
	assert.Greater(t, Strength(0.9, 10), Strength(0.9, 1))
	assert.Equal(t, Strength(0.5, 0), Strength(0.5, 1))
}
