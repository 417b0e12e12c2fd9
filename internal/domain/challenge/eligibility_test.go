package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Evaluate(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name     string
		state    ChallengeState
		eligible bool
		missDays int
		missView int64
	}{
		{"all days, views above threshold", ChallengeState{TotalDays: 21, TotalViews: 10500}, true, 0, 0},
		{"all days, views below threshold", ChallengeState{TotalDays: 21, TotalViews: 8400}, false, 0, 1601},
		{"views exactly at threshold", ChallengeState{TotalDays: 21, TotalViews: 10000}, false, 0, 1},
		{"missing days", ChallengeState{TotalDays: 20, TotalViews: 50000}, false, 1, 0},
		{"more days than challenge length", ChallengeState{TotalDays: 30, TotalViews: 10001}, true, 0, 0},
		{"nothing yet", ChallengeState{}, false, 21, 10001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := policy.Evaluate(tt.state)
			assert.Equal(t, tt.eligible, v.Eligible)
			assert.Equal(t, tt.state.TotalDays, v.TotalDays)
			assert.Equal(t, tt.state.TotalViews, v.TotalViews)
			assert.Equal(t, tt.missDays, v.MissingDays)
			assert.Equal(t, tt.missView, v.MissingViews)
		})
	}
}

func TestPolicy_EvaluateIsPure(t *testing.T) {
	state := ChallengeState{TotalDays: 21, TotalViews: 12000, TotalLikes: 5}
	p := DefaultPolicy()
	assert.Equal(t, p.Evaluate(state), p.Evaluate(state))
}

func TestPolicy_Custom(t *testing.T) {
	p := Policy{MinDays: 7, MinViews: 100}
	assert.True(t, p.Evaluate(ChallengeState{TotalDays: 7, TotalViews: 101}).Eligible)
	assert.False(t, p.Evaluate(ChallengeState{TotalDays: 6, TotalViews: 101}).Eligible)
}
