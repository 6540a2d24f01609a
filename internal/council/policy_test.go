package council

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"regimen/internal/config"
	"regimen/internal/domain"
)

func TestBucketFor(t *testing.T) {
	cases := []struct {
		hour   int
		bucket string
	}{
		{0, "night"}, {4, "night"}, {5, "morning"}, {10, "morning"},
		{11, "midday"}, {13, "midday"}, {14, "afternoon"}, {16, "afternoon"},
		{17, "evening"}, {21, "evening"}, {22, "night"}, {23, "night"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.bucket, bucketFor(tc.hour), "hour %d", tc.hour)
	}
}

func TestPolicyFromDefaultConfig(t *testing.T) {
	p := PolicyFromConfig(config.Default())

	assert.Equal(t, float64(90), p.OverrideUrgency)
	assert.Equal(t, float64(70), p.AlertUrgency)
	assert.Equal(t, float64(50), p.ConstraintPenalty)
	assert.Equal(t, 3, p.UpcomingCount)
	assert.Equal(t, 16, p.StimulantCutoffHour)
	assert.Equal(t, float64(40), p.RecoveryFloor)

	assert.True(t, p.Violates(domain.CategoryEating, domain.ConstraintDigestiveLoad))
	assert.True(t, p.Violates(domain.CategoryStimulant, domain.ConstraintStimulant))
	assert.True(t, p.Violates(domain.CategoryTraining, domain.ConstraintInjury))
	assert.False(t, p.Violates(domain.CategoryRest, domain.ConstraintInjury))
	assert.False(t, p.Violates(domain.CategoryEating, domain.ConstraintStimulant))
}

func TestTimeOfDayDelta(t *testing.T) {
	p := PolicyFromConfig(config.Default())

	assert.Equal(t, float64(15), p.TimeOfDayDelta(domain.DomainFuel, 8))
	assert.Equal(t, float64(-30), p.TimeOfDayDelta(domain.DomainPerformance, 23))
	assert.Equal(t, float64(0), p.TimeOfDayDelta(domain.DomainHydration, 8))
}

func TestAdjustUrgencyClamps(t *testing.T) {
	p := PolicyFromConfig(config.Default())

	high := domain.ActionCandidate{Domain: domain.DomainRecovery, Urgency: 95}
	assert.Equal(t, float64(100), p.AdjustUrgency(high, 23)) // +20 at night, capped

	low := domain.ActionCandidate{Domain: domain.DomainPerformance, Urgency: 10}
	assert.Equal(t, float64(0), p.AdjustUrgency(low, 23)) // -30 at night, floored
}

func TestPriorityScore(t *testing.T) {
	base := domain.ActionCandidate{Urgency: 50, Impact: 50}

	// Monotone in urgency and impact.
	higher := base
	higher.Urgency = 80
	assert.Greater(t, priorityScore(higher, 0, 10), priorityScore(base, 0, 10))
	higher = base
	higher.Impact = 80
	assert.Greater(t, priorityScore(higher, 0, 10), priorityScore(base, 0, 10))

	// Weight multiplies: weight 1 doubles the base score.
	assert.Equal(t, 2*priorityScore(base, 0, 10), priorityScore(base, 1, 10))

	// Window bonus applies only while the window is open.
	windowed := base
	windowed.Window = &domain.TimeWindow{StartHour: 9, EndHour: 11}
	assert.Equal(t, priorityScore(base, 0, 10)+windowBonus, priorityScore(windowed, 0, 10))
	assert.Equal(t, priorityScore(base, 0, 12), priorityScore(windowed, 0, 12))
}

func TestFormOpinionRejectsDuplicateIDs(t *testing.T) {
	_, err := formOpinion(dupExpert{}, domain.DomainState{Domain: "dup", Score: 50}, domain.Context{})
	assert.Error(t, err)
}

type dupExpert struct{}

func (dupExpert) Domain() string                                                { return "dup" }
func (dupExpert) Analyze(domain.DomainState, domain.Context) domain.Analysis    { return domain.Analysis{} }
func (dupExpert) Weight(domain.DomainState, domain.Context) float64             { return 0.5 }
func (dupExpert) Constraints(domain.DomainState, domain.Context) []string       { return nil }
func (dupExpert) Candidates(domain.DomainState, domain.Context) []domain.ActionCandidate {
	return []domain.ActionCandidate{
		{ID: "dup.a", Urgency: 10},
		{ID: "dup.a", Urgency: 20},
	}
}
func (dupExpert) Compromises(domain.ActionCandidate, domain.DomainState, domain.Context) []domain.ActionCandidate {
	return nil
}
