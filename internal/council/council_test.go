package council

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regimen/internal/config"
	"regimen/internal/domain"
)

func testCouncil(t *testing.T) *Council {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(PolicyFromConfig(config.Default()), logger)
}

// daytimeContext is a mid-morning frame with the default wake window and no
// sessions on the schedule.
func daytimeContext(hour int) domain.Context {
	return domain.Context{
		Hour:        hour,
		MinuteOfDay: hour * 60,
		WakeMinute:  6*60 + 30,
		BedMinute:   22*60 + 30,
		Weekday:     time.Wednesday,
	}
}

func neutralSnapshot() domain.Snapshot {
	states := []domain.DomainState{}
	for _, d := range []string{
		domain.DomainCircadian, domain.DomainFuel, domain.DomainHydration,
		domain.DomainMindspace, domain.DomainPerformance, domain.DomainRecovery,
	} {
		states = append(states, domain.DomainState{Domain: d, Score: 70})
	}
	return domain.Snapshot{States: states}
}

func setScore(snap *domain.Snapshot, dom string, score float64) {
	for i := range snap.States {
		if snap.States[i].Domain == dom {
			snap.States[i].Score = score
			return
		}
	}
}

func TestSteadyStateWhenNothingToPropose(t *testing.T) {
	c := testCouncil(t)
	res := c.Evaluate(neutralSnapshot(), daytimeContext(10))

	assert.Equal(t, "council.steady_state", res.Commander.ID)
	assert.Empty(t, res.Ranked)
	assert.Empty(t, res.Upcoming)
	assert.Empty(t, res.Alerts)
	assert.Empty(t, res.Suppressed)
}

func TestCollapsedRecoveryCommandsFullRest(t *testing.T) {
	c := testCouncil(t)
	snap := neutralSnapshot()
	setScore(&snap, domain.DomainRecovery, 25)

	res := c.Evaluate(snap, daytimeContext(10))

	require.NotEmpty(t, res.Ranked)
	assert.Equal(t, "recovery.full_rest", res.Commander.ID)
	assert.Equal(t, float64(100), res.Commander.Urgency)
	assert.Equal(t, domain.DomainRecovery, res.FocusDomain)

	// Maximum urgency with no time window must surface as an alert.
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "recovery.full_rest", res.Alerts[0].ID)
}

func TestFullRestSurvivesNightDeferral(t *testing.T) {
	c := testCouncil(t)
	snap := neutralSnapshot()
	setScore(&snap, domain.DomainRecovery, 25)

	cx := daytimeContext(23) // outside the wake window
	res := c.Evaluate(snap, cx)

	assert.Equal(t, "recovery.full_rest", res.Commander.ID)
	for _, s := range res.Suppressed {
		assert.NotEqual(t, "recovery.full_rest", s.ActionID)
	}
}

func TestPostTrainingMealDowngradesNearBed(t *testing.T) {
	c := testCouncil(t)
	snap := neutralSnapshot()

	cx := daytimeContext(21) // 90 minutes to a 22:30 bed time
	cx.LastSession = &domain.SessionRef{Type: "training", Minutes: -30}

	res := c.Evaluate(snap, cx)

	var shake *domain.ScoredAction
	for i := range res.Ranked {
		require.NotEqual(t, "fuel.post_training_meal", res.Ranked[i].ID,
			"heavy meal must not survive the digestive-load veto")
		if res.Ranked[i].ID == "fuel.recovery_shake" {
			shake = &res.Ranked[i]
		}
	}
	require.NotNil(t, shake, "compromise shake should replace the meal")
	assert.Equal(t, float64(85), shake.Urgency)
	assert.Contains(t, shake.Rationale, "downgraded due to digestive_load_risk")

	// Urgency 85 with no window also crosses the alert threshold.
	ids := []string{}
	for _, a := range res.Alerts {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, "fuel.recovery_shake")
}

func TestStimulantDeferredPastCutoff(t *testing.T) {
	c := testCouncil(t)
	snap := neutralSnapshot()
	setScore(&snap, domain.DomainMindspace, 50)

	// Bed time pushed to 02:00 so the circadian stimulant constraint is not
	// yet active; only the cutoff deferral should fire.
	cx := daytimeContext(17)
	cx.BedMinute = 2 * 60

	res := c.Evaluate(snap, cx)

	for _, sa := range res.Ranked {
		assert.NotEqual(t, "mindspace.caffeine", sa.ID)
	}
	reasons := map[string]string{}
	for _, s := range res.Suppressed {
		reasons[s.ActionID] = s.Reason
	}
	require.Contains(t, reasons, "mindspace.caffeine")
	assert.Contains(t, reasons["mindspace.caffeine"], "cutoff")
}

func TestStimulantVetoedNearBedTakesCompromise(t *testing.T) {
	c := testCouncil(t)
	snap := neutralSnapshot()
	setScore(&snap, domain.DomainMindspace, 50)

	// 15:00 with the default bed time: inside the 8h stimulant constraint
	// horizon but before the 16:00 cutoff, so negotiation fires, not the
	// deferral filter.
	cx := daytimeContext(15)

	res := c.Evaluate(snap, cx)

	ids := map[string]bool{}
	for _, sa := range res.Ranked {
		ids[sa.ID] = true
	}
	assert.False(t, ids["mindspace.caffeine"])
	assert.True(t, ids["mindspace.walk"])
}

func TestEvaluateIsDeterministic(t *testing.T) {
	c := testCouncil(t)
	snap := neutralSnapshot()
	setScore(&snap, domain.DomainRecovery, 35)
	setScore(&snap, domain.DomainHydration, 50)
	snap.States[2].Metrics = map[string]float64{"deficit_l": 1.2}

	cx := daytimeContext(9)
	cx.NextSession = &domain.SessionRef{Type: "training", Minutes: 45}

	first := c.Evaluate(snap, cx)
	second := c.Evaluate(snap, cx)
	assert.Equal(t, first, second)
}

func TestEvaluateDoesNotMutateSnapshot(t *testing.T) {
	c := testCouncil(t)
	snap := neutralSnapshot()
	snap.States[2].Metrics = map[string]float64{"deficit_l": 2}
	before := snap.Clone()

	c.Evaluate(snap, daytimeContext(10))
	assert.Equal(t, before, snap)
}

func TestUpcomingCountRespectsPolicy(t *testing.T) {
	c := testCouncil(t)
	snap := neutralSnapshot()
	setScore(&snap, domain.DomainRecovery, 30)
	setScore(&snap, domain.DomainHydration, 40)
	snap.States[2].Metrics = map[string]float64{"deficit_l": 1.5}
	snap.States[5].Metrics = map[string]float64{"soreness_idx": 70}

	res := c.Evaluate(snap, daytimeContext(10))

	require.NotEmpty(t, res.Ranked)
	assert.Equal(t, res.Ranked[0].ID, res.Commander.ID)
	assert.LessOrEqual(t, len(res.Upcoming), c.policy.UpcomingCount)
	if len(res.Upcoming) > 0 {
		assert.Equal(t, res.Ranked[1].ID, res.Upcoming[0].ID)
	}
}

type panicExpert struct{}

func (panicExpert) Domain() string { return "volatile" }
func (panicExpert) Analyze(domain.DomainState, domain.Context) domain.Analysis {
	panic("bad analysis")
}
func (panicExpert) Candidates(domain.DomainState, domain.Context) []domain.ActionCandidate {
	return nil
}
func (panicExpert) Weight(domain.DomainState, domain.Context) float64      { return 1 }
func (panicExpert) Constraints(domain.DomainState, domain.Context) []string { return nil }
func (panicExpert) Compromises(domain.ActionCandidate, domain.DomainState, domain.Context) []domain.ActionCandidate {
	return nil
}

func TestPanickingExpertAbstains(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	experts := append(defaultExperts(), panicExpert{})
	c := NewWithExperts(PolicyFromConfig(config.Default()), logger, experts)

	snap := neutralSnapshot()
	setScore(&snap, domain.DomainRecovery, 25)

	res := c.Evaluate(snap, daytimeContext(10))
	assert.Equal(t, "recovery.full_rest", res.Commander.ID)
	for _, sa := range res.Ranked {
		assert.NotEqual(t, "volatile", sa.Domain)
	}
}

func TestNegotiatePenaltyWithoutCompromise(t *testing.T) {
	c := testCouncil(t)
	ops := []domain.ExpertOpinion{{
		Domain:  domain.DomainFuel,
		Primary: domain.ActionCandidate{ID: "fuel.meal", Category: domain.CategoryEating, Urgency: 80},
		Urgency: 80,
	}}
	active := []activeConstraint{{Tag: domain.ConstraintDigestiveLoad, Owner: domain.DomainCircadian}}

	out := c.negotiate(ops, active)
	require.Len(t, out, 1)
	assert.Equal(t, float64(30), out[0].Urgency)
	assert.Equal(t, float64(30), out[0].Primary.Urgency)
	assert.Equal(t, "fuel.meal", out[0].Primary.ID)
}

func TestNegotiatePenaltyFloorsAtZero(t *testing.T) {
	c := testCouncil(t)
	ops := []domain.ExpertOpinion{{
		Domain:  domain.DomainFuel,
		Primary: domain.ActionCandidate{ID: "fuel.meal", Category: domain.CategoryEating, Urgency: 30},
		Urgency: 30,
	}}
	active := []activeConstraint{{Tag: domain.ConstraintDigestiveLoad, Owner: domain.DomainCircadian}}

	out := c.negotiate(ops, active)
	assert.Equal(t, float64(0), out[0].Urgency)
}

func TestNegotiateSkipsOwnConstraint(t *testing.T) {
	c := testCouncil(t)
	ops := []domain.ExpertOpinion{{
		Domain:  domain.DomainCircadian,
		Primary: domain.ActionCandidate{ID: "circadian.snack", Category: domain.CategoryEating, Urgency: 60},
		Urgency: 60,
	}}
	active := []activeConstraint{{Tag: domain.ConstraintDigestiveLoad, Owner: domain.DomainCircadian}}

	out := c.negotiate(ops, active)
	assert.Equal(t, float64(60), out[0].Urgency)
}

func TestActiveConstraintsSkipZeroUrgency(t *testing.T) {
	ops := []domain.ExpertOpinion{
		{Domain: "a", Urgency: 0, Constraints: []string{domain.ConstraintInjury}},
		{Domain: "b", Urgency: 50, Constraints: []string{domain.ConstraintInjury, domain.ConstraintStimulant}},
		{Domain: "c", Urgency: 40, Constraints: []string{domain.ConstraintStimulant}},
	}
	active := activeConstraints(ops)
	require.Len(t, active, 2)
	assert.Equal(t, activeConstraint{Tag: domain.ConstraintInjury, Owner: "b"}, active[0])
	assert.Equal(t, activeConstraint{Tag: domain.ConstraintStimulant, Owner: "b"}, active[1])
}

func TestOneOpinionPerDomainWithUniqueIDs(t *testing.T) {
	c := testCouncil(t)
	snap := neutralSnapshot()
	setScore(&snap, domain.DomainRecovery, 30)
	setScore(&snap, domain.DomainHydration, 45)
	snap.States[2].Metrics = map[string]float64{"deficit_l": 1.0}

	res := c.Evaluate(snap, daytimeContext(10))

	seenDomain := map[string]bool{}
	seenID := map[string]bool{}
	for _, sa := range res.Ranked {
		assert.False(t, seenDomain[sa.Domain], "domain %s ranked twice", sa.Domain)
		assert.False(t, seenID[sa.ID], "id %s ranked twice", sa.ID)
		seenDomain[sa.Domain] = true
		seenID[sa.ID] = true
	}
}

func TestFocusDomainIsLowestScore(t *testing.T) {
	snap := neutralSnapshot()
	setScore(&snap, domain.DomainMindspace, 41)
	setScore(&snap, domain.DomainHydration, 40)
	assert.Equal(t, domain.DomainHydration, focusDomain(snap))
}

func TestBuildContext(t *testing.T) {
	cfg := config.Default()
	now := time.Date(2026, 3, 14, 15, 4, 0, 0, time.UTC)

	next := &domain.SessionRef{Type: "training", Minutes: 30}
	cx := BuildContext(*cfg, now, next, nil)

	assert.Equal(t, 15, cx.Hour)
	assert.Equal(t, 15*60+4, cx.MinuteOfDay)
	assert.Equal(t, 6*60+30, cx.WakeMinute)
	assert.Equal(t, 22*60+30, cx.BedMinute)
	assert.Equal(t, time.Saturday, cx.Weekday)
	assert.Equal(t, next, cx.NextSession)
	assert.Nil(t, cx.LastSession)
}

func TestSessionRefFor(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	s := &domain.Session{Type: "training", StartAt: "2026-03-14T16:30:00Z"}
	ref := SessionRefFor(s, now)
	require.NotNil(t, ref)
	assert.Equal(t, 90, ref.Minutes)

	past := &domain.Session{Type: "training", StartAt: "2026-03-14T14:00:00Z"}
	assert.Equal(t, -60, SessionRefFor(past, now).Minutes)

	assert.Nil(t, SessionRefFor(nil, now))
	assert.Nil(t, SessionRefFor(&domain.Session{StartAt: "not-a-time"}, now))
}
