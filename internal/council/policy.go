package council

import (
	"regimen/internal/config"
	"regimen/internal/domain"
)

// Policy is the compiled form of the config's council tables. Compiling once
// keeps Evaluate free of yaml-shaped lookups.
type Policy struct {
	OverrideUrgency     float64
	AlertUrgency        float64
	ConstraintPenalty   float64
	UpcomingCount       int
	StimulantCutoffHour int
	RecoveryFloor       float64

	tod        map[string]map[string]float64
	violations map[string]map[string]bool
}

// PolicyFromConfig compiles config tables into a Policy. The config must
// already be validated.
func PolicyFromConfig(cfg *config.Config) Policy {
	p := Policy{
		OverrideUrgency:     cfg.Council.OverrideUrgency,
		AlertUrgency:        cfg.Council.AlertUrgency,
		ConstraintPenalty:   cfg.Council.ConstraintPenalty,
		UpcomingCount:       cfg.Council.UpcomingCount,
		StimulantCutoffHour: cfg.Profile.StimulantCutoffHour,
		RecoveryFloor:       cfg.Profile.RecoveryFloor,
		tod:                 map[string]map[string]float64{},
		violations:          map[string]map[string]bool{},
	}
	for _, rule := range cfg.TimeOfDay {
		if p.tod[rule.Domain] == nil {
			p.tod[rule.Domain] = map[string]float64{}
		}
		p.tod[rule.Domain][rule.Bucket] = rule.Delta
	}
	for _, rule := range cfg.Violations {
		if p.violations[rule.Category] == nil {
			p.violations[rule.Category] = map[string]bool{}
		}
		p.violations[rule.Category][rule.Constraint] = true
	}
	return p
}

// Violates reports whether actions of the category violate the constraint.
func (p Policy) Violates(category, constraint string) bool {
	return p.violations[category][constraint]
}

// TimeOfDayDelta returns the additive urgency modifier for a domain at the
// given hour.
func (p Policy) TimeOfDayDelta(dom string, hour int) float64 {
	return p.tod[dom][bucketFor(hour)]
}

// AdjustUrgency applies the time-of-day modifier and clamps back to [0,100].
func (p Policy) AdjustUrgency(c domain.ActionCandidate, hour int) float64 {
	return domain.Clamp(c.Urgency+p.TimeOfDayDelta(c.Domain, hour), 0, 100)
}

// bucketFor maps an hour of day onto a named time bucket.
func bucketFor(hour int) string {
	switch {
	case hour >= 22 || hour < 5:
		return "night"
	case hour < 11:
		return "morning"
	case hour < 14:
		return "midday"
	case hour < 17:
		return "afternoon"
	default:
		return "evening"
	}
}
