package council

import (
	"fmt"

	"regimen/internal/domain"
)

// circadianExpert defends the sleep/wake rhythm. It is the only expert that
// raises digestive and stimulant constraints, both keyed to proximity to
// bed time.
type circadianExpert struct{}

func (circadianExpert) Domain() string { return domain.DomainCircadian }

func (circadianExpert) Analyze(s domain.DomainState, cx domain.Context) domain.Analysis {
	a := domain.Analysis{Score: s.Score}
	debt := s.Metric("sleep_debt_h", 0)
	lastNight := s.Metric("last_night_h", 7.5)
	if debt >= 2 {
		a.Concerns = append(a.Concerns, fmt.Sprintf("sleep debt at %.1fh", debt))
	}
	if lastNight < 6 {
		a.Concerns = append(a.Concerns, fmt.Sprintf("only %.1fh of sleep last night", lastNight))
	}
	if cx.Awake() && cx.MinutesToBed() <= 120 {
		a.Concerns = append(a.Concerns, "approaching bed time")
	}
	return a
}

func (circadianExpert) Candidates(s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	var out []domain.ActionCandidate
	debt := s.Metric("sleep_debt_h", 0)

	if toBed := cx.MinutesToBed(); cx.Awake() && toBed <= 120 {
		// Urgency ramps from 40 at two hours out to 100 at lights-out.
		urgency := domain.Clamp(100-float64(toBed)/2, 40, 100)
		out = append(out, domain.ActionCandidate{
			ID:          "circadian.wind_down",
			Category:    domain.CategorySleep,
			Title:       "Start wind-down routine",
			Description: "Dim lights, screens off, switch to low-stimulation activities.",
			Urgency:     urgency,
			Impact:      70,
			DurationMin: 30,
			Rationale:   fmt.Sprintf("Bed time in %d minutes.", toBed),
		})
	}

	if debt >= 2 && cx.Hour >= 12 && cx.Hour < 16 {
		out = append(out, domain.ActionCandidate{
			ID:          "circadian.nap",
			Category:    domain.CategoryRest,
			Title:       "Take a short nap",
			Description: "20 minutes, before mid-afternoon, to take the edge off sleep debt.",
			Urgency:     domain.Clamp(30+debt*10, 0, 80),
			Impact:      55,
			DurationMin: 20,
			Window:      &domain.TimeWindow{StartHour: 13, EndHour: 15},
			Rationale:   fmt.Sprintf("Sleep debt at %.1fh; a nap now will not push bed time.", debt),
		})
	}
	return out
}

func (circadianExpert) Weight(s domain.DomainState, cx domain.Context) float64 {
	w := (100 - s.Score) / 100
	if cx.Awake() && cx.MinutesToBed() <= 120 {
		w += 0.3
	}
	return domain.Clamp(w, 0, 1)
}

func (circadianExpert) Constraints(s domain.DomainState, cx domain.Context) []string {
	var tags []string
	if cx.Awake() {
		toBed := cx.MinutesToBed()
		if toBed <= 120 {
			// Heavy meals this close to bed disturb sleep onset.
			tags = append(tags, domain.ConstraintDigestiveLoad)
		}
		if toBed <= 8*60 {
			// Caffeine half-life; anything now still circulates at lights-out.
			tags = append(tags, domain.ConstraintStimulant)
		}
	}
	return tags
}

func (circadianExpert) Compromises(primary domain.ActionCandidate, s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	if primary.ID != "circadian.nap" {
		return nil
	}
	return []domain.ActionCandidate{{
		ID:          "circadian.rest_eyes",
		Category:    domain.CategoryRest,
		Title:       "Ten minutes of quiet rest",
		Urgency:     domain.Clamp(primary.Urgency-15, 0, 100),
		Impact:      35,
		DurationMin: 10,
		Rationale:   "Shorter than a nap but still lowers arousal.",
	}}
}
