package council

import (
	"fmt"

	"regimen/internal/domain"
)

// hydrationExpert tracks fluid balance. Deliberately the simplest expert:
// one signal, one candidate, no constraints.
type hydrationExpert struct{}

func (hydrationExpert) Domain() string { return domain.DomainHydration }

func (hydrationExpert) Analyze(s domain.DomainState, cx domain.Context) domain.Analysis {
	a := domain.Analysis{Score: s.Score}
	if deficit := s.Metric("deficit_l", 0); deficit >= 0.5 {
		a.Concerns = append(a.Concerns, fmt.Sprintf("fluid deficit at %.1fL", deficit))
	}
	return a
}

func (hydrationExpert) Candidates(s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	deficit := s.Metric("deficit_l", 0)
	if deficit < 0.5 || !cx.Awake() {
		return nil
	}
	return []domain.ActionCandidate{{
		ID:          "hydration.drink",
		Category:    domain.CategoryDrinking,
		Title:       "Drink water",
		Description: "500ml now, more over the next hour if the deficit is large.",
		Urgency:     domain.Clamp(deficit*40, 0, 100),
		Impact:      60,
		DurationMin: 5,
		Rationale:   fmt.Sprintf("Roughly %.1fL behind on fluids today.", deficit),
	}}
}

func (hydrationExpert) Weight(s domain.DomainState, cx domain.Context) float64 {
	return domain.Clamp((100-s.Score)/100, 0, 1)
}

func (hydrationExpert) Constraints(s domain.DomainState, cx domain.Context) []string { return nil }

func (hydrationExpert) Compromises(primary domain.ActionCandidate, s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	if primary.ID != "hydration.drink" {
		return nil
	}
	return []domain.ActionCandidate{{
		ID:          "hydration.electrolyte_sip",
		Category:    domain.CategoryDrinking,
		Title:       "Sip an electrolyte drink",
		Urgency:     domain.Clamp(primary.Urgency-10, 0, 100),
		Impact:      45,
		DurationMin: 5,
		Rationale:   "Smaller volume, better retention.",
	}}
}
