package council

import (
	"fmt"

	"regimen/internal/domain"
)

// recoveryExpert is the council's brake. A collapsed recovery score
// produces a full-rest order at maximum urgency, which clears the deferral
// override threshold and cannot be filtered out.
type recoveryExpert struct{}

// collapseScore is the recovery score below which everything else yields.
const collapseScore = 40

func (recoveryExpert) Domain() string { return domain.DomainRecovery }

func (recoveryExpert) Analyze(s domain.DomainState, cx domain.Context) domain.Analysis {
	a := domain.Analysis{Score: s.Score}
	if s.Score < collapseScore {
		a.Concerns = append(a.Concerns, fmt.Sprintf("recovery collapsed to %.0f", s.Score))
	}
	if soreness := s.Metric("soreness_idx", 20); soreness >= 60 {
		a.Concerns = append(a.Concerns, fmt.Sprintf("soreness index at %.0f", soreness))
	}
	if rhr := s.Metric("rhr_delta", 0); rhr >= 5 {
		a.Concerns = append(a.Concerns, fmt.Sprintf("resting heart rate %.0f over baseline", rhr))
	}
	return a
}

func (recoveryExpert) Candidates(s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	if s.Score < collapseScore {
		return []domain.ActionCandidate{{
			ID:          "recovery.full_rest",
			Category:    domain.CategoryRest,
			Title:       "Full rest day",
			Description: "No training, no hard cognitive work. Sleep, food, walks only.",
			Urgency:     100,
			Impact:      90,
			Rationale:   fmt.Sprintf("Recovery score at %.0f; pushing through makes everything worse.", s.Score),
		}}
	}

	var out []domain.ActionCandidate
	if soreness := s.Metric("soreness_idx", 20); soreness >= 60 {
		out = append(out, domain.ActionCandidate{
			ID:          "recovery.mobility",
			Category:    domain.CategoryRest,
			Title:       "Mobility and soft-tissue work",
			Urgency:     domain.Clamp(soreness-10, 0, 80),
			Impact:      55,
			DurationMin: 20,
			Rationale:   fmt.Sprintf("Soreness index at %.0f.", soreness),
		})
	}
	if rhr := s.Metric("rhr_delta", 0); rhr >= 5 && cx.Awake() && cx.MinutesToBed() <= 180 {
		out = append(out, domain.ActionCandidate{
			ID:          "recovery.early_night",
			Category:    domain.CategorySleep,
			Title:       "Go to bed early",
			Urgency:     domain.Clamp(40+rhr*4, 0, 85),
			Impact:      65,
			Rationale:   fmt.Sprintf("Resting heart rate %.0f over baseline; extra sleep is the cheapest fix.", rhr),
		})
	}
	return out
}

func (recoveryExpert) Weight(s domain.DomainState, cx domain.Context) float64 {
	return domain.Clamp((100-s.Score)/100, 0, 1)
}

func (recoveryExpert) Constraints(s domain.DomainState, cx domain.Context) []string {
	if s.Score < collapseScore {
		return []string{domain.ConstraintInjury}
	}
	return nil
}

func (recoveryExpert) Compromises(primary domain.ActionCandidate, s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	if primary.ID != "recovery.mobility" {
		return nil
	}
	return []domain.ActionCandidate{{
		ID:          "recovery.legs_up",
		Category:    domain.CategoryRest,
		Title:       "Ten minutes legs-up",
		Urgency:     domain.Clamp(primary.Urgency-20, 0, 100),
		Impact:      30,
		DurationMin: 10,
		Rationale:   "Passive option when there is no time for mobility work.",
	}}
}
