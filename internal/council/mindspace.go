package council

import (
	"fmt"

	"regimen/internal/domain"
)

// mindspaceExpert covers stress and mental sharpness. It is the only
// source of stimulant candidates, which makes it the usual subject of the
// afternoon cutoff deferral.
type mindspaceExpert struct{}

func (mindspaceExpert) Domain() string { return domain.DomainMindspace }

func (mindspaceExpert) Analyze(s domain.DomainState, cx domain.Context) domain.Analysis {
	a := domain.Analysis{Score: s.Score}
	stress := s.Metric("stress_idx", 30)
	hrv := s.Metric("hrv_ms", 60)
	if stress >= 70 {
		a.Concerns = append(a.Concerns, fmt.Sprintf("stress index at %.0f", stress))
	}
	if hrv < 40 {
		a.Concerns = append(a.Concerns, fmt.Sprintf("HRV down to %.0fms", hrv))
	}
	if stress < 70 && s.Score < 60 {
		a.Opportunities = append(a.Opportunities, "focus is flagging but stress is low")
	}
	return a
}

func (mindspaceExpert) Candidates(s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	var out []domain.ActionCandidate
	stress := s.Metric("stress_idx", 30)

	if stress >= 70 {
		out = append(out, domain.ActionCandidate{
			ID:          "mindspace.decompress",
			Category:    domain.CategoryMental,
			Title:       "Decompress",
			Description: "Ten minutes of breathing work or a walk, no inputs.",
			Urgency:     domain.Clamp(stress, 0, 100),
			Impact:      65,
			DurationMin: 10,
			Rationale:   fmt.Sprintf("Stress index at %.0f; bring it down before it compounds.", stress),
		})
	}

	if stress < 70 && s.Score < 60 && cx.Awake() {
		out = append(out, domain.ActionCandidate{
			ID:          "mindspace.caffeine",
			Category:    domain.CategoryStimulant,
			Title:       "Have a coffee",
			Urgency:     domain.Clamp(80-s.Score, 0, 60),
			Impact:      50,
			DurationMin: 5,
			Rationale:   "Focus is dipping and stress is low enough for a stimulant to help.",
		})
	}
	return out
}

func (mindspaceExpert) Weight(s domain.DomainState, cx domain.Context) float64 {
	w := (100 - s.Score) / 100
	if s.Metric("stress_idx", 30) >= 70 {
		w += 0.2
	}
	return domain.Clamp(w, 0, 1)
}

func (mindspaceExpert) Constraints(s domain.DomainState, cx domain.Context) []string {
	if s.Metric("stress_idx", 30) >= 70 {
		return []string{domain.ConstraintOverstimulation}
	}
	return nil
}

func (mindspaceExpert) Compromises(primary domain.ActionCandidate, s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	if primary.ID != "mindspace.caffeine" {
		return nil
	}
	return []domain.ActionCandidate{{
		ID:          "mindspace.walk",
		Category:    domain.CategoryMental,
		Title:       "Take a short walk",
		Urgency:     domain.Clamp(primary.Urgency-10, 0, 100),
		Impact:      40,
		DurationMin: 15,
		Rationale:   "Movement and daylight sharpen focus without a stimulant.",
	}}
}
