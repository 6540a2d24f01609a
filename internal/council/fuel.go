package council

import (
	"fmt"

	"regimen/internal/domain"
)

// fuelExpert watches energy intake against the training schedule. Its
// post-training meal is the canonical compromise case: when the circadian
// expert flags digestive load near bed, the meal downgrades to a shake.
type fuelExpert struct{}

func (fuelExpert) Domain() string { return domain.DomainFuel }

func (fuelExpert) Analyze(s domain.DomainState, cx domain.Context) domain.Analysis {
	a := domain.Analysis{Score: s.Score}
	glycogen := s.Metric("glycogen_pct", 70)
	sinceMeal := s.Metric("last_meal_min", 180)
	if glycogen < 40 {
		a.Concerns = append(a.Concerns, fmt.Sprintf("glycogen estimated at %.0f%%", glycogen))
	}
	if sinceMeal >= 300 && cx.Awake() {
		a.Concerns = append(a.Concerns, fmt.Sprintf("%.0f minutes since last meal", sinceMeal))
	}
	if justTrained(cx) {
		a.Opportunities = append(a.Opportunities, "post-training refuel window is open")
	}
	return a
}

func (fuelExpert) Candidates(s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	var out []domain.ActionCandidate

	if justTrained(cx) {
		out = append(out, domain.ActionCandidate{
			ID:          "fuel.post_training_meal",
			Category:    domain.CategoryEating,
			Title:       "Eat a full post-training meal",
			Description: "Protein plus carbs within the hour after the session.",
			Urgency:     90,
			Impact:      85,
			DurationMin: 30,
			Rationale:   "Training just finished; the refuel window closes fast.",
		})
		return out
	}

	glycogen := s.Metric("glycogen_pct", 70)
	sinceMeal := s.Metric("last_meal_min", 180)
	trainingSoon := cx.NextSession != nil && cx.NextSession.Type == "training" &&
		cx.NextSession.Minutes > 0 && cx.NextSession.Minutes <= 180

	if trainingSoon && glycogen < 60 {
		out = append(out, domain.ActionCandidate{
			ID:          "fuel.pre_training_carbs",
			Category:    domain.CategoryEating,
			Title:       "Top up carbs before training",
			Urgency:     domain.Clamp(90-glycogen, 0, 100),
			Impact:      70,
			DurationMin: 15,
			Rationale:   fmt.Sprintf("Training in %d minutes with glycogen at %.0f%%.", cx.NextSession.Minutes, glycogen),
		})
	}

	if sinceMeal >= 300 && cx.Awake() {
		out = append(out, domain.ActionCandidate{
			ID:          "fuel.meal",
			Category:    domain.CategoryEating,
			Title:       "Have a proper meal",
			Urgency:     domain.Clamp(sinceMeal/8, 0, 85),
			Impact:      60,
			DurationMin: 30,
			Rationale:   fmt.Sprintf("%.0f minutes since the last meal.", sinceMeal),
		})
	}
	return out
}

func (fuelExpert) Weight(s domain.DomainState, cx domain.Context) float64 {
	w := (100 - s.Score) / 100
	if justTrained(cx) {
		w += 0.4
	}
	if cx.NextSession != nil && cx.NextSession.Type == "training" && cx.NextSession.Minutes > 0 && cx.NextSession.Minutes <= 180 {
		w += 0.2
	}
	return domain.Clamp(w, 0, 1)
}

func (fuelExpert) Constraints(s domain.DomainState, cx domain.Context) []string { return nil }

func (fuelExpert) Compromises(primary domain.ActionCandidate, s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	switch primary.ID {
	case "fuel.post_training_meal":
		return []domain.ActionCandidate{{
			ID:          "fuel.recovery_shake",
			Category:    domain.CategoryDrinking,
			Title:       "Have a recovery shake",
			Description: "Liquid protein and carbs; lighter on digestion than a full meal.",
			Urgency:     85,
			Impact:      70,
			DurationMin: 5,
			Rationale:   "Covers the refuel window without a heavy meal.",
		}}
	case "fuel.meal":
		return []domain.ActionCandidate{{
			ID:          "fuel.light_snack",
			Category:    domain.CategoryEating,
			Title:       "Have a light snack",
			Urgency:     domain.Clamp(primary.Urgency-20, 0, 100),
			Impact:      35,
			DurationMin: 10,
			Rationale:   "Bridges the gap if a full meal does not fit right now.",
		}}
	}
	return nil
}

// justTrained reports a training session completed within the last hour.
func justTrained(cx domain.Context) bool {
	return cx.LastSession != nil && cx.LastSession.Type == "training" &&
		cx.LastSession.Minutes <= 0 && cx.LastSession.Minutes >= -60
}
