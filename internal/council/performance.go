package council

import (
	"fmt"

	"regimen/internal/domain"
)

// performanceExpert manages training load. It raises the injury constraint
// when the acute:chronic workload ratio runs hot, which in turn suppresses
// its own readiness to propose sessions.
type performanceExpert struct{}

// acwrDanger is the acute:chronic workload ratio above which added load is
// a measurable injury risk.
const acwrDanger = 1.5

func (performanceExpert) Domain() string { return domain.DomainPerformance }

func (performanceExpert) Analyze(s domain.DomainState, cx domain.Context) domain.Analysis {
	a := domain.Analysis{Score: s.Score}
	acwr := s.Metric("acwr", 1.0)
	if acwr > acwrDanger {
		a.Concerns = append(a.Concerns, fmt.Sprintf("workload ratio at %.2f, load climbing too fast", acwr))
	}
	if acwr < 0.8 && s.Score >= 70 {
		a.Opportunities = append(a.Opportunities, "load headroom available, good day to push")
	}
	return a
}

func (performanceExpert) Candidates(s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	var out []domain.ActionCandidate
	acwr := s.Metric("acwr", 1.0)

	if acwr > acwrDanger {
		out = append(out, domain.ActionCandidate{
			ID:          "performance.deload",
			Category:    domain.CategoryRest,
			Title:       "Deload today",
			Description: "Replace planned intensity with easy movement.",
			Urgency:     domain.Clamp((acwr-1)*60, 0, 90),
			Impact:      70,
			Rationale:   fmt.Sprintf("Workload ratio at %.2f; backing off now avoids forced time off later.", acwr),
		})
		return out
	}

	if cx.NextSession != nil && cx.NextSession.Type == "training" &&
		cx.NextSession.Minutes > 0 && cx.NextSession.Minutes <= 60 {
		out = append(out, domain.ActionCandidate{
			ID:          "performance.activation",
			Category:    domain.CategoryTraining,
			Title:       "Run the activation warm-up",
			Urgency:     domain.Clamp(90-float64(cx.NextSession.Minutes), 30, 90),
			Impact:      55,
			DurationMin: 15,
			Rationale:   fmt.Sprintf("Training in %d minutes.", cx.NextSession.Minutes),
		})
	} else if acwr < 0.8 && s.Score >= 70 && cx.HasGoal("build") && cx.Awake() {
		out = append(out, domain.ActionCandidate{
			ID:          "performance.extra_session",
			Category:    domain.CategoryTraining,
			Title:       "Add an easy extra session",
			Urgency:     35,
			Impact:      50,
			DurationMin: 40,
			Rationale:   fmt.Sprintf("Workload ratio at %.2f leaves room to build.", acwr),
		})
	}
	return out
}

func (performanceExpert) Weight(s domain.DomainState, cx domain.Context) float64 {
	w := (100 - s.Score) / 100
	if s.Metric("acwr", 1.0) > acwrDanger {
		w += 0.3
	}
	return domain.Clamp(w, 0, 1)
}

func (performanceExpert) Constraints(s domain.DomainState, cx domain.Context) []string {
	if s.Metric("acwr", 1.0) > acwrDanger {
		return []string{domain.ConstraintInjury}
	}
	return nil
}

func (performanceExpert) Compromises(primary domain.ActionCandidate, s domain.DomainState, cx domain.Context) []domain.ActionCandidate {
	switch primary.ID {
	case "performance.activation":
		return []domain.ActionCandidate{{
			ID:          "performance.mobility_prep",
			Category:    domain.CategoryRest,
			Title:       "Light mobility prep instead",
			Urgency:     domain.Clamp(primary.Urgency-20, 0, 100),
			Impact:      35,
			DurationMin: 10,
			Rationale:   "Prepares the session without adding load.",
		}}
	case "performance.extra_session":
		return []domain.ActionCandidate{{
			ID:          "performance.technique_work",
			Category:    domain.CategoryRest,
			Title:       "Technique work only",
			Urgency:     25,
			Impact:      30,
			DurationMin: 20,
			Rationale:   "Skill volume without systemic load.",
		}}
	}
	return nil
}
