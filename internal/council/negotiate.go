package council

import (
	"fmt"

	"regimen/internal/domain"
)

// activeConstraint is a constraint raised this cycle, remembering which
// domain raised it so an expert never vetoes itself.
type activeConstraint struct {
	Tag   string
	Owner string
}

// activeConstraints collects the union of constraints from opinions with
// urgency > 0, in expert registration order. The first raiser of a tag owns
// it; later duplicates are dropped.
func activeConstraints(ops []domain.ExpertOpinion) []activeConstraint {
	var out []activeConstraint
	seen := map[string]bool{}
	for _, op := range ops {
		if op.Urgency <= 0 {
			continue
		}
		for _, tag := range op.Constraints {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, activeConstraint{Tag: tag, Owner: op.Domain})
		}
	}
	return out
}

// negotiate resolves cross-domain conflicts in a single pass. For each
// opinion, the first active constraint its primary action's category
// violates wins (first-match order = constraint collection order). On a
// match the first compromise option replaces the primary; with no
// compromise the urgency takes a fixed penalty, floored at zero, and the
// action itself stays.
//
// Single-pass is deliberate: a substituted compromise is assumed not to
// trigger the same constraint again, and is not re-validated against the
// remaining active constraints.
func (c *Council) negotiate(ops []domain.ExpertOpinion, active []activeConstraint) []domain.ExpertOpinion {
	out := make([]domain.ExpertOpinion, len(ops))
	for i, op := range ops {
		match, ok := firstViolation(c.policy, op, active)
		if !ok {
			out[i] = op
			continue
		}
		if len(op.Compromises) > 0 {
			fallback := op.Compromises[0]
			fallback.Rationale += downgradeSuffix(match.Tag)
			c.logger.Info("council: opinion downgraded to compromise",
				"domain", op.Domain, "constraint", match.Tag,
				"from", op.Primary.ID, "to", fallback.ID)
			op.Primary = fallback
			op.Urgency = fallback.Urgency
			op.Compromises = op.Compromises[1:]
		} else {
			penalized := domain.Clamp(op.Urgency-c.policy.ConstraintPenalty, 0, 100)
			c.logger.Info("council: opinion urgency penalized",
				"domain", op.Domain, "constraint", match.Tag,
				"from", op.Urgency, "to", penalized)
			op.Urgency = penalized
			op.Primary.Urgency = penalized
		}
		out[i] = op
	}
	return out
}

// firstViolation returns the first active constraint the opinion's primary
// action violates, skipping constraints the opinion's own domain raised.
func firstViolation(p Policy, op domain.ExpertOpinion, active []activeConstraint) (activeConstraint, bool) {
	for _, ac := range active {
		if ac.Owner == op.Domain {
			continue
		}
		if p.Violates(op.Primary.Category, ac.Tag) {
			return ac, true
		}
	}
	return activeConstraint{}, false
}

func downgradeSuffix(tag string) string {
	return fmt.Sprintf(" (downgraded due to %s)", tag)
}
