package council

import (
	"log/slog"
	"sort"

	"regimen/internal/domain"
)

// Council merges expert opinions into one ranked timeline. A Council is
// immutable after construction and safe for concurrent use; each Evaluate
// call works on its own deep copy of the snapshot.
type Council struct {
	experts []Expert
	policy  Policy
	logger  *slog.Logger
}

// New builds a council with the default expert roster.
func New(policy Policy, logger *slog.Logger) *Council {
	return NewWithExperts(policy, logger, defaultExperts())
}

// NewWithExperts builds a council over an explicit roster. The roster order
// is the registration order used for every deterministic tie-break.
func NewWithExperts(policy Policy, logger *slog.Logger, experts []Expert) *Council {
	if logger == nil {
		logger = slog.Default()
	}
	return &Council{experts: experts, policy: policy, logger: logger}
}

// Experts returns the registered roster.
func (c *Council) Experts() []Expert { return c.experts }

// Evaluate runs one full synchronous cycle: gather opinions, negotiate
// conflicts, score, defer, assemble. The caller owns CycleID and
// EvaluatedAt stamping; everything computed here depends only on the
// snapshot and context.
func (c *Council) Evaluate(snap domain.Snapshot, cx domain.Context) domain.Result {
	snap = snap.Clone()
	snap.Sort()

	opinions := c.gather(snap, cx)
	active := activeConstraints(opinions)
	opinions = c.negotiate(opinions, active)

	// Pure no-op maintenance opinions never enter scoring.
	live := opinions[:0]
	for _, op := range opinions {
		if op.Primary.Impact == 0 {
			continue
		}
		live = append(live, op)
	}

	scored := c.score(live, cx)
	kept, suppressed := c.filter(scored, snap, cx)
	return c.assemble(kept, suppressed, snap, cx)
}

// gather collects exactly one opinion per expert. A failing expert abstains
// for the cycle; the failure never aborts the other experts.
func (c *Council) gather(snap domain.Snapshot, cx domain.Context) []domain.ExpertOpinion {
	opinions := make([]domain.ExpertOpinion, 0, len(c.experts))
	for _, e := range c.experts {
		st, ok := snap.Get(e.Domain())
		if !ok {
			st = domain.DomainState{Domain: e.Domain(), Score: neutralScore}
		}
		op, err := formOpinion(e, st, cx)
		if err != nil {
			c.logger.Warn("council: expert abstains", "domain", e.Domain(), "error", err)
			continue
		}
		opinions = append(opinions, op)
	}
	return opinions
}

// score applies the time-of-day modifier to each surviving primary action
// and computes its priority.
func (c *Council) score(ops []domain.ExpertOpinion, cx domain.Context) []domain.ScoredAction {
	scored := make([]domain.ScoredAction, 0, len(ops))
	for _, op := range ops {
		cand := op.Primary
		cand.Urgency = c.policy.AdjustUrgency(cand, cx.Hour)
		scored = append(scored, domain.ScoredAction{
			ActionCandidate: cand,
			Priority:        priorityScore(cand, op.Weight, cx.Hour),
			Weight:          op.Weight,
		})
	}
	return scored
}

func (c *Council) assemble(kept []domain.ScoredAction, suppressed []domain.Suppression, snap domain.Snapshot, cx domain.Context) domain.Result {
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Priority != kept[j].Priority {
			return kept[i].Priority > kept[j].Priority
		}
		return kept[i].ID < kept[j].ID
	})

	res := domain.Result{
		Ranked:      kept,
		Suppressed:  suppressed,
		FocusDomain: focusDomain(snap),
		Upcoming:    []domain.ScoredAction{},
		Alerts:      []domain.ScoredAction{},
	}

	if len(kept) == 0 {
		res.Commander = steadyState()
	} else {
		res.Commander = kept[0]
		n := c.policy.UpcomingCount
		if n > len(kept)-1 {
			n = len(kept) - 1
		}
		res.Upcoming = append(res.Upcoming, kept[1:1+n]...)
	}

	for _, sa := range kept {
		if sa.Urgency >= c.policy.AlertUrgency && sa.Window == nil {
			res.Alerts = append(res.Alerts, sa)
		}
	}
	return res
}

// focusDomain is the lowest-scoring domain, ties broken by domain order.
func focusDomain(snap domain.Snapshot) string {
	focus := ""
	best := 101.0
	for _, st := range snap.States {
		if st.Score < best {
			best = st.Score
			focus = st.Domain
		}
	}
	return focus
}

// steadyState is the synthesized commander action for an empty timeline.
func steadyState() domain.ScoredAction {
	return domain.ScoredAction{
		ActionCandidate: domain.ActionCandidate{
			ID:        "council.steady_state",
			Domain:    "council",
			Category:  domain.CategoryMaintenance,
			Title:     "Continue as planned",
			Urgency:   10,
			Impact:    10,
			Rationale: "All domains are in acceptable ranges; keep doing what you are doing.",
		},
	}
}
