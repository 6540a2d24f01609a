// Package council implements the recommendation council: a registered list
// of domain experts whose opinions are merged, negotiated against
// cross-domain constraints, scored, filtered by time-of-day
// appropriateness, and assembled into a single ranked timeline.
//
// Everything in this package is pure: same snapshot + context in, same
// result out. All I/O lives in internal/engine.
package council

import (
	"fmt"
	"sort"
	"strings"

	"regimen/internal/domain"
)

// Expert is a domain-scoped reasoning module. Implementations must be pure
// functions of their inputs: no shared mutable state, no I/O, so a host may
// run them in parallel if it chooses.
type Expert interface {
	// Domain returns the registered domain name.
	Domain() string
	// Analyze reads the domain state without mutating it.
	Analyze(s domain.DomainState, cx domain.Context) domain.Analysis
	// Candidates proposes zero or more actions. Never returns nil for
	// "nothing to propose" semantics; an empty slice means no proposal.
	Candidates(s domain.DomainState, cx domain.Context) []domain.ActionCandidate
	// Weight reports how much this domain matters right now, in [0,1].
	Weight(s domain.DomainState, cx domain.Context) float64
	// Constraints declares what this expert will defend against this cycle.
	Constraints(s domain.DomainState, cx domain.Context) []string
	// Compromises returns fallback actions acceptable if primary is vetoed.
	Compromises(primary domain.ActionCandidate, s domain.DomainState, cx domain.Context) []domain.ActionCandidate
}

// neutralScore is assumed for a domain with no stored state.
const neutralScore = 70

// maintenanceUrgency is the urgency of the placeholder opinion an expert
// emits when it has nothing to propose. Kept at or below 30 so maintenance
// never outranks a real recommendation.
const maintenanceUrgency = 20

// formOpinion runs one expert and builds its single opinion for the cycle.
// A panic or contract violation inside the expert is converted to an error;
// the council treats that as an abstention.
func formOpinion(e Expert, s domain.DomainState, cx domain.Context) (op domain.ExpertOpinion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("expert %s panicked: %v", e.Domain(), r)
		}
	}()

	analysis := e.Analyze(s, cx)
	cands := e.Candidates(s, cx)
	if err := validateCandidates(e.Domain(), cands); err != nil {
		return domain.ExpertOpinion{}, err
	}

	var primary domain.ActionCandidate
	if len(cands) == 0 {
		primary = maintenancePlaceholder(e.Domain())
	} else {
		// Highest urgency wins; first declared wins ties so ordering is
		// deterministic.
		primary = cands[0]
		for _, c := range cands[1:] {
			if c.Urgency > primary.Urgency {
				primary = c
			}
		}
	}

	comps := e.Compromises(primary, s, cx)
	kept := comps[:0]
	for _, c := range comps {
		// A primary action never appears in its own compromise list.
		if c.ID == primary.ID {
			continue
		}
		kept = append(kept, sanitizeCandidate(e.Domain(), c))
	}

	return domain.ExpertOpinion{
		Domain:      e.Domain(),
		Primary:     primary,
		Urgency:     primary.Urgency,
		Weight:      domain.Clamp(e.Weight(s, cx), 0, 1),
		Reasoning:   reasoningFor(analysis),
		Constraints: e.Constraints(s, cx),
		Compromises: kept,
	}, nil
}

func validateCandidates(expertDomain string, cands []domain.ActionCandidate) error {
	seen := make(map[string]bool, len(cands))
	for i := range cands {
		c := &cands[i]
		if c.ID == "" {
			return fmt.Errorf("expert %s produced a candidate without an id", expertDomain)
		}
		if seen[c.ID] {
			return fmt.Errorf("expert %s produced duplicate candidate id %s", expertDomain, c.ID)
		}
		seen[c.ID] = true
		*c = sanitizeCandidate(expertDomain, *c)
	}
	return nil
}

func sanitizeCandidate(expertDomain string, c domain.ActionCandidate) domain.ActionCandidate {
	if c.Domain == "" {
		c.Domain = expertDomain
	}
	if c.Category == "" {
		c.Category = domain.CategoryMaintenance
	}
	c.Urgency = domain.Clamp(c.Urgency, 0, 100)
	c.Impact = domain.Clamp(c.Impact, 0, 100)
	return c
}

func maintenancePlaceholder(expertDomain string) domain.ActionCandidate {
	return domain.ActionCandidate{
		ID:        expertDomain + ".hold",
		Domain:    expertDomain,
		Category:  domain.CategoryMaintenance,
		Title:     "Hold steady",
		Urgency:   maintenanceUrgency,
		Impact:    0,
		Rationale: fmt.Sprintf("No pressing needs in %s right now.", expertDomain),
	}
}

func reasoningFor(a domain.Analysis) string {
	switch {
	case len(a.Concerns) > 0:
		return strings.Join(a.Concerns, "; ")
	case len(a.Opportunities) > 0:
		return strings.Join(a.Opportunities, "; ")
	default:
		return fmt.Sprintf("domain score %.0f, nothing notable", a.Score)
	}
}

// defaultExperts returns all registered experts sorted lexicographically by
// domain name. This order is the registration order referenced everywhere
// ties need breaking.
func defaultExperts() []Expert {
	experts := []Expert{
		circadianExpert{},
		fuelExpert{},
		hydrationExpert{},
		mindspaceExpert{},
		performanceExpert{},
		recoveryExpert{},
	}
	sort.Slice(experts, func(i, j int) bool { return experts[i].Domain() < experts[j].Domain() })
	return experts
}
