package council

import (
	"fmt"

	"regimen/internal/domain"
)

// filter removes candidates inappropriate for the current hour, unless
// their (already time-modified) urgency clears the override threshold. The
// suppression reasons are audit-only and never shown to the end user.
func (c *Council) filter(scored []domain.ScoredAction, snap domain.Snapshot, cx domain.Context) ([]domain.ScoredAction, []domain.Suppression) {
	var recoveryScore float64 = neutralScore
	if st, ok := snap.Get(domain.DomainRecovery); ok {
		recoveryScore = st.Score
	}

	var kept []domain.ScoredAction
	var suppressed []domain.Suppression
	for _, sa := range scored {
		if sa.Urgency >= c.policy.OverrideUrgency {
			kept = append(kept, sa)
			continue
		}
		reason := c.deferralReason(sa, recoveryScore, cx)
		if reason == "" {
			kept = append(kept, sa)
			continue
		}
		c.logger.Debug("council: candidate deferred", "action", sa.ID, "reason", reason)
		suppressed = append(suppressed, domain.Suppression{ActionID: sa.ID, Reason: reason})
	}
	return kept, suppressed
}

func (c *Council) deferralReason(sa domain.ScoredAction, recoveryScore float64, cx domain.Context) string {
	// Sleep and rest actions stay schedulable through the night.
	if !cx.Awake() && sa.Category != domain.CategorySleep && sa.Category != domain.CategoryRest {
		return fmt.Sprintf("outside wake window (hour=%d)", cx.Hour)
	}
	if sa.Category == domain.CategoryStimulant && cx.Hour >= c.policy.StimulantCutoffHour {
		return fmt.Sprintf("stimulant past %02d:00 cutoff (hour=%d)", c.policy.StimulantCutoffHour, cx.Hour)
	}
	if sa.Category == domain.CategoryTraining && recoveryScore < c.policy.RecoveryFloor {
		return fmt.Sprintf("training blocked: recovery %.0f below floor %.0f", recoveryScore, c.policy.RecoveryFloor)
	}
	return ""
}
