package council

import "regimen/internal/domain"

// Weighting of the two "how bad is it if ignored" axes. They are equal on
// purpose; the expert weight multiplier is what lets a critical domain pull
// ahead.
const (
	urgencyFactor = 0.4
	impactFactor  = 0.4
	// windowBonus breaks ties in favor of actions whose time window is open
	// right now, without letting immediacy dominate genuinely critical
	// items.
	windowBonus = 20
)

// priorityScore combines urgency, impact, expert weight, and time-window
// relevance into the ranking key. Monotonically non-decreasing in urgency
// and impact.
func priorityScore(c domain.ActionCandidate, weight float64, hour int) float64 {
	base := c.Urgency*urgencyFactor + c.Impact*impactFactor
	score := base * (1 + domain.Clamp(weight, 0, 1))
	if c.Window != nil && c.Window.Contains(hour) {
		score += windowBonus
	}
	return score
}
