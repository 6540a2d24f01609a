package domain

import (
	"sort"
	"time"
)

// Registered domain names. Council registration order is lexicographic, so
// keep this list sorted.
const (
	DomainCircadian   = "circadian"
	DomainFuel        = "fuel"
	DomainHydration   = "hydration"
	DomainMindspace   = "mindspace"
	DomainPerformance = "performance"
	DomainRecovery    = "recovery"
)

// Action categories. Every candidate carries exactly one; the negotiation
// violation table matches on these, never on id substrings.
const (
	CategoryEating      = "eating"
	CategoryDrinking    = "drinking"
	CategoryTraining    = "training"
	CategoryRest        = "rest"
	CategoryStimulant   = "stimulant"
	CategoryMental      = "mental"
	CategorySleep       = "sleep"
	CategoryMaintenance = "maintenance"
)

// Cross-domain constraint tags. Transient, scoped to one evaluation cycle.
const (
	ConstraintDigestiveLoad   = "digestive_load_risk"
	ConstraintStimulant       = "stimulant_risk"
	ConstraintInjury          = "injury_risk"
	ConstraintOverstimulation = "overstimulation_risk"
)

// DomainState is one domain's normalized snapshot: a 0-100 wellness score
// plus named scalar metrics (hydration liters, HRV ms, ACWR...). Experts
// read it, never write it.
type DomainState struct {
	Domain    string             `json:"domain"`
	Score     float64            `json:"score" minimum:"0" maximum:"100"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	UpdatedAt string             `json:"updated_at,omitempty" format:"date-time"`
}

// Metric returns a named metric or the given neutral default when absent.
func (d DomainState) Metric(key string, def float64) float64 {
	if v, ok := d.Metrics[key]; ok {
		return v
	}
	return def
}

// Snapshot is the full per-domain state at the start of a cycle, ordered by
// domain name.
type Snapshot struct {
	States []DomainState `json:"states"`
}

// Get returns the state for a domain, reporting whether it was present.
func (s Snapshot) Get(domain string) (DomainState, bool) {
	for _, st := range s.States {
		if st.Domain == domain {
			return st, true
		}
	}
	return DomainState{}, false
}

// Clone deep-copies the snapshot so a cycle can never mutate the store's
// view.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{States: make([]DomainState, len(s.States))}
	for i, st := range s.States {
		cp := st
		if st.Metrics != nil {
			cp.Metrics = make(map[string]float64, len(st.Metrics))
			for k, v := range st.Metrics {
				cp.Metrics[k] = v
			}
		}
		out.States[i] = cp
	}
	return out
}

// Sort orders states by domain name.
func (s *Snapshot) Sort() {
	sort.Slice(s.States, func(i, j int) bool { return s.States[i].Domain < s.States[j].Domain })
}

// SessionRef points at the nearest scheduled or completed session relative
// to now.
type SessionRef struct {
	Type    string `json:"type"`
	Minutes int    `json:"minutes"`
}

// Context is the temporal/session frame every expert sees identically.
// Rebuilt fresh each evaluation, never persisted.
type Context struct {
	Hour        int          `json:"hour"`
	MinuteOfDay int          `json:"minute_of_day"`
	WakeMinute  int          `json:"wake_minute"`
	BedMinute   int          `json:"bed_minute"`
	Weekday     time.Weekday `json:"weekday"`
	NextSession *SessionRef  `json:"next_session,omitempty"`
	LastSession *SessionRef  `json:"last_session,omitempty"`
	GoalTags    []string     `json:"goal_tags,omitempty"`
}

// HasGoal reports whether a goal tag is set.
func (c Context) HasGoal(tag string) bool {
	for _, t := range c.GoalTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Awake reports whether the current minute falls inside the wake window.
// The window may wrap midnight (e.g. wake 06:30, bed 01:00).
func (c Context) Awake() bool {
	if c.WakeMinute == c.BedMinute {
		return true
	}
	if c.WakeMinute < c.BedMinute {
		return c.MinuteOfDay >= c.WakeMinute && c.MinuteOfDay < c.BedMinute
	}
	return c.MinuteOfDay >= c.WakeMinute || c.MinuteOfDay < c.BedMinute
}

// MinutesToBed returns minutes until bed time, wrapping midnight.
func (c Context) MinutesToBed() int {
	diff := c.BedMinute - c.MinuteOfDay
	if diff < 0 {
		diff += 24 * 60
	}
	return diff
}

// TimeWindow is an hour-of-day range [Start, End] during which an action is
// most relevant.
type TimeWindow struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// Contains reports whether the hour falls inside the window.
func (w TimeWindow) Contains(hour int) bool {
	return hour >= w.StartHour && hour <= w.EndHour
}

// ActionCandidate is one proposed action. Immutable once created; many are
// produced and discarded within a single cycle.
type ActionCandidate struct {
	ID          string      `json:"id"`
	Domain      string      `json:"domain"`
	Category    string      `json:"category"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Urgency     float64     `json:"urgency" minimum:"0" maximum:"100"`
	Impact      float64     `json:"impact" minimum:"0" maximum:"100"`
	DurationMin int         `json:"duration_min,omitempty"`
	Window      *TimeWindow `json:"window,omitempty"`
	Rationale   string      `json:"rationale"`
	Protocol    string      `json:"protocol,omitempty"`
}

// Analysis is an expert's read of its own domain.
type Analysis struct {
	Score         float64  `json:"score"`
	Concerns      []string `json:"concerns,omitempty"`
	Opportunities []string `json:"opportunities,omitempty"`
}

// ExpertOpinion is one expert's single best recommendation for this cycle,
// plus the fallbacks it would accept and the constraints it will defend.
type ExpertOpinion struct {
	Domain      string            `json:"domain"`
	Primary     ActionCandidate   `json:"primary_action"`
	Urgency     float64           `json:"urgency" minimum:"0" maximum:"100"`
	Weight      float64           `json:"weight" minimum:"0" maximum:"1"`
	Reasoning   string            `json:"reasoning"`
	Constraints []string          `json:"constraints,omitempty"`
	Compromises []ActionCandidate `json:"compromise_options,omitempty"`
}

// ScoredAction is a candidate with its derived ranking key. The priority is
// recomputed every cycle and never stored on the candidate itself.
type ScoredAction struct {
	ActionCandidate
	Priority float64 `json:"priority"`
	Weight   float64 `json:"weight"`
}

// Suppression records why the deferral filter removed a candidate. Audit
// only; never surfaced to the end user.
type Suppression struct {
	ActionID string `json:"action_id"`
	Reason   string `json:"reason"`
}

// Result is the council's authoritative output for one cycle.
type Result struct {
	CycleID     string         `json:"cycle_id"`
	EvaluatedAt string         `json:"evaluated_at" format:"date-time"`
	Commander   ScoredAction   `json:"commander_action"`
	Upcoming    []ScoredAction `json:"upcoming_actions"`
	Alerts      []ScoredAction `json:"alerts"`
	FocusDomain string         `json:"focus_domain"`
	Ranked      []ScoredAction `json:"all_ranked"`
	Suppressed  []Suppression  `json:"-"`
	Narrative   string         `json:"narrative,omitempty"`
}

// Session is a scheduled or completed activity (training, meal, sauna, ...).
type Session struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Status      string  `json:"status" enum:"planned,completed,canceled"`
	StartAt     string  `json:"start_at" format:"date-time"`
	DurationMin int     `json:"duration_min,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
}

// Evaluation is a persisted council cycle.
type Evaluation struct {
	ID          string `json:"id"`
	TS          string `json:"ts" format:"date-time"`
	ActorID     string `json:"actor_id"`
	CommanderID string `json:"commander_id"`
	FocusDomain string `json:"focus_domain"`
	ResultJSON  string `json:"result_json"`
}

// Event is one event-log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey authenticates an actor on the HTTP API.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
