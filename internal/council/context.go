package council

import (
	"time"

	"regimen/internal/config"
	"regimen/internal/domain"
)

// BuildContext assembles the evaluation context from the profile and the
// clock. Session references are optional; pass nil when the schedule is
// empty.
func BuildContext(cfg config.Config, now time.Time, next, last *domain.SessionRef) domain.Context {
	wake, _ := config.ParseClock(cfg.Profile.WakeTime)
	bed, _ := config.ParseClock(cfg.Profile.BedTime)
	return domain.Context{
		Hour:        now.Hour(),
		MinuteOfDay: now.Hour()*60 + now.Minute(),
		WakeMinute:  wake,
		BedMinute:   bed,
		Weekday:     now.Weekday(),
		NextSession: next,
		LastSession: last,
		GoalTags:    append([]string(nil), cfg.Profile.GoalTags...),
	}
}

// SessionRefFor converts a stored session into the relative form experts
// consume. Minutes is signed: positive for an upcoming session, negative
// for one already completed. A session with an unparseable start time is
// treated as absent.
func SessionRefFor(s *domain.Session, now time.Time) *domain.SessionRef {
	if s == nil {
		return nil
	}
	at, err := time.Parse(time.RFC3339, s.StartAt)
	if err != nil {
		return nil
	}
	return &domain.SessionRef{
		Type:    s.Type,
		Minutes: int(at.Sub(now).Minutes()),
	}
}
