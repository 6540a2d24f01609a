package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"regimen/internal/config"
	"regimen/internal/council"
	"regimen/internal/domain"
	"regimen/internal/events"
	"regimen/internal/repo"
)

// Annotator turns a finished evaluation into a short prose summary. The
// annotation is post-hoc: it never changes the result it describes.
type Annotator interface {
	Annotate(ctx context.Context, res domain.Result) string
}

// Engine is the orchestrating caller around the pure council: it owns the
// database, the event log, and the clock, and stamps cycle identity onto
// each result.
type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Logger    *slog.Logger
	Annotator Annotator
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Logger: slog.Default(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

var knownDomains = map[string]bool{
	domain.DomainCircadian:   true,
	domain.DomainFuel:        true,
	domain.DomainHydration:   true,
	domain.DomainMindspace:   true,
	domain.DomainPerformance: true,
	domain.DomainRecovery:    true,
}

// SetDomainState records a new snapshot row for one domain.
func (e Engine) SetDomainState(ctx context.Context, st domain.DomainState, actorID string) (domain.DomainState, error) {
	if !knownDomains[st.Domain] {
		return domain.DomainState{}, fmt.Errorf("unknown domain %q", st.Domain)
	}
	if st.Score < 0 || st.Score > 100 {
		return domain.DomainState{}, fmt.Errorf("score %.1f out of range [0,100]", st.Score)
	}
	st.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DomainState{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpsertDomainState(ctx, tx, st); err != nil {
		return domain.DomainState{}, fmt.Errorf("upsert state: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "state.updated", "domain_state", st.Domain, actorID, events.EventPayload{
		"score": st.Score,
	}); err != nil {
		return domain.DomainState{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.DomainState{}, err
	}
	return st, nil
}

// Snapshot returns the stored state for all domains.
func (e Engine) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	return e.Repo.Snapshot(ctx)
}

// SessionCreateOptions are parameters for scheduling a session.
type SessionCreateOptions struct {
	ID          string
	Type        string
	StartAt     string
	DurationMin int
	ActorID     string
}

func (e Engine) ScheduleSession(ctx context.Context, opts SessionCreateOptions) (domain.Session, error) {
	if opts.Type == "" {
		return domain.Session{}, errors.New("session type is required")
	}
	if _, err := time.Parse(time.RFC3339, opts.StartAt); err != nil {
		return domain.Session{}, fmt.Errorf("invalid start_at: %w", err)
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.Type+"|"+opts.StartAt+"|"+now)).String()
	}
	s := domain.Session{
		ID:          id,
		Type:        opts.Type,
		Status:      "planned",
		StartAt:     opts.StartAt,
		DurationMin: opts.DurationMin,
		CreatedAt:   now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertSession(ctx, tx, s); err != nil {
		return domain.Session{}, fmt.Errorf("insert session: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "session.scheduled", "session", s.ID, opts.ActorID, events.EventPayload{
		"type": s.Type, "start_at": s.StartAt,
	}); err != nil {
		return domain.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// CompleteSession marks a planned session as done.
func (e Engine) CompleteSession(ctx context.Context, id, actorID string) (domain.Session, error) {
	s, err := e.Repo.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if s.Status != "planned" {
		return domain.Session{}, fmt.Errorf("session %s is %s, not planned", id, s.Status)
	}
	completedAt := e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateSessionStatus(ctx, tx, id, "completed", &completedAt); err != nil {
		return domain.Session{}, err
	}
	if err := e.Events.Append(ctx, tx, "session.completed", "session", id, actorID, events.EventPayload{
		"type": s.Type,
	}); err != nil {
		return domain.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Session{}, err
	}
	s.Status = "completed"
	s.CompletedAt = &completedAt
	return s, nil
}

// CancelSession marks a planned session as canceled.
func (e Engine) CancelSession(ctx context.Context, id, actorID string) (domain.Session, error) {
	s, err := e.Repo.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if s.Status != "planned" {
		return domain.Session{}, fmt.Errorf("session %s is %s, not planned", id, s.Status)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateSessionStatus(ctx, tx, id, "canceled", nil); err != nil {
		return domain.Session{}, err
	}
	if err := e.Events.Append(ctx, tx, "session.canceled", "session", id, actorID, nil); err != nil {
		return domain.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Session{}, err
	}
	s.Status = "canceled"
	return s, nil
}

// ListSessions returns sessions, optionally filtered by status.
func (e Engine) ListSessions(ctx context.Context, status string, limit int) ([]domain.Session, error) {
	return e.Repo.ListSessions(ctx, status, limit)
}

// EvaluateOptions control one council cycle.
type EvaluateOptions struct {
	ActorID  string
	Annotate bool
}

// Evaluate runs one full council cycle against the stored snapshot and
// persists the outcome. The result is deterministic for a fixed snapshot,
// schedule, and clock; only CycleID and EvaluatedAt come from the engine.
func (e Engine) Evaluate(ctx context.Context, opts EvaluateOptions) (domain.Result, error) {
	if e.Config == nil {
		return domain.Result{}, errors.New("config not loaded")
	}
	snap, err := e.Repo.Snapshot(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("load snapshot: %w", err)
	}

	now := e.now().UTC()
	ts := now.Format(time.RFC3339)

	next, err := e.sessionRefAt(ctx, now, true)
	if err != nil {
		return domain.Result{}, err
	}
	last, err := e.sessionRefAt(ctx, now, false)
	if err != nil {
		return domain.Result{}, err
	}

	cx := council.BuildContext(*e.Config, now, next, last)
	cncl := council.New(council.PolicyFromConfig(e.Config), e.logger())
	res := cncl.Evaluate(snap, cx)

	res.CycleID = uuid.NewString()
	res.EvaluatedAt = ts

	if opts.Annotate && e.Annotator != nil && !e.Config.Annotator.Disabled {
		res.Narrative = e.Annotator.Annotate(ctx, res)
	}

	resJSON, err := json.Marshal(res)
	if err != nil {
		return domain.Result{}, fmt.Errorf("marshal result: %w", err)
	}
	ev := domain.Evaluation{
		ID:          res.CycleID,
		TS:          ts,
		ActorID:     opts.ActorID,
		CommanderID: res.Commander.ID,
		FocusDomain: res.FocusDomain,
		ResultJSON:  string(resJSON),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Result{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertEvaluation(ctx, tx, ev); err != nil {
		return domain.Result{}, fmt.Errorf("insert evaluation: %w", err)
	}
	if err := e.Repo.InsertSuppressions(ctx, tx, ev.ID, res.Suppressed); err != nil {
		return domain.Result{}, fmt.Errorf("insert suppressions: %w", err)
	}
	for _, s := range res.Suppressed {
		if err := e.Events.Append(ctx, tx, "candidate.suppressed", "evaluation", ev.ID, opts.ActorID, events.EventPayload{
			"action_id": s.ActionID, "reason": s.Reason,
		}); err != nil {
			return domain.Result{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "evaluation.completed", "evaluation", ev.ID, opts.ActorID, events.EventPayload{
		"commander": res.Commander.ID, "focus": res.FocusDomain, "ranked": len(res.Ranked),
	}); err != nil {
		return domain.Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Result{}, err
	}
	return res, nil
}

// sessionRefAt resolves the schedule neighbor on one side of now.
func (e Engine) sessionRefAt(ctx context.Context, now time.Time, upcoming bool) (*domain.SessionRef, error) {
	ts := now.Format(time.RFC3339)
	var (
		s   domain.Session
		err error
	)
	if upcoming {
		s, err = e.Repo.NextPlannedSession(ctx, ts)
	} else {
		s, err = e.Repo.LastCompletedSession(ctx, ts)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return council.SessionRefFor(&s, now), nil
}

// LatestResult returns the most recent persisted evaluation, decoded.
func (e Engine) LatestResult(ctx context.Context) (domain.Result, error) {
	ev, err := e.Repo.LatestEvaluation(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	return decodeResult(ev)
}

// ListResults returns up to limit recent evaluations, newest first.
func (e Engine) ListResults(ctx context.Context, limit int) ([]domain.Result, error) {
	evs, err := e.Repo.ListEvaluations(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Result, 0, len(evs))
	for _, ev := range evs {
		res, err := decodeResult(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func decodeResult(ev domain.Evaluation) (domain.Result, error) {
	var res domain.Result
	if err := json.Unmarshal([]byte(ev.ResultJSON), &res); err != nil {
		return domain.Result{}, fmt.Errorf("decode evaluation %s: %w", ev.ID, err)
	}
	return res, nil
}

// CreateAPIKey mints a key for an actor and stores only its hash. The
// plaintext is returned once and never recoverable.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	if actorID == "" {
		return domain.APIKey{}, "", errors.New("actor is required")
	}
	plaintext := uuid.NewString() + uuid.NewString()
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Events.Append(ctx, tx, "apikey.created", "api_key", key.ID, actorID, events.EventPayload{
		"name": name,
	}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}
