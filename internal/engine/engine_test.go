package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"regimen/internal/config"
	"regimen/internal/db"
	"regimen/internal/domain"
	"regimen/internal/engine"
	"regimen/internal/migrate"
	"regimen/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func TestSetDomainStateValidation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.Engine.SetDomainState(env.Ctx, domain.DomainState{Domain: "astrology", Score: 50}, "tester"); err == nil {
		t.Fatal("expected unknown domain error")
	}
	if _, err := env.Engine.SetDomainState(env.Ctx, domain.DomainState{Domain: domain.DomainFuel, Score: 120}, "tester"); err == nil {
		t.Fatal("expected out-of-range score error")
	}

	st, err := env.Engine.SetDomainState(env.Ctx, domain.DomainState{
		Domain:  domain.DomainHydration,
		Score:   55,
		Metrics: map[string]float64{"deficit_l": 1.1},
	}, "tester")
	if err != nil {
		t.Fatalf("set state: %v", err)
	}
	if st.UpdatedAt == "" {
		t.Fatal("expected UpdatedAt stamped")
	}

	snap, err := env.Engine.Snapshot(env.Ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	got, ok := snap.Get(domain.DomainHydration)
	if !ok || got.Score != 55 || got.Metrics["deficit_l"] != 1.1 {
		t.Fatalf("unexpected stored state: %+v", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.Engine.ScheduleSession(env.Ctx, engine.SessionCreateOptions{Type: "training", StartAt: "bogus"}); err == nil {
		t.Fatal("expected invalid start_at error")
	}

	s, err := env.Engine.ScheduleSession(env.Ctx, engine.SessionCreateOptions{
		Type:        "training",
		StartAt:     "2026-03-14T18:00:00Z",
		DurationMin: 60,
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if s.Status != "planned" {
		t.Fatalf("status = %s, want planned", s.Status)
	}

	done, err := env.Engine.CompleteSession(env.Ctx, s.ID, "tester")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != "completed" || done.CompletedAt == nil {
		t.Fatalf("unexpected completed session: %+v", done)
	}
	if _, err := env.Engine.CompleteSession(env.Ctx, s.ID, "tester"); err == nil {
		t.Fatal("expected double-complete error")
	}

	s2, err := env.Engine.ScheduleSession(env.Ctx, engine.SessionCreateOptions{
		Type: "sauna", StartAt: "2026-03-15T19:00:00Z", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CancelSession(env.Ctx, s2.ID, "tester"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	planned, err := env.Engine.ListSessions(env.Ctx, "planned", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(planned) != 0 {
		t.Fatalf("expected no planned sessions, got %d", len(planned))
	}
}

func TestEvaluatePersistsResult(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SetDomainState(env.Ctx, domain.DomainState{Domain: domain.DomainRecovery, Score: 25}, "tester"); err != nil {
		t.Fatal(err)
	}

	res, err := env.Engine.Evaluate(env.Ctx, engine.EvaluateOptions{ActorID: "tester"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Commander.ID != "recovery.full_rest" {
		t.Fatalf("commander = %s, want recovery.full_rest", res.Commander.ID)
	}
	if res.CycleID == "" || res.EvaluatedAt != "2026-03-14T10:00:00Z" {
		t.Fatalf("cycle identity not stamped: %+v", res)
	}
	if res.FocusDomain != domain.DomainRecovery {
		t.Fatalf("focus = %s", res.FocusDomain)
	}

	latest, err := env.Engine.LatestResult(env.Ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.CycleID != res.CycleID || latest.Commander.ID != res.Commander.ID {
		t.Fatalf("persisted result differs: %+v", latest)
	}

	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "evaluation.completed", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 1 {
		t.Fatalf("expected one evaluation.completed event, got %d", len(evts))
	}
}

func TestEvaluateCouncilOutputIsStable(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SetDomainState(env.Ctx, domain.DomainState{
		Domain: domain.DomainHydration, Score: 50,
		Metrics: map[string]float64{"deficit_l": 1.5},
	}, "tester"); err != nil {
		t.Fatal(err)
	}

	first, err := env.Engine.Evaluate(env.Ctx, engine.EvaluateOptions{ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.Engine.Evaluate(env.Ctx, engine.EvaluateOptions{ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	// Same snapshot and clock: everything but the cycle id must match.
	if first.Commander.ID != second.Commander.ID || len(first.Ranked) != len(second.Ranked) {
		t.Fatalf("council output not stable:\n%+v\n%+v", first, second)
	}
	for i := range first.Ranked {
		if first.Ranked[i] != second.Ranked[i] {
			t.Fatalf("rank %d differs", i)
		}
	}
}

func TestEvaluateRecordsSuppressions(t *testing.T) {
	env := newTestEnv(t)
	// 23:30 is outside the default wake window; a hydration candidate must
	// be deferred and audited.
	env.Engine.Now = func() time.Time { return time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC) }
	if _, err := env.Engine.SetDomainState(env.Ctx, domain.DomainState{
		Domain: domain.DomainHydration, Score: 40,
		Metrics: map[string]float64{"deficit_l": 2},
	}, "tester"); err != nil {
		t.Fatal(err)
	}

	res, err := env.Engine.Evaluate(env.Ctx, engine.EvaluateOptions{ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	for _, sa := range res.Ranked {
		if sa.ID == "hydration.drink" {
			t.Fatal("hydration.drink should have been deferred overnight")
		}
	}

	sups, err := env.Engine.Repo.ListSuppressions(env.Ctx, res.CycleID)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, s := range sups {
		if s.ActionID == "hydration.drink" {
			found = true
			if !strings.Contains(s.Reason, "wake window") {
				t.Fatalf("unexpected reason: %s", s.Reason)
			}
		}
	}
	if !found {
		t.Fatalf("hydration.drink missing from suppression audit: %+v", sups)
	}
}

type stubAnnotator struct{ text string }

func (a stubAnnotator) Annotate(context.Context, domain.Result) string { return a.text }

func TestEvaluateAnnotation(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Annotator = stubAnnotator{text: "steady day, keep hydrating"}

	res, err := env.Engine.Evaluate(env.Ctx, engine.EvaluateOptions{ActorID: "tester", Annotate: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Narrative != "steady day, keep hydrating" {
		t.Fatalf("narrative = %q", res.Narrative)
	}

	plain, err := env.Engine.Evaluate(env.Ctx, engine.EvaluateOptions{ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if plain.Narrative != "" {
		t.Fatal("narrative should be empty without annotate")
	}
}

func TestCreateAPIKey(t *testing.T) {
	env := newTestEnv(t)

	if _, _, err := env.Engine.CreateAPIKey(env.Ctx, "", "cli"); err == nil {
		t.Fatal("expected actor required error")
	}

	key, plaintext, err := env.Engine.CreateAPIKey(env.Ctx, "coach", "cli")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if plaintext == "" || key.KeyHash != repo.HashAPIKey(plaintext) {
		t.Fatal("plaintext does not hash to stored key")
	}

	got, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, key.KeyHash)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ActorID != "coach" {
		t.Fatalf("actor = %s", got.ActorID)
	}
}
