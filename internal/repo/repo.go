package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"regimen/internal/config"
	"regimen/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- domain states ---

// UpsertDomainState replaces one domain's snapshot row.
func (r Repo) UpsertDomainState(ctx context.Context, tx *sql.Tx, st domain.DomainState) error {
	if st.Domain == "" {
		return errors.New("domain required")
	}
	if st.Score < 0 || st.Score > 100 {
		return fmt.Errorf("score %v out of range [0,100]", st.Score)
	}
	var metrics any
	if len(st.Metrics) > 0 {
		b, err := json.Marshal(st.Metrics)
		if err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
		metrics = string(b)
	}
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err := exec(ctx, `INSERT INTO domain_states(domain,score,metrics_json,updated_at) VALUES (?,?,?,?)
ON CONFLICT(domain) DO UPDATE SET score=excluded.score, metrics_json=excluded.metrics_json, updated_at=excluded.updated_at`,
		st.Domain, st.Score, metrics, st.UpdatedAt)
	return err
}

// GetDomainState returns one domain's snapshot row.
func (r Repo) GetDomainState(ctx context.Context, name string) (domain.DomainState, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT domain,score,COALESCE(metrics_json,''),updated_at FROM domain_states WHERE domain=?`, name)
	return scanDomainState(row.Scan)
}

// Snapshot returns every stored domain state, ordered by domain name.
func (r Repo) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT domain,score,COALESCE(metrics_json,''),updated_at FROM domain_states ORDER BY domain`)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer rows.Close()
	var snap domain.Snapshot
	for rows.Next() {
		st, err := scanDomainState(rows.Scan)
		if err != nil {
			return domain.Snapshot{}, err
		}
		snap.States = append(snap.States, st)
	}
	return snap, rows.Err()
}

func scanDomainState(scan func(...any) error) (domain.DomainState, error) {
	var st domain.DomainState
	var metrics string
	err := scan(&st.Domain, &st.Score, &metrics, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return st, ErrNotFound
	}
	if err != nil {
		return st, err
	}
	if metrics != "" {
		if err := json.Unmarshal([]byte(metrics), &st.Metrics); err != nil {
			return st, fmt.Errorf("metrics for %s: %w", st.Domain, err)
		}
	}
	return st, nil
}

// --- sessions ---

func (r Repo) InsertSession(ctx context.Context, tx *sql.Tx, s domain.Session) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err := exec(ctx, `INSERT INTO sessions(id,type,status,start_at,duration_min,created_at,completed_at) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.Type, s.Status, s.StartAt, nullableInt(s.DurationMin), s.CreatedAt, nullableStringPtr(s.CompletedAt))
	return err
}

func (r Repo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,type,status,start_at,COALESCE(duration_min,0),created_at,completed_at FROM sessions WHERE id=?`, id)
	return scanSession(row.Scan)
}

func (r Repo) UpdateSessionStatus(ctx context.Context, tx *sql.Tx, id, status string, completedAt *string) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	res, err := exec(ctx, `UPDATE sessions SET status=?, completed_at=? WHERE id=?`, status, nullableStringPtr(completedAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns sessions, newest start first, optionally filtered by
// status.
func (r Repo) ListSessions(ctx context.Context, status string, limit int) ([]domain.Session, error) {
	query := `SELECT id,type,status,start_at,COALESCE(duration_min,0),created_at,completed_at FROM sessions`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY start_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Session
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// NextPlannedSession returns the earliest planned session starting at or
// after ts (RFC3339).
func (r Repo) NextPlannedSession(ctx context.Context, ts string) (domain.Session, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id,type,status,start_at,COALESCE(duration_min,0),created_at,completed_at FROM sessions
		 WHERE status='planned' AND start_at >= ? ORDER BY start_at ASC LIMIT 1`, ts)
	return scanSession(row.Scan)
}

// LastCompletedSession returns the most recently completed session at or
// before ts (RFC3339), by completion time.
func (r Repo) LastCompletedSession(ctx context.Context, ts string) (domain.Session, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id,type,status,start_at,COALESCE(duration_min,0),created_at,completed_at FROM sessions
		 WHERE status='completed' AND completed_at IS NOT NULL AND completed_at <= ? ORDER BY completed_at DESC LIMIT 1`, ts)
	return scanSession(row.Scan)
}

func scanSession(scan func(...any) error) (domain.Session, error) {
	var s domain.Session
	var completed sql.NullString
	err := scan(&s.ID, &s.Type, &s.Status, &s.StartAt, &s.DurationMin, &s.CreatedAt, &completed)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if completed.Valid {
		s.CompletedAt = &completed.String
	}
	return s, nil
}

// --- evaluations ---

func (r Repo) InsertEvaluation(ctx context.Context, tx *sql.Tx, ev domain.Evaluation) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err := exec(ctx, `INSERT INTO evaluations(id,ts,actor_id,commander_id,focus_domain,result_json) VALUES (?,?,?,?,?,?)`,
		ev.ID, ev.TS, ev.ActorID, ev.CommanderID, ev.FocusDomain, ev.ResultJSON)
	return err
}

func (r Repo) InsertSuppressions(ctx context.Context, tx *sql.Tx, evaluationID string, sups []domain.Suppression) error {
	for _, s := range sups {
		if _, err := tx.ExecContext(ctx, `INSERT INTO suppressions(evaluation_id,action_id,reason) VALUES (?,?,?)`,
			evaluationID, s.ActionID, s.Reason); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) LatestEvaluation(ctx context.Context) (domain.Evaluation, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,ts,actor_id,commander_id,focus_domain,result_json FROM evaluations ORDER BY ts DESC, id DESC LIMIT 1`)
	return scanEvaluation(row.Scan)
}

func (r Repo) ListEvaluations(ctx context.Context, limit int) ([]domain.Evaluation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,actor_id,commander_id,focus_domain,result_json FROM evaluations ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

// ListSuppressions returns the audit trail for one evaluation.
func (r Repo) ListSuppressions(ctx context.Context, evaluationID string) ([]domain.Suppression, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT action_id,reason FROM suppressions WHERE evaluation_id=? ORDER BY id`, evaluationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Suppression
	for rows.Next() {
		var s domain.Suppression
		if err := rows.Scan(&s.ActionID, &s.Reason); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func scanEvaluation(scan func(...any) error) (domain.Evaluation, error) {
	var ev domain.Evaluation
	err := scan(&ev.ID, &ev.TS, &ev.ActorID, &ev.CommanderID, &ev.FocusDomain, &ev.ResultJSON)
	if err == sql.ErrNoRows {
		return ev, ErrNotFound
	}
	return ev, err
}

// --- events ---

// LatestEvents lists recent events with optional filters, newest first.
func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	var clauses []string
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- workspace config ---

// UpsertConfig stores the workspace config YAML in the database so remote
// callers share the CLI's policy tables.
func (r Repo) UpsertConfig(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.DB.ExecContext(ctx, `INSERT INTO workspace_config(id,yaml,updated_at) VALUES (1,?,?)
ON CONFLICT(id) DO UPDATE SET yaml=excluded.yaml, updated_at=excluded.updated_at`, string(payload), now)
	return err
}

// GetConfig loads the stored workspace config.
func (r Repo) GetConfig(ctx context.Context) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT yaml FROM workspace_config WHERE id=1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	return &cfg, cfg.Validate()
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
