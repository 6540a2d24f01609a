package server

import (
	"regimen/internal/domain"
)

// Request payloads

type SetStateRequest struct {
	Score   float64            `json:"score" minimum:"0" maximum:"100"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

type CreateSessionRequest struct {
	ID          *string `json:"id,omitempty"`
	Type        string  `json:"type"`
	StartAt     string  `json:"start_at" format:"date-time"`
	DurationMin int     `json:"duration_min,omitempty"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type DomainStateResponse struct {
	Domain    string             `json:"domain"`
	Score     float64            `json:"score"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	UpdatedAt string             `json:"updated_at,omitempty" format:"date-time"`
}

type SnapshotResponse struct {
	States []DomainStateResponse `json:"states"`
}

type SessionResponse struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Status      string  `json:"status" enum:"planned,completed,canceled"`
	StartAt     string  `json:"start_at" format:"date-time"`
	DurationMin int     `json:"duration_min,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func stateResponse(st domain.DomainState) DomainStateResponse {
	return DomainStateResponse{
		Domain:    st.Domain,
		Score:     st.Score,
		Metrics:   st.Metrics,
		UpdatedAt: st.UpdatedAt,
	}
}

func snapshotResponse(snap domain.Snapshot) SnapshotResponse {
	out := SnapshotResponse{States: []DomainStateResponse{}}
	for _, st := range snap.States {
		out.States = append(out.States, stateResponse(st))
	}
	return out
}

func sessionResponse(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:          s.ID,
		Type:        s.Type,
		Status:      s.Status,
		StartAt:     s.StartAt,
		DurationMin: s.DurationMin,
		CreatedAt:   s.CreatedAt,
		CompletedAt: s.CompletedAt,
	}
}

func mapSessions(items []domain.Session) []SessionResponse {
	out := []SessionResponse{}
	for _, s := range items {
		out = append(out, sessionResponse(s))
	}
	return out
}

func eventResponse(ev domain.Event) EventResponse {
	return EventResponse{
		ID:         ev.ID,
		TS:         ev.TS,
		Type:       ev.Type,
		EntityKind: ev.EntityKind,
		EntityID:   ev.EntityID,
		ActorID:    ev.ActorID,
		Payload:    ev.Payload,
	}
}
