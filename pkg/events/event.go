// Package events defines the triage event bus payloads published on the
// in-process watermill channel and consumed by the audit consumer.
package events

import "time"

// Topic is the watermill topic all triage events are published on.
const Topic = "TRIAGE_EVENTS"

const (
	TypeTurnCompleted   = "TURN_COMPLETED"
	TypePersonaHandover = "PERSONA_HANDOVER"
)

// TriageEvent is the JSON payload for every bus message.
type TriageEvent struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	Persona    string    `json:"persona"`
	Topic      string    `json:"topic,omitempty"` // handover target, if any
	Augmented  bool      `json:"augmented"`       // whether RAG context was attached
	OccurredAt time.Time `json:"occurred_at"`
}
