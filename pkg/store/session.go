// Package store holds the in-memory triage session state shared between the
// router and the session repository.
package store

import (
	"ai-triage-be/pkg/llm"
	"ai-triage-be/pkg/persona"
)

// DefaultSessionID is used when a caller supplies no session identifier
// (single-user mode).
const DefaultSessionID = "user_main"

// PersonaBinding is one persona's independent chat binding inside a session:
// the persona id plus an append-only history whose first entry is the
// persona's system instruction. Personas are templates; the binding is the
// per-session instance.
type PersonaBinding struct {
	PersonaID string
	History   []llm.Message
}

func NewBinding(personaID, instructions string) *PersonaBinding {
	return &PersonaBinding{
		PersonaID: personaID,
		History: []llm.Message{
			{Role: llm.RoleSystem, Content: instructions},
		},
	}
}

// Append records one completed exchange on the binding.
func (b *PersonaBinding) Append(userMessage, reply string) {
	b.History = append(b.History,
		llm.Message{Role: llm.RoleUser, Content: userMessage},
		llm.Message{Role: llm.RoleAssistant, Content: reply},
	)
}

// Session is one user's ongoing multi-persona conversation. Exactly one
// persona is active at a time; the nurse binding always exists so the session
// can fall back to it. State is process-local and owned by the session
// repository; mutation happens only under the session's keyed lock.
type Session struct {
	ID            string
	ActivePersona string
	Bindings      map[string]*PersonaBinding
}

// NewSession creates a session bound to the nurse persona.
func NewSession(id string, nurse persona.Profile) *Session {
	s := &Session{
		ID:            id,
		ActivePersona: nurse.ID,
		Bindings:      make(map[string]*PersonaBinding),
	}
	s.Bindings[nurse.ID] = NewBinding(nurse.ID, nurse.Instructions)
	return s
}

// Binding returns the binding for a persona id, or nil when the persona was
// never bound in this session.
func (s *Session) Binding(personaID string) *PersonaBinding {
	return s.Bindings[personaID]
}

// ActiveBinding returns the binding for the currently active persona.
func (s *Session) ActiveBinding() *PersonaBinding {
	return s.Bindings[s.ActivePersona]
}

// Activate attaches the binding (if not already present) and switches the
// active persona to it. Called only after a successful specialist reply so a
// completion failure never leaves a half-switched session.
func (s *Session) Activate(b *PersonaBinding) {
	s.Bindings[b.PersonaID] = b
	s.ActivePersona = b.PersonaID
}
