package dto

import "fmt"

type SendMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" validate:"required"`
}

type SendMessageResponse struct {
	Response string `json:"response"`
	Persona  string `json:"persona,omitempty"`
}

type InitSessionRequest struct {
	SessionID string `json:"session_id"`
}

type InitSessionResponse struct {
	Intro string `json:"intro"`
}

type ResetSessionRequest struct {
	SessionID string `json:"session_id"`
}

// CompletionError is the only infrastructure failure surfaced to the caller:
// the generation call itself errored or timed out, and there is no safe
// degraded reply to fabricate. Session state is guaranteed unchanged.
type CompletionError struct {
	Persona string
	Err     error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed for persona %s: %v", e.Persona, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
