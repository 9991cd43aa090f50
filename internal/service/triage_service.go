package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-triage-be/internal/dto"
	"ai-triage-be/internal/pkg/logger"
	"ai-triage-be/internal/repository/memory"
	"ai-triage-be/pkg/events"
	"ai-triage-be/pkg/handover"
	"ai-triage-be/pkg/llm"
	"ai-triage-be/pkg/persona"
	"ai-triage-be/pkg/retrieval"
	"ai-triage-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/patrickmn/go-cache"
)

// introPrompt opens a fresh nurse session; the nurse instructions make the
// model introduce itself on the first exchange.
const introPrompt = "Hello"

// Retriever is the slice of the retrieval service the router needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) []retrieval.Example
}

type ITriageService interface {
	SendMessage(ctx context.Context, sessionID, message string) (*dto.SendMessageResponse, error)
	InitSession(ctx context.Context, sessionID string) (*dto.InitSessionResponse, error)
	ResetSession(ctx context.Context, sessionID string) error
}

type triageService struct {
	sessions  *memory.SessionRepository
	registry  *persona.Registry
	llm       llm.LLMProvider
	retriever Retriever
	topK      int
	publisher message.Publisher
	intros    *cache.Cache
	logger    logger.ILogger
}

func NewTriageService(
	sessions *memory.SessionRepository,
	registry *persona.Registry,
	llmProvider llm.LLMProvider,
	retriever Retriever,
	topK int,
	publisher message.Publisher,
	sysLogger logger.ILogger,
) ITriageService {
	return &triageService{
		sessions:  sessions,
		registry:  registry,
		llm:       llmProvider,
		retriever: retriever,
		topK:      topK,
		publisher: publisher,
		intros:    cache.New(cache.NoExpiration, 0),
		logger:    sysLogger,
	}
}

// SendMessage runs one turn of the handover state machine. Turns for a given
// session are serialized by the repository's keyed lock, so a later turn
// always observes the persona state left by the previous one.
func (s *triageService) SendMessage(ctx context.Context, sessionID, message string) (*dto.SendMessageResponse, error) {
	if sessionID == "" {
		sessionID = store.DefaultSessionID
	}

	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	sess, found := s.sessions.Get(sessionID)
	if !found {
		sess = store.NewSession(sessionID, s.registry.Nurse())
	}

	augmented, usedRAG := s.augmentMessage(ctx, message)

	active := sess.ActiveBinding()
	reply, err := s.chat(ctx, active.History, augmented)
	if err != nil {
		// Session state untouched: no history append, no persona switch.
		return nil, &dto.CompletionError{Persona: active.PersonaID, Err: err}
	}

	outcome := handover.Parse(reply)

	if outcome.Kind == handover.KindHandover {
		if sess.ActivePersona != persona.NurseID {
			// Specialists are absorbing: a second-level handover signal is
			// ignored and the raw reply passes through as dialogue.
			s.logger.Warn("TRIAGE", "Handover signal from specialist ignored", map[string]interface{}{
				"session_id": sessionID,
				"persona":    sess.ActivePersona,
				"topic":      outcome.Topic,
			})
		} else {
			return s.handover(ctx, sess, outcome.Topic, augmented, usedRAG)
		}
	}

	if outcome.Malformed {
		s.logger.Warn("TRIAGE", "Malformed handover signal, treating as dialogue", map[string]interface{}{
			"session_id": sessionID,
			"reply":      reply,
		})
	}

	active.Append(augmented, reply)
	s.sessions.Save(sess)
	s.publish(events.TriageEvent{
		Type:      events.TypeTurnCompleted,
		SessionID: sessionID,
		Persona:   sess.ActivePersona,
		Augmented: usedRAG,
	})

	return &dto.SendMessageResponse{Response: reply, Persona: sess.ActivePersona}, nil
}

// handover switches the session to the specialist for topic and re-issues the
// same augmented input so the specialist's first reply addresses the original
// content. The raw HANDOVER token never reaches the caller and the nurse
// history does not record the signal turn.
func (s *triageService) handover(ctx context.Context, sess *store.Session, topic, augmented string, usedRAG bool) (*dto.SendMessageResponse, error) {
	profile := s.registry.Resolve(topic)

	// Reuse a binding created by an earlier handover to this topic; otherwise
	// build one detached so a failed first exchange leaves the session as-is.
	binding := sess.Binding(topic)
	if binding == nil {
		binding = store.NewBinding(topic, profile.Instructions)
	}

	reply, err := s.chat(ctx, binding.History, augmented)
	if err != nil {
		return nil, &dto.CompletionError{Persona: topic, Err: err}
	}

	sess.Activate(binding)
	binding.Append(augmented, reply)
	s.sessions.Save(sess)

	s.logger.Info("TRIAGE", "Persona handover", map[string]interface{}{
		"session_id": sess.ID,
		"topic":      topic,
		"persona":    profile.ID,
	})
	s.publish(events.TriageEvent{
		Type:      events.TypePersonaHandover,
		SessionID: sess.ID,
		Persona:   topic,
		Topic:     topic,
		Augmented: usedRAG,
	})

	return &dto.SendMessageResponse{Response: reply, Persona: topic}, nil
}

// InitSession (re)creates a fresh nurse binding and asks it to introduce
// itself. When generation fails but an earlier intro was cached for this
// session, the cached text is served instead of an error.
func (s *triageService) InitSession(ctx context.Context, sessionID string) (*dto.InitSessionResponse, error) {
	if sessionID == "" {
		sessionID = store.DefaultSessionID
	}

	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	sess := store.NewSession(sessionID, s.registry.Nurse())
	binding := sess.ActiveBinding()

	intro, err := s.chat(ctx, binding.History, introPrompt)
	if err != nil {
		if cached, found := s.intros.Get(sessionID); found {
			s.logger.Warn("TRIAGE", "Intro generation failed, serving cached intro", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
			return &dto.InitSessionResponse{Intro: cached.(string)}, nil
		}
		return nil, &dto.CompletionError{Persona: persona.NurseID, Err: err}
	}

	binding.Append(introPrompt, intro)
	s.sessions.Save(sess)
	s.intros.Set(sessionID, intro, cache.NoExpiration)

	return &dto.InitSessionResponse{Intro: intro}, nil
}

func (s *triageService) ResetSession(_ context.Context, sessionID string) error {
	if sessionID == "" {
		sessionID = store.DefaultSessionID
	}

	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	s.sessions.Delete(sessionID)
	return nil
}

// chat sends one user turn on top of the binding history. The history slice
// is not mutated; committing an exchange is the caller's decision.
func (s *triageService) chat(ctx context.Context, history []llm.Message, userMessage string) (string, error) {
	msgs := make([]llm.Message, len(history), len(history)+1)
	copy(msgs, history)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userMessage})

	reply, err := s.llm.Chat(ctx, msgs)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// augmentMessage attaches retrieved context when available. Retrieval failure
// of any kind, panics included, falls back to the raw message: it must never
// surface as a user-facing error.
func (s *triageService) augmentMessage(ctx context.Context, message string) (out string, augmented bool) {
	out = message
	if s.retriever == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("TRIAGE", "Retrieval panicked, continuing without context", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			out, augmented = message, false
		}
	}()

	examples := s.retriever.Retrieve(ctx, message, s.topK)
	if len(examples) == 0 {
		return
	}
	return retrieval.Augment(message, examples), true
}

func (s *triageService) publish(evt events.TriageEvent) {
	if s.publisher == nil {
		return
	}
	evt.OccurredAt = time.Now()

	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(events.Topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		s.logger.Error("TRIAGE", "Failed to publish triage event", map[string]interface{}{"error": err.Error()})
	}
}
