// Package retrieval orchestrates embed-then-search over the vector store and
// formats results into a prompt-augmentation block. Retrieval is best-effort:
// every failure path degrades to "no context" because a RAG miss must never
// abort a conversation turn.
package retrieval

import (
	"context"
	"strings"
	"sync"
	"time"

	"ai-triage-be/internal/pkg/logger"
	"ai-triage-be/pkg/embedding"
	"ai-triage-be/pkg/retry"
	"ai-triage-be/pkg/vectorstore"
)

// Example is one historical conversation pair used to ground a reply.
type Example struct {
	UserInput      string
	ExpertResponse string
}

type Service struct {
	store      vectorstore.Store
	embedder   embedding.Provider
	collection string
	policy     retry.Policy
	logger     logger.ILogger

	initOnce sync.Once
	initErr  error
}

func NewService(
	store vectorstore.Store,
	embedder embedding.Provider,
	collection string,
	sysLogger logger.ILogger,
) *Service {
	return &Service{
		store:      store,
		embedder:   embedder,
		collection: collection,
		logger:     sysLogger,
		policy: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.LinearBackoff(5 * time.Second),
			Retryable:   embedding.IsRateLimit,
		},
	}
}

// WithPolicy overrides the embedding retry policy. Used by tests to inject a
// no-sleep policy.
func (s *Service) WithPolicy(policy retry.Policy) *Service {
	s.policy = policy
	return s
}

func (s *Service) ensureInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		if err := s.store.Initialize(ctx); err != nil {
			s.initErr = err
			return
		}
		s.initErr = s.store.EnsureCollection(ctx, s.collection)
	})
	return s.initErr
}

// Retrieve returns up to topK similar historical exchanges for the query.
// Rate-limited embedding calls are retried with linear backoff; any other
// failure (or exhausted retries) yields an empty slice, never an error.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) []Example {
	if err := s.ensureInit(ctx); err != nil {
		s.logger.Warn("RETRIEVAL", "Vector store unavailable, skipping retrieval", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var queryEmbedding []float32
	err := s.policy.Do(ctx, func() error {
		vec, embedErr := s.embedder.Embed(ctx, query)
		if embedErr != nil {
			return embedErr
		}
		queryEmbedding = vec
		return nil
	})
	if err != nil {
		s.logger.Warn("RETRIEVAL", "Query embedding failed, continuing without context", map[string]interface{}{"error": err.Error()})
		return nil
	}

	results, err := s.store.Search(ctx, queryEmbedding, topK)
	if err != nil {
		s.logger.Warn("RETRIEVAL", "Vector search failed, continuing without context", map[string]interface{}{"error": err.Error()})
		return nil
	}

	examples := make([]Example, len(results))
	for i, r := range results {
		examples[i] = Example{
			UserInput:      r.Metadata.UserInput,
			ExpertResponse: r.Metadata.ExpertResponse,
		}
	}
	return examples
}

// Augment wraps the user's message with retrieved example conversations. Pure
// and total: an empty example slice produces the same frame with an empty
// examples block, and the literal user message always appears verbatim.
func Augment(userMessage string, examples []Example) string {
	var b strings.Builder

	b.WriteString("Here are some examples of professional conversations to use as guidance:\n\n")
	for _, example := range examples {
		b.WriteString("User: ")
		b.WriteString(example.UserInput)
		b.WriteString("\nExpert: ")
		b.WriteString(example.ExpertResponse)
		b.WriteString("\n\n")
	}

	b.WriteString("Remember to use these examples as guidance while maintaining your own conversational style.\n")
	b.WriteString("Do not copy the examples verbatim.\n")
	b.WriteString("Talk to the user as if they were in the same room with you, and keep the conversation flowing naturally.\n")
	b.WriteString("Don't be too formal, but also don't be too casual.\n")
	b.WriteString("The user's current message is: ")
	b.WriteString(userMessage)

	return b.String()
}
