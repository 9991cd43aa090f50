package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// BatchResult carries one embedding per input text. A failed item keeps its
// slot so callers can report partial success instead of aborting the batch.
type BatchResult struct {
	Vector []float32
	Err    error
}

// Provider defines the interface for generating text embeddings.
// Implementations are stateless and never truncate input; callers enforce the
// token budget first (see TruncateToBudget).
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch is order-preserving and returns exactly one result per input.
	EmbedBatch(ctx context.Context, texts []string) []BatchResult
}

// ProviderError is an HTTP-level failure from an embedding backend.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider error: status %d, body %s", e.StatusCode, e.Body)
}

// IsRateLimit classifies quota/rate-limit failures, the only transient class
// worth retrying.
func IsRateLimit(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusTooManyRequests
}

func failBatch(texts []string, err error) []BatchResult {
	results := make([]BatchResult, len(texts))
	for i := range results {
		results[i] = BatchResult{Err: err}
	}
	return results
}
