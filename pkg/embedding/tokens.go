package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TokenCounter reports the token count of a text under a reference tokenizer.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// minTruncateLen is the floor below which trimming gives up and returns the
// text as-is with the last known count.
const minTruncateLen = 50

// maxTruncateAttempts bounds the trim-and-recount loop.
const maxTruncateAttempts = 10

type TruncateResult struct {
	Text       string
	TokenCount int
	Truncated  bool
}

// TruncateToBudget trims text until it fits the token budget. The first cutoff
// is estimated proportionally from the initial count, then the text is
// re-counted and trimmed by max(10, 5% of current length) characters per pass,
// at most maxTruncateAttempts times. A counting failure is an error for the
// item; silently embedding untruncated text is never an option.
func TruncateToBudget(ctx context.Context, text string, budget int, counter TokenCounter) (TruncateResult, error) {
	count, err := counter.CountTokens(ctx, text)
	if err != nil {
		return TruncateResult{}, fmt.Errorf("count tokens: %w", err)
	}
	if count <= budget {
		return TruncateResult{Text: text, TokenCount: count}, nil
	}

	cutoff := int(float64(len(text)) * (float64(budget) * 0.95 / float64(count)))
	if cutoff > 0 && cutoff < len(text) {
		text = text[:cutoff]
	}

	for attempt := 0; attempt < maxTruncateAttempts; attempt++ {
		count, err = counter.CountTokens(ctx, text)
		if err != nil {
			return TruncateResult{}, fmt.Errorf("count tokens: %w", err)
		}
		if count <= budget {
			break
		}
		if len(text) <= minTruncateLen {
			// Stop rather than loop forever on a pathological tokenizer.
			break
		}
		trim := len(text) / 20
		if trim < 10 {
			trim = 10
		}
		if trim >= len(text) {
			break
		}
		text = text[:len(text)-trim]
	}

	return TruncateResult{Text: text, TokenCount: count, Truncated: true}, nil
}

// GeminiTokenCounter counts against the Gemini countTokens endpoint, the
// reference tokenizer for text-embedding-004 input budgets.
type GeminiTokenCounter struct {
	ApiKey string
	Client *http.Client
}

var _ TokenCounter = &GeminiTokenCounter{}

func NewGeminiTokenCounter(apiKey string) *GeminiTokenCounter {
	return &GeminiTokenCounter{
		ApiKey: apiKey,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

type geminiCountRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCountResponse struct {
	TotalTokens int `json:"totalTokens"`
}

func (c *GeminiTokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	payload := geminiCountRequest{
		Contents: []geminiContent{
			{Parts: []geminiContentPart{{Text: text}}},
		},
	}
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:countTokens",
		geminiEmbeddingModel,
	)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(payloadJson))
	if err != nil {
		return 0, err
	}
	req.Header.Set("x-goog-api-key", c.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	resByte, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, err
	}
	if res.StatusCode != http.StatusOK {
		return 0, &ProviderError{StatusCode: res.StatusCode, Body: string(resByte)}
	}

	var countRes geminiCountResponse
	if err := json.Unmarshal(resByte, &countRes); err != nil {
		return 0, err
	}
	return countRes.TotalTokens, nil
}

// HeuristicTokenCounter approximates ~4 characters per token. Used when no API
// key is configured (local Ollama setups) and in tests.
type HeuristicTokenCounter struct{}

var _ TokenCounter = HeuristicTokenCounter{}

func (HeuristicTokenCounter) CountTokens(_ context.Context, text string) (int, error) {
	return (len(text) + 3) / 4, nil
}
