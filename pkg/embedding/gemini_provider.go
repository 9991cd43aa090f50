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

const geminiEmbeddingModel = "text-embedding-004"

// Dimensions of the Gemini text-embedding-004 vectors.
const Dimensions = 768

type GeminiProvider struct {
	ApiKey string
	Client *http.Client
}

var _ Provider = &GeminiProvider{}

func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{
		ApiKey: apiKey,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

type geminiContentPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiContentPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiBatchEmbedRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiEmbeddingValues struct {
	Values []float32 `json:"values"`
}

type geminiEmbedResponse struct {
	Embedding geminiEmbeddingValues `json:"embedding"`
}

type geminiBatchEmbedResponse struct {
	Embeddings []geminiEmbeddingValues `json:"embeddings"`
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := geminiEmbedRequest{
		Model: "models/" + geminiEmbeddingModel,
		Content: geminiContent{
			Parts: []geminiContentPart{{Text: text}},
		},
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:embedContent",
		geminiEmbeddingModel,
	)

	body, err := p.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var res geminiEmbedResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("unmarshal embedding response: %w", err)
	}
	return res.Embedding.Values, nil
}

// EmbedBatch issues one batchEmbedContents call for the whole slice. A
// provider-level failure marks every item instead of raising, so ingestion can
// continue and report partial success.
func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) []BatchResult {
	if len(texts) == 0 {
		return nil
	}

	payload := geminiBatchEmbedRequest{
		Requests: make([]geminiEmbedRequest, len(texts)),
	}
	for i, text := range texts {
		payload.Requests[i] = geminiEmbedRequest{
			Model: "models/" + geminiEmbeddingModel,
			Content: geminiContent{
				Parts: []geminiContentPart{{Text: text}},
			},
		}
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:batchEmbedContents",
		geminiEmbeddingModel,
	)

	body, err := p.post(ctx, endpoint, payload)
	if err != nil {
		return failBatch(texts, err)
	}

	var res geminiBatchEmbedResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return failBatch(texts, fmt.Errorf("unmarshal batch response: %w", err))
	}
	if len(res.Embeddings) != len(texts) {
		return failBatch(texts, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(res.Embeddings)))
	}

	results := make([]BatchResult, len(texts))
	for i, e := range res.Embeddings {
		results[i] = BatchResult{Vector: e.Values}
	}
	return results
}

func (p *GeminiProvider) post(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	resByte, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, &ProviderError{StatusCode: res.StatusCode, Body: string(resByte)}
	}
	return resByte, nil
}
