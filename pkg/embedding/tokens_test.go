package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type failingCounter struct{ err error }

func (c failingCounter) CountTokens(context.Context, string) (int, error) {
	return 0, c.err
}

func TestTruncateToBudgetUnderBudget(t *testing.T) {
	text := "short message"
	res, err := TruncateToBudget(context.Background(), text, 100, HeuristicTokenCounter{})
	if err != nil {
		t.Fatalf("TruncateToBudget() error = %v", err)
	}
	if res.Text != text {
		t.Errorf("Text = %q, want unchanged input", res.Text)
	}
	if res.Truncated {
		t.Error("Truncated = true, want false")
	}
}

func TestTruncateToBudgetTrimsToFit(t *testing.T) {
	text := strings.Repeat("word ", 200) // ~250 tokens under the heuristic
	budget := 50

	res, err := TruncateToBudget(context.Background(), text, budget, HeuristicTokenCounter{})
	if err != nil {
		t.Fatalf("TruncateToBudget() error = %v", err)
	}
	if !res.Truncated {
		t.Fatal("Truncated = false, want true")
	}
	if res.TokenCount > budget {
		t.Errorf("TokenCount = %d, want <= %d", res.TokenCount, budget)
	}
	if len(res.Text) >= len(text) {
		t.Errorf("len(Text) = %d, want shorter than %d", len(res.Text), len(text))
	}
}

func TestTruncateToBudgetStopsAtFloor(t *testing.T) {
	// A counter that never fits forces the loop to give up at the length
	// floor instead of spinning.
	over := func() TokenCounter { return stubCounter{count: 10_000} }

	res, err := TruncateToBudget(context.Background(), strings.Repeat("x", 400), 5, over())
	if err != nil {
		t.Fatalf("TruncateToBudget() error = %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(res.Text) == 0 {
		t.Error("text fully consumed, want a floor")
	}
}

type stubCounter struct{ count int }

func (c stubCounter) CountTokens(context.Context, string) (int, error) {
	return c.count, nil
}

func TestTruncateToBudgetCounterFailure(t *testing.T) {
	boom := errors.New("countTokens unavailable")
	_, err := TruncateToBudget(context.Background(), "some text", 10, failingCounter{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("TruncateToBudget() error = %v, want wrapped %v", err, boom)
	}
}

func TestIsRateLimit(t *testing.T) {
	if !IsRateLimit(&ProviderError{StatusCode: 429, Body: "quota"}) {
		t.Error("429 not classified as rate limit")
	}
	if IsRateLimit(&ProviderError{StatusCode: 500, Body: "boom"}) {
		t.Error("500 classified as rate limit")
	}
	if IsRateLimit(errors.New("plain")) {
		t.Error("plain error classified as rate limit")
	}
}
