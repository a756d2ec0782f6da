package streaming

import (
	"context"
	"errors"
	"testing"

	"github.com/atlaschat/core/internal/event"
	"github.com/atlaschat/core/internal/publisher"
)

func tokensOf(tokens ...string) TokenSource {
	return func(yield func(string, error) bool) {
		for _, t := range tokens {
			if !yield(t, nil) {
				return
			}
		}
	}
}

func failingAfter(tokens []string, failErr error) TokenSource {
	return func(yield func(string, error) bool) {
		for _, t := range tokens {
			if !yield(t, nil) {
				return
			}
		}
		yield("", failErr)
	}
}

func countTokenStreamEvents(result publisher.CollectedResult) int {
	n := 0
	for _, e := range result.RawEvents {
		if e.Type == "token_stream" {
			n++
		}
	}
	return n
}

func TestStreamAndAccumulate_EmitsNPlusOneEvents(t *testing.T) {
	pub := publisher.NewCollectingCLIPublisher()
	got := StreamAndAccumulate(context.Background(), tokensOf("Hel", "lo", "!"), pub, nil, "test")
	if got != "Hello!" {
		t.Errorf("expected accumulated 'Hello!', got %q", got)
	}
	if n := countTokenStreamEvents(pub.Result()); n != 4 {
		t.Errorf("expected 4 token_stream events (3 tokens + terminator), got %d", n)
	}
}

func TestStreamAndAccumulate_EmptySourceNoFallback(t *testing.T) {
	pub := publisher.NewCollectingCLIPublisher()
	got := StreamAndAccumulate(context.Background(), tokensOf(), pub, nil, "test")
	if got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestStreamAndAccumulate_EmptySourceWithFallback(t *testing.T) {
	pub := publisher.NewCollectingCLIPublisher()
	calls := 0
	fb := func(ctx context.Context) (string, error) {
		calls++
		return "fallback result", nil
	}
	got := StreamAndAccumulate(context.Background(), tokensOf(), pub, fb, "test")
	if got != "fallback result" {
		t.Errorf("expected fallback result, got %q", got)
	}
	if calls != 1 {
		t.Errorf("expected fallback invoked exactly once, got %d", calls)
	}
}

func TestStreamAndAccumulate_MidStreamFailurePreservesPartial(t *testing.T) {
	pub := publisher.NewCollectingCLIPublisher()
	fb := func(ctx context.Context) (string, error) {
		t.Fatal("fallback should not be invoked when partial content was received")
		return "", nil
	}
	source := failingAfter([]string{"partial"}, errors.New("connection reset"))
	got := StreamAndAccumulate(context.Background(), source, pub, fb, "test")
	if got != "partial" {
		t.Errorf("expected partial content preserved, got %q", got)
	}
}

func TestStreamAndAccumulate_MidStreamFailureNoTokensUsesFallback(t *testing.T) {
	pub := publisher.NewCollectingCLIPublisher()
	fb := func(ctx context.Context) (string, error) {
		return "recovered", nil
	}
	source := failingAfter(nil, errors.New("connection reset"))
	got := StreamAndAccumulate(context.Background(), source, pub, fb, "test")
	if got != "recovered" {
		t.Errorf("expected fallback result, got %q", got)
	}
}

func TestStreamAndAccumulate_MidStreamFailureNoTokensNoFallback_ClassifiesError(t *testing.T) {
	pub := publisher.NewCollectingCLIPublisher()
	source := failingAfter(nil, errors.New("rate limit exceeded"))
	got := StreamAndAccumulate(context.Background(), source, pub, nil, "test")
	if got == "" {
		t.Error("expected classified user message, got empty string")
	}
}

func TestStreamAndAccumulate_TerminatorEmittedExactlyOnce(t *testing.T) {
	pub := publisher.NewCollectingCLIPublisher()
	source := failingAfter([]string{"a"}, errors.New("boom"))
	StreamAndAccumulate(context.Background(), source, pub, nil, "test")

	terminators := 0
	for _, e := range pub.Result().RawEvents {
		if e.Type != "token_stream" {
			continue
		}
		td := e.Data.(event.TokenStreamData)
		if td.IsLast {
			terminators++
		}
	}
	if terminators != 1 {
		t.Errorf("expected exactly one terminator token_stream event, got %d", terminators)
	}
}
