// Package streaming implements the Streaming Accumulator (spec §4.3, C4):
// consume a token source, emit token_stream events with the is_first/
// is_last ordering contract, recover partial content on mid-stream
// failure, and classify unrecoverable errors through the domain error
// taxonomy.
package streaming

import (
	"context"
	"iter"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/publisher"
)

// TokenSource yields tokens one at a time. Implementations wrap an LLM
// provider's stream reader (see internal/llm); iteration stops either when
// the sequence is exhausted or when the yield function returns false.
type TokenSource = iter.Seq2[string, error]

// Fallback is invoked when the token source yields nothing at all — either
// because it was empty or failed before producing a single token.
type Fallback func(ctx context.Context) (string, error)

// StreamAndAccumulate implements the exact contract of spec §4.3.
//
//   - The first non-empty token is emitted with is_first=true; every token
//     after that with is_first=false.
//   - The terminator (empty token, is_last=true) is emitted exactly once
//     when at least one token was streamed, and on every mid-stream
//     failure even with zero tokens — so a client's caret never gets stuck
//     waiting for a token that will never arrive. A source that completes
//     normally without any token gets no terminator.
//   - A mid-stream failure after at least one token preserves the partial
//     accumulator: it is never overwritten by a fallback result or error
//     text.
//   - A failure (or an empty source) with zero tokens received falls back
//     to fb if provided, publishing its result via PublishChatResponse. If
//     fb fails, its error (for an empty source) or the original stream
//     failure is classified (domain.Classify) and the user-facing message
//     is both published via PublishChatResponse and returned. A mid-stream
//     failure with no fb is classified the same way; an empty source with
//     no fb returns "" and publishes nothing.
func StreamAndAccumulate(ctx context.Context, source TokenSource, pub publisher.Publisher, fb Fallback, label string) string {
	var accumulated string
	first := true
	var streamErr error

	for token, err := range source {
		if err != nil {
			streamErr = err
			break
		}
		if token == "" {
			continue
		}
		pub.PublishTokenStream(ctx, token, first, false)
		first = false
		accumulated += token
	}

	if streamErr == nil {
		// Normal completion: the terminator is only owed to a stream that
		// actually started (spec §4.3 step 2) — an empty source with a
		// fallback goes straight to the fallback/publish_chat_response
		// path instead, with no dangling caret to close.
		if accumulated != "" {
			pub.PublishTokenStream(ctx, "", false, true)
			return accumulated
		}
		return fallbackOrEmpty(ctx, pub, fb)
	}

	// Mid-stream failure.
	pub.PublishTokenStream(ctx, "", false, true)
	if accumulated != "" {
		return accumulated
	}
	if fb != nil {
		if result, ferr := fb(ctx); ferr == nil {
			pub.PublishChatResponse(ctx, result, false)
			return result
		}
	}
	_, userMessage, _ := domain.Classify(streamErr)
	pub.PublishChatResponse(ctx, userMessage, false)
	return userMessage
}

func fallbackOrEmpty(ctx context.Context, pub publisher.Publisher, fb Fallback) string {
	if fb == nil {
		return ""
	}
	result, err := fb(ctx)
	if err != nil {
		_, userMessage, _ := domain.Classify(err)
		pub.PublishChatResponse(ctx, userMessage, false)
		return userMessage
	}
	pub.PublishChatResponse(ctx, result, false)
	return result
}
