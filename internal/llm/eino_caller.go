package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/streaming"
)

// Retry tuning, grounded on the teacher's internal/session/loop.go
// newRetryBackoff (same constants, same jitter/multiplier choices).
const (
	retryMaxAttempts     = 3
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
	retryMaxElapsedTime  = 2 * time.Minute
)

func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, retryMaxAttempts), ctx)
}

// EinoCaller implements Caller on top of Eino ToolCallingChatModel
// instances, resolved per call by model ID through resolve. Non-streaming
// calls retry transient failures with exponential backoff; streaming
// calls do not retry mid-stream (retrying a stream means re-emitting
// tokens the client already saw), matching the teacher's policy of
// retrying only the initial connection attempt.
type EinoCaller struct {
	resolve ChatModelResolver
}

// NewEinoCaller creates a Caller backed by resolve.
func NewEinoCaller(resolve ChatModelResolver) *EinoCaller {
	return &EinoCaller{resolve: resolve}
}

func (c *EinoCaller) call(ctx context.Context, modelID string, messages []domain.Message, ragContext string, tools []ToolSpec, temperature float64) (Response, error) {
	cm, err := c.resolve(modelID)
	if err != nil {
		return Response{}, domain.NewLLMConfigurationError(fmt.Sprintf("resolving model %q: %v", modelID, err))
	}
	if len(tools) > 0 {
		cm, err = cm.WithTools(toEinoTools(tools))
		if err != nil {
			return Response{}, domain.NewLLMConfigurationError(fmt.Sprintf("binding tools for model %q: %v", modelID, err))
		}
	}

	einoMessages := toEinoMessages(messages, ragContext)

	var resp Response
	op := func() error {
		msg, err := cm.Generate(ctx, einoMessages, model.WithTemperature(float32(temperature)))
		if err != nil {
			return err
		}
		resp = fromEinoResponse(msg)
		return nil
	}

	if err := backoff.Retry(op, newRetryBackoff(ctx)); err != nil {
		return Response{}, domain.NewLLMServiceError(err.Error())
	}
	return resp, nil
}

func (c *EinoCaller) stream(ctx context.Context, modelID string, messages []domain.Message, ragContext string, tools []ToolSpec, temperature float64) (streaming.TokenSource, func() Response) {
	var terminal Response
	cm, err := c.resolve(modelID)
	if err != nil {
		return errorSource(domain.NewLLMConfigurationError(fmt.Sprintf("resolving model %q: %v", modelID, err))), func() Response { return terminal }
	}
	if len(tools) > 0 {
		cm, err = cm.WithTools(toEinoTools(tools))
		if err != nil {
			return errorSource(domain.NewLLMConfigurationError(fmt.Sprintf("binding tools for model %q: %v", modelID, err))), func() Response { return terminal }
		}
	}

	reader, err := cm.Stream(ctx, toEinoMessages(messages, ragContext), model.WithTemperature(float32(temperature)))
	if err != nil {
		return errorSource(domain.NewLLMServiceError(err.Error())), func() Response { return terminal }
	}

	source := tokenSourceFromEino(reader, func(tcs []schema.ToolCall) {
		for _, tc := range tcs {
			terminal.ToolCalls = append(terminal.ToolCalls, domain.ToolCall{
				ID: tc.ID, Type: "function", Name: tc.Function.Name, Arguments: tc.Function.Arguments,
			})
		}
	})
	return source, func() Response { return terminal }
}

func errorSource(err error) streaming.TokenSource {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}

func (c *EinoCaller) CallPlain(ctx context.Context, modelID string, messages []domain.Message, temperature float64) (Response, error) {
	return c.call(ctx, modelID, messages, "", nil, temperature)
}

func (c *EinoCaller) StreamPlain(ctx context.Context, modelID string, messages []domain.Message, temperature float64) streaming.TokenSource {
	src, _ := c.stream(ctx, modelID, messages, "", nil, temperature)
	return src
}

func (c *EinoCaller) CallWithTools(ctx context.Context, modelID string, messages []domain.Message, tools []ToolSpec, temperature float64) (Response, error) {
	return c.call(ctx, modelID, messages, "", tools, temperature)
}

func (c *EinoCaller) StreamWithTools(ctx context.Context, modelID string, messages []domain.Message, tools []ToolSpec, temperature float64) (streaming.TokenSource, func() Response) {
	return c.stream(ctx, modelID, messages, "", tools, temperature)
}

func (c *EinoCaller) CallWithRAG(ctx context.Context, modelID string, messages []domain.Message, ragContext string, temperature float64) (Response, error) {
	return c.call(ctx, modelID, messages, ragContext, nil, temperature)
}

func (c *EinoCaller) StreamWithRAG(ctx context.Context, modelID string, messages []domain.Message, ragContext string, temperature float64) streaming.TokenSource {
	src, _ := c.stream(ctx, modelID, messages, ragContext, nil, temperature)
	return src
}

func (c *EinoCaller) CallWithRAGAndTools(ctx context.Context, modelID string, messages []domain.Message, ragContext string, tools []ToolSpec, temperature float64) (Response, error) {
	return c.call(ctx, modelID, messages, ragContext, tools, temperature)
}

func (c *EinoCaller) StreamWithRAGAndTools(ctx context.Context, modelID string, messages []domain.Message, ragContext string, tools []ToolSpec, temperature float64) (streaming.TokenSource, func() Response) {
	return c.stream(ctx, modelID, messages, ragContext, tools, temperature)
}

var _ Caller = (*EinoCaller)(nil)
