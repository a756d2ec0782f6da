/*
Package event provides a type-safe, pub/sub event system underlying the
Event Publisher port (spec §4.1): the transport-agnostic core that
WebSocket and CLI publisher variants sit on top of.

# Architecture

The package is built on top of watermill's gochannel for infrastructure
while maintaining direct-call semantics to preserve type information. It
provides both synchronous and asynchronous event publishing patterns.

# Client event stream

The event types recognized by clients are those in the external interface
contract: token_stream, chat_response, response_complete, agent_update,
tool_start, tool_progress, tool_complete, tool_error, intermediate_update,
canvas_content, elicitation_request, error, security_warning,
conversation_saved, session_reset. Each has a payload struct alongside its
constant in types.go.

# Basic usage

Publishing events:

	event.Publish(event.Event{
		Type: event.TokenStream,
		Data: event.TokenStreamData{Token: "Hello", IsFirst: true},
	})

	// Synchronous publishing (blocking until all subscribers complete)
	event.PublishSync(event.Event{
		Type: event.ResponseComplete,
		Data: event.ResponseCompleteData{},
	})

Subscribing to specific events:

	unsubscribe := event.Subscribe(event.ToolStart, func(e event.Event) {
		data := e.Data.(event.ToolStartData)
		log.Info().Str("tool", data.ToolName).Msg("tool started")
	})
	defer unsubscribe()

Subscribing to all events (used by the WebSocket publisher's relay, which
forwards every event on its connection's own bus):

	unsubscribe := event.SubscribeAll(func(e event.Event) {
		log.Debug().Str("type", string(e.Type)).Msg("event received")
	})
	defer unsubscribe()

# Subscriber safety guidelines

When using PublishSync, subscribers are called synchronously in the
publisher's goroutine. To avoid blocking or deadlocks, subscribers MUST:

  - Complete quickly (avoid long-running operations)
  - Use non-blocking channel sends (select with default case)
  - Never call Publish/PublishSync from within a subscriber (no re-entrant publishing)
  - Never acquire locks that the publisher might hold

# Custom event bus

For testing or per-session isolation, create dedicated bus instances:

	bus := event.NewBus()
	defer bus.Close()

# Thread safety

The event bus is thread-safe and can be used concurrently from multiple
goroutines. Both publishing and subscribing operations are protected by
internal synchronization.
*/
package event
