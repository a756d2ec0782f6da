package server

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/atlaschat/core/internal/event"
	"github.com/atlaschat/core/internal/logging"
	"github.com/atlaschat/core/internal/modes"
	"github.com/atlaschat/core/internal/orchestrator"
	"github.com/atlaschat/core/internal/publisher"
)

// inboundMessage is one client->server WebSocket frame. kind selects which
// of the two payloads is populated: a new chat request, or a response to
// a pending elicitation_request.
type inboundMessage struct {
	Kind string `json:"kind"`

	// Populated when kind == "chat_request".
	Content             string                  `json:"content"`
	Model               string                  `json:"model"`
	UserEmail           string                  `json:"user_email"`
	SelectedTools       []string                `json:"selected_tools"`
	SelectedDataSources []string                `json:"selected_data_sources"`
	SelectedPrompts     []promptSelectionWire   `json:"selected_prompts"`
	OnlyRAG             bool                    `json:"only_rag"`
	AgentStrategy       string                  `json:"agent_strategy"`
	AgentStreaming      bool                    `json:"agent_streaming"`
	MaxSteps            int                     `json:"max_steps"`
	Temperature         float64                 `json:"temperature"`
	Files               []fileUploadWire        `json:"files"`

	// Populated when kind == "elicitation_response".
	ElicitationID   string         `json:"elicitation_id"`
	Approved        bool           `json:"approved"`
	Rejected        bool           `json:"rejected"`
	EditedArguments map[string]any `json:"edited_arguments"`
}

type promptSelectionWire struct {
	ServerName string            `json:"server_name"`
	PromptName string            `json:"prompt_name"`
	Arguments  map[string]string `json:"arguments"`
}

type fileUploadWire struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
}

// handleWebSocket upgrades the connection, wires a fresh per-connection
// event.Bus into a WebSocketPublisher, and reads inbound frames until the
// client disconnects. Grounded on the teacher's sse.go relay loop,
// adapted from server-sent events to the bidirectional WebSocket
// transport SPEC_FULL.md calls for (§4.1) — the only library in the
// retrieval pack offering one is coder/websocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !s.app.Repository.Exists(sessionID) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS already governs allowed origins
	})
	if err != nil {
		logging.Warn().Err(err).Str("session_id", sessionID).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	bus := event.NewBus()
	defer bus.Close()

	pub := publisher.NewWebSocketPublisher(bus, conn, sessionID, logging.Logger)
	defer pub.Close()

	// pub.Publisher is the embedded bus-backed Publisher NewWebSocketPublisher
	// wraps; asserting on it directly (rather than on *WebSocketPublisher
	// itself, which only promotes the Publisher interface's own methods)
	// reaches the concrete busPublisher's Respond method.
	responder, _ := pub.Publisher.(publisher.Responder)

	ctx := r.Context()
	for {
		var msg inboundMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}

		switch msg.Kind {
		case "elicitation_response":
			if responder != nil {
				responder.Respond(msg.ElicitationID, event.ElicitationResponse{
					ElicitationID:   msg.ElicitationID,
					Approved:        msg.Approved,
					Rejected:        msg.Rejected,
					EditedArguments: msg.EditedArguments,
				})
			}
		case "chat_request":
			req, err := toOrchestratorRequest(sessionID, msg)
			if err != nil {
				pub.PublishError(ctx, err.Error())
				continue
			}
			// Run the request off the read loop so elicitation_response
			// frames for its approval-gated tool calls can still be read.
			go func(req orchestrator.Request) {
				if err := s.app.Orchestrator.Execute(ctx, req, pub); err != nil {
					pub.PublishError(ctx, err.Error())
				}
			}(req)
		default:
			pub.PublishError(ctx, "unrecognized message kind: "+msg.Kind)
		}
	}
}

func toOrchestratorRequest(sessionID string, msg inboundMessage) (orchestrator.Request, error) {
	req := orchestrator.Request{
		SessionID:           sessionID,
		Content:             msg.Content,
		Model:               msg.Model,
		UserEmail:           msg.UserEmail,
		SelectedTools:       msg.SelectedTools,
		SelectedDataSources: msg.SelectedDataSources,
		OnlyRAG:             msg.OnlyRAG,
		MaxSteps:            msg.MaxSteps,
		Temperature:         msg.Temperature,
	}
	for _, p := range msg.SelectedPrompts {
		req.SelectedPrompts = append(req.SelectedPrompts, orchestrator.PromptSelection{
			ServerName: p.ServerName,
			PromptName: p.PromptName,
			Arguments:  p.Arguments,
		})
	}
	if msg.AgentStrategy != "" {
		req.AgentMode = orchestrator.StrategySelection{
			Strategy:  modes.StrategyName(msg.AgentStrategy),
			Streaming: msg.AgentStreaming,
		}
	}
	for _, f := range msg.Files {
		content, err := base64.StdEncoding.DecodeString(f.ContentBase64)
		if err != nil {
			return orchestrator.Request{}, err
		}
		req.Files = append(req.Files, orchestrator.FileUpload{Filename: f.Filename, Content: content})
	}
	return req, nil
}
