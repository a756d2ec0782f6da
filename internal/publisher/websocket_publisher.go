package publisher

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/atlaschat/core/internal/event"
)

const heartbeatInterval = 30 * time.Second

// WebSocketPublisher relays every event.Bus event for one session onto a
// single WebSocket connection, as newline-delimited JSON frames shaped
// {"type": ..., "data": ...}. It owns the subscription for the connection's
// lifetime, plus one heartbeat goroutine per connection, both torn down on
// Close.
//
// Grounded on the teacher's SSE relay (internal/server/sse.go), without
// its event filtering: every event on the bus is written to the socket
// (the server gives each connection its own bus), plus a periodic
// heartbeat so idle proxies don't recycle the connection.
type WebSocketPublisher struct {
	Publisher
	conn      *websocket.Conn
	sessionID string
	log       zerolog.Logger
	unsub     func()
	done      chan struct{}
}

// NewWebSocketPublisher wraps conn with a bus-backed Publisher and starts
// relaying bus events for sessionID onto the socket. Call Close when the
// connection ends.
func NewWebSocketPublisher(bus *event.Bus, conn *websocket.Conn, sessionID string, log zerolog.Logger) *WebSocketPublisher {
	wp := &WebSocketPublisher{
		Publisher: NewBusPublisher(bus, sessionID, log),
		conn:      conn,
		sessionID: sessionID,
		log:       log,
		done:      make(chan struct{}),
	}
	wp.unsub = bus.SubscribeAll(wp.relay)
	go wp.heartbeatLoop()
	return wp
}

func (wp *WebSocketPublisher) relay(e event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, wp.conn, e); err != nil {
		wp.log.Warn().Err(err).Str("sessionID", wp.sessionID).Msg("websocket publisher: write failed")
	}
}

func (wp *WebSocketPublisher) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-wp.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wp.conn.Ping(ctx)
			cancel()
			if err != nil {
				wp.log.Debug().Err(err).Str("sessionID", wp.sessionID).Msg("websocket publisher: heartbeat ping failed")
				return
			}
		}
	}
}

// Close stops relaying and unsubscribes from the bus. It does not close
// the underlying connection — the caller (server handler) owns that.
func (wp *WebSocketPublisher) Close() {
	close(wp.done)
	wp.unsub()
}

var _ Publisher = (*WebSocketPublisher)(nil)
