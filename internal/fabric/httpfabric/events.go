// events.go implements the inbound command stream from a Fabric gateway.
//
// Commands arrive as JSON frames over a WebSocket connection (the one
// direction REST can't serve without polling): registration requests, bid
// and ask offers, production requests, shutdown requests. The feed
// auto-reconnects with exponential backoff (1s -> 30s max) and a read
// deadline detects a silently dead server within ~2 missed pings — the same
// shape as the teacher's market/user WebSocket feeds.
package httpfabric

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval     = 30 * time.Second
	readTimeout      = 60 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// commandFrame is the wire shape of one inbound command.
type commandFrame struct {
	RequestID string          `json:"request_id"`
	Command   string          `json:"command"`
	SenderID  int             `json:"sender_id"`
	Payload   json.RawMessage `json:"payload"`
}

// commandResponse is the wire shape of a handler's reply, posted back on the
// same connection.
type commandResponse struct {
	RequestID string `json:"request_id"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// eventStream owns the WebSocket connection used for inbound commands and
// fans each frame out to the handler registered for its command type.
type eventStream struct {
	url    string
	connMu sync.Mutex
	conn   *websocket.Conn

	handlersMu sync.RWMutex
	handlers   map[string]handlerFunc

	logger *slog.Logger
}

type handlerFunc func(ctx context.Context, senderID int, payload any) (any, error)

func newEventStream(logger *slog.Logger) *eventStream {
	return &eventStream{
		handlers: make(map[string]handlerFunc),
		logger:   logger.With("component", "fabric_events"),
	}
}

func (es *eventStream) onCommand(command string, handler handlerFunc) {
	es.handlersMu.Lock()
	defer es.handlersMu.Unlock()
	es.handlers[command] = handler
}

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (es *eventStream) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := es.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		es.logger.Warn("fabric event stream disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (es *eventStream) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, es.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	es.connMu.Lock()
	es.conn = conn
	es.connMu.Unlock()

	defer func() {
		es.connMu.Lock()
		conn.Close()
		es.conn = nil
		es.connMu.Unlock()
	}()

	es.logger.Info("fabric event stream connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go es.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		go es.dispatch(ctx, msg)
	}
}

func (es *eventStream) dispatch(ctx context.Context, data []byte) {
	var frame commandFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		es.logger.Debug("ignoring non-json fabric frame", "data", string(data))
		return
	}

	es.handlersMu.RLock()
	handler, ok := es.handlers[frame.Command]
	es.handlersMu.RUnlock()
	if !ok {
		es.logger.Debug("no handler for command", "command", frame.Command)
		return
	}

	var payload any
	if len(frame.Payload) > 0 {
		_ = json.Unmarshal(frame.Payload, &payload)
	}

	result, err := handler(ctx, frame.SenderID, payload)
	resp := commandResponse{RequestID: frame.RequestID, Result: result}
	if err != nil {
		resp.Error = err.Error()
	}
	if writeErr := es.writeJSON(resp); writeErr != nil {
		es.logger.Warn("failed to write command response", "error", writeErr)
	}
}

func (es *eventStream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := es.writeMessage(websocket.PingMessage, nil); err != nil {
				es.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (es *eventStream) writeJSON(v any) error {
	es.connMu.Lock()
	defer es.connMu.Unlock()
	if es.conn == nil {
		return fmt.Errorf("fabric event stream not connected")
	}
	es.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return es.conn.WriteJSON(v)
}

func (es *eventStream) writeMessage(msgType int, data []byte) error {
	es.connMu.Lock()
	defer es.connMu.Unlock()
	if es.conn == nil {
		return fmt.Errorf("fabric event stream not connected")
	}
	es.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return es.conn.WriteMessage(msgType, data)
}
