package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/esgrade/internal/events"
)

const wsWriteTimeout = 10 * time.Second

// EventsHandler bridges the event bus onto WebSocket clients. Each
// connection gets its own bus subscription, so a slow client drops its
// own events instead of stalling the publishers.
type EventsHandler struct {
	bus *events.Bus
	log zerolog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]context.CancelFunc
}

// NewEventsHandler creates the WebSocket event bridge.
func NewEventsHandler(bus *events.Bus, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		bus:   bus,
		log:   log.With().Str("component", "events_ws").Logger(),
		conns: make(map[*websocket.Conn]context.CancelFunc),
	}
}

// ServeHTTP handles GET /api/events. A comma-separated ?types= filter
// restricts the stream; without it every event is forwarded.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	var allowed map[events.EventType]bool
	if typesParam := r.URL.Query().Get("types"); typesParam != "" {
		allowed = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesParam, ",") {
			allowed[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	h.track(conn, cancel)
	defer h.untrack(conn)

	sub := h.bus.Subscribe("")
	defer h.bus.Unsubscribe(sub)

	h.log.Info().Str("remote", r.RemoteAddr).Msg("Event stream client connected")

	// Inbound messages are ignored, but the read loop is what notices the
	// client hanging up.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server closing")
			h.log.Info().Str("remote", r.RemoteAddr).Msg("Event stream client disconnected")
			return
		case event, ok := <-sub:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "event bus closed")
				return
			}
			if allowed != nil && !allowed[event.Type] {
				continue
			}
			if err := h.send(ctx, conn, &event); err != nil {
				h.log.Debug().Err(err).Msg("Dropping event stream client")
				return
			}
		}
	}
}

func (h *EventsHandler) send(ctx context.Context, conn *websocket.Conn, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

// CloseAll disconnects every client. Hijacked connections are invisible to
// http.Server's graceful shutdown, so the server calls this first.
func (h *EventsHandler) CloseAll() {
	h.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(h.conns))
	for _, cancel := range h.conns {
		cancels = append(cancels, cancel)
	}
	h.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (h *EventsHandler) track(conn *websocket.Conn, cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = cancel
}

func (h *EventsHandler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}
