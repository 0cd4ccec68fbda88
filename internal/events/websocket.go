package events

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Secured at the proxy; the orchestrator itself is not internet-facing.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler serves the progress stream over WebSocket.
type StreamHandler struct {
	hub    *Hub
	logger *zap.Logger
}

// NewStreamHandler builds the handler.
func NewStreamHandler(hub *Hub, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger}
}

// Register mounts /stream/ws on the mux.
func (h *StreamHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/stream/ws", h.handleWS)
}

// handleWS upgrades and tails one instance. Query parameters:
//
//	instance_id    required
//	types          optional comma-separated event type filter
//	last_event_id  optional Seq to replay from
func (h *StreamHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	instanceID := r.URL.Query().Get("instance_id")
	if instanceID == "" {
		http.Error(w, "instance_id required", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	typeFilter := map[string]struct{}{}
	if s := r.URL.Query().Get("types"); s != "" {
		for _, t := range strings.Split(s, ",") {
			if t = strings.TrimSpace(t); t != "" {
				typeFilter[t] = struct{}{}
			}
		}
	}
	var lastID uint64
	if q := r.URL.Query().Get("last_event_id"); q != "" {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			lastID = n
		}
	}

	ch := h.hub.Subscribe(instanceID, 256)
	defer h.hub.Unsubscribe(instanceID, ch)

	if lastID > 0 {
		for _, ev := range h.hub.ReplaySince(instanceID, lastID) {
			if !wanted(typeFilter, ev) {
				continue
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	// Reader pump, client messages are discarded.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if !wanted(typeFilter, ev) {
				continue
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

func wanted(filter map[string]struct{}, ev Event) bool {
	if len(filter) == 0 {
		return true
	}
	_, ok := filter[ev.Type]
	return ok
}
