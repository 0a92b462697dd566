// Package realtime pushes video stats to websocket listeners subscribed to a
// video.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cinevault/backend/internal/events"
	"github.com/cinevault/backend/internal/metrics"
	"github.com/cinevault/backend/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

// ErrClosed is returned by Serve once the hub has been closed.
var ErrClosed = errors.New("live hub closed")

// Message is the frame sent to listeners.
type Message struct {
	Type  string            `json:"type"`
	Stats models.VideoStats `json:"stats"`
}

// Hub tracks listeners per video and fans stats changes out to them.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	rooms  map[string]map[*listener]struct{}
}

type listener struct {
	videoID string
	conn    *websocket.Conn
	send    chan []byte
	once    sync.Once
}

// NewHub constructs a hub. allowedOrigins restricts browser origins; an empty
// list accepts any origin.
func NewHub(allowedOrigins []string, logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(allowed) == 0 || origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		logger:  logger,
		metrics: m,
		rooms:   make(map[string]map[*listener]struct{}),
	}
}

// Name identifies the sink in logs and metrics.
func (h *Hub) Name() string { return "realtime" }

// Serve upgrades the request and streams stats for videoID, starting with the
// given snapshot. It returns once the connection is registered.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, videoID string, snapshot models.VideoStats) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return ErrClosed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	l := &listener{videoID: videoID, conn: conn, send: make(chan []byte, sendBuffer)}
	if frame, err := encode("snapshot", snapshot); err == nil {
		l.send <- frame
	}

	// Close may have run while the upgrade was in flight.
	if !h.register(l) {
		deadline := time.Now().Add(writeWait)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		_ = conn.Close()
		return ErrClosed
	}
	go h.writePump(l)
	go h.readPump(l)
	return nil
}

// Publish forwards stats changes to the listeners of the event's video. Slow
// listeners whose buffer is full are disconnected.
func (h *Hub) Publish(_ context.Context, event events.Event) error {
	if !event.ChangesStats() {
		return nil
	}

	frame, err := encode("stats", event.Stats)
	if err != nil {
		return err
	}

	h.mu.RLock()
	var slow []*listener
	for l := range h.rooms[event.VideoID] {
		select {
		case l.send <- frame:
		default:
			slow = append(slow, l)
		}
	}
	h.mu.RUnlock()

	for _, l := range slow {
		h.logger.Warn("dropping slow live listener", "video_id", l.videoID)
		h.unregister(l)
	}
	return nil
}

// Listeners reports how many listeners are attached to videoID.
func (h *Hub) Listeners(videoID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[videoID])
}

// Close disconnects every listener and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*listener
	for _, room := range h.rooms {
		for l := range room {
			all = append(all, l)
		}
	}
	h.mu.Unlock()

	for _, l := range all {
		h.unregister(l)
	}
}

func (h *Hub) register(l *listener) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	room, ok := h.rooms[l.videoID]
	if !ok {
		room = make(map[*listener]struct{})
		h.rooms[l.videoID] = room
	}
	room[l] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.LiveListeners.Inc()
	}
	return true
}

func (h *Hub) unregister(l *listener) {
	l.once.Do(func() {
		h.mu.Lock()
		if room, ok := h.rooms[l.videoID]; ok {
			delete(room, l)
			if len(room) == 0 {
				delete(h.rooms, l.videoID)
			}
		}
		close(l.send)
		h.mu.Unlock()

		if h.metrics != nil {
			h.metrics.LiveListeners.Dec()
		}
	})
}

// readPump drains client frames so control messages are processed and
// detects disconnects.
func (h *Hub) readPump(l *listener) {
	defer func() {
		h.unregister(l)
		_ = l.conn.Close()
	}()

	l.conn.SetReadLimit(512)
	_ = l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("live listener closed", "video_id", l.videoID, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(l *listener) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = l.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-l.send:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = l.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Debug("write to live listener failed", "video_id", l.videoID, "error", err)
				h.unregister(l)
				return
			}
		case <-ticker.C:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(l)
				return
			}
		}
	}
}

func encode(kind string, stats models.VideoStats) ([]byte, error) {
	return json.Marshal(Message{Type: kind, Stats: stats})
}
