package stream

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Handler upgrades GET /api/status/stream and pushes the status body on
// connect and after every change.
type Handler struct {
	hub      *Hub
	snapshot func() models.JobView
	upgrader websocket.Upgrader
}

// NewHandler creates a new stream handler. allowedOrigins follows the CORS
// setting: "*" accepts any origin.
func NewHandler(hub *Hub, snapshot func() models.JobView, allowedOrigins []string) *Handler {
	return &Handler{
		hub:      hub,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Warn("status stream upgrade failed", "error", err)
		return
	}

	c := h.hub.subscribe()
	if c == nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go h.readPump(conn, c)
	h.writePump(conn, c)
}

// readPump discards client messages and unsubscribes when the peer goes away.
func (h *Handler) readPump(conn *websocket.Conn, c *client) {
	defer h.hub.unsubscribe(c)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	last := h.snapshot()
	if err := writeView(conn, last); err != nil {
		h.hub.unsubscribe(c)
		return
	}

	for {
		select {
		case v, ok := <-c.send:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// A change queued before the initial snapshot was taken.
			if Older(v, last) {
				continue
			}
			last = v
			if err := writeView(conn, v); err != nil {
				h.hub.unsubscribe(c)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.hub.unsubscribe(c)
				return
			}
		}
	}
}

func writeView(conn *websocket.Conn, v models.JobView) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(models.NewStatusResponse(v))
}

// Older reports whether a is a state of the same job that precedes b.
func Older(a, b models.JobView) bool {
	if a.JobID != b.JobID {
		return false
	}
	if a.Status.Terminal() != b.Status.Terminal() {
		return b.Status.Terminal()
	}
	if a.StageIndex != b.StageIndex {
		return a.StageIndex < b.StageIndex
	}
	return a.Progress < b.Progress
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, o := range allowed {
			if strings.EqualFold(strings.TrimSuffix(o, "/"), u.Scheme+"://"+u.Host) {
				return true
			}
		}
		return false
	}
}
