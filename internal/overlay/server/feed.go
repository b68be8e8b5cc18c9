package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msto63/overlay/pkg/core/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// upgrader accepts clients without an Origin header (native front ends)
// and pages served from a loopback host
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return isLocalOrigin(r.Header.Get("Origin"))
	},
}

// FeedMessage is one frame on /ws: a snapshot on connect, then events
type FeedMessage struct {
	Type    string      `json:"type"` // "snapshot", "event"
	Payload interface{} `json:"payload"`
}

// feed streams pipeline events to WebSocket clients
type feed struct {
	ctrl   Controller
	logger *logging.Logger
}

func newFeed(ctrl Controller) *feed {
	return &feed{ctrl: ctrl, logger: logging.New("server-feed")}
}

// ServeHTTP handles WebSocket upgrade and connections
func (f *feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	f.logger.Info("Feed client connected", "remote", conn.RemoteAddr().String())

	events, cancel := f.ctrl.Subscribe()
	defer cancel()

	// reader: handles pongs and detects the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if !f.send(conn, FeedMessage{Type: "snapshot", Payload: f.ctrl.Snapshot()}) {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			f.logger.Info("Feed client disconnected")
			return
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if !f.send(conn, FeedMessage{Type: "event", Payload: e}) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (f *feed) send(conn *websocket.Conn, msg FeedMessage) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		f.logger.Debug("Feed write failed", "error", err)
		return false
	}
	return true
}
