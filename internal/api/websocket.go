package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"perp-trader/internal/events"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsBuffer       = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFilter parses ?types=order.accepted,cycle_completed. Empty means everything.
func wsFilter(raw string) map[events.Event]bool {
	if raw == "" {
		return nil
	}
	filter := make(map[events.Event]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter[events.Event(t)] = true
		}
	}
	return filter
}

// websocket streams bus messages as JSON until the client goes away.
func (s *Server) websocket(c *gin.Context) {
	filter := wsFilter(c.Query("types"))
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	stream, unsub := s.Bus.SubscribeAll(wsBuffer)
	defer unsub()

	// Client frames are discarded; a read error means the peer is gone.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	s.log.WithField("remote", c.ClientIP()).Debug("ws client connected")

	for {
		select {
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			deadline := time.Now().Add(wsWriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case msg, ok := <-stream:
			if !ok {
				return
			}
			if filter != nil && !filter[msg.Type] {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.log.WithError(err).Debug("ws write failed")
				return
			}
		}
	}
}
