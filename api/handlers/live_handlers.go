package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"warroom/config"
	"warroom/core/live"
	"warroom/core/utils"
)

const (
	writeWait         = 10 * time.Second
	maxMessageSize    = 512
	defaultPingPeriod = 30 * time.Second
)

type LiveHandler struct {
	hub        *live.Hub
	recent     *live.RecentFeed
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
	logger     *utils.Logger
}

func NewLiveHandler(cfg config.LiveConfig, hub *live.Hub, recent *live.RecentFeed, logger *utils.Logger) *LiveHandler {
	ping := cfg.PingInterval
	if ping <= 0 {
		ping = defaultPingPeriod
	}
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &LiveHandler{
		hub:        hub,
		recent:     recent,
		pingPeriod: ping,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

func (h *LiveHandler) Recent(w http.ResponseWriter, r *http.Request) {
	events := []live.Event{}
	if h.recent != nil {
		events = h.recent.List()
	}
	OK(w, http.StatusOK, map[string]any{"events": events})
}

// Subscribe upgrades to a websocket and streams hub events until either side
// goes away. Client frames are read only to service pongs and close.
func (h *LiveHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub.ID)
	h.logger.Printf("websocket client connected: %s", sub.ID)

	pongWait := h.pingPeriod * 10 / 9
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debugf("websocket %s read: %v", sub.ID, err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			h.logger.Printf("websocket client disconnected: %s", sub.ID)
			return
		case ev, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Warnf("websocket %s write: %v", sub.ID, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debugf("websocket %s ping: %v", sub.ID, err)
				return
			}
		}
	}
}
