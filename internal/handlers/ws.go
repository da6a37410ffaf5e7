package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/flowra-dev/flowra/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type RefreshMessage struct {
	Type     string `json:"type"`
	Resource string `json:"resource"`
	TeamID   uint   `json:"team_id"`
}

// wsClient serialises writes; gorilla connections allow one concurrent
// writer.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Hub tracks websocket clients per team and tells them when team data
// changed.
type Hub struct {
	mu       sync.RWMutex
	clients  map[uint]map[*wsClient]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}

	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &Hub{
		clients: make(map[uint]map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		logger: logger.Named("ws"),
	}
}

func (hub *Hub) ClientCount(teamID uint) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients[teamID])
}

func (hub *Hub) register(teamID uint, client *wsClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.clients[teamID] == nil {
		hub.clients[teamID] = make(map[*wsClient]struct{})
	}
	hub.clients[teamID][client] = struct{}{}
}

func (hub *Hub) unregister(teamID uint, client *wsClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if clients, ok := hub.clients[teamID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(hub.clients, teamID)
		}
	}
}

// BroadcastRefresh tells every client of teamID to refetch resource. Clients
// that cannot be written to are dropped.
func (hub *Hub) BroadcastRefresh(teamID uint, resource string) {
	hub.mu.RLock()
	clients := make([]*wsClient, 0, len(hub.clients[teamID]))
	for client := range hub.clients[teamID] {
		clients = append(clients, client)
	}
	hub.mu.RUnlock()

	msg := RefreshMessage{Type: "refresh", Resource: resource, TeamID: teamID}

	for _, client := range clients {
		if err := client.writeJSON(msg); err != nil {
			hub.logger.Debug("dropping websocket client", zap.Uint("team_id", teamID), zap.Error(err))
			hub.unregister(teamID, client)
			_ = client.conn.Close()
		}
	}
}

// serve runs the read loop for one connection until it closes.
func (hub *Hub) serve(w http.ResponseWriter, r *http.Request, teamID uint) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	hub.register(teamID, client)

	done := make(chan struct{})
	defer func() {
		close(done)
		hub.unregister(teamID, client)
		_ = conn.Close()
	}()

	if err := client.writeJSON(RefreshMessage{Type: "connected", TeamID: teamID}); err != nil {
		return
	}

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := client.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.logger.Debug("websocket closed", zap.Uint("team_id", teamID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Handler) WebSocket(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	h.hub.serve(ctx.Writer, ctx.Request, access.Team.ID)
}
