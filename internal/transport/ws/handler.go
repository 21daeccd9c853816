package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"driftwatch/internal/service"
)

const (
	writeTimeout  = 10 * time.Second
	idleTimeout   = 60 * time.Second
	keepalive     = idleTimeout * 9 / 10
	maxInboundLen = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// dashboards are served from other origins; the token is the gate
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades authenticated dashboard requests into hub subscribers
type Handler struct {
	hub     *Hub
	authSvc *service.AuthService
	log     *zap.Logger
}

func NewHandler(hub *Hub, authSvc *service.AuthService, log *zap.Logger) *Handler {
	return &Handler{hub: hub, authSvc: authSvc, log: log}
}

// Live handles GET /v1/ws/live?model=&token=
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := h.authSvc.ValidateOperatorToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{
		ws:   ws,
		conn: NewConnection(r.URL.Query().Get("model")),
		hub:  h.hub,
		log:  h.log.With(zap.String("operator", claims.OperatorID)),
	}
	h.hub.Register(sub.conn)
	sub.log.Info("operator subscribed", zap.String("topic", sub.conn.Topic))

	go sub.push()
	go sub.drain()
}

// requestToken prefers the query param since browsers cannot set headers
// on websocket handshakes
func requestToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return auth[7:]
	}
	return ""
}

// subscriber couples one websocket with its hub connection
type subscriber struct {
	ws   *websocket.Conn
	conn *Connection
	hub  *Hub
	log  *zap.Logger
}

// drain consumes control frames until the peer goes away. Subscribers never
// send data of their own.
func (s *subscriber) drain() {
	defer func() {
		s.hub.Unregister(s.conn)
		s.ws.Close()
	}()

	s.ws.SetReadLimit(maxInboundLen)
	extend := func() error { return s.ws.SetReadDeadline(time.Now().Add(idleTimeout)) }
	extend()
	s.ws.SetPongHandler(func(string) error { return extend() })

	for {
		if _, _, err := s.ws.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debug("subscriber read failed", zap.Error(err))
			}
			return
		}
	}
}

// push writes hub messages and keepalive pings until the hub closes Send
// or a write fails
func (s *subscriber) push() {
	ticker := time.NewTicker(keepalive)
	defer func() {
		ticker.Stop()
		s.ws.Close()
	}()

	for {
		var (
			kind    = websocket.PingMessage
			payload []byte
		)
		select {
		case msg, ok := <-s.conn.Send:
			if !ok {
				s.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeTimeout))
				return
			}
			kind, payload = websocket.TextMessage, msg
		case <-ticker.C:
		}

		s.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.ws.WriteMessage(kind, payload); err != nil {
			s.log.Debug("subscriber write failed", zap.Error(err))
			return
		}
	}
}
