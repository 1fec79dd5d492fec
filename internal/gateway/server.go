package gateway

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"matchserver/internal/match"
	"matchserver/internal/protocol"
	"matchserver/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server accepts websocket connections and routes their envelopes to the
// matchmaking service. It owns no shared state itself; the registry and
// service are passed in and guarded by their own locks.
type Server struct {
	registry *session.Registry
	svc      *match.Service
	logger   *zap.Logger
}

func NewServer(registry *session.Registry, svc *match.Service, logger *zap.Logger) *Server {
	return &Server{
		registry: registry,
		svc:      svc,
		logger:   logger,
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.ServeWS)
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := session.NewClient(conn)
	s.registry.Register(client)

	s.sendEnvelope(client, protocol.Push(protocol.PushWelcome, map[string]string{
		"conn_id": client.ID,
	}))

	go s.readPump(client)
	go s.writePump(client)
	go s.processMessages(client)
}

// teardown runs at most once per client, from whichever pump fails
// first. Removing from the registry triggers matchmaking cleanup.
func (s *Server) teardown(c *session.Client) {
	c.Once.Do(func() {
		s.registry.Remove(c.ID)
		close(c.Send)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

func (s *Server) readPump(c *session.Client) {
	defer func() {
		close(c.Inbox)
		s.teardown(c)
	}()

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("read error", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}
		// Any inbound traffic counts as liveness.
		c.Touch()
		c.Inbox <- msg
	}
}

func (s *Server) writePump(c *session.Client) {
	defer s.teardown(c)

	for msg := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.logger.Debug("write error", zap.String("conn_id", c.ID), zap.Error(err))
			return
		}
	}
	// Send channel closed by teardown; tell the peer we are done.
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *Server) processMessages(c *session.Client) {
	for msg := range c.Inbox {
		s.dispatch(c, msg)
	}
}

// sendEnvelope encodes and queues one outbound envelope. Every request
// gets exactly one terminal response, so a drop here is logged loudly.
func (s *Server) sendEnvelope(c *session.Client, env *protocol.ServerEnvelope) {
	raw, err := protocol.Encode(env)
	if err != nil {
		s.logger.Error("encode envelope failed", zap.String("conn_id", c.ID), zap.Error(err))
		return
	}
	if !c.TrySend(raw) {
		s.logger.Warn("send queue full, dropping envelope",
			zap.String("conn_id", c.ID), zap.String("msg_id", env.MsgID))
	}
}
