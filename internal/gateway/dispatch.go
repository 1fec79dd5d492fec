package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"matchserver/internal/auth"
	"matchserver/internal/match"
	"matchserver/internal/protocol"
	"matchserver/internal/session"
)

// dispatch routes one decoded envelope. Client-input errors answer with
// an error envelope and leave the connection state untouched.
func (s *Server) dispatch(c *session.Client, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		s.sendEnvelope(c, protocol.Fail("", protocol.CodeMalformedEnvelope, "malformed envelope"))
		return
	}

	switch env.Cmd {
	case protocol.CmdAuthLogin:
		s.handleLogin(c, env)

	case protocol.CmdMatchStart:
		if !s.requireAuth(c, env) {
			return
		}
		s.handleMatchStart(c, env)

	case protocol.CmdMatchCancel:
		if !s.requireAuth(c, env) {
			return
		}
		s.handleMatchCancel(c, env)

	case protocol.CmdSysPing:
		s.handlePing(c, env)

	default:
		s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeUnknownCommand, "unknown command"))
	}
}

// requireAuth gates commands that need a bound player identity.
func (s *Server) requireAuth(c *session.Client, env *protocol.ClientEnvelope) bool {
	if c.PlayerID() == "" {
		s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeNotAuthenticated, "login required"))
		return false
	}
	return true
}

type loginRequest struct {
	Token string `json:"token"`
}

type startRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleLogin(c *session.Client, env *protocol.ClientEnvelope) {
	if c.PlayerID() != "" {
		s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeAuthFailed, "already authenticated"))
		return
	}

	var req loginRequest
	if err := json.Unmarshal(env.Data, &req); err != nil || req.Token == "" {
		s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeAuthFailed, "token missing"))
		return
	}

	claims, err := auth.ValidateToken(context.Background(), req.Token)
	if err != nil {
		s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeAuthFailed, "invalid token"))
		return
	}

	if err := c.Authenticate(claims.PlayerID); err != nil {
		s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeAuthFailed, "login not allowed in current state"))
		return
	}

	if err := s.registry.BindPlayer(c); err != nil {
		// Same player id live on another socket. Refuse and drop this
		// connection so it cannot act with an unindexed identity.
		s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeAuthFailed, "account already connected"))
		s.teardown(c)
		return
	}

	s.logger.Info("player authenticated",
		zap.String("conn_id", c.ID), zap.String("player_id", claims.PlayerID))

	s.sendEnvelope(c, protocol.Reply(env.MsgID, map[string]string{
		"player_id": claims.PlayerID,
		"username":  claims.Username,
	}))
}

func (s *Server) handleMatchStart(c *session.Client, env *protocol.ClientEnvelope) {
	var req startRequest
	if err := json.Unmarshal(env.Data, &req); err != nil || req.Mode == "" {
		s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeInvalidMode, "mode missing"))
		return
	}

	matched, err := s.svc.StartMatch(c, req.Mode)
	if err != nil {
		switch {
		case errors.Is(err, match.ErrInvalidMode):
			s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeInvalidMode, "unknown mode"))
		case errors.Is(err, match.ErrAlreadyQueued):
			s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeAlreadyQueued, "already queued"))
		case errors.Is(err, match.ErrAlreadyInRoom):
			s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeAlreadyInRoom, "already in a room"))
		default:
			s.logger.Error("match start failed", zap.String("conn_id", c.ID), zap.Error(err))
			s.sendEnvelope(c, protocol.Fail(env.MsgID, protocol.CodeUnknownCommand, "internal error"))
		}
		return
	}

	status := "queued"
	if matched {
		status = "matched"
	}
	s.sendEnvelope(c, protocol.Reply(env.MsgID, map[string]string{"status": status}))
}

func (s *Server) handleMatchCancel(c *session.Client, env *protocol.ClientEnvelope) {
	// Always code 0, whether or not an entry was found: cancellation is
	// safe to call redundantly.
	s.svc.Cancel(c)
	s.sendEnvelope(c, protocol.Reply(env.MsgID, map[string]string{"status": "cancelled"}))
}

func (s *Server) handlePing(c *session.Client, env *protocol.ClientEnvelope) {
	c.Touch()
	s.sendEnvelope(c, protocol.Reply(env.MsgID, nil))
}
