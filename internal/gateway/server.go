package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/handoff-backend/internal/agent"
	"github.com/eleven-am/handoff-backend/internal/coordinator"
	"github.com/eleven-am/handoff-backend/internal/dto"
	"github.com/eleven-am/handoff-backend/internal/queue"
	"github.com/eleven-am/handoff-backend/internal/session"
	"github.com/eleven-am/handoff-backend/internal/shared"
)

// Server upgrades agent and user websocket connections and dispatches their
// events to the coordinator.
type Server struct {
	hub      *Hub
	coord    *coordinator.Coordinator
	sessions *session.Registry
	agents   *agent.Registry
	queue    *queue.WaitQueue
	logger   *slog.Logger
}

func NewServer(hub *Hub, coord *coordinator.Coordinator, sessions *session.Registry,
	agents *agent.Registry, q *queue.WaitQueue, logger *slog.Logger) *Server {
	return &Server{
		hub:      hub,
		coord:    coord,
		sessions: sessions,
		agents:   agents,
		queue:    q,
		logger:   logger.With("component", "gateway"),
	}
}

func (s *Server) RegisterRoutes(g *echo.Group) {
	g.GET("/gateway/agents/ws", s.HandleAgentConnection)
	g.GET("/gateway/users/ws", s.HandleUserConnection)
}

// HandleAgentConnection serves an agent console socket. The first event must
// be agent-login; everything else is rejected until then.
func (s *Server) HandleAgentConnection(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	connID := shared.NewID("conn_")
	conn := newWSConn(ws, connID, s.logger)

	var agentID string
	go conn.writePump()
	conn.readPump(func(env Envelope) {
		s.handleAgentEvent(conn, connID, &agentID, env)
	})

	if agentID != "" {
		s.coord.HandleAgentDisconnect(connID)
		s.hub.UnregisterAgent(agentID, conn)
	}
	return nil
}

// HandleUserConnection serves a user-side socket, identified by user_id. The
// connection is attached to the user's active session so queue cleanup can
// react when it drops.
func (s *Server) HandleUserConnection(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing user_id")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	connID := shared.NewID("conn_")
	conn := newWSConn(ws, connID, s.logger)
	s.hub.RegisterUser(userID, conn)

	if sess := s.sessions.FindActiveByUserID(userID); sess != nil {
		_ = s.sessions.Update(sess.ID, func(sess *session.Session) {
			sess.UserConnectionID = connID
		})
	}

	go conn.writePump()
	conn.readPump(func(env Envelope) {
		s.handleUserEvent(conn, env)
	})

	s.coord.HandleUserDisconnect(connID)
	s.hub.UnregisterUser(userID, conn)
	return nil
}

func (s *Server) handleAgentEvent(conn endpoint, connID string, agentID *string, env Envelope) {
	if env.Type == dto.EventAgentLogin {
		s.handleAgentLogin(conn, connID, agentID, env.Payload)
		return
	}
	if env.Type == dto.EventPing {
		s.reply(conn, dto.EventPong, nil)
		return
	}
	if *agentID == "" {
		s.reply(conn, dto.EventError, dto.ErrorPayload{Message: "login required"})
		return
	}

	switch env.Type {
	case dto.EventAgentStatusChange:
		var p dto.AgentStatusChangePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.reply(conn, dto.EventError, dto.ErrorPayload{Message: "invalid payload"})
			return
		}
		status := agent.Status(p.Status)
		switch status {
		case agent.StatusOnline, agent.StatusBusy, agent.StatusOffline:
		default:
			s.reply(conn, dto.EventError, dto.ErrorPayload{Message: "unknown status"})
			return
		}
		if err := s.coord.HandleStatusChange(*agentID, status); err != nil {
			s.reply(conn, dto.EventError, dto.ErrorPayload{Message: err.Error()})
		}

	case dto.EventAgentAcceptSession:
		var p dto.SessionRefPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.reply(conn, dto.EventAcceptError, dto.ErrorPayload{Message: "invalid payload"})
			return
		}
		if _, err := s.sessions.Get(p.SessionID); err != nil {
			s.reply(conn, dto.EventAcceptError, dto.ErrorPayload{Message: "session not found"})
			return
		}
		s.reply(conn, dto.EventAcceptAcknowledged, dto.AcceptAcknowledgedPayload{
			SessionID: p.SessionID,
			Message:   "proceed with the accept-call API",
		})

	case dto.EventAgentRejectSession:
		var p dto.SessionRefPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.reply(conn, dto.EventError, dto.ErrorPayload{Message: "invalid payload"})
			return
		}
		if err := s.coord.RejectCall(*agentID, p.SessionID, p.Reason); err != nil {
			s.logger.Warn("reject failed", "session_id", p.SessionID, "error", err)
			s.reply(conn, dto.EventError, dto.ErrorPayload{Message: "session not found"})
		}

	case dto.EventAgentHangup:
		var p dto.SessionRefPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.reply(conn, dto.EventError, dto.ErrorPayload{Message: "invalid payload"})
			return
		}
		if err := s.coord.Hangup(p.SessionID, "agent"); err != nil {
			s.logger.Warn("agent hangup failed", "session_id", p.SessionID, "error", err)
			s.reply(conn, dto.EventError, dto.ErrorPayload{Message: "session not found"})
		}

	default:
		s.reply(conn, dto.EventError, dto.ErrorPayload{Message: "unknown event: " + env.Type})
	}
}

func (s *Server) handleAgentLogin(conn endpoint, connID string, agentID *string, payload json.RawMessage) {
	var p dto.AgentLoginPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.AgentID == "" {
		s.reply(conn, dto.EventLoginError, dto.ErrorPayload{Message: "agent_id is required"})
		return
	}

	if err := s.agents.Add(&agent.Agent{ID: p.AgentID, Name: p.Name, ConnectionID: connID}); err != nil {
		s.reply(conn, dto.EventLoginError, dto.ErrorPayload{Message: "login failed"})
		return
	}
	s.hub.RegisterAgent(p.AgentID, conn)
	*agentID = p.AgentID

	ag, err := s.agents.Get(p.AgentID)
	if err != nil {
		s.reply(conn, dto.EventLoginError, dto.ErrorPayload{Message: "login failed"})
		return
	}

	s.logger.Info("agent logged in", "agent_id", ag.ID, "conn_id", connID)
	s.reply(conn, dto.EventLoginSuccess, dto.LoginSuccessPayload{
		AgentID:         ag.ID,
		Name:            ag.Name,
		PendingSessions: s.queue.Entries(),
	})
}

func (s *Server) handleUserEvent(conn endpoint, env Envelope) {
	switch env.Type {
	case dto.EventUserHangup:
		var p dto.UserHangupPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.reply(conn, dto.EventError, dto.ErrorPayload{Message: "invalid payload"})
			return
		}
		if err := s.coord.Hangup(p.SessionID, "user"); err != nil {
			s.logger.Warn("user hangup failed", "session_id", p.SessionID, "error", err)
			s.reply(conn, dto.EventError, dto.ErrorPayload{Message: "session not found"})
		}

	case dto.EventPing:
		s.reply(conn, dto.EventPong, nil)

	default:
		s.reply(conn, dto.EventError, dto.ErrorPayload{Message: "unknown event: " + env.Type})
	}
}

func (s *Server) reply(conn endpoint, event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		s.logger.Error("marshal reply failed", "event", event, "error", err)
		return
	}
	conn.enqueue(data)
}
