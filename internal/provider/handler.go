package provider

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/handoff-backend/internal/dto"
	"github.com/eleven-am/handoff-backend/internal/session"
	"github.com/eleven-am/handoff-backend/internal/shared"
)

// Handler exposes AI call provisioning plus the provider's event webhook.
type Handler struct {
	client         *Client
	sessions       *session.Registry
	sink           DialogueSink
	agentProfileID string
	callbackToken  string
	logger         *slog.Logger
}

type HandlerParams struct {
	Client         *Client
	Sessions       *session.Registry
	Sink           DialogueSink
	AgentProfileID string
	CallbackToken  string
	Logger         *slog.Logger
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		client:         p.Client,
		sessions:       p.Sessions,
		sink:           p.Sink,
		agentProfileID: p.AgentProfileID,
		callbackToken:  p.CallbackToken,
		logger:         p.Logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/calls/start", h.StartCall)
	g.POST("/calls/stop", h.StopCall)
	g.POST("/provider/callback", h.Callback)
}

// StartCall provisions an AI agent instance for the user and records the
// pre-session that later hand-off requests resolve against.
func (h *Handler) StartCall(c echo.Context) error {
	var req dto.StartCallRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.UserID == "" {
		return shared.BadRequest("missing_user_id", "user_id is required")
	}

	inst, err := h.client.StartInstance(c.Request().Context(), req.UserID, h.agentProfileID)
	if err != nil {
		if errors.Is(err, shared.ErrCollaboratorFailure) {
			h.logger.Error("provider start failed", "user_id", req.UserID, "error", err)
			return shared.BadGateway("provider_unavailable", "failed to start AI call")
		}
		return shared.BadRequest("start_failed", err.Error())
	}

	sess := &session.Session{
		ID:         "ai_" + inst.InstanceID,
		UserID:     req.UserID,
		InstanceID: inst.InstanceID,
		ChannelID:  inst.ChannelID,
		Status:     session.StatusAITalking,
	}
	if err := h.sessions.Create(sess); err != nil {
		h.logger.Warn("pre-session not recorded", "instance_id", inst.InstanceID, "error", err)
	}

	return c.JSON(http.StatusOK, dto.StartCallResponse{
		SessionID:  sess.ID,
		InstanceID: inst.InstanceID,
		RTC:        dto.NewRTCInfo(inst.ChannelID, "", inst.Credential),
	})
}

// StopCall tears down the AI instance and ends the session. Accepts either a
// session id or an instance id.
func (h *Handler) StopCall(c echo.Context) error {
	var req dto.StopCallRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	var sess *session.Session
	switch {
	case req.SessionID != "":
		found, err := h.sessions.Get(req.SessionID)
		if err != nil {
			return shared.NotFound("session_not_found", "session not found")
		}
		sess = found
	case req.InstanceID != "":
		sess = h.sessions.FindByInstanceID(req.InstanceID)
		if sess == nil {
			return shared.NotFound("session_not_found", "no session for instance")
		}
	default:
		return shared.BadRequest("missing_fields", "session_id or instance_id is required")
	}

	if err := h.client.StopInstance(c.Request().Context(), sess.InstanceID); err != nil {
		h.logger.Error("provider stop failed", "instance_id", sess.InstanceID, "error", err)
		return shared.BadGateway("provider_unavailable", "failed to stop AI call")
	}

	_ = h.sessions.Update(sess.ID, func(s *session.Session) {
		s.Status = session.StatusEnded
		s.EndedBy = "user"
	})

	return c.NoContent(http.StatusNoContent)
}

// Callback receives provider events. Auth failures are logged but not
// rejected: losing conversation history is worse than accepting an
// unauthenticated record, and the payload drives no state transition.
func (h *Handler) Callback(c echo.Context) error {
	if h.callbackToken != "" {
		got := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
		if got != h.callbackToken {
			h.logger.Warn("callback token mismatch", "remote", c.RealIP())
		}
	}

	var req CallbackRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid callback body")
	}

	h.logger.Info("provider callback",
		"event", req.Event, "request_id", req.RequestID, "instance_id", req.InstanceID,
		"dialogues", len(req.Dialogues))

	if req.Event == EventChatRecord && len(req.Dialogues) > 0 {
		appended := h.sink.RecordChatRecord(req.InstanceID, req.Dialogues)
		h.logger.Info("chat record processed", "appended", appended)
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
