package coordinator

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/handoff-backend/internal/dto"
	"github.com/eleven-am/handoff-backend/internal/shared"
)

type Handler struct {
	coordinator *Coordinator
	logger      *slog.Logger
}

func NewHandler(coordinator *Coordinator, logger *slog.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/transfer-request", h.RequestTransfer)
	g.POST("/accept-call", h.AcceptCall)
	g.POST("/reject-call", h.RejectCall)
	g.POST("/hangup", h.Hangup)
}

func (h *Handler) RequestTransfer(c echo.Context) error {
	var req dto.TransferRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.UserID == "" {
		return shared.BadRequest("missing_user_id", "user_id is required")
	}

	resp, err := h.coordinator.RequestTransfer(req)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.BadRequest("no_active_session",
				"no active session found for user, start an AI call first")
		}
		h.logger.Error("transfer request failed", "user_id", req.UserID, "error", err)
		return shared.InternalError("transfer_failed", "failed to request transfer")
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) AcceptCall(c echo.Context) error {
	var req dto.AcceptCallRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.SessionID == "" || req.AgentID == "" {
		return shared.BadRequest("missing_fields", "session_id and agent_id are required")
	}

	resp, err := h.coordinator.AcceptCall(req.AgentID, req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			return shared.NotFound("not_found", err.Error())
		case errors.Is(err, ErrSessionNotWaiting):
			return shared.Conflict("session_not_waiting", "session is no longer waiting for an agent")
		case errors.Is(err, ErrAgentUnavailable):
			return shared.Conflict("agent_unavailable", "agent cannot take a call right now")
		case errors.Is(err, shared.ErrCollaboratorFailure):
			return shared.BadGateway("credential_failed", "failed to issue media credentials")
		}
		h.logger.Error("accept call failed",
			"session_id", req.SessionID, "agent_id", req.AgentID, "error", err)
		return shared.InternalError("accept_failed", "failed to accept call")
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) RejectCall(c echo.Context) error {
	var req dto.RejectCallRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.SessionID == "" {
		return shared.BadRequest("missing_session_id", "session_id is required")
	}

	if err := h.coordinator.RejectCall(req.AgentID, req.SessionID, req.Reason); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("session_not_found", "session not found")
		}
		return shared.InternalError("reject_failed", "failed to reject session")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Hangup(c echo.Context) error {
	var req dto.HangupRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.SessionID == "" {
		return shared.BadRequest("missing_session_id", "session_id is required")
	}

	if err := h.coordinator.Hangup(req.SessionID, "user"); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("session_not_found", "session not found")
		}
		return shared.InternalError("hangup_failed", "failed to end session")
	}

	return c.NoContent(http.StatusNoContent)
}
