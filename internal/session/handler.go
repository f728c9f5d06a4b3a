package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/handoff-backend/internal/shared"
)

type Handler struct {
	registry *Registry
	logger   *slog.Logger
}

func NewHandler(registry *Registry, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/sessions/:id/history", h.GetHistory)
	g.GET("/sessions/:id", h.GetSession)
}

// GetHistory returns the conversation transcript for a session, in arrival
// order.
func (h *Handler) GetHistory(c echo.Context) error {
	id := c.Param("id")

	sess, err := h.registry.Get(id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("session_not_found", "session not found")
		}
		return shared.InternalError("get_failed", "failed to load session")
	}

	messages := sess.History
	if messages == nil {
		messages = []Message{}
	}

	return c.JSON(http.StatusOK, historyResponse{
		SessionID: sess.ID,
		Status:    string(sess.Status),
		Messages:  messages,
	})
}

func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.registry.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("session_not_found", "session not found")
		}
		return shared.InternalError("get_failed", "failed to load session")
	}
	return c.JSON(http.StatusOK, sess)
}

type historyResponse struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Messages  []Message `json:"messages"`
}
