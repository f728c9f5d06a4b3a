package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newHandlerFixture(t *testing.T) (*Handler, *Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := NewRegistry(logger)
	return NewHandler(registry, logger), registry
}

func getWithID(t *testing.T, h echo.HandlerFunc, id string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestHandler_GetHistory(t *testing.T) {
	h, registry := newHandlerFixture(t)
	err := registry.Create(&Session{
		ID:     "s1",
		UserID: "u1",
		Status: StatusHumanTalking,
		History: []Message{
			{ID: "m1", Role: RoleUser, Text: "hello"},
			{ID: "m2", Role: RoleAI, Text: "hi there"},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := getWithID(t, h.GetHistory, "s1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != "s1" || len(resp.Messages) != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Messages[0].Text != "hello" {
		t.Error("messages should keep arrival order")
	}
}

func TestHandler_GetHistory_EmptyIsArray(t *testing.T) {
	h, registry := newHandlerFixture(t)
	if err := registry.Create(&Session{ID: "s1", UserID: "u1", Status: StatusAITalking}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := getWithID(t, h.GetHistory, "s1")
	var resp historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Messages == nil {
		t.Error("empty history should serialize as [], not null")
	}
}

func TestHandler_GetHistory_NotFound(t *testing.T) {
	h, _ := newHandlerFixture(t)
	rec := getWithID(t, h.GetHistory, "ghost")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_GetSession(t *testing.T) {
	h, registry := newHandlerFixture(t)
	if err := registry.Create(&Session{ID: "s1", UserID: "u1", Status: StatusAITalking}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := getWithID(t, h.GetSession, "s1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var sess Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.ID != "s1" || sess.Status != StatusAITalking {
		t.Errorf("unexpected session %+v", sess)
	}
}
