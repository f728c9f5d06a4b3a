package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eleven-am/handoff-backend/internal/agent"
	"github.com/eleven-am/handoff-backend/internal/coordinator"
	"github.com/eleven-am/handoff-backend/internal/dto"
	"github.com/eleven-am/handoff-backend/internal/queue"
	"github.com/eleven-am/handoff-backend/internal/rtc"
	"github.com/eleven-am/handoff-backend/internal/session"
)

type serverFixture struct {
	server   *Server
	hub      *Hub
	sessions *session.Registry
	agents   *agent.Registry
	queue    *queue.WaitQueue
	coord    *coordinator.Coordinator
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := rtc.NewTokenService("test-key", "test-secret-at-least-32-characters!!", "")
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	f := &serverFixture{
		hub:      NewHub(logger),
		sessions: session.NewRegistry(logger),
		agents:   agent.NewRegistry(logger),
		queue:    queue.NewWaitQueue(logger),
	}
	f.coord = coordinator.New(coordinator.Params{
		Sessions: f.sessions,
		Agents:   f.agents,
		Queue:    f.queue,
		Tokens:   tokens,
		Notifier: f.hub,
		Logger:   logger,
	})
	f.server = NewServer(f.hub, f.coord, f.sessions, f.agents, f.queue, logger)
	return f
}

func env(t *testing.T, event string, payload any) Envelope {
	t.Helper()
	e := Envelope{Type: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		e.Payload = data
	}
	return e
}

func (f *serverFixture) login(t *testing.T, conn *fakeEndpoint, agentID, connID string) {
	t.Helper()
	id := ""
	f.server.handleAgentEvent(conn, connID, &id,
		env(t, dto.EventAgentLogin, dto.AgentLoginPayload{AgentID: agentID, Name: "Agent " + agentID}))
	if id != agentID {
		t.Fatalf("login should bind the connection to %s, got %q", agentID, id)
	}
}

func TestAgentLogin_Success(t *testing.T) {
	f := newServerFixture(t)
	conn := &fakeEndpoint{}
	f.queue.Enqueue(queue.Entry{SessionID: "s1", UserID: "u1"})

	f.login(t, conn, "a1", "conn-1")

	frame := conn.find(dto.EventLoginSuccess)
	if frame == nil {
		t.Fatal("expected login-success")
	}
	var p dto.LoginSuccessPayload
	if err := json.Unmarshal(frame.Payload, &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.AgentID != "a1" || len(p.PendingSessions) != 1 {
		t.Errorf("unexpected payload %+v", p)
	}

	if _, err := f.agents.Get("a1"); err != nil {
		t.Errorf("agent should be registered: %v", err)
	}
	if f.hub.AgentCount() != 1 {
		t.Error("hub should hold the connection")
	}
}

func TestAgentLogin_MissingID(t *testing.T) {
	f := newServerFixture(t)
	conn := &fakeEndpoint{}

	id := ""
	f.server.handleAgentEvent(conn, "conn-1", &id, env(t, dto.EventAgentLogin, dto.AgentLoginPayload{}))

	if conn.find(dto.EventLoginError) == nil {
		t.Error("expected login-error")
	}
	if id != "" {
		t.Error("failed login should not bind the connection")
	}
}

func TestAgentEvent_RequiresLogin(t *testing.T) {
	f := newServerFixture(t)
	conn := &fakeEndpoint{}

	id := ""
	f.server.handleAgentEvent(conn, "conn-1", &id,
		env(t, dto.EventAgentStatusChange, dto.AgentStatusChangePayload{Status: "online"}))

	if conn.find(dto.EventError) == nil {
		t.Error("pre-login events should be rejected")
	}
}

func TestAgentAcceptSession_Acknowledged(t *testing.T) {
	f := newServerFixture(t)
	conn := &fakeEndpoint{}
	f.login(t, conn, "a1", "conn-1")

	if err := f.sessions.Create(&session.Session{
		ID: "s1", UserID: "u1", Status: session.StatusWaitingHuman,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	id := "a1"
	f.server.handleAgentEvent(conn, "conn-1", &id,
		env(t, dto.EventAgentAcceptSession, dto.SessionRefPayload{SessionID: "s1"}))

	if conn.find(dto.EventAcceptAcknowledged) == nil {
		t.Error("expected accept-acknowledged")
	}
}

func TestAgentAcceptSession_Unknown(t *testing.T) {
	f := newServerFixture(t)
	conn := &fakeEndpoint{}
	f.login(t, conn, "a1", "conn-1")

	id := "a1"
	f.server.handleAgentEvent(conn, "conn-1", &id,
		env(t, dto.EventAgentAcceptSession, dto.SessionRefPayload{SessionID: "ghost"}))

	if conn.find(dto.EventAcceptError) == nil {
		t.Error("expected accept-error for unknown session")
	}
}

func TestAgentRejectSession(t *testing.T) {
	f := newServerFixture(t)
	conn := &fakeEndpoint{}
	f.login(t, conn, "a1", "conn-1")

	if err := f.sessions.Create(&session.Session{
		ID: "s1", UserID: "u1", Status: session.StatusWaitingHuman,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.queue.Enqueue(queue.Entry{SessionID: "s1", UserID: "u1"})

	id := "a1"
	f.server.handleAgentEvent(conn, "conn-1", &id,
		env(t, dto.EventAgentRejectSession, dto.SessionRefPayload{SessionID: "s1", Reason: "busy"}))

	sess, _ := f.sessions.Get("s1")
	if sess.Status != session.StatusRejected {
		t.Errorf("expected rejected, got %s", sess.Status)
	}
	if f.queue.Len() != 0 {
		t.Error("rejected session should leave the queue")
	}
}

func TestAgentHangup(t *testing.T) {
	f := newServerFixture(t)
	conn := &fakeEndpoint{}
	f.login(t, conn, "a1", "conn-1")

	if err := f.sessions.Create(&session.Session{
		ID: "s1", UserID: "u1", Status: session.StatusWaitingHuman,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.coord.AcceptCall("a1", "s1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	id := "a1"
	f.server.handleAgentEvent(conn, "conn-1", &id,
		env(t, dto.EventAgentHangup, dto.SessionRefPayload{SessionID: "s1"}))

	sess, _ := f.sessions.Get("s1")
	if sess.Status != session.StatusEnded || sess.EndedBy != "agent" {
		t.Errorf("expected ended by agent, got %s/%s", sess.Status, sess.EndedBy)
	}
	ag, _ := f.agents.Get("a1")
	if ag.Status != agent.StatusOnline {
		t.Errorf("agent should be online again, got %s", ag.Status)
	}
}

func TestAgentPing(t *testing.T) {
	f := newServerFixture(t)
	conn := &fakeEndpoint{}

	id := ""
	f.server.handleAgentEvent(conn, "conn-1", &id, env(t, dto.EventPing, nil))

	if conn.find(dto.EventPong) == nil {
		t.Error("ping should answer pong, even before login")
	}
}

func TestAgentUnknownEvent(t *testing.T) {
	f := newServerFixture(t)
	conn := &fakeEndpoint{}
	f.login(t, conn, "a1", "conn-1")

	id := "a1"
	f.server.handleAgentEvent(conn, "conn-1", &id, env(t, "made-up", nil))

	if conn.find(dto.EventError) == nil {
		t.Error("unknown events should be rejected")
	}
}

func TestUserHangupEvent(t *testing.T) {
	f := newServerFixture(t)
	conn := &fakeEndpoint{}

	if err := f.sessions.Create(&session.Session{
		ID: "s1", UserID: "u1", Status: session.StatusWaitingHuman,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	f.server.handleUserEvent(conn,
		env(t, dto.EventUserHangup, dto.UserHangupPayload{SessionID: "s1", UserID: "u1"}))

	sess, _ := f.sessions.Get("s1")
	if sess.Status != session.StatusEnded || sess.EndedBy != "user" {
		t.Errorf("expected ended by user, got %s/%s", sess.Status, sess.EndedBy)
	}
}

func TestSweeper_Sweep(t *testing.T) {
	f := newServerFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := f.sessions.Create(&session.Session{
		ID: "s1", UserID: "u1", Status: session.StatusWaitingHuman,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.queue.Enqueue(queue.Entry{SessionID: "s1", UserID: "u1", EnqueuedAt: time.Now().Add(-15 * time.Minute)})

	sweeper := NewSweeper(f.coord, f.sessions, SweeperConfig{}, logger)
	sweeper.sweep()

	if f.queue.Len() != 0 {
		t.Error("stale entry should be swept")
	}
	sess, _ := f.sessions.Get("s1")
	if sess.Status != session.StatusEnded || sess.EndedBy != "timeout" {
		t.Errorf("expected ended by timeout, got %s/%s", sess.Status, sess.EndedBy)
	}
}

func TestSweeper_StartStop(t *testing.T) {
	f := newServerFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sweeper := NewSweeper(f.coord, f.sessions, SweeperConfig{Interval: 10 * time.Millisecond}, logger)
	sweeper.Start()
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
}
