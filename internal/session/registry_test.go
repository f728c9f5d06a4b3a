package session

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eleven-am/handoff-backend/internal/shared"
)

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistry_Create(t *testing.T) {
	r := newTestRegistry()
	err := r.Create(&Session{ID: "s1", UserID: "u1", Status: StatusAITalking})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sess, err := r.Get("s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.UserID != "u1" {
		t.Errorf("expected user u1, got %s", sess.UserID)
	}
	if sess.CreatedAt.IsZero() {
		t.Error("CreatedAt should be stamped")
	}
}

func TestRegistry_Create_Duplicate(t *testing.T) {
	r := newTestRegistry()
	if err := r.Create(&Session{ID: "s1"}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	err := r.Create(&Session{ID: "s1"})
	if !errors.Is(err, shared.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestRegistry_Create_MissingID(t *testing.T) {
	r := newTestRegistry()
	err := r.Create(&Session{})
	if !errors.Is(err, shared.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestRegistry_Get_NotFound(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Get("missing")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_Update(t *testing.T) {
	r := newTestRegistry()
	r.Create(&Session{ID: "s1", Status: StatusWaitingHuman})

	err := r.Update("s1", func(s *Session) {
		s.Status = StatusHumanTalking
		s.AgentID = "a1"
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	sess, _ := r.Get("s1")
	if sess.Status != StatusHumanTalking {
		t.Errorf("expected human_talking, got %s", sess.Status)
	}
	if sess.AgentID != "a1" {
		t.Errorf("expected agent a1, got %s", sess.AgentID)
	}
	if sess.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped")
	}
}

func TestRegistry_Update_NotFound(t *testing.T) {
	r := newTestRegistry()
	err := r.Update("missing", func(s *Session) {})
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_Delete(t *testing.T) {
	r := newTestRegistry()
	r.Create(&Session{ID: "s1"})

	if !r.Delete("s1") {
		t.Error("Delete should return true for existing session")
	}
	if r.Delete("s1") {
		t.Error("second Delete should return false")
	}
}

func TestRegistry_FindByInstanceID(t *testing.T) {
	r := newTestRegistry()
	r.Create(&Session{ID: "s1", InstanceID: "inst-1"})
	r.Create(&Session{ID: "s2", InstanceID: "inst-2"})

	sess := r.FindByInstanceID("inst-2")
	if sess == nil || sess.ID != "s2" {
		t.Errorf("expected s2, got %+v", sess)
	}
	if r.FindByInstanceID("inst-3") != nil {
		t.Error("unknown instance should return nil")
	}
}

func TestRegistry_FindByConnectionID(t *testing.T) {
	r := newTestRegistry()
	r.Create(&Session{ID: "s1", UserConnectionID: "conn-1"})

	sess := r.FindByConnectionID("conn-1")
	if sess == nil || sess.ID != "s1" {
		t.Errorf("expected s1, got %+v", sess)
	}
	if r.FindByConnectionID("conn-2") != nil {
		t.Error("unknown connection should return nil")
	}
}

func TestRegistry_FindActiveByUserID_PrefersLatest(t *testing.T) {
	r := newTestRegistry()
	r.Create(&Session{ID: "old", UserID: "u1", Status: StatusAITalking, CreatedAt: time.Now().Add(-time.Hour)})
	r.Create(&Session{ID: "new", UserID: "u1", Status: StatusAITalking, CreatedAt: time.Now()})
	r.Create(&Session{ID: "done", UserID: "u1", Status: StatusEnded, CreatedAt: time.Now().Add(time.Minute)})

	sess := r.FindActiveByUserID("u1")
	if sess == nil || sess.ID != "new" {
		t.Errorf("expected latest active session, got %+v", sess)
	}
}

func TestRegistry_AppendMessage(t *testing.T) {
	r := newTestRegistry()
	r.Create(&Session{ID: "s1"})

	first := Message{ID: "m1", Role: RoleUser, Text: "hello", Timestamp: time.Now()}
	second := Message{ID: "m2", Role: RoleAI, Text: "hi there", Timestamp: time.Now()}

	if !r.AppendMessage("s1", first) {
		t.Fatal("AppendMessage should succeed")
	}
	if !r.AppendMessage("s1", second) {
		t.Fatal("AppendMessage should succeed")
	}

	sess, _ := r.Get("s1")
	if len(sess.History) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sess.History))
	}
	if sess.History[0].ID != "m1" || sess.History[1].ID != "m2" {
		t.Error("messages should preserve append order")
	}
	if sess.History[len(sess.History)-1].Text != "hi there" {
		t.Error("appended message should be the last element")
	}
}

func TestRegistry_AppendMessage_UnknownSession(t *testing.T) {
	r := newTestRegistry()
	if r.AppendMessage("missing", Message{ID: "m1"}) {
		t.Error("AppendMessage on unknown session should return false")
	}
}

func TestRegistry_Get_ReturnsSnapshot(t *testing.T) {
	r := newTestRegistry()
	r.Create(&Session{ID: "s1"})
	r.AppendMessage("s1", Message{ID: "m1"})

	sess, _ := r.Get("s1")
	sess.History[0].Text = "mutated"
	sess.Status = StatusEnded

	fresh, _ := r.Get("s1")
	if fresh.History[0].Text == "mutated" {
		t.Error("caller mutation should not reach the registry")
	}
	if fresh.Status == StatusEnded {
		t.Error("caller mutation of status should not reach the registry")
	}
}

func TestRegistry_ListByStatus(t *testing.T) {
	r := newTestRegistry()
	r.Create(&Session{ID: "s1", Status: StatusWaitingHuman})
	r.Create(&Session{ID: "s2", Status: StatusWaitingHuman})
	r.Create(&Session{ID: "s3", Status: StatusEnded})

	waiting := r.ListByStatus(StatusWaitingHuman)
	if len(waiting) != 2 {
		t.Errorf("expected 2 waiting sessions, got %d", len(waiting))
	}
}

func TestRegistry_CleanupEnded(t *testing.T) {
	r := newTestRegistry()
	r.Create(&Session{ID: "stale", Status: StatusEnded, EndedAt: time.Now().Add(-2 * time.Hour)})
	r.Create(&Session{ID: "recent", Status: StatusEnded, EndedAt: time.Now()})
	r.Create(&Session{ID: "live", Status: StatusHumanTalking})

	removed := r.CleanupEnded(time.Hour)
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, err := r.Get("stale"); !errors.Is(err, shared.ErrNotFound) {
		t.Error("stale session should be gone")
	}
	if _, err := r.Get("live"); err != nil {
		t.Error("live session should survive cleanup")
	}
}

func TestRegistry_Stats(t *testing.T) {
	r := newTestRegistry()
	r.Create(&Session{ID: "s1", Status: StatusAITalking})
	r.Create(&Session{ID: "s2", Status: StatusWaitingHuman})
	r.Create(&Session{ID: "s3", Status: StatusHumanTalking})
	r.Create(&Session{ID: "s4", Status: StatusEnded})

	stats := r.Stats()
	if stats.Total != 4 || stats.AITalking != 1 || stats.WaitingHuman != 1 || stats.HumanTalking != 1 || stats.Ended != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
