package rtc

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eleven-am/handoff-backend/internal/shared"
)

func newTestService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService("test-key", "test-secret-at-least-32-characters!!", "wss://rtc.example.com")
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	return svc
}

func TestNewTokenService_MissingConfig(t *testing.T) {
	_, err := NewTokenService("", "", "")
	if !errors.Is(err, shared.ErrConfigurationMissing) {
		t.Errorf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestTokenService_IssueCredential(t *testing.T) {
	svc := newTestService(t)

	cred, err := svc.IssueCredential("human_abc", "agent_a1")
	if err != nil {
		t.Fatalf("IssueCredential failed: %v", err)
	}
	if cred.Token == "" {
		t.Error("token should not be empty")
	}
	if !strings.HasPrefix(cred.Nonce, "AK-") {
		t.Errorf("nonce should carry AK- prefix, got %s", cred.Nonce)
	}
	if cred.Timestamp <= time.Now().Unix() {
		t.Error("expiry timestamp should be in the future")
	}
}

func TestTokenService_IssueCredential_PerPartyTokens(t *testing.T) {
	svc := newTestService(t)

	agentCred, err := svc.IssueCredential("human_abc", "agent_a1")
	if err != nil {
		t.Fatalf("agent credential failed: %v", err)
	}
	userCred, err := svc.IssueCredential("human_abc", "user-7")
	if err != nil {
		t.Fatalf("user credential failed: %v", err)
	}
	if agentCred.Token == userCred.Token {
		t.Error("each party should get its own token")
	}
	if agentCred.Nonce == userCred.Nonce {
		t.Error("each credential should get its own nonce")
	}
}

func TestTokenService_IssueCredential_Validation(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.IssueCredential("", "u1"); !errors.Is(err, shared.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
	if _, err := svc.IssueCredential("ch", ""); !errors.Is(err, shared.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestChannelForSession_Deterministic(t *testing.T) {
	id := "3f2c9a6e-1d4b-4f8a-9c7e-5b6a7d8e9f0a"

	first := ChannelForSession(id)
	second := ChannelForSession(id)
	if first != second {
		t.Error("channel derivation should be deterministic")
	}
	if !strings.HasPrefix(first, "human_") {
		t.Errorf("expected human_ prefix, got %s", first)
	}
	if strings.Contains(first, "-") {
		t.Error("channel should not contain dashes")
	}
	if len(first) != len("human_")+24 {
		t.Errorf("expected 24 id chars, got %d", len(first)-len("human_"))
	}
}

func TestChannelForSession_ShortID(t *testing.T) {
	if got := ChannelForSession("abc"); got != "human_abc" {
		t.Errorf("short ids should pass through, got %s", got)
	}
}
