package rtc

import (
	"fmt"
	"strings"
	"time"

	"github.com/eleven-am/handoff-backend/internal/shared"
	"github.com/livekit/protocol/auth"
)

const credentialTTL = 24 * time.Hour

// Credential authorizes one party to join one media channel.
type Credential struct {
	Token     string `json:"token"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
}

type TokenService struct {
	apiKey    string
	apiSecret string
	url       string
}

// NewTokenService fails when the media credentials are absent; the process
// must not serve hand-off traffic without them.
func NewTokenService(apiKey, apiSecret, url string) (*TokenService, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("rtc api key/secret: %w", shared.ErrConfigurationMissing)
	}
	return &TokenService{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		url:       url,
	}, nil
}

func (s *TokenService) URL() string {
	return s.url
}

// IssueCredential mints a join token for identity on channelID, valid for
// 24 hours.
func (s *TokenService) IssueCredential(channelID, identity string) (*Credential, error) {
	if channelID == "" || identity == "" {
		return nil, fmt.Errorf("channel id and identity required: %w", shared.ErrPreconditionFailed)
	}

	at := auth.NewAccessToken(s.apiKey, s.apiSecret)

	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     channelID,
	}

	at.SetIdentity(identity).
		SetValidFor(credentialTTL).
		AddGrant(grant)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", shared.ErrCollaboratorFailure)
	}

	return &Credential{
		Token:     token,
		Nonce:     shared.NewID("AK-"),
		Timestamp: time.Now().Add(credentialTTL).Unix(),
	}, nil
}

// ChannelForSession derives the human-call channel deterministically from
// the session id, so both parties and any retry land on the same channel.
func ChannelForSession(sessionID string) string {
	flat := strings.ReplaceAll(sessionID, "-", "")
	if len(flat) > 24 {
		flat = flat[:24]
	}
	return "human_" + flat
}
