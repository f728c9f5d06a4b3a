package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eleven-am/handoff-backend/internal/shared"
)

// Client talks to the cloud AI-agent provisioning API. Only the two calls
// the coordinator needs are wrapped.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider base url: %w", shared.ErrConfigurationMissing)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type startInstanceRequest struct {
	UserID         string `json:"user_id"`
	AgentProfileID string `json:"agent_profile_id"`
}

type stopInstanceRequest struct {
	InstanceID string `json:"instance_id"`
}

// StartInstance provisions an AI agent call for the user and returns the
// instance plus the media channel and join credential the user side needs.
func (c *Client) StartInstance(ctx context.Context, userID, agentProfileID string) (*Instance, error) {
	if userID == "" || agentProfileID == "" {
		return nil, fmt.Errorf("user id and agent profile id required: %w", shared.ErrPreconditionFailed)
	}

	var inst Instance
	if err := c.post(ctx, "/instances/start", startInstanceRequest{
		UserID:         userID,
		AgentProfileID: agentProfileID,
	}, &inst); err != nil {
		return nil, err
	}

	if inst.InstanceID == "" || inst.ChannelID == "" || inst.Credential == nil {
		return nil, fmt.Errorf("start instance response missing fields: %w", shared.ErrCollaboratorFailure)
	}
	return &inst, nil
}

func (c *Client) StopInstance(ctx context.Context, instanceID string) error {
	if instanceID == "" {
		return fmt.Errorf("instance id required: %w", shared.ErrPreconditionFailed)
	}
	return c.post(ctx, "/instances/stop", stopInstanceRequest{InstanceID: instanceID}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", path, err, shared.ErrCollaboratorFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, shared.ErrCollaboratorFailure)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, shared.ErrCollaboratorFailure)
	}
	return nil
}
