package agent

import "time"

type Status string

const (
	StatusOnline  Status = "online"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Agent is one logged-in human operator. The connection id changes across
// reconnects; only one live connection per agent id at a time.
type Agent struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ConnectionID     string    `json:"connection_id"`
	RTCUserID        string    `json:"rtc_user_id"`
	Status           Status    `json:"status"`
	CurrentSessionID string    `json:"current_session_id,omitempty"`
	LoginAt          time.Time `json:"login_at"`
	LastActiveAt     time.Time `json:"last_active_at"`
	Stats            CallStats `json:"stats"`
}

type CallStats struct {
	TotalCalls      int     `json:"total_calls"`
	TodayCalls      int     `json:"today_calls"`
	AvgCallDuration float64 `json:"avg_call_duration"`
}

type PoolStats struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Busy    int `json:"busy"`
	Offline int `json:"offline"`
}
