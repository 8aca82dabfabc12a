package firmware

import (
	"time"
)

// State is a session's lifecycle state.
type State string

const (
	StatePending  State = "pending"
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// JobParams are the decoded per-session options. They arrive from the
// dashboard as a loosely-typed map and are decoded via mapstructure.
type JobParams struct {
	ImagePath string `mapstructure:"image_path"`
	ChunkSize int    `mapstructure:"chunk_size"`
	Interval  string `mapstructure:"interval"`
}

// Progress is the payload published on every state or chunk transition.
type Progress struct {
	SessionID string    `json:"session_id"`
	Device    string    `json:"device"`
	State     State     `json:"state"`
	SentBytes int       `json:"sent_bytes"`
	Total     int       `json:"total_bytes"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status is the externally visible session snapshot.
type Status struct {
	SessionID string    `json:"session_id"`
	Device    string    `json:"device"`
	State     State     `json:"state"`
	SentBytes int       `json:"sent_bytes"`
	Total     int       `json:"total_bytes"`
	StartedAt time.Time `json:"started_at"`
}
