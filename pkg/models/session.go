package models

import "time"

// SessionStatus represents the current state of a browser session
type SessionStatus string

const (
	StatusActive  SessionStatus = "ACTIVE"
	StatusClosing SessionStatus = "CLOSING"
)

// SessionSummary is the list view of a live session
type SessionSummary struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Region      string        `json:"region"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	LastUsedAt  time.Time     `json:"lastUsedAt"`
	Age         time.Duration `json:"age"`
	Idle        time.Duration `json:"idle"`
	Timeout     int           `json:"timeout"`
	TabCount    int           `json:"tabCount"`
	ActiveTab   string        `json:"activeTab"`
}

// SessionInfo is the detailed snapshot of one session
type SessionInfo struct {
	SessionSummary
	RecordingEnabled bool      `json:"recordingEnabled"`
	CurrentURL       string    `json:"currentUrl"`
	LiveViewURL      string    `json:"liveViewUrl"`
	Tabs             []TabInfo `json:"tabs"`
}

// TabInfo describes one tab of a session
type TabInfo struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// CreateSessionRequest is the payload for creating a new session
type CreateSessionRequest struct {
	SessionID       string `json:"session_id"`
	Description     string `json:"description"`
	Region          string `json:"region,omitempty"`
	Timeout         int    `json:"session_timeout,omitempty"`
	EnableRecording bool   `json:"enable_recording,omitempty"`
}
