package models

import "time"

// LaunchRequest asks the control plane for a remote browser
type LaunchRequest struct {
	SessionID string
	Region    string
	Timeout   time.Duration
	Recording bool
}

// Lease is a provisioned remote browser owned by exactly one session
type Lease struct {
	ID          string            `json:"id"`
	Region      string            `json:"region"`
	ConnectURL  string            `json:"connectUrl"`
	Headers     map[string]string `json:"-"`
	LiveViewURL string            `json:"liveViewUrl"`
	ContainerID string            `json:"-"`
	StartedAt   time.Time         `json:"startedAt"`
}
