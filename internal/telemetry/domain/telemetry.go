package domain

import (
	"errors"
	"time"
)

// Auth event types.
const (
	EventLoginSucceeded       = "auth.login.succeeded"
	EventLoginFailed          = "auth.login.failed"
	EventRefreshRotated       = "auth.refresh.rotated"
	EventRefreshReuseDetected = "auth.refresh.reuse_detected"
	EventLogout               = "auth.logout"
)

// SourceAPI marks events produced by the API server.
const SourceAPI = "api"

// AuthEvent is an authentication lifecycle event streamed to Kafka and OTel logs.
type AuthEvent struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	EventType string            `json:"eventType"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Validate checks the fields every consumer relies on.
func (e *AuthEvent) Validate() error {
	if e.EventType == "" {
		return errors.New("event type is required")
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created at is required")
	}
	return nil
}
