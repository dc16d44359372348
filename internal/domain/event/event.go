package event

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies which side of the system produced an event.
type Source string

const (
	SourceClient Source = "client"
	SourceServer Source = "server"
	SourceSystem Source = "system"
)

// Priority orders events when delivery buffers come under pressure.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Scope declares which connections are eligible recipients of an event.
type Scope string

const (
	// ScopeSessionOwner delivers only to connections attached to the same session.
	ScopeSessionOwner Scope = "session-owner"
	// ScopeUser delivers to every connection of the originating user.
	ScopeUser Scope = "user-scoped"
	// ScopeSystem delivers to all active connections; only system-sourced
	// events may carry it.
	ScopeSystem Scope = "system"
)

// Event is a typed, attributed data packet flowing through the hub.
// ID and Timestamp are assigned by the hub when the producer leaves them empty.
type Event struct {
	Type      string         `json:"eventType"`
	ID        string         `json:"eventId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
	Version   string         `json:"version,omitempty"`
	Source    Source         `json:"source,omitempty"`
	Data      map[string]any `json:"eventData"`
}

// Enrich assigns the hub-owned identity fields that producers may omit.
func (e *Event) Enrich(now time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == 0 {
		e.Timestamp = now.UnixMilli()
	}
	if e.Version == "" {
		e.Version = "1.0"
	}
	if e.Source == "" {
		e.Source = SourceClient
	}
}
