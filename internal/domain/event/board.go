package event

import (
	"fmt"
	"time"
)

// Board event types accepted by the hub.
const (
	TypeCardCreated    = "card.created"
	TypeCardMoved      = "card.moved"
	TypeCardUpdated    = "card.updated"
	TypeCardDeleted    = "card.deleted"
	TypeSessionJoined  = "session.joined"
	TypeSessionLeft    = "session.left"
	TypeHeartbeat      = "connection.heartbeat"
	TypeAnnouncement   = "system.announcement"
)

// ValidZones is the closed set of board zones a card may be moved into.
var ValidZones = map[string]struct{}{
	"deck":    {},
	"board":   {},
	"parking": {},
	"archive": {},
}

// NewBoardRegistry builds the startup registry for the collaborative board
// event set.
func NewBoardRegistry() *Registry {
	return NewRegistry(
		&TypeConfig{
			Type:          TypeCardCreated,
			Schema:        cardCreatedSchema,
			Authorization: ScopeSessionOwner,
			Persistence:   true,
			Broadcast:     true,
			Priority:      PriorityMedium,
			RateLimit:     RateLimit{Window: time.Minute, MaxEvents: 60},
		},
		&TypeConfig{
			Type:          TypeCardMoved,
			Schema:        cardRefSchema,
			BusinessRule:  cardMovedRule,
			Authorization: ScopeSessionOwner,
			Persistence:   true,
			Broadcast:     true,
			Priority:      PriorityMedium,
			RateLimit:     RateLimit{Window: time.Minute, MaxEvents: 120},
		},
		&TypeConfig{
			Type:          TypeCardUpdated,
			Schema:        cardRefSchema,
			BusinessRule:  cardUpdatedRule,
			Authorization: ScopeSessionOwner,
			Persistence:   true,
			Broadcast:     true,
			Priority:      PriorityMedium,
			RateLimit:     RateLimit{Window: time.Minute, MaxEvents: 120},
		},
		&TypeConfig{
			Type:          TypeCardDeleted,
			Schema:        emptySchema,
			BusinessRule:  cardDeletedRule,
			Authorization: ScopeSessionOwner,
			Persistence:   true,
			Broadcast:     true,
			Priority:      PriorityHigh,
			RateLimit:     RateLimit{Window: time.Minute, MaxEvents: 60},
		},
		&TypeConfig{
			Type:          TypeSessionJoined,
			Schema:        emptySchema,
			Authorization: ScopeUser,
			Broadcast:     true,
			Priority:      PriorityLow,
			RateLimit:     RateLimit{Window: time.Minute, MaxEvents: 30},
		},
		&TypeConfig{
			Type:          TypeSessionLeft,
			Schema:        emptySchema,
			Authorization: ScopeUser,
			Broadcast:     true,
			Priority:      PriorityLow,
			RateLimit:     RateLimit{Window: time.Minute, MaxEvents: 30},
		},
		&TypeConfig{
			Type:          TypeHeartbeat,
			Schema:        emptySchema,
			Authorization: ScopeUser,
			Priority:      PriorityLow,
			RateLimit:     RateLimit{Window: time.Minute, MaxEvents: 120},
		},
		&TypeConfig{
			Type:          TypeAnnouncement,
			Schema:        announcementSchema,
			Authorization: ScopeSystem,
			Persistence:   true,
			Broadcast:     true,
			Priority:      PriorityCritical,
		},
	)
}

func emptySchema(map[string]any) map[string]string { return nil }

func cardCreatedSchema(data map[string]any) map[string]string {
	problems := map[string]string{}
	if stringField(data, "cardId") == "" {
		problems["cardId"] = "required non-empty string"
	}
	cardData, ok := data["cardData"].(map[string]any)
	if !ok {
		problems["cardData"] = "required object"
	} else if stringField(cardData, "type") == "" {
		problems["cardData.type"] = "required non-empty string"
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}

func cardRefSchema(data map[string]any) map[string]string {
	if stringField(data, "cardId") == "" {
		return map[string]string{"cardId": "required non-empty string"}
	}
	return nil
}

func announcementSchema(data map[string]any) map[string]string {
	if stringField(data, "message") == "" {
		return map[string]string{"message": "required non-empty string"}
	}
	return nil
}

func cardMovedRule(ev *Event) *RejectionError {
	zone := stringField(ev.Data, "targetZone")
	if zone == "" {
		return Reject(CodeMissingTargetID, "card.moved requires a target zone")
	}
	if _, ok := ValidZones[zone]; !ok {
		return Reject(CodeInvalidZone, fmt.Sprintf("unknown zone %q", zone))
	}
	return nil
}

func cardUpdatedRule(ev *Event) *RejectionError {
	updates, ok := ev.Data["updates"].(map[string]any)
	if !ok || len(updates) == 0 {
		return Reject(CodeMissingUpdateData, "card.updated requires at least one updated field")
	}
	return nil
}

func cardDeletedRule(ev *Event) *RejectionError {
	if stringField(ev.Data, "cardId") == "" {
		return Reject(CodeMissingTargetID, "card.deleted requires the card identifier")
	}
	return nil
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}
