package event

import "encoding/json"

// deliveryPayload is the wire shape pushed to subscriber connections.
// The field set is fixed so subscribers can treat the stream as an
// append-only sequence of uniform JSON records.
type deliveryPayload struct {
	Type      string         `json:"eventType"`
	Data      map[string]any `json:"eventData"`
	ID        string         `json:"eventId"`
	Timestamp int64          `json:"timestamp"`
	SessionID string         `json:"sessionId"`
	UserID    string         `json:"userId"`
}

// DeliveryPayload serializes the event for subscriber delivery. The hub
// calls this once per event; every matched connection receives the same
// bytes.
func (e *Event) DeliveryPayload() ([]byte, error) {
	return json.Marshal(deliveryPayload{
		Type:      e.Type,
		Data:      e.Data,
		ID:        e.ID,
		Timestamp: e.Timestamp,
		SessionID: e.SessionID,
		UserID:    e.UserID,
	})
}
