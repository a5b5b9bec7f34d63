package amqp

import (
	"encoding/json"
	"time"

	"github.com/lucasll37/guia-financeiro/internal/core"
)

// NotificationEventMessage is the queue payload for one persisted
// notification. Delivery workers fetch nothing extra; the message carries the
// full user-facing content.
type NotificationEventMessage struct {
	NotificationID string         `json:"notification_id"`
	UserID         string         `json:"user_id"`
	Type           string         `json:"type"`
	Message        string         `json:"message"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	PublishedAt    time.Time      `json:"published_at"`
}

func NewNotificationEventMessage(n core.Notification) *NotificationEventMessage {
	return &NotificationEventMessage{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           string(n.Type),
		Message:        n.Message,
		Metadata:       n.Metadata,
		CreatedAt:      n.CreatedAt,
		PublishedAt:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *NotificationEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationEventMessageFromJSON creates a message from JSON bytes.
func NotificationEventMessageFromJSON(data []byte) (*NotificationEventMessage, error) {
	var msg NotificationEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
