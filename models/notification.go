package models

import "time"

const (
	ChannelSlack = "slack"

	StatusSent   = "sent"
	StatusFailed = "failed"

	TypeCartAbandoned = "cart_abandoned"
)

// NotificationLog is the audit row written for every alert dispatch attempt.
type NotificationLog struct {
	ID           int64     `json:"id" db:"id" gorm:"primaryKey;autoIncrement"`
	SessionID    string    `json:"session_id" db:"session_id" gorm:"index;not null"`
	CustomerName string    `json:"customer_name" db:"customer_name"`
	Phone        string    `json:"phone" db:"phone"`
	Channel      string    `json:"channel" db:"channel"`
	Status       string    `json:"status" db:"status"`
	Error        string    `json:"error,omitempty" db:"error"`
	CartTotal    float64   `json:"cart_total" db:"cart_total"`
	MessageID    string    `json:"message_id,omitempty" db:"message_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at" gorm:"autoCreateTime"`
}

type NotificationFilter struct {
	SessionID string
	Status    string
	Channel   string
	Page      int
	PageSize  int
}

// EventPayload is the SNS envelope body consumed by the notification service.
type EventPayload struct {
	EventType string                 `json:"event_type"`
	UserID    int64                  `json:"user_id"`
	Recipient string                 `json:"recipient"`
	Data      map[string]interface{} `json:"data"`
}
