package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookStatus represents the delivery state of a webhook.
type WebhookStatus string

const (
	WebhookStatusDelivered WebhookStatus = "DELIVERED"
	WebhookStatusFailed    WebhookStatus = "FAILED"
)

// SettlementEvent is the payload posted to the settlement webhook.
type SettlementEvent struct {
	EventID    uuid.UUID       `json:"event_id"`
	Type       string          `json:"type"` // transfer.committed
	Transfer   *TransferRecord `json:"transfer"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// WebhookDelivery summarizes the delivery of one event.
type WebhookDelivery struct {
	EventID    uuid.UUID     `json:"event_id"`
	URL        string        `json:"url"`
	Attempts   int           `json:"attempts"`
	Status     WebhookStatus `json:"status"`
	HTTPStatus int           `json:"http_status,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
}
