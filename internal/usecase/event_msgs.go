package usecase

import "time"

// Published on Kafka by the webhook handler, one per transaction.updated event.
type PaymentStatusChangedMsg struct {
	Reference     string    `json:"reference"`
	TransactionID string    `json:"transactionId"`
	Status        string    `json:"status"` // e.g. "APPROVED"
	Cents         int64     `json:"cents"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Sent on RabbitMQ by operators to retry a failed notification.
type NotificationResendMsg struct {
	Reference   string    `json:"reference"`
	RequestedBy string    `json:"requestedBy"`
	RequestedAt time.Time `json:"requestedAt"`
}
