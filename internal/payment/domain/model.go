package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// WebhookEvent is the idempotency ledger. The unique index on
// event_id is what makes webhook delivery replay-safe.
type WebhookEvent struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	EventID     string         `json:"event_id" gorm:"type:text;not null;uniqueIndex"`
	EventType   string         `json:"event_type" gorm:"type:text;not null"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt  time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt *time.Time     `json:"processed_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

type Transaction struct {
	ID                    snowflake.ID      `json:"id" gorm:"primaryKey"`
	UserID                snowflake.ID      `json:"user_id" gorm:"not null;index"`
	SubscriptionID        snowflake.ID      `json:"subscription_id" gorm:"index"`
	GatewayPaymentID      string            `json:"gateway_payment_id" gorm:"type:text;not null;uniqueIndex"`
	GatewaySubscriptionID string            `json:"gateway_subscription_id" gorm:"type:text"`
	Amount                int64             `json:"amount" gorm:"not null"`
	Currency              string            `json:"currency" gorm:"type:text;not null"`
	Status                string            `json:"status" gorm:"type:text;not null"`
	PaymentMethod         string            `json:"payment_method" gorm:"type:text"`
	Metadata              datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt             time.Time         `json:"created_at" gorm:"not null"`
}

func (Transaction) TableName() string { return "payment_transactions" }

const (
	TransactionStatusCaptured = "captured"
	TransactionStatusFailed   = "failed"
)

const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCharged   = "subscription.charged"
	EventSubscriptionPending   = "subscription.pending"
	EventSubscriptionHalted    = "subscription.halted"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventPaymentCaptured       = "payment.captured"
	EventPaymentFailed         = "payment.failed"
)

// Notes tolerates the gateway serializing empty notes as [] instead
// of {}.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '[' || bytes.Equal(trimmed, []byte("null")) {
		*n = nil
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return err
	}
	*n = out
	return nil
}

type SubscriptionEntity struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	Status       string `json:"status"`
	CurrentStart int64  `json:"current_start"`
	CurrentEnd   int64  `json:"current_end"`
	Notes        Notes  `json:"notes"`
}

type PaymentEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Notes    Notes  `json:"notes"`
}

// EventEnvelope is the gateway webhook body shape.
type EventEnvelope struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Subscription struct {
			Entity *SubscriptionEntity `json:"entity"`
		} `json:"subscription"`
		Payment struct {
			Entity *PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}
