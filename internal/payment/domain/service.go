package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/menuvia/menuvia/pkg/db/pagination"
	"gorm.io/gorm"
)

var (
	ErrInvalidSignature = errors.New("invalid_webhook_signature")
	ErrInvalidPayload   = errors.New("invalid_webhook_payload")
)

type IngestResult struct {
	Duplicate bool   `json:"duplicate"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}

type ListTransactionsRequest struct {
	UserID    snowflake.ID `json:"-"`
	PageToken string       `form:"page_token"`
	PageSize  int          `form:"page_size,default=50"`
}

type ListTransactionsResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

// Service ingests raw webhook deliveries from the payment gateway.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, signature string) (*IngestResult, error)
}

type Repository interface {
	FindEvent(ctx context.Context, db *gorm.DB, eventID string) (*WebhookEvent, error)
	InsertEvent(ctx context.Context, db *gorm.DB, event *WebhookEvent) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) (bool, error)
	ListTransactionsByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, page pagination.Pagination) ([]*Transaction, error)
}
