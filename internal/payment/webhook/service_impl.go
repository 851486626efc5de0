package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/menuvia/menuvia/internal/clock"
	"github.com/menuvia/menuvia/internal/config"
	"github.com/menuvia/menuvia/internal/gateway"
	paymentdomain "github.com/menuvia/menuvia/internal/payment/domain"
	paymentservice "github.com/menuvia/menuvia/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	PaymentSvc *paymentservice.Service
	Repo       paymentdomain.Repository
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	webhookSecret string
	paymentSvc    *paymentservice.Service
	repo          paymentdomain.Repository
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.webhook"),
		genID:         p.GenID,
		clock:         p.Clock,
		webhookSecret: strings.TrimSpace(p.Cfg.Gateway.WebhookSecret),
		paymentSvc:    p.PaymentSvc,
		repo:          p.Repo,
	}
}

// IngestWebhook authenticates and deduplicates one raw delivery.
// The signature covers the raw bytes, so nothing in the payload is
// trusted before VerifyWebhookSignature passes.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signature string) (*paymentdomain.IngestResult, error) {
	if s.webhookSecret == "" {
		s.log.Warn("webhook secret not configured, rejecting delivery")
		return nil, paymentdomain.ErrInvalidSignature
	}
	if !gateway.VerifyWebhookSignature(s.webhookSecret, payload, strings.TrimSpace(signature)) {
		return nil, paymentdomain.ErrInvalidSignature
	}
	if !json.Valid(payload) {
		return nil, paymentdomain.ErrInvalidPayload
	}

	var env paymentdomain.EventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	env.Event = strings.TrimSpace(env.Event)
	if env.Event == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	eventID := strings.TrimSpace(env.ID)
	if eventID == "" {
		// Some deliveries arrive without an event id. Hash the raw
		// body so replays of the same delivery still deduplicate.
		sum := sha256.Sum256(payload)
		eventID = "evt_" + hex.EncodeToString(sum[:])
	}

	record := &paymentdomain.WebhookEvent{
		ID:         s.genID.Generate(),
		EventID:    eventID,
		EventType:  env.Event,
		Payload:    datatypes.JSON(payload),
		ReceivedAt: s.clock.Now(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		prior, findErr := s.repo.FindEvent(ctx, s.db, eventID)
		if findErr != nil {
			s.log.Warn("failed to load prior webhook event",
				zap.String("event_id", eventID),
				zap.Error(findErr),
			)
		} else if prior != nil && prior.ProcessedAt == nil {
			// First delivery was acked but its handler failed. The
			// gateway will not redeliver, so make the gap visible.
			s.log.Warn("replayed webhook event was never processed",
				zap.String("event_id", eventID),
				zap.String("event", env.Event),
			)
		}
		return &paymentdomain.IngestResult{Duplicate: true, EventID: eventID, EventType: env.Event}, nil
	}

	// The ledger row already exists, so a handler failure must not
	// bounce the delivery back to the gateway. Log and acknowledge;
	// processed_at stays null for the failed event.
	if err := s.paymentSvc.ProcessEvent(ctx, &env); err != nil {
		s.log.Error("webhook handler failed",
			zap.String("event_id", eventID),
			zap.String("event", env.Event),
			zap.Error(err),
		)
		return &paymentdomain.IngestResult{EventID: eventID, EventType: env.Event}, nil
	}

	if err := s.repo.MarkProcessed(ctx, s.db, record.ID, s.clock.Now()); err != nil {
		s.log.Warn("failed to mark webhook event processed",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
	return &paymentdomain.IngestResult{EventID: eventID, EventType: env.Event}, nil
}
