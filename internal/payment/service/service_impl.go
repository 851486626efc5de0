package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/menuvia/menuvia/internal/audit/domain"
	"github.com/menuvia/menuvia/internal/clock"
	obsmetrics "github.com/menuvia/menuvia/internal/observability/metrics"
	paymentdomain "github.com/menuvia/menuvia/internal/payment/domain"
	restaurantdomain "github.com/menuvia/menuvia/internal/restaurant/domain"
	subscriptiondomain "github.com/menuvia/menuvia/internal/subscription/domain"
	"github.com/menuvia/menuvia/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	SubRepo        subscriptiondomain.Repository
	RestaurantRepo restaurantdomain.Repository
	AuditSvc       auditdomain.Service
	Repo           paymentdomain.Repository
	ObsMetrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	subRepo        subscriptiondomain.Repository
	restaurantRepo restaurantdomain.Repository
	auditSvc       auditdomain.Service
	repo           paymentdomain.Repository
	obsMetrics     *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("payment.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		subRepo:        p.SubRepo,
		restaurantRepo: p.RestaurantRepo,
		auditSvc:       p.AuditSvc,
		repo:           p.Repo,
		obsMetrics:     p.ObsMetrics,
	}
}

// ProcessEvent dispatches one deduplicated gateway event. Unknown
// event types are logged and acknowledged so the gateway does not
// retry deliveries we will never handle.
func (s *Service) ProcessEvent(ctx context.Context, env *paymentdomain.EventEnvelope) error {
	if env == nil {
		return paymentdomain.ErrInvalidPayload
	}

	var err error
	switch env.Event {
	case paymentdomain.EventSubscriptionActivated:
		err = s.handleSubscriptionActivated(ctx, env)
	case paymentdomain.EventSubscriptionCharged:
		err = s.handleSubscriptionCharged(ctx, env)
	case paymentdomain.EventSubscriptionPending:
		err = s.setSubscriptionStatus(ctx, env, subscriptiondomain.StatusPending)
	case paymentdomain.EventSubscriptionHalted:
		err = s.setSubscriptionStatus(ctx, env, subscriptiondomain.StatusHalted)
	case paymentdomain.EventSubscriptionCancelled:
		err = s.handleSubscriptionCancelled(ctx, env)
	case paymentdomain.EventPaymentCaptured:
		err = s.handlePayment(ctx, env, paymentdomain.TransactionStatusCaptured)
	case paymentdomain.EventPaymentFailed:
		err = s.handlePayment(ctx, env, paymentdomain.TransactionStatusFailed)
	default:
		s.log.Info("ignoring unhandled webhook event", zap.String("event", env.Event))
		return nil
	}

	if err == nil && s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookEvent(env.Event)
	}
	return err
}

func (s *Service) findRecord(ctx context.Context, gatewaySubscriptionID string) (*subscriptiondomain.Record, error) {
	if gatewaySubscriptionID == "" {
		return nil, nil
	}
	record, err := s.subRepo.FindByGatewaySubscriptionID(ctx, s.db, gatewaySubscriptionID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		s.log.Warn("webhook references unknown subscription",
			zap.String("gateway_subscription_id", gatewaySubscriptionID),
		)
	}
	return record, nil
}

func (s *Service) handleSubscriptionActivated(ctx context.Context, env *paymentdomain.EventEnvelope) error {
	entity := env.Payload.Subscription.Entity
	if entity == nil {
		return paymentdomain.ErrInvalidPayload
	}
	record, err := s.findRecord(ctx, entity.ID)
	if err != nil || record == nil {
		return err
	}

	now := s.clock.Now()
	if record.HasPendingUpgrade() && *record.PendingGatewaySubscriptionID == entity.ID {
		record.PlanID = *record.PendingPlanID
		record.BillingCycle = *record.PendingBillingCycle
		record.GatewaySubscriptionID = *record.PendingGatewaySubscriptionID
		record.ClearPending()
	}

	start := now
	if entity.CurrentStart > 0 {
		start = time.Unix(entity.CurrentStart, 0).UTC()
	}
	record.Status = subscriptiondomain.StatusActive
	record.CurrentPeriodStart = &start
	record.CurrentPeriodEnd = nil
	if entity.CurrentEnd > 0 {
		end := time.Unix(entity.CurrentEnd, 0).UTC()
		record.CurrentPeriodEnd = &end
	}
	record.CancelledAt = nil
	record.UpdatedAt = now

	if err := s.subRepo.Update(ctx, s.db, record); err != nil {
		return err
	}

	planID := record.PlanID
	if err := s.restaurantRepo.UpdatePlan(ctx, s.db, record.RestaurantID, &planID, now); err != nil {
		s.log.Warn("failed to denormalize plan onto restaurant",
			zap.String("restaurant_id", record.RestaurantID.String()),
			zap.Error(err),
		)
	}

	s.writeAuditLog(ctx, record, "subscription.activated", map[string]any{
		"source": "webhook",
	})
	return nil
}

func (s *Service) handleSubscriptionCharged(ctx context.Context, env *paymentdomain.EventEnvelope) error {
	entity := env.Payload.Subscription.Entity
	if entity == nil {
		return paymentdomain.ErrInvalidPayload
	}
	record, err := s.findRecord(ctx, entity.ID)
	if err != nil || record == nil {
		return err
	}

	now := s.clock.Now()
	if payment := env.Payload.Payment.Entity; payment != nil && payment.ID != "" {
		txn := &paymentdomain.Transaction{
			ID:                    s.genID.Generate(),
			UserID:                record.UserID,
			SubscriptionID:        record.ID,
			GatewayPaymentID:      payment.ID,
			GatewaySubscriptionID: entity.ID,
			Amount:                payment.Amount,
			Currency:              strings.ToUpper(payment.Currency),
			Status:                paymentdomain.TransactionStatusCaptured,
			PaymentMethod:         payment.Method,
			Metadata:              datatypes.JSONMap{"source": "webhook", "event": env.Event},
			CreatedAt:             now,
		}
		if _, err := s.repo.InsertTransaction(ctx, s.db, txn); err != nil {
			return err
		}
	}

	if entity.CurrentEnd > 0 {
		end := time.Unix(entity.CurrentEnd, 0).UTC()
		record.CurrentPeriodEnd = &end
		record.UpdatedAt = now
		if err := s.subRepo.Update(ctx, s.db, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) setSubscriptionStatus(ctx context.Context, env *paymentdomain.EventEnvelope, status subscriptiondomain.Status) error {
	entity := env.Payload.Subscription.Entity
	if entity == nil {
		return paymentdomain.ErrInvalidPayload
	}
	record, err := s.findRecord(ctx, entity.ID)
	if err != nil || record == nil {
		return err
	}

	record.Status = status
	record.UpdatedAt = s.clock.Now()
	return s.subRepo.Update(ctx, s.db, record)
}

func (s *Service) handleSubscriptionCancelled(ctx context.Context, env *paymentdomain.EventEnvelope) error {
	entity := env.Payload.Subscription.Entity
	if entity == nil {
		return paymentdomain.ErrInvalidPayload
	}
	record, err := s.findRecord(ctx, entity.ID)
	if err != nil || record == nil {
		return err
	}
	if record.Status == subscriptiondomain.StatusCancelled {
		return nil
	}

	now := s.clock.Now()
	record.Status = subscriptiondomain.StatusCancelled
	record.CancelledAt = &now
	record.UpdatedAt = now
	if err := s.subRepo.Update(ctx, s.db, record); err != nil {
		return err
	}

	s.writeAuditLog(ctx, record, "subscription.cancelled", map[string]any{
		"source": "webhook",
	})
	return nil
}

// handlePayment records standalone payment events. The user is
// resolved from the gateway notes; events without a user mapping are
// skipped since there is nothing to attach the transaction to.
func (s *Service) handlePayment(ctx context.Context, env *paymentdomain.EventEnvelope, status string) error {
	payment := env.Payload.Payment.Entity
	if payment == nil || payment.ID == "" {
		return paymentdomain.ErrInvalidPayload
	}

	rawUserID := strings.TrimSpace(payment.Notes["user_id"])
	if rawUserID == "" {
		s.log.Warn("payment event missing user mapping", zap.String("gateway_payment_id", payment.ID))
		return nil
	}
	userID, err := snowflake.ParseString(rawUserID)
	if err != nil {
		s.log.Warn("payment event carries malformed user id",
			zap.String("gateway_payment_id", payment.ID),
			zap.String("user_id", rawUserID),
		)
		return nil
	}

	var subscriptionID snowflake.ID
	if record, err := s.subRepo.FindByUserID(ctx, s.db, userID); err == nil && record != nil {
		subscriptionID = record.ID
	}

	txn := &paymentdomain.Transaction{
		ID:               s.genID.Generate(),
		UserID:           userID,
		SubscriptionID:   subscriptionID,
		GatewayPaymentID: payment.ID,
		Amount:           payment.Amount,
		Currency:         strings.ToUpper(payment.Currency),
		Status:           status,
		PaymentMethod:    payment.Method,
		Metadata:         datatypes.JSONMap{"source": "webhook", "event": env.Event},
		CreatedAt:        s.clock.Now(),
	}
	_, err = s.repo.InsertTransaction(ctx, s.db, txn)
	return err
}

// ListTransactions pages through a user's payment ledger, newest
// first.
func (s *Service) ListTransactions(ctx context.Context, req paymentdomain.ListTransactionsRequest) (*paymentdomain.ListTransactionsResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListTransactionsByUser(ctx, s.db, req.UserID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(txn *paymentdomain.Transaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        txn.ID.String(),
			CreatedAt: txn.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	transactions := make([]paymentdomain.Transaction, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		transactions = append(transactions, *item)
	}

	resp := &paymentdomain.ListTransactionsResponse{Transactions: transactions}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) writeAuditLog(ctx context.Context, record *subscriptiondomain.Record, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := record.GatewaySubscriptionID
	rid := record.RestaurantID
	if err := s.auditSvc.AuditLog(ctx, &rid, string(auditdomain.ActorTypeSystem), nil, action, "subscription", &targetID, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
