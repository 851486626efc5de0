package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/menuvia/menuvia/internal/audit/domain"
	"github.com/menuvia/menuvia/internal/clock"
	"github.com/menuvia/menuvia/internal/config"
	"github.com/menuvia/menuvia/internal/gateway"
	paymentdomain "github.com/menuvia/menuvia/internal/payment/domain"
	plandomain "github.com/menuvia/menuvia/internal/plan/domain"
	restaurantdomain "github.com/menuvia/menuvia/internal/restaurant/domain"
	"github.com/menuvia/menuvia/internal/subscription/domain"
	"gorm.io/datatypes"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// gatewaySubscriptionTotalCount makes the gateway subscription
// effectively unbounded; expiry is enforced locally by the sweeper.
const gatewaySubscriptionTotalCount = 1200

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Cfg            config.Config
	Gateway        *gateway.Client
	PlanSvc        plandomain.Service
	RestaurantRepo restaurantdomain.Repository
	PaymentRepo    paymentdomain.Repository
	AuditSvc       auditdomain.Service
	Repo           domain.Repository
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	cfg            config.Config
	gateway        *gateway.Client
	planSvc        plandomain.Service
	restaurantRepo restaurantdomain.Repository
	paymentRepo    paymentdomain.Repository
	auditSvc       auditdomain.Service
	repo           domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("subscription.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		cfg:            p.Cfg,
		gateway:        p.Gateway,
		planSvc:        p.PlanSvc,
		restaurantRepo: p.RestaurantRepo,
		paymentRepo:    p.PaymentRepo,
		auditSvc:       p.AuditSvc,
		repo:           p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSubscriptionRequest) (*domain.CreateSubscriptionResponse, error) {
	if !req.BillingCycle.Valid() {
		return nil, domain.ErrInvalidBillingCycle
	}
	if !s.gateway.Configured() {
		return nil, domain.ErrGatewayNotConfigured
	}

	plan, err := s.planSvc.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	restaurant, err := s.restaurantRepo.FindByOwner(ctx, s.db, req.UserID)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return nil, restaurantdomain.ErrRestaurantNotFound
	}

	gatewayPlanID, err := s.ensureGatewayPlan(ctx, plan, req.BillingCycle)
	if err != nil {
		return nil, err
	}

	gatewaySub, err := s.gateway.CreateSubscription(ctx, gateway.CreateSubscriptionRequest{
		PlanID:     gatewayPlanID,
		TotalCount: gatewaySubscriptionTotalCount,
		Notes: map[string]string{
			"user_id":       req.UserID.String(),
			"plan_id":       req.PlanID.String(),
			"billing_cycle": string(req.BillingCycle),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.persistCheckout(ctx, req, restaurant.ID, gatewaySub.ID); err != nil {
		return nil, err
	}

	s.writeAuditLog(ctx, restaurant.ID, req.UserID, "subscription.checkout_started", gatewaySub.ID, map[string]any{
		"plan_id":       req.PlanID.String(),
		"billing_cycle": string(req.BillingCycle),
	})

	return &domain.CreateSubscriptionResponse{
		GatewaySubscriptionID: gatewaySub.ID,
		KeyID:                 s.gateway.KeyID(),
	}, nil
}

// ensureGatewayPlan reuses a gateway plan whose name and amount both
// match, so repeated checkouts never litter the gateway catalog.
func (s *Service) ensureGatewayPlan(ctx context.Context, plan *plandomain.Plan, cycle plandomain.BillingCycle) (string, error) {
	name := fmt.Sprintf("%s-%s", plan.Slug, cycle)
	amount := plan.PriceFor(cycle)
	period := "monthly"
	if cycle == plandomain.BillingCycleYearly {
		period = "yearly"
	}

	existing, err := s.gateway.ListPlans(ctx)
	if err != nil {
		return "", err
	}
	for _, candidate := range existing {
		if candidate.Item.Name == name && candidate.Item.Amount == amount {
			return candidate.ID, nil
		}
	}

	created, err := s.gateway.CreatePlan(ctx, gateway.CreatePlanRequest{
		Period:   period,
		Interval: 1,
		Item: gateway.PlanItem{
			Name:     name,
			Amount:   amount,
			Currency: "INR",
		},
	})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// persistCheckout stages or creates the local record. An active
// subscription keeps serving its current plan; the new gateway
// subscription waits in the pending_* columns until verified.
func (s *Service) persistCheckout(ctx context.Context, req domain.CreateSubscriptionRequest, restaurantID snowflake.ID, gatewaySubscriptionID string) error {
	now := s.clock.Now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.FindByUserIDForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		if record == nil {
			record = &domain.Record{
				ID:                    s.genID.Generate(),
				UserID:                req.UserID,
				RestaurantID:          restaurantID,
				PlanID:                req.PlanID,
				BillingCycle:          req.BillingCycle,
				GatewaySubscriptionID: gatewaySubscriptionID,
				Status:                domain.StatusPending,
				CreatedAt:             now,
				UpdatedAt:             now,
			}
			return s.repo.Insert(ctx, tx, record)
		}

		if record.Status == domain.StatusActive {
			pendingPlan := req.PlanID
			pendingCycle := req.BillingCycle
			record.PendingPlanID = &pendingPlan
			record.PendingGatewaySubscriptionID = &gatewaySubscriptionID
			record.PendingBillingCycle = &pendingCycle
			record.UpdatedAt = now
			return s.repo.Update(ctx, tx, record)
		}

		// Inactive record: overwrite in place and start over as pending.
		record.PlanID = req.PlanID
		record.BillingCycle = req.BillingCycle
		record.GatewaySubscriptionID = gatewaySubscriptionID
		record.Status = domain.StatusPending
		record.CurrentPeriodStart = nil
		record.CurrentPeriodEnd = nil
		record.CancelledAt = nil
		record.ClearPending()
		record.UpdatedAt = now
		return s.repo.Update(ctx, tx, record)
	})
}

func (s *Service) VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) error {
	paymentID := strings.TrimSpace(req.PaymentID)
	gatewaySubID := strings.TrimSpace(req.GatewaySubscriptionID)
	if paymentID == "" || gatewaySubID == "" {
		return domain.ErrInvalidPaymentSignature
	}

	if !gateway.VerifyPaymentSignature(s.cfg.Gateway.KeySecret, paymentID, gatewaySubID, strings.TrimSpace(req.Signature)) {
		return domain.ErrInvalidPaymentSignature
	}

	payment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Status != gateway.PaymentStatusCaptured && payment.Status != gateway.PaymentStatusAuthorized {
		return domain.ErrPaymentNotSuccessful
	}

	now := s.clock.Now()
	var activated *domain.Record

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.FindByUserIDForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrSubscriptionNotFound
		}

		switch {
		case record.HasPendingUpgrade() && *record.PendingGatewaySubscriptionID == gatewaySubID:
			// Staged upgrade paid: retire the old gateway subscription
			// and promote the pending plan.
			oldGatewaySubID := record.GatewaySubscriptionID
			record.PlanID = *record.PendingPlanID
			record.BillingCycle = *record.PendingBillingCycle
			record.GatewaySubscriptionID = *record.PendingGatewaySubscriptionID
			record.ClearPending()
			s.cancelGatewaySubscription(ctx, oldGatewaySubID)
		case record.GatewaySubscriptionID == gatewaySubID:
		default:
			return domain.ErrSubscriptionNotFound
		}

		periodEnd := domain.PeriodEnd(now, record.BillingCycle)
		record.Status = domain.StatusActive
		record.CurrentPeriodStart = &now
		record.CurrentPeriodEnd = &periodEnd
		record.CancelledAt = nil
		record.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, record); err != nil {
			return err
		}
		activated = record
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.recordTransaction(ctx, activated, payment, now); err != nil {
		return err
	}

	planID := activated.PlanID
	if err := s.restaurantRepo.UpdatePlan(ctx, s.db, activated.RestaurantID, &planID, now); err != nil {
		s.log.Warn("failed to denormalize plan onto restaurant",
			zap.String("restaurant_id", activated.RestaurantID.String()),
			zap.Error(err),
		)
	}

	s.writeAuditLog(ctx, activated.RestaurantID, req.UserID, "subscription.activated", activated.GatewaySubscriptionID, map[string]any{
		"plan_id":       activated.PlanID.String(),
		"billing_cycle": string(activated.BillingCycle),
		"payment_id":    paymentID,
	})
	return nil
}

// recordTransaction appends to the payment ledger. A duplicate gateway
// payment id means the payment was already recorded by an earlier
// verify or a webhook; that is not an error.
func (s *Service) recordTransaction(ctx context.Context, record *domain.Record, payment *gateway.Payment, now time.Time) error {
	txn := &paymentdomain.Transaction{
		ID:                    s.genID.Generate(),
		UserID:                record.UserID,
		SubscriptionID:        record.ID,
		GatewayPaymentID:      payment.ID,
		GatewaySubscriptionID: record.GatewaySubscriptionID,
		Amount:                payment.Amount,
		Currency:              strings.ToUpper(payment.Currency),
		Status:                paymentdomain.TransactionStatusCaptured,
		PaymentMethod:         payment.Method,
		Metadata:              datatypes.JSONMap{"source": "verify"},
		CreatedAt:             now,
	}
	_, err := s.paymentRepo.InsertTransaction(ctx, s.db, txn)
	return err
}

func (s *Service) cancelGatewaySubscription(ctx context.Context, gatewaySubscriptionID string) {
	if gatewaySubscriptionID == "" {
		return
	}
	if _, err := s.gateway.CancelSubscription(ctx, gatewaySubscriptionID); err != nil {
		s.log.Warn("failed to cancel gateway subscription",
			zap.String("gateway_subscription_id", gatewaySubscriptionID),
			zap.Error(err),
		)
	}
}

func (s *Service) Cancel(ctx context.Context, userID snowflake.ID) (*domain.CancelSubscriptionResponse, error) {
	now := s.clock.Now()
	var cancelled *domain.Record

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.FindByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrSubscriptionNotFound
		}
		if record.Status == domain.StatusCancelled {
			return domain.ErrAlreadyCancelled
		}

		record.Status = domain.StatusCancelled
		record.CancelledAt = &now
		record.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, record); err != nil {
			return err
		}
		cancelled = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Gateway cancellation is best-effort; the local record is already
	// terminal and a later cancelled webhook is a no-op.
	s.cancelGatewaySubscription(ctx, cancelled.GatewaySubscriptionID)
	if cancelled.PendingGatewaySubscriptionID != nil {
		s.cancelGatewaySubscription(ctx, *cancelled.PendingGatewaySubscriptionID)
	}

	remainingDays := 0
	if cancelled.CurrentPeriodEnd != nil {
		if d := int(cancelled.CurrentPeriodEnd.Sub(now).Hours() / 24); d > 0 {
			remainingDays = d
		}
	}
	s.writeAuditLog(ctx, cancelled.RestaurantID, userID, "subscription.cancelled", cancelled.GatewaySubscriptionID, map[string]any{
		"remaining_days": remainingDays,
		"no_refund":      true,
	})

	return &domain.CancelSubscriptionResponse{
		Status:      cancelled.Status,
		CancelledAt: cancelled.CancelledAt,
	}, nil
}

func (s *Service) Status(ctx context.Context, userID snowflake.ID) (*domain.StatusResponse, error) {
	record, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &domain.StatusResponse{HasSubscription: false}, nil
	}

	resp := &domain.StatusResponse{
		HasSubscription:  true,
		Status:           record.Status,
		PlanID:           &record.PlanID,
		BillingCycle:     record.BillingCycle,
		CurrentPeriodEnd: record.CurrentPeriodEnd,
		PendingPlanID:    record.PendingPlanID,
	}

	if plan, err := s.planSvc.Get(ctx, record.PlanID); err == nil {
		resp.PlanName = plan.Name
	}

	now := s.clock.Now()
	if record.Status == domain.StatusActive && record.CurrentPeriodEnd != nil && record.CurrentPeriodEnd.After(now) {
		resp.IsActive = true
		resp.DaysRemaining = int(record.CurrentPeriodEnd.Sub(now).Hours() / 24)
	}
	return resp, nil
}

func (s *Service) writeAuditLog(ctx context.Context, restaurantID snowflake.ID, userID snowflake.ID, action string, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorID := userID.String()
	rid := restaurantID
	if err := s.auditSvc.AuditLog(ctx, &rid, string(auditdomain.ActorTypeUser), &actorID, action, "subscription", &targetID, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
