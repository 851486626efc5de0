package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/menuvia/menuvia/internal/clock"
	"github.com/menuvia/menuvia/internal/config"
	"github.com/menuvia/menuvia/internal/gateway"
	paymentdomain "github.com/menuvia/menuvia/internal/payment/domain"
	paymentrepo "github.com/menuvia/menuvia/internal/payment/repository"
	paymentservice "github.com/menuvia/menuvia/internal/payment/service"
	plandomain "github.com/menuvia/menuvia/internal/plan/domain"
	restaurantdomain "github.com/menuvia/menuvia/internal/restaurant/domain"
	restaurantrepo "github.com/menuvia/menuvia/internal/restaurant/repository"
	subscriptiondomain "github.com/menuvia/menuvia/internal/subscription/domain"
	subscriptionrepo "github.com/menuvia/menuvia/internal/subscription/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test"

type noopAuditService struct{}

func (noopAuditService) AuditLog(ctx context.Context, restaurantID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&paymentdomain.WebhookEvent{},
		&paymentdomain.Transaction{},
		&subscriptiondomain.Record{},
		&restaurantdomain.Restaurant{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db           *gorm.DB
	svc          paymentdomain.Service
	clk          *clock.FakeClock
	genID        *snowflake.Node
	userID       snowflake.ID
	restaurantID snowflake.ID
	planID       snowflake.ID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	env := &testEnv{
		db:           db,
		clk:          clk,
		genID:        node,
		userID:       node.Generate(),
		restaurantID: node.Generate(),
		planID:       node.Generate(),
	}

	restaurant := restaurantdomain.Restaurant{
		ID:          env.restaurantID,
		OwnerUserID: env.userID,
		Name:        "Test Kitchen",
		Slug:        "test-kitchen",
		CreatedAt:   clk.Now(),
		UpdatedAt:   clk.Now(),
	}
	if err := db.Create(&restaurant).Error; err != nil {
		t.Fatalf("seed restaurant: %v", err)
	}

	processor := paymentservice.NewService(paymentservice.Params{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          node,
		Clock:          clk,
		SubRepo:        subscriptionrepo.Provide(),
		RestaurantRepo: restaurantrepo.Provide(),
		AuditSvc:       noopAuditService{},
		Repo:           paymentrepo.Provide(),
	})
	env.svc = NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Cfg:        config.Config{Gateway: config.GatewayConfig{WebhookSecret: testWebhookSecret}},
		PaymentSvc: processor,
		Repo:       paymentrepo.Provide(),
	})
	return env
}

func (env *testEnv) seedSubscription(t *testing.T, gatewaySubID string, status subscriptiondomain.Status) *subscriptiondomain.Record {
	t.Helper()
	record := &subscriptiondomain.Record{
		ID:                    env.genID.Generate(),
		UserID:                env.userID,
		RestaurantID:          env.restaurantID,
		PlanID:                env.planID,
		BillingCycle:          "monthly",
		GatewaySubscriptionID: gatewaySubID,
		Status:                status,
		CreatedAt:             env.clk.Now(),
		UpdatedAt:             env.clk.Now(),
	}
	if err := env.db.Create(record).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return record
}

func (env *testEnv) ingest(t *testing.T, body string) (*paymentdomain.IngestResult, error) {
	t.Helper()
	sig := gateway.WebhookSignature(testWebhookSecret, []byte(body))
	return env.svc.IngestWebhook(context.Background(), []byte(body), sig)
}

func (env *testEnv) assertCount(t *testing.T, table string, want int64) {
	t.Helper()
	var got int64
	if err := env.db.Table(table).Count(&got).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	if got != want {
		t.Fatalf("expected %d rows in %s, got %d", want, table, got)
	}
}

func TestIngestWebhook_ReplayDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	env.seedSubscription(t, "sub_100", subscriptiondomain.StatusActive)

	body := `{"id":"evt_100","event":"subscription.charged","payload":{
		"subscription":{"entity":{"id":"sub_100","status":"active","current_end":1712000000}},
		"payment":{"entity":{"id":"pay_100","amount":29900,"currency":"INR","status":"captured","method":"upi"}}}}`

	first, err := env.ingest(t, body)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if first.Duplicate {
		t.Fatalf("first delivery must not be a duplicate")
	}

	second, err := env.ingest(t, body)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("replay must be reported as duplicate")
	}

	env.assertCount(t, "webhook_events", 1)
	env.assertCount(t, "payment_transactions", 1)
}

func TestIngestWebhook_RejectsTamperedBody(t *testing.T) {
	env := newTestEnv(t)

	body := `{"id":"evt_101","event":"subscription.charged","payload":{}}`
	sig := gateway.WebhookSignature(testWebhookSecret, []byte(body))
	tampered := strings.Replace(body, "evt_101", "evt_102", 1)

	_, err := env.svc.IngestWebhook(context.Background(), []byte(tampered), sig)
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	env.assertCount(t, "webhook_events", 0)
}

func TestIngestWebhook_MissingSecretRejectsAll(t *testing.T) {
	env := newTestEnv(t)
	svc := NewService(Params{
		DB:    env.db,
		Log:   zap.NewNop(),
		GenID: env.genID,
		Clock: env.clk,
		Cfg:   config.Config{},
		Repo:  paymentrepo.Provide(),
	})

	body := []byte(`{"id":"evt_1","event":"subscription.charged"}`)
	_, err := svc.IngestWebhook(context.Background(), body, gateway.WebhookSignature("", body))
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestIngestWebhook_RejectsMalformedPayload(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.ingest(t, `not json at all`); !errors.Is(err, paymentdomain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for garbage, got %v", err)
	}
	if _, err := env.ingest(t, `{"id":"evt_1","payload":{}}`); !errors.Is(err, paymentdomain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for missing event, got %v", err)
	}
	env.assertCount(t, "webhook_events", 0)
}

func TestIngestWebhook_ContentHashFallbackID(t *testing.T) {
	env := newTestEnv(t)

	body := `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_200","amount":29900,"currency":"INR","status":"captured","notes":[]}}}}`
	first, err := env.ingest(t, body)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.HasPrefix(first.EventID, "evt_") || len(first.EventID) != len("evt_")+64 {
		t.Fatalf("expected content hash event id, got %s", first.EventID)
	}

	second, err := env.ingest(t, body)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Duplicate || second.EventID != first.EventID {
		t.Fatalf("replay of an id-less delivery must deduplicate: %+v", second)
	}
}

func TestIngestWebhook_UnknownEventAcknowledged(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.ingest(t, `{"id":"evt_300","event":"invoice.paid","payload":{}}`)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Duplicate {
		t.Fatalf("unexpected duplicate")
	}

	var event paymentdomain.WebhookEvent
	if err := env.db.First(&event, "event_id = ?", "evt_300").Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.ProcessedAt == nil {
		t.Fatalf("unknown events are acknowledged and marked processed")
	}
}

func TestIngestWebhook_HandlerFailureStillAcknowledged(t *testing.T) {
	env := newTestEnv(t)

	// subscription.activated without a subscription entity makes the
	// handler fail after the ledger row is written.
	result, err := env.ingest(t, `{"id":"evt_400","event":"subscription.activated","payload":{}}`)
	if err != nil {
		t.Fatalf("ingest must acknowledge handler failures, got %v", err)
	}
	if result.EventID != "evt_400" {
		t.Fatalf("unexpected result: %+v", result)
	}

	var event paymentdomain.WebhookEvent
	if err := env.db.First(&event, "event_id = ?", "evt_400").Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.ProcessedAt != nil {
		t.Fatalf("failed events must not be marked processed")
	}
}

func TestIngestWebhook_ActivatedPromotesStagedUpgrade(t *testing.T) {
	env := newTestEnv(t)
	record := env.seedSubscription(t, "sub_old", subscriptiondomain.StatusActive)
	pendingPlan := env.genID.Generate()
	pendingCycle := plandomain.BillingCycleYearly
	pendingSub := "sub_new"
	record.PendingPlanID = &pendingPlan
	record.PendingGatewaySubscriptionID = &pendingSub
	record.PendingBillingCycle = &pendingCycle
	if err := env.db.Save(record).Error; err != nil {
		t.Fatalf("stage upgrade: %v", err)
	}

	body := `{"id":"evt_500","event":"subscription.activated","payload":{
		"subscription":{"entity":{"id":"sub_new","status":"active","current_start":1709280000,"current_end":1740816000,"notes":[]}}}}`
	if _, err := env.ingest(t, body); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var updated subscriptiondomain.Record
	if err := env.db.First(&updated, "user_id = ?", env.userID).Error; err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	if updated.GatewaySubscriptionID != "sub_new" || updated.PlanID != pendingPlan {
		t.Fatalf("expected staged upgrade promoted: %+v", updated)
	}
	if updated.HasPendingUpgrade() {
		t.Fatalf("staged columns must be cleared after promotion")
	}
	if updated.CurrentPeriodStart == nil || updated.CurrentPeriodStart.Unix() != 1709280000 {
		t.Fatalf("expected period start from entity, got %v", updated.CurrentPeriodStart)
	}
	if updated.CurrentPeriodEnd == nil || updated.CurrentPeriodEnd.Unix() != 1740816000 {
		t.Fatalf("expected period end from entity, got %v", updated.CurrentPeriodEnd)
	}
}

func TestIngestWebhook_HaltedMarksSubscription(t *testing.T) {
	env := newTestEnv(t)
	env.seedSubscription(t, "sub_100", subscriptiondomain.StatusActive)

	body := `{"id":"evt_600","event":"subscription.halted","payload":{
		"subscription":{"entity":{"id":"sub_100","status":"halted"}}}}`
	if _, err := env.ingest(t, body); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var updated subscriptiondomain.Record
	if err := env.db.First(&updated, "user_id = ?", env.userID).Error; err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	if updated.Status != subscriptiondomain.StatusHalted {
		t.Fatalf("expected halted, got %s", updated.Status)
	}
}

func TestIngestWebhook_PaymentCapturedAttachesToUser(t *testing.T) {
	env := newTestEnv(t)
	record := env.seedSubscription(t, "sub_100", subscriptiondomain.StatusActive)

	body := fmt.Sprintf(`{"id":"evt_700","event":"payment.captured","payload":{
		"payment":{"entity":{"id":"pay_700","amount":29900,"currency":"inr","status":"captured","method":"card","notes":{"user_id":"%s"}}}}}`,
		env.userID.String())
	if _, err := env.ingest(t, body); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var txn paymentdomain.Transaction
	if err := env.db.First(&txn, "gateway_payment_id = ?", "pay_700").Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.UserID != env.userID || txn.SubscriptionID != record.ID {
		t.Fatalf("expected transaction attached to user and subscription: %+v", txn)
	}
	if txn.Currency != "INR" || txn.Status != paymentdomain.TransactionStatusCaptured {
		t.Fatalf("unexpected transaction row: %+v", txn)
	}
}

func TestIngestWebhook_PaymentWithoutUserMappingSkipped(t *testing.T) {
	env := newTestEnv(t)

	body := `{"id":"evt_800","event":"payment.failed","payload":{
		"payment":{"entity":{"id":"pay_800","amount":29900,"currency":"INR","status":"failed","notes":[]}}}}`
	if _, err := env.ingest(t, body); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	env.assertCount(t, "payment_transactions", 0)
}
