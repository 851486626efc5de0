package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/menuvia/menuvia/internal/audit/domain"
	auditcontext "github.com/menuvia/menuvia/internal/auditcontext"
	"github.com/menuvia/menuvia/internal/clock"
	obsmetrics "github.com/menuvia/menuvia/internal/observability/metrics"
	subscriptiondomain "github.com/menuvia/menuvia/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	SubRepo    subscriptiondomain.Repository
	AuditSvc   auditdomain.Service
	Config     Config              `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	subRepo    subscriptiondomain.Repository
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

// SweepSummary reports one expiry sweep execution.
type SweepSummary struct {
	CheckedAt    time.Time      `json:"checked_at"`
	TotalExpired int            `json:"total_expired"`
	Updated      []snowflake.ID `json:"updated"`
	Errors       []string       `json:"errors"`
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.SubRepo == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		subRepo:    p.SubRepo,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}, nil
}

// RunOnce expires every active subscription whose period end has
// passed. A failure on one record never aborts the rest of the sweep.
func (s *Scheduler) RunOnce(ctx context.Context) (*SweepSummary, error) {
	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeCron), "expiry-sweep")

	now := s.clock.Now()
	summary := &SweepSummary{
		CheckedAt: now,
		Updated:   []snowflake.ID{},
		Errors:    []string{},
	}

	for {
		batch, err := s.subRepo.ListExpired(ctx, s.db, now, s.cfg.BatchSize)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			break
		}

		progressed := false
		for i := range batch {
			record := &batch[i]
			if err := s.expireRecord(ctx, record, now); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", record.ID, err))
				s.log.Warn("failed to expire subscription",
					zap.String("subscription_id", record.ID.String()),
					zap.Error(err),
				)
				continue
			}
			progressed = true
			summary.TotalExpired++
			summary.Updated = append(summary.Updated, record.ID)
		}

		// Every record in the batch failed; bail out rather than
		// refetching the same rows forever.
		if !progressed {
			break
		}
		if len(batch) < s.cfg.BatchSize {
			break
		}
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordSweep(summary.TotalExpired, len(summary.Errors))
	}
	s.log.Info("expiry sweep finished",
		zap.Time("checked_at", summary.CheckedAt),
		zap.Int("total_expired", summary.TotalExpired),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (s *Scheduler) expireRecord(ctx context.Context, record *subscriptiondomain.Record, now time.Time) error {
	updated, err := s.subRepo.MarkExpired(ctx, s.db, record.ID, now)
	if err != nil {
		return err
	}
	if !updated {
		// Another writer moved the record out of active first.
		return nil
	}

	if s.auditSvc != nil {
		targetID := record.GatewaySubscriptionID
		rid := record.RestaurantID
		metadata := map[string]any{
			"plan_id": record.PlanID.String(),
		}
		if record.CurrentPeriodEnd != nil {
			metadata["period_end"] = record.CurrentPeriodEnd.UTC().Format(time.RFC3339)
		}
		if err := s.auditSvc.AuditLog(ctx, &rid, string(auditdomain.ActorTypeCron), nil, "subscription.expired", "subscription", &targetID, metadata); err != nil {
			s.log.Warn("failed to write audit log",
				zap.String("subscription_id", record.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("expiry sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
