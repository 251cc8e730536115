package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/bookhive/bookhive-backend/pkg/db/models"
	"github.com/bookhive/bookhive-backend/pkg/enums"
	"github.com/bookhive/bookhive-backend/pkg/logger"
	"github.com/bookhive/bookhive-backend/pkg/metrics"
)

const defaultExpiryBatchSize = 500

// entitlementSweeper is the slice of the entitlement repository the
// sweeps depend on.
type entitlementSweeper interface {
	ListExpiredPaid(ctx context.Context, asOf time.Time, limit int) ([]models.ProviderEntitlement, error)
	DowngradeToFree(ctx context.Context, providerID uuid.UUID, expiredAt time.Time) (bool, error)
	ResetBookingsForTiers(ctx context.Context, tiers []enums.PlanTier, monthStart time.Time) (int64, error)
}

// SubscriptionExpiryJobParams configures the daily downgrade sweep.
type SubscriptionExpiryJobParams struct {
	Logger    *logger.Logger
	Repo      entitlementSweeper
	Metrics   *metrics.CronJobMetrics
	BatchSize int
	Now       func() time.Time
}

// NewSubscriptionExpiryJob constructs the sweep that moves lapsed paid
// plans back to the free tier.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("entitlement repository required")
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultExpiryBatchSize
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &subscriptionExpiryJob{
		logg:      params.Logger,
		repo:      params.Repo,
		metrics:   params.Metrics,
		batchSize: params.BatchSize,
		now:       params.Now,
	}, nil
}

type subscriptionExpiryJob struct {
	logg      *logger.Logger
	repo      entitlementSweeper
	metrics   *metrics.CronJobMetrics
	batchSize int
	now       func() time.Time
}

func (j *subscriptionExpiryJob) Name() string { return "subscription-expiry" }

// Run downgrades every paid plan whose expiry has passed. Each record is
// its own guarded update, so a failure or crash mid-sweep leaves the rest
// for the next cycle and reruns are no-ops.
func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	downgraded := 0
	var errs []error

	for {
		records, err := j.repo.ListExpiredPaid(ctx, asOf, j.batchSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("query expired subscriptions: %w", err))
			break
		}
		if len(records) == 0 {
			break
		}

		progressed := false
		for _, record := range records {
			changed, err := j.repo.DowngradeToFree(ctx, record.ProviderID, asOf)
			if err != nil {
				errs = append(errs, fmt.Errorf("downgrade provider %s: %w", record.ProviderID, err))
				continue
			}
			if changed {
				downgraded++
				progressed = true
			}
		}

		// Every remaining record failed or was renewed mid-sweep; stop
		// rather than spin on the same batch.
		if !progressed {
			break
		}
		if len(records) < j.batchSize {
			break
		}
	}

	j.metrics.AddProcessed(j.Name(), downgraded)
	logCtx := j.logg.WithFields(ctx, map[string]any{"downgraded": downgraded})
	j.logg.Info(logCtx, "subscription expiry sweep complete")
	return multierr.Combine(errs...)
}
