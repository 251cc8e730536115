package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/bookhive/bookhive-backend/pkg/enums"
	"github.com/bookhive/bookhive-backend/pkg/logger"
	"github.com/bookhive/bookhive-backend/pkg/metrics"
)

// MonthlyResetJobParams configures the monthly booking-counter reset.
type MonthlyResetJobParams struct {
	Logger   *logger.Logger
	Repo     entitlementSweeper
	Metrics  *metrics.CronJobMetrics
	Tiers    []enums.PlanTier
	Location *time.Location
	Now      func() time.Time
}

// NewMonthlyResetJob constructs the sweep that zeroes monthly booking
// counters on the first day of each month.
func NewMonthlyResetJob(params MonthlyResetJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("entitlement repository required")
	}
	if len(params.Tiers) == 0 {
		params.Tiers = []enums.PlanTier{enums.PlanTierFree}
	}
	if params.Location == nil {
		params.Location = time.UTC
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &monthlyResetJob{
		logg:     params.Logger,
		repo:     params.Repo,
		metrics:  params.Metrics,
		tiers:    params.Tiers,
		location: params.Location,
		now:      params.Now,
	}, nil
}

type monthlyResetJob struct {
	logg     *logger.Logger
	repo     entitlementSweeper
	metrics  *metrics.CronJobMetrics
	tiers    []enums.PlanTier
	location *time.Location
	now      func() time.Time
}

func (j *monthlyResetJob) Name() string { return "monthly-booking-reset" }

// Run resets counters only on the first of the month in the configured
// timezone. Each row carries a reset stamp for the month, so a double fire
// on the same day touches nothing the second time and counters from
// bookings accepted between fires survive.
func (j *monthlyResetJob) Run(ctx context.Context) error {
	today := j.now().In(j.location)
	if today.Day() != 1 {
		j.logg.Info(ctx, "not the first of the month; skipping booking counter reset")
		return nil
	}

	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, j.location)
	affected, err := j.repo.ResetBookingsForTiers(ctx, j.tiers, monthStart)
	if err != nil {
		return fmt.Errorf("reset booking counters: %w", err)
	}

	j.metrics.AddProcessed(j.Name(), int(affected))
	logCtx := j.logg.WithFields(ctx, map[string]any{"reset": affected})
	j.logg.Info(logCtx, "monthly booking counter reset complete")
	return nil
}
