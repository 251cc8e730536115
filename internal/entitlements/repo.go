package entitlements

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookhive/bookhive-backend/internal/repo"
	"github.com/bookhive/bookhive-backend/pkg/db/models"
	"github.com/bookhive/bookhive-backend/pkg/enums"
	"github.com/bookhive/bookhive-backend/pkg/errors"
)

// Repository persists provider entitlement records and their usage
// counters. All counter mutations are single conditional UPDATEs so two
// concurrent callers can never both pass a limit check.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindByProvider(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error)
	EnsureRecord(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error)
	LockRecord(ctx context.Context, providerID uuid.UUID) error

	IncrementBookingsIfBelow(ctx context.Context, providerID uuid.UUID, max int) (bool, error)
	IncrementServiceUsageIfBelow(ctx context.Context, providerID uuid.UUID, maxServices int, newCategory bool, maxCategories int) (bool, error)
	DecrementServiceUsage(ctx context.Context, providerID uuid.UUID, categoryFreed bool) error

	UpdatePlan(ctx context.Context, providerID uuid.UUID, plan enums.PlanTier, expiry *time.Time) error
	ListExpiredPaid(ctx context.Context, asOf time.Time, limit int) ([]models.ProviderEntitlement, error)
	DowngradeToFree(ctx context.Context, providerID uuid.UUID, expiredAt time.Time) (bool, error)
	ResetBookingsForTiers(ctx context.Context, tiers []enums.PlanTier, monthStart time.Time) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds the GORM-backed entitlement repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindByProvider(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error) {
	var record models.ProviderEntitlement
	err := r.DB(ctx).
		Where("provider_id = ?", providerID).
		First(&record).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "entitlement record not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "fetching entitlement record")
	}
	return &record, nil
}

// EnsureRecord creates the free-tier entitlement row on first touch. The
// insert is idempotent under concurrency; the existing row always wins.
func (r *repository) EnsureRecord(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error) {
	record := models.ProviderEntitlement{
		ProviderID:  providerID,
		CurrentPlan: enums.PlanTierFree,
	}

	err := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_id"}},
			DoNothing: true,
		}).
		Create(&record).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "creating entitlement record")
	}

	return r.FindByProvider(ctx, providerID)
}

// LockRecord takes the provider row's write lock for the rest of the
// current transaction. Gated claims that have to read other tables before
// incrementing call this first, so concurrent claims for the same provider
// serialize instead of acting on the same stale read.
func (r *repository) LockRecord(ctx context.Context, providerID uuid.UUID) error {
	result := r.DB(ctx).
		Model(&models.ProviderEntitlement{}).
		Where("provider_id = ?", providerID).
		Update("updated_at", time.Now().UTC())
	if result.Error != nil {
		return errors.Wrap(errors.CodeInternal, result.Error, "locking entitlement record")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.CodeNotFound, "entitlement record not found")
	}
	return nil
}

// IncrementBookingsIfBelow bumps the monthly booking counter only when it
// is still under max. Max < 0 means unlimited and always increments.
func (r *repository) IncrementBookingsIfBelow(ctx context.Context, providerID uuid.UUID, max int) (bool, error) {
	query := r.DB(ctx).
		Model(&models.ProviderEntitlement{}).
		Where("provider_id = ?", providerID)
	if max >= 0 {
		query = query.Where("bookings_this_month < ?", max)
	}

	result := query.Updates(map[string]any{
		"bookings_this_month": gorm.Expr("bookings_this_month + 1"),
		"updated_at":          time.Now().UTC(),
	})
	if result.Error != nil {
		return false, errors.Wrap(errors.CodeInternal, result.Error, "incrementing booking counter")
	}
	return result.RowsAffected == 1, nil
}

// IncrementServiceUsageIfBelow bumps the active service counter, and the
// distinct category counter when the service introduces a new category,
// in one guarded statement. Negative maxima disable the matching guard.
func (r *repository) IncrementServiceUsageIfBelow(ctx context.Context, providerID uuid.UUID, maxServices int, newCategory bool, maxCategories int) (bool, error) {
	query := r.DB(ctx).
		Model(&models.ProviderEntitlement{}).
		Where("provider_id = ?", providerID)
	if maxServices >= 0 {
		query = query.Where("active_service_count < ?", maxServices)
	}

	updates := map[string]any{
		"active_service_count": gorm.Expr("active_service_count + 1"),
		"updated_at":           time.Now().UTC(),
	}
	if newCategory {
		if maxCategories >= 0 {
			query = query.Where("distinct_category_count < ?", maxCategories)
		}
		updates["distinct_category_count"] = gorm.Expr("distinct_category_count + 1")
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return false, errors.Wrap(errors.CodeInternal, result.Error, "incrementing service usage")
	}
	return result.RowsAffected == 1, nil
}

// DecrementServiceUsage lowers the counters when a service is deactivated,
// flooring both at zero.
func (r *repository) DecrementServiceUsage(ctx context.Context, providerID uuid.UUID, categoryFreed bool) error {
	updates := map[string]any{
		"active_service_count": gorm.Expr("CASE WHEN active_service_count > 0 THEN active_service_count - 1 ELSE 0 END"),
		"updated_at":           time.Now().UTC(),
	}
	if categoryFreed {
		updates["distinct_category_count"] = gorm.Expr("CASE WHEN distinct_category_count > 0 THEN distinct_category_count - 1 ELSE 0 END")
	}

	result := r.DB(ctx).
		Model(&models.ProviderEntitlement{}).
		Where("provider_id = ?", providerID).
		Updates(updates)
	if result.Error != nil {
		return errors.Wrap(errors.CodeInternal, result.Error, "decrementing service usage")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.CodeNotFound, "entitlement record not found")
	}
	return nil
}

func (r *repository) UpdatePlan(ctx context.Context, providerID uuid.UUID, plan enums.PlanTier, expiry *time.Time) error {
	result := r.DB(ctx).
		Model(&models.ProviderEntitlement{}).
		Where("provider_id = ?", providerID).
		Updates(map[string]any{
			"current_plan":     plan,
			"plan_expiry_date": expiry,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return errors.Wrap(errors.CodeInternal, result.Error, "updating plan")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.CodeNotFound, "entitlement record not found")
	}
	return nil
}

// ListExpiredPaid returns paid-tier records whose expiry has passed, for
// the downgrade sweep to process in batches.
func (r *repository) ListExpiredPaid(ctx context.Context, asOf time.Time, limit int) ([]models.ProviderEntitlement, error) {
	var records []models.ProviderEntitlement
	query := r.DB(ctx).
		Where("current_plan IN ?", []enums.PlanTier{enums.PlanTierBasic, enums.PlanTierPro}).
		Where("plan_expiry_date IS NOT NULL AND plan_expiry_date <= ?", asOf).
		Order("plan_expiry_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing expired subscriptions")
	}
	return records, nil
}

// DowngradeToFree moves an expired record back to the free tier. The
// guard re-checks expiry so a renewal landing between list and downgrade
// is never clobbered.
func (r *repository) DowngradeToFree(ctx context.Context, providerID uuid.UUID, expiredAt time.Time) (bool, error) {
	result := r.DB(ctx).
		Model(&models.ProviderEntitlement{}).
		Where("provider_id = ?", providerID).
		Where("current_plan IN ?", []enums.PlanTier{enums.PlanTierBasic, enums.PlanTierPro}).
		Where("plan_expiry_date IS NOT NULL AND plan_expiry_date <= ?", expiredAt).
		Updates(map[string]any{
			"current_plan":     enums.PlanTierFree,
			"plan_expiry_date": nil,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return false, errors.Wrap(errors.CodeInternal, result.Error, "downgrading expired plan")
	}
	return result.RowsAffected == 1, nil
}

// ResetBookingsForTiers zeroes the monthly booking counter for every
// provider on the given tiers not yet reset for the month beginning at
// monthStart. The stamp makes a second fire within the same month a true
// no-op, so bookings accepted after the first fire keep their count.
func (r *repository) ResetBookingsForTiers(ctx context.Context, tiers []enums.PlanTier, monthStart time.Time) (int64, error) {
	if len(tiers) == 0 {
		return 0, nil
	}
	result := r.DB(ctx).
		Model(&models.ProviderEntitlement{}).
		Where("current_plan IN ?", tiers).
		Where("bookings_reset_at IS NULL OR bookings_reset_at < ?", monthStart).
		Updates(map[string]any{
			"bookings_this_month": 0,
			"bookings_reset_at":   monthStart,
			"updated_at":          time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, errors.Wrap(errors.CodeInternal, result.Error, "resetting booking counters")
	}
	return result.RowsAffected, nil
}
