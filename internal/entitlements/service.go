package entitlements

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive-backend/pkg/db/models"
	"github.com/bookhive/bookhive-backend/pkg/errors"
	"github.com/bookhive/bookhive-backend/pkg/logger"
)

// CategoryUsage answers whether a provider already offers services in a
// category. Implemented by the catalog repository.
type CategoryUsage interface {
	ProviderUsesCategory(ctx context.Context, providerID, categoryID uuid.UUID) (bool, error)
}

// Service evaluates plan limits and consumes usage atomically. Read-only
// Can* checks are advisory; Consume* is the authoritative gate and must
// run inside the same transaction as the resource write it protects.
type Service interface {
	Plan(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error)

	CanCreateService(ctx context.Context, providerID, categoryID uuid.UUID) (Decision, error)
	CanReceiveBooking(ctx context.Context, providerID uuid.UUID) (Decision, error)

	ConsumeServiceSlot(ctx context.Context, tx *gorm.DB, providerID, categoryID uuid.UUID) (Decision, error)
	ConsumeBookingSlot(ctx context.Context, tx *gorm.DB, providerID uuid.UUID) (Decision, error)
	ReleaseServiceSlot(ctx context.Context, tx *gorm.DB, providerID uuid.UUID, categoryFreed bool) error
}

type service struct {
	repo          Repository
	categoryUsage CategoryUsage
	limits        Table
	logger        *logger.Logger
}

// Params carries the evaluator dependencies.
type Params struct {
	Repo          Repository
	CategoryUsage CategoryUsage
	Limits        Table
	Logger        *logger.Logger
}

// NewService wires the limit evaluator.
func NewService(params Params) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("entitlement repository required")
	}
	if params.CategoryUsage == nil {
		return nil, fmt.Errorf("category usage checker required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Limits == nil {
		params.Limits = DefaultTable()
	}

	return &service{
		repo:          params.Repo,
		categoryUsage: params.CategoryUsage,
		limits:        params.Limits,
		logger:        params.Logger,
	}, nil
}

// Plan returns the provider's entitlement record, creating the free-tier
// default on first touch.
func (s *service) Plan(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error) {
	if providerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "provider id required")
	}
	return s.repo.EnsureRecord(ctx, providerID)
}

func (s *service) CanCreateService(ctx context.Context, providerID, categoryID uuid.UUID) (Decision, error) {
	record, err := s.Plan(ctx, providerID)
	if err != nil {
		return Decision{}, err
	}

	limits := s.limits.For(record.CurrentPlan)
	decision := Decision{Plan: record.CurrentPlan}

	if limits.MaxActiveServices >= 0 && record.ActiveServiceCount >= limits.MaxActiveServices {
		decision.Reason = ReasonServiceLimitReached
		return decision, nil
	}

	newCategory, err := s.isNewCategory(ctx, providerID, categoryID)
	if err != nil {
		return Decision{}, err
	}
	if newCategory && limits.MaxCategories >= 0 && record.DistinctCategoryCount >= limits.MaxCategories {
		decision.Reason = ReasonCategoryLimitHit
		return decision, nil
	}

	decision.Allowed = true
	decision.Reason = ReasonWithinLimit
	if limits.MaxActiveServices == Unlimited {
		decision.Reason = ReasonUnlimited
	}
	return decision, nil
}

func (s *service) CanReceiveBooking(ctx context.Context, providerID uuid.UUID) (Decision, error) {
	record, err := s.Plan(ctx, providerID)
	if err != nil {
		return Decision{}, err
	}

	limits := s.limits.For(record.CurrentPlan)
	decision := Decision{Plan: record.CurrentPlan}

	if limits.MaxBookingsPerMonth == Unlimited {
		decision.Allowed = true
		decision.Reason = ReasonUnlimited
		return decision, nil
	}
	if record.BookingsThisMonth >= limits.MaxBookingsPerMonth {
		decision.Reason = ReasonBookingLimitReached
		return decision, nil
	}

	decision.Allowed = true
	decision.Reason = ReasonWithinLimit
	return decision, nil
}

// ConsumeServiceSlot claims one active-service slot (and one distinct
// category slot if the category is new to this provider) with a single
// guarded update. A false decision means a concurrent claim or the limit
// itself blocked it.
func (s *service) ConsumeServiceSlot(ctx context.Context, tx *gorm.DB, providerID, categoryID uuid.UUID) (Decision, error) {
	repo := s.repoFor(tx)

	record, err := repo.EnsureRecord(ctx, providerID)
	if err != nil {
		return Decision{}, err
	}
	limits := s.limits.For(record.CurrentPlan)
	decision := Decision{Plan: record.CurrentPlan}

	// The category lookup reads another table, so hold the provider's row
	// lock across it. Without this two concurrent claims for the same
	// category both see it as new and the distinct count drifts up.
	if err := repo.LockRecord(ctx, providerID); err != nil {
		return Decision{}, err
	}

	newCategory, err := s.isNewCategory(ctx, providerID, categoryID)
	if err != nil {
		return Decision{}, err
	}

	claimed, err := repo.IncrementServiceUsageIfBelow(ctx, providerID, limits.MaxActiveServices, newCategory, limits.MaxCategories)
	if err != nil {
		return Decision{}, err
	}
	if !claimed {
		decision.Reason = ReasonServiceLimitReached
		if newCategory && limits.MaxCategories >= 0 && record.DistinctCategoryCount >= limits.MaxCategories {
			decision.Reason = ReasonCategoryLimitHit
		}
		s.logger.Info(s.logger.WithProviderID(ctx, providerID.String()), "service slot denied")
		return decision, nil
	}

	decision.Allowed = true
	decision.Reason = ReasonWithinLimit
	if limits.MaxActiveServices == Unlimited {
		decision.Reason = ReasonUnlimited
	}
	return decision, nil
}

// ConsumeBookingSlot claims one monthly booking slot for the provider.
func (s *service) ConsumeBookingSlot(ctx context.Context, tx *gorm.DB, providerID uuid.UUID) (Decision, error) {
	repo := s.repoFor(tx)

	record, err := repo.EnsureRecord(ctx, providerID)
	if err != nil {
		return Decision{}, err
	}
	limits := s.limits.For(record.CurrentPlan)
	decision := Decision{Plan: record.CurrentPlan}

	claimed, err := repo.IncrementBookingsIfBelow(ctx, providerID, limits.MaxBookingsPerMonth)
	if err != nil {
		return Decision{}, err
	}
	if !claimed {
		decision.Reason = ReasonBookingLimitReached
		s.logger.Info(s.logger.WithProviderID(ctx, providerID.String()), "booking slot denied")
		return decision, nil
	}

	decision.Allowed = true
	decision.Reason = ReasonWithinLimit
	if limits.MaxBookingsPerMonth == Unlimited {
		decision.Reason = ReasonUnlimited
	}
	return decision, nil
}

func (s *service) ReleaseServiceSlot(ctx context.Context, tx *gorm.DB, providerID uuid.UUID, categoryFreed bool) error {
	return s.repoFor(tx).DecrementServiceUsage(ctx, providerID, categoryFreed)
}

func (s *service) repoFor(tx *gorm.DB) Repository {
	if tx == nil {
		return s.repo
	}
	return s.repo.WithTx(tx)
}

func (s *service) isNewCategory(ctx context.Context, providerID, categoryID uuid.UUID) (bool, error) {
	if categoryID == uuid.Nil {
		return false, errors.New(errors.CodeValidation, "category id required")
	}
	used, err := s.categoryUsage.ProviderUsesCategory(ctx, providerID, categoryID)
	if err != nil {
		return false, err
	}
	return !used, nil
}

// LimitError converts a denied decision into the typed error surfaced to
// callers, carrying the plan and reason as response details.
func LimitError(decision Decision) error {
	return errors.New(errors.CodeLimitExceeded, "plan limit reached").
		WithDetails(map[string]any{
			"plan":   decision.Plan.String(),
			"reason": string(decision.Reason),
		})
}
