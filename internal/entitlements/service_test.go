package entitlements

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive-backend/pkg/db/models"
	"github.com/bookhive/bookhive-backend/pkg/enums"
	"github.com/bookhive/bookhive-backend/pkg/errors"
	"github.com/bookhive/bookhive-backend/pkg/logger"
)

type stubRepo struct {
	record        *models.ProviderEntitlement
	bookingGrant  bool
	serviceGrant  bool
	ensureErr     error
	lockErr       error
	incrementErr  error
	decrementArgs []bool
	calls         *[]string
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindByProvider(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error) {
	if s.record == nil {
		return nil, errors.New(errors.CodeNotFound, "entitlement record not found")
	}
	return s.record, nil
}

func (s *stubRepo) EnsureRecord(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error) {
	if s.ensureErr != nil {
		return nil, s.ensureErr
	}
	if s.record == nil {
		s.record = &models.ProviderEntitlement{
			ProviderID:  providerID,
			CurrentPlan: enums.PlanTierFree,
		}
	}
	return s.record, nil
}

func (s *stubRepo) LockRecord(ctx context.Context, providerID uuid.UUID) error {
	if s.calls != nil {
		*s.calls = append(*s.calls, "lock")
	}
	return s.lockErr
}

func (s *stubRepo) IncrementBookingsIfBelow(ctx context.Context, providerID uuid.UUID, max int) (bool, error) {
	if s.incrementErr != nil {
		return false, s.incrementErr
	}
	return s.bookingGrant, nil
}

func (s *stubRepo) IncrementServiceUsageIfBelow(ctx context.Context, providerID uuid.UUID, maxServices int, newCategory bool, maxCategories int) (bool, error) {
	if s.incrementErr != nil {
		return false, s.incrementErr
	}
	return s.serviceGrant, nil
}

func (s *stubRepo) DecrementServiceUsage(ctx context.Context, providerID uuid.UUID, categoryFreed bool) error {
	s.decrementArgs = append(s.decrementArgs, categoryFreed)
	return nil
}

func (s *stubRepo) UpdatePlan(ctx context.Context, providerID uuid.UUID, plan enums.PlanTier, expiry *time.Time) error {
	return nil
}

func (s *stubRepo) ListExpiredPaid(ctx context.Context, asOf time.Time, limit int) ([]models.ProviderEntitlement, error) {
	return nil, nil
}

func (s *stubRepo) DowngradeToFree(ctx context.Context, providerID uuid.UUID, expiredAt time.Time) (bool, error) {
	return false, nil
}

func (s *stubRepo) ResetBookingsForTiers(ctx context.Context, tiers []enums.PlanTier, monthStart time.Time) (int64, error) {
	return 0, nil
}

type stubCategoryUsage struct {
	used  bool
	err   error
	calls *[]string
}

func (s *stubCategoryUsage) ProviderUsesCategory(ctx context.Context, providerID, categoryID uuid.UUID) (bool, error) {
	if s.calls != nil {
		*s.calls = append(*s.calls, "category-read")
	}
	return s.used, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

func newTestService(t *testing.T, repo Repository, usage CategoryUsage) Service {
	t.Helper()
	svc, err := NewService(Params{
		Repo:          repo,
		CategoryUsage: usage,
		Limits:        DefaultTable(),
		Logger:        testLogger(),
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceValidatesDeps(t *testing.T) {
	_, err := NewService(Params{CategoryUsage: &stubCategoryUsage{}, Logger: testLogger()})
	require.EqualError(t, err, "entitlement repository required")

	_, err = NewService(Params{Repo: &stubRepo{}, Logger: testLogger()})
	require.EqualError(t, err, "category usage checker required")

	_, err = NewService(Params{Repo: &stubRepo{}, CategoryUsage: &stubCategoryUsage{}})
	require.EqualError(t, err, "logger required")
}

func TestCanReceiveBookingFreeTier(t *testing.T) {
	repo := &stubRepo{record: &models.ProviderEntitlement{
		ProviderID:        uuid.New(),
		CurrentPlan:       enums.PlanTierFree,
		BookingsThisMonth: 4,
	}}
	svc := newTestService(t, repo, &stubCategoryUsage{})

	decision, err := svc.CanReceiveBooking(context.Background(), repo.record.ProviderID)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, ReasonWithinLimit, decision.Reason)
	require.Equal(t, enums.PlanTierFree, decision.Plan)

	repo.record.BookingsThisMonth = 5
	decision, err = svc.CanReceiveBooking(context.Background(), repo.record.ProviderID)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonBookingLimitReached, decision.Reason)
}

func TestCanReceiveBookingUnlimitedTier(t *testing.T) {
	repo := &stubRepo{record: &models.ProviderEntitlement{
		ProviderID:        uuid.New(),
		CurrentPlan:       enums.PlanTierPro,
		BookingsThisMonth: 9000,
	}}
	svc := newTestService(t, repo, &stubCategoryUsage{})

	decision, err := svc.CanReceiveBooking(context.Background(), repo.record.ProviderID)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, ReasonUnlimited, decision.Reason)
}

func TestCanCreateServiceFreeTierCaps(t *testing.T) {
	repo := &stubRepo{record: &models.ProviderEntitlement{
		ProviderID:         uuid.New(),
		CurrentPlan:        enums.PlanTierFree,
		ActiveServiceCount: 1,
	}}
	svc := newTestService(t, repo, &stubCategoryUsage{})

	decision, err := svc.CanCreateService(context.Background(), repo.record.ProviderID, uuid.New())
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonServiceLimitReached, decision.Reason)
}

func TestCanCreateServiceCategoryCap(t *testing.T) {
	repo := &stubRepo{record: &models.ProviderEntitlement{
		ProviderID:            uuid.New(),
		CurrentPlan:           enums.PlanTierBasic,
		ActiveServiceCount:    3,
		DistinctCategoryCount: 3,
	}}

	// New category while at the distinct-category cap.
	svc := newTestService(t, repo, &stubCategoryUsage{used: false})
	decision, err := svc.CanCreateService(context.Background(), repo.record.ProviderID, uuid.New())
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonCategoryLimitHit, decision.Reason)

	// Existing category passes.
	svc = newTestService(t, repo, &stubCategoryUsage{used: true})
	decision, err = svc.CanCreateService(context.Background(), repo.record.ProviderID, uuid.New())
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestConsumeBookingSlot(t *testing.T) {
	repo := &stubRepo{
		record: &models.ProviderEntitlement{
			ProviderID:  uuid.New(),
			CurrentPlan: enums.PlanTierFree,
		},
		bookingGrant: true,
	}
	svc := newTestService(t, repo, &stubCategoryUsage{})

	decision, err := svc.ConsumeBookingSlot(context.Background(), nil, repo.record.ProviderID)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	repo.bookingGrant = false
	decision, err = svc.ConsumeBookingSlot(context.Background(), nil, repo.record.ProviderID)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonBookingLimitReached, decision.Reason)
}

func TestConsumeServiceSlotDeniedReason(t *testing.T) {
	repo := &stubRepo{
		record: &models.ProviderEntitlement{
			ProviderID:            uuid.New(),
			CurrentPlan:           enums.PlanTierFree,
			ActiveServiceCount:    0,
			DistinctCategoryCount: 1,
		},
		serviceGrant: false,
	}
	svc := newTestService(t, repo, &stubCategoryUsage{used: false})

	decision, err := svc.ConsumeServiceSlot(context.Background(), nil, repo.record.ProviderID, uuid.New())
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonCategoryLimitHit, decision.Reason)
}

func TestConsumeServiceSlotLocksBeforeCategoryRead(t *testing.T) {
	var calls []string
	repo := &stubRepo{
		record: &models.ProviderEntitlement{
			ProviderID:  uuid.New(),
			CurrentPlan: enums.PlanTierFree,
		},
		serviceGrant: true,
		calls:        &calls,
	}
	usage := &stubCategoryUsage{used: false, calls: &calls}
	svc := newTestService(t, repo, usage)

	decision, err := svc.ConsumeServiceSlot(context.Background(), nil, repo.record.ProviderID, uuid.New())
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, []string{"lock", "category-read"}, calls,
		"the provider row must be locked before the category lookup")
}

func TestConsumeServiceSlotLockFailure(t *testing.T) {
	repo := &stubRepo{
		record: &models.ProviderEntitlement{
			ProviderID:  uuid.New(),
			CurrentPlan: enums.PlanTierFree,
		},
		lockErr: errors.New(errors.CodeInternal, "lock wait timeout"),
	}
	svc := newTestService(t, repo, &stubCategoryUsage{})

	_, err := svc.ConsumeServiceSlot(context.Background(), nil, repo.record.ProviderID, uuid.New())
	require.Error(t, err)
	require.Equal(t, errors.CodeInternal, errors.CodeOf(err))
}

func TestPlanRequiresProviderID(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubCategoryUsage{})

	_, err := svc.Plan(context.Background(), uuid.Nil)
	require.Error(t, err)
	require.Equal(t, errors.CodeValidation, errors.CodeOf(err))
}

func TestLimitErrorCarriesDetails(t *testing.T) {
	err := LimitError(Decision{Plan: enums.PlanTierFree, Reason: ReasonBookingLimitReached})

	typed := errors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, errors.CodeLimitExceeded, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, "free", details["plan"])
	require.Equal(t, string(ReasonBookingLimitReached), details["reason"])
}
