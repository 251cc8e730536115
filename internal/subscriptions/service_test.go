package subscriptions

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive-backend/internal/entitlements"
	"github.com/bookhive/bookhive-backend/pkg/db/models"
	"github.com/bookhive/bookhive-backend/pkg/enums"
	"github.com/bookhive/bookhive-backend/pkg/errors"
	"github.com/bookhive/bookhive-backend/pkg/logger"
)

type memEntitlementRepo struct {
	records map[uuid.UUID]*models.ProviderEntitlement
}

func newMemEntitlementRepo() *memEntitlementRepo {
	return &memEntitlementRepo{records: map[uuid.UUID]*models.ProviderEntitlement{}}
}

func (m *memEntitlementRepo) WithTx(tx *gorm.DB) entitlements.Repository { return m }

func (m *memEntitlementRepo) FindByProvider(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error) {
	if r, ok := m.records[providerID]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, errors.New(errors.CodeNotFound, "entitlement record not found")
}

func (m *memEntitlementRepo) EnsureRecord(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error) {
	if r, ok := m.records[providerID]; ok {
		copied := *r
		return &copied, nil
	}
	record := &models.ProviderEntitlement{
		ProviderID:  providerID,
		CurrentPlan: enums.PlanTierFree,
	}
	m.records[providerID] = record
	copied := *record
	return &copied, nil
}

func (m *memEntitlementRepo) LockRecord(ctx context.Context, providerID uuid.UUID) error {
	if _, ok := m.records[providerID]; !ok {
		return errors.New(errors.CodeNotFound, "entitlement record not found")
	}
	return nil
}

func (m *memEntitlementRepo) IncrementBookingsIfBelow(ctx context.Context, providerID uuid.UUID, max int) (bool, error) {
	return false, nil
}

func (m *memEntitlementRepo) IncrementServiceUsageIfBelow(ctx context.Context, providerID uuid.UUID, maxServices int, newCategory bool, maxCategories int) (bool, error) {
	return false, nil
}

func (m *memEntitlementRepo) DecrementServiceUsage(ctx context.Context, providerID uuid.UUID, categoryFreed bool) error {
	return nil
}

func (m *memEntitlementRepo) UpdatePlan(ctx context.Context, providerID uuid.UUID, plan enums.PlanTier, expiry *time.Time) error {
	r, ok := m.records[providerID]
	if !ok {
		return errors.New(errors.CodeNotFound, "entitlement record not found")
	}
	r.CurrentPlan = plan
	r.PlanExpiryDate = expiry
	return nil
}

func (m *memEntitlementRepo) ListExpiredPaid(ctx context.Context, asOf time.Time, limit int) ([]models.ProviderEntitlement, error) {
	return nil, nil
}

func (m *memEntitlementRepo) DowngradeToFree(ctx context.Context, providerID uuid.UUID, expiredAt time.Time) (bool, error) {
	return false, nil
}

func (m *memEntitlementRepo) ResetBookingsForTiers(ctx context.Context, tiers []enums.PlanTier, monthStart time.Time) (int64, error) {
	return 0, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

func newTestService(t *testing.T, repo entitlements.Repository, now time.Time) Service {
	t.Helper()
	svc, err := NewService(Params{
		Repo:   repo,
		Logger: testLogger(),
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc
}

func TestApplyPurchaseSetsPlanAndExpiry(t *testing.T) {
	repo := newMemEntitlementRepo()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, now)
	providerID := uuid.New()

	periodEnd := now.AddDate(0, 1, 0)
	record, err := svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		ProviderID: providerID,
		Kind:       enums.SubscriptionEventPurchase,
		Plan:       enums.PlanTierBasic,
		PeriodEnd:  periodEnd,
	})
	require.NoError(t, err)
	require.Equal(t, enums.PlanTierBasic, record.CurrentPlan)
	require.NotNil(t, record.PlanExpiryDate)
	require.True(t, record.PlanExpiryDate.Equal(periodEnd))
}

func TestApplyRenewalExtendsExpiry(t *testing.T) {
	repo := newMemEntitlementRepo()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, now)
	providerID := uuid.New()

	first := now.AddDate(0, 1, 0)
	_, err := svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		ProviderID: providerID,
		Kind:       enums.SubscriptionEventPurchase,
		Plan:       enums.PlanTierPro,
		PeriodEnd:  first,
	})
	require.NoError(t, err)

	second := now.AddDate(0, 2, 0)
	record, err := svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		ProviderID: providerID,
		Kind:       enums.SubscriptionEventRenewal,
		Plan:       enums.PlanTierPro,
		PeriodEnd:  second,
	})
	require.NoError(t, err)
	require.True(t, record.PlanExpiryDate.Equal(second))
}

func TestPurchaseRejectsFreePlanAndPastPeriod(t *testing.T) {
	repo := newMemEntitlementRepo()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, now)

	_, err := svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		ProviderID: uuid.New(),
		Kind:       enums.SubscriptionEventPurchase,
		Plan:       enums.PlanTierFree,
		PeriodEnd:  now.AddDate(0, 1, 0),
	})
	require.Equal(t, errors.CodeValidation, errors.CodeOf(err))

	_, err = svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		ProviderID: uuid.New(),
		Kind:       enums.SubscriptionEventPurchase,
		Plan:       enums.PlanTierBasic,
		PeriodEnd:  now.Add(-time.Hour),
	})
	require.Equal(t, errors.CodeValidation, errors.CodeOf(err))
}

func TestCancellationKeepsTierUntilPeriodEnd(t *testing.T) {
	repo := newMemEntitlementRepo()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, now)
	providerID := uuid.New()
	ctx := context.Background()

	periodEnd := now.AddDate(0, 1, 0)
	_, err := svc.ApplyPaymentEvent(ctx, PaymentEvent{
		ProviderID: providerID,
		Kind:       enums.SubscriptionEventPurchase,
		Plan:       enums.PlanTierBasic,
		PeriodEnd:  periodEnd,
	})
	require.NoError(t, err)

	record, err := svc.ApplyPaymentEvent(ctx, PaymentEvent{
		ProviderID: providerID,
		Kind:       enums.SubscriptionEventCancellation,
	})
	require.NoError(t, err)
	require.Equal(t, enums.PlanTierBasic, record.CurrentPlan, "tier survives until expiry")
	require.True(t, record.PlanExpiryDate.Equal(periodEnd), "committed period end untouched")
}

func TestCancellationWithoutPaidPlan(t *testing.T) {
	repo := newMemEntitlementRepo()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, now)

	_, err := svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		ProviderID: uuid.New(),
		Kind:       enums.SubscriptionEventCancellation,
	})
	require.Equal(t, errors.CodeStateConflict, errors.CodeOf(err))
}

func TestCurrentPlanCreatesDefault(t *testing.T) {
	repo := newMemEntitlementRepo()
	svc := newTestService(t, repo, time.Now().UTC())
	providerID := uuid.New()

	record, err := svc.CurrentPlan(context.Background(), providerID)
	require.NoError(t, err)
	require.Equal(t, enums.PlanTierFree, record.CurrentPlan)

	_, err = svc.CurrentPlan(context.Background(), uuid.Nil)
	require.Equal(t, errors.CodeValidation, errors.CodeOf(err))
}
