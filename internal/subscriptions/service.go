package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bookhive/bookhive-backend/internal/entitlements"
	"github.com/bookhive/bookhive-backend/pkg/db/models"
	"github.com/bookhive/bookhive-backend/pkg/enums"
	"github.com/bookhive/bookhive-backend/pkg/errors"
	"github.com/bookhive/bookhive-backend/pkg/logger"
)

// PaymentEvent is a subscription outcome reported by the payment
// provider's webhook consumer.
type PaymentEvent struct {
	ProviderID uuid.UUID                   `json:"provider_id" validate:"required"`
	Kind       enums.SubscriptionEventKind `json:"kind" validate:"required"`
	Plan       enums.PlanTier              `json:"plan"`
	PeriodEnd  time.Time                   `json:"period_end"`
}

// Service manages the subscription side of a provider's entitlement:
// plan changes from payment events plus current-plan reads. Expiry
// downgrades happen in the sweep worker, never here.
type Service interface {
	ApplyPaymentEvent(ctx context.Context, event PaymentEvent) (*models.ProviderEntitlement, error)
	CurrentPlan(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error)
}

type service struct {
	repo     entitlements.Repository
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
}

// Params carries the subscription service dependencies.
type Params struct {
	Repo   entitlements.Repository
	Logger *logger.Logger
	Now    func() time.Time
}

// NewService wires the subscription lifecycle service.
func NewService(params Params) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("entitlement repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}

	return &service{
		repo:     params.Repo,
		validate: validator.New(),
		logger:   params.Logger,
		now:      params.Now,
	}, nil
}

// ApplyPaymentEvent updates the provider's plan according to the event
// kind. Purchase and renewal set the tier and push the expiry forward.
// Cancellation only pins the expiry; the paid tier stays active until the
// daily sweep downgrades it after the committed period ends.
func (s *service) ApplyPaymentEvent(ctx context.Context, event PaymentEvent) (*models.ProviderEntitlement, error) {
	if err := s.validate.Struct(event); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid payment event")
	}
	if !event.Kind.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unknown subscription event kind")
	}

	record, err := s.repo.EnsureRecord(ctx, event.ProviderID)
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"provider_id": event.ProviderID.String(),
		"event_kind":  event.Kind.String(),
	})

	switch event.Kind {
	case enums.SubscriptionEventPurchase, enums.SubscriptionEventRenewal:
		if !event.Plan.IsValid() || !event.Plan.IsPaid() {
			return nil, errors.New(errors.CodeValidation, "purchase and renewal require a paid plan")
		}
		if !event.PeriodEnd.After(s.now()) {
			return nil, errors.New(errors.CodeValidation, "period end must be in the future")
		}
		periodEnd := event.PeriodEnd.UTC()
		if err := s.repo.UpdatePlan(ctx, event.ProviderID, event.Plan, &periodEnd); err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "subscription plan applied")

	case enums.SubscriptionEventCancellation:
		if !record.CurrentPlan.IsPaid() {
			return nil, errors.New(errors.CodeStateConflict, "no paid subscription to cancel")
		}
		// Keep the tier; just make sure an expiry exists so the sweep
		// eventually downgrades it.
		expiry := record.PlanExpiryDate
		if expiry == nil {
			end := s.now()
			if event.PeriodEnd.After(end) {
				end = event.PeriodEnd.UTC()
			}
			expiry = &end
		}
		if err := s.repo.UpdatePlan(ctx, event.ProviderID, record.CurrentPlan, expiry); err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "subscription cancellation recorded")
	}

	return s.repo.FindByProvider(ctx, event.ProviderID)
}

// CurrentPlan returns the provider's entitlement record, creating the
// free-tier default on first touch.
func (s *service) CurrentPlan(ctx context.Context, providerID uuid.UUID) (*models.ProviderEntitlement, error) {
	if providerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "provider id required")
	}
	return s.repo.EnsureRecord(ctx, providerID)
}
