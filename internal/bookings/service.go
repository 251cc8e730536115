package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive-backend/internal/entitlements"
	"github.com/bookhive/bookhive-backend/pkg/db/models"
	"github.com/bookhive/bookhive-backend/pkg/enums"
	"github.com/bookhive/bookhive-backend/pkg/errors"
	"github.com/bookhive/bookhive-backend/pkg/logger"
)

// txRunner runs a function inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// userDirectory resolves accounts for role checks on booking creation.
type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Catalog is the slice of the catalog service bookings depend on.
type Catalog interface {
	GetService(ctx context.Context, id uuid.UUID) (*models.ServiceOffering, error)
	ApplyRating(ctx context.Context, tx *gorm.DB, serviceID uuid.UUID, rating int) error
}

// Service drives the booking lifecycle: pending to ongoing to completed,
// with cancellation allowed only while pending. Completion requires the
// provider-issued secret, so the owner proves presence at handoff.
type Service interface {
	Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)

	Accept(ctx context.Context, bookingID, providerID uuid.UUID) (*models.Booking, error)
	Reject(ctx context.Context, bookingID, providerID uuid.UUID) (*models.Booking, error)
	CancelByOwner(ctx context.Context, bookingID, ownerID uuid.UUID) (*models.Booking, error)

	GenerateCompletionProof(ctx context.Context, bookingID, providerID uuid.UUID) (*CompletionProof, error)
	Complete(ctx context.Context, bookingID, ownerID uuid.UUID, secret string) (*models.Booking, error)

	Rate(ctx context.Context, input RateBookingInput) (*models.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID, providerID uuid.UUID, transactionID *string) (*models.Booking, error)

	ListForOwner(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]models.Booking, error)
	ListForProvider(ctx context.Context, providerID uuid.UUID, params ListParams) ([]models.Booking, error)
}

type service struct {
	repo         Repository
	users        userDirectory
	catalog      Catalog
	entitlements entitlements.Service
	tx           txRunner
	validate     *validator.Validate
	logger       *logger.Logger
	now          func() time.Time
}

// Params carries the booking service dependencies.
type Params struct {
	Repo         Repository
	Users        userDirectory
	Catalog      Catalog
	Entitlements entitlements.Service
	Tx           txRunner
	Logger       *logger.Logger
	Now          func() time.Time
}

// NewService wires the booking service.
func NewService(params Params) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if params.Entitlements == nil {
		return nil, fmt.Errorf("entitlements service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}

	return &service{
		repo:         params.Repo,
		users:        params.Users,
		catalog:      params.Catalog,
		entitlements: params.Entitlements,
		tx:           params.Tx,
		validate:     validator.New(),
		logger:       params.Logger,
		now:          params.Now,
	}, nil
}

// Create requests a new booking. The total is derived from the service's
// hourly rate, never from client input. The provider's monthly booking
// slot is consumed in the same transaction as the insert.
func (s *service) Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid booking payload")
	}
	if !input.DurationHours.GreaterThan(decimal.Zero) {
		return nil, errors.New(errors.CodeValidation, "duration must be positive")
	}
	if !input.ScheduledAt.After(s.now()) {
		return nil, errors.New(errors.CodeValidation, "scheduled time must be in the future")
	}
	if err := input.Address.Validate(); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid address")
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = enums.PaymentMethodCash
	}
	if !input.PaymentMethod.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unknown payment method")
	}

	owner, err := s.users.FindByID(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner.Role != enums.UserRoleOwner {
		return nil, errors.New(errors.CodeForbidden, "only owner accounts can book services")
	}

	offering, err := s.catalog.GetService(ctx, input.ServiceID)
	if err != nil {
		return nil, err
	}
	if !offering.Active {
		return nil, errors.New(errors.CodeStateConflict, "service offering is inactive")
	}
	if offering.ProviderID == input.OwnerID {
		return nil, errors.New(errors.CodeValidation, "cannot book your own service")
	}

	booking := &models.Booking{
		ID:            uuid.New(),
		OwnerID:       input.OwnerID,
		ProviderID:    offering.ProviderID,
		ServiceID:     offering.ID,
		Status:        enums.BookingStatusPending,
		ScheduledAt:   input.ScheduledAt.UTC(),
		DurationHours: input.DurationHours,
		TotalAmount:   offering.HourlyRate.Mul(input.DurationHours),
		Address:       input.Address,
		PhoneNumber:   input.PhoneNumber,
		Description:   input.Description,
		PaymentMethod: input.PaymentMethod,
		PaymentStatus: enums.PaymentStatusUnpaid,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		decision, err := s.entitlements.ConsumeBookingSlot(ctx, tx, offering.ProviderID)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return entitlements.LimitError(decision)
		}
		return s.repo.WithTx(tx).Create(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithBookingID(ctx, booking.ID.String()), "booking created")
	return booking, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	if id == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "booking id required")
	}
	return s.repo.FindByID(ctx, id)
}

// Accept moves a pending booking to ongoing. Provider-only.
func (s *service) Accept(ctx context.Context, bookingID, providerID uuid.UUID) (*models.Booking, error) {
	booking, err := s.loadForProvider(ctx, bookingID, providerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	moved, err := s.repo.TransitionStatus(ctx, bookingID,
		enums.BookingStatusPending, enums.BookingStatusOngoing,
		Stamps{AcceptedAt: &now})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, s.transitionConflict(ctx, booking, "accept")
	}

	s.logger.Info(s.logger.WithBookingID(ctx, bookingID.String()), "booking accepted")
	return s.repo.FindByID(ctx, bookingID)
}

// Reject cancels a pending booking on the provider's behalf.
func (s *service) Reject(ctx context.Context, bookingID, providerID uuid.UUID) (*models.Booking, error) {
	booking, err := s.loadForProvider(ctx, bookingID, providerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	moved, err := s.repo.TransitionStatus(ctx, bookingID,
		enums.BookingStatusPending, enums.BookingStatusCancelled,
		Stamps{CancelledAt: &now})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, s.transitionConflict(ctx, booking, "reject")
	}

	s.logger.Info(s.logger.WithBookingID(ctx, bookingID.String()), "booking rejected")
	return s.repo.FindByID(ctx, bookingID)
}

// CancelByOwner withdraws a booking while it is still pending. Once the
// provider has accepted, the owner can no longer cancel.
func (s *service) CancelByOwner(ctx context.Context, bookingID, ownerID uuid.UUID) (*models.Booking, error) {
	booking, err := s.loadForOwner(ctx, bookingID, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	moved, err := s.repo.TransitionStatus(ctx, bookingID,
		enums.BookingStatusPending, enums.BookingStatusCancelled,
		Stamps{CancelledAt: &now})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, s.transitionConflict(ctx, booking, "cancel")
	}

	s.logger.Info(s.logger.WithBookingID(ctx, bookingID.String()), "booking cancelled by owner")
	return s.repo.FindByID(ctx, bookingID)
}

// GenerateCompletionProof issues a fresh completion secret for an ongoing
// booking. Calling it again rotates the secret and invalidates the old one.
func (s *service) GenerateCompletionProof(ctx context.Context, bookingID, providerID uuid.UUID) (*CompletionProof, error) {
	booking, err := s.loadForProvider(ctx, bookingID, providerID)
	if err != nil {
		return nil, err
	}
	if booking.Status != enums.BookingStatusOngoing {
		return nil, errors.New(errors.CodeStateConflict, "completion proof requires an ongoing booking").
			WithDetails(map[string]any{"status": booking.Status.String()})
	}

	secret, err := newCompletionSecret()
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "issuing completion proof")
	}

	issuedAt := s.now()
	stored, err := s.repo.SetCompletionCode(ctx, bookingID, secret, issuedAt)
	if err != nil {
		return nil, err
	}
	if !stored {
		return nil, errors.New(errors.CodeStateConflict, "booking left the ongoing state")
	}

	s.logger.Info(s.logger.WithBookingID(ctx, bookingID.String()), "completion proof issued")
	return &CompletionProof{
		BookingID:  bookingID,
		ProviderID: providerID,
		Secret:     secret,
		IssuedAt:   issuedAt,
	}, nil
}

// Complete finishes an ongoing booking when the owner presents the current
// secret. The comparison is constant time and the secret burns on use.
func (s *service) Complete(ctx context.Context, bookingID, ownerID uuid.UUID, secret string) (*models.Booking, error) {
	booking, err := s.loadForOwner(ctx, bookingID, ownerID)
	if err != nil {
		return nil, err
	}
	if booking.Status != enums.BookingStatusOngoing {
		return nil, errors.New(errors.CodeStateConflict, "only ongoing bookings can be completed").
			WithDetails(map[string]any{"status": booking.Status.String()})
	}
	if booking.CompletionCode == nil {
		return nil, errors.New(errors.CodeInvalidProof, "no completion proof has been issued")
	}
	if !secretsMatch(*booking.CompletionCode, secret) {
		s.logger.Warn(s.logger.WithBookingID(ctx, bookingID.String()), "completion proof mismatch")
		return nil, errors.New(errors.CodeInvalidProof, "completion proof rejected")
	}

	moved, err := s.repo.CompleteWithCode(ctx, bookingID, secret, s.now())
	if err != nil {
		return nil, err
	}
	if !moved {
		// The guarded update lost. Either the code was rotated after our
		// check or another completion landed first.
		current, findErr := s.repo.FindByID(ctx, bookingID)
		if findErr == nil && current.Status == enums.BookingStatusOngoing {
			s.logger.Warn(s.logger.WithBookingID(ctx, bookingID.String()), "completion proof rotated away")
			return nil, errors.New(errors.CodeInvalidProof, "completion proof rejected")
		}
		return nil, errors.New(errors.CodeStateConflict, "booking left the ongoing state")
	}

	s.logger.Info(s.logger.WithBookingID(ctx, bookingID.String()), "booking completed")
	return s.repo.FindByID(ctx, bookingID)
}

// Rate records the owner's one-time rating for a completed booking and
// folds it into the service's aggregate in the same transaction.
func (s *service) Rate(ctx context.Context, input RateBookingInput) (*models.Booking, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid rating payload")
	}

	booking, err := s.loadForOwner(ctx, input.BookingID, input.OwnerID)
	if err != nil {
		return nil, err
	}
	if booking.Status != enums.BookingStatusCompleted {
		return nil, errors.New(errors.CodeStateConflict, "only completed bookings can be rated")
	}
	if booking.Rating != nil {
		return nil, errors.New(errors.CodeConflict, "booking already rated")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rated, err := s.repo.WithTx(tx).SetRating(ctx, input.BookingID, input.Rating, input.Review, s.now())
		if err != nil {
			return err
		}
		if !rated {
			return errors.New(errors.CodeConflict, "booking already rated")
		}
		return s.catalog.ApplyRating(ctx, tx, booking.ServiceID, input.Rating)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithBookingID(ctx, input.BookingID.String()), "booking rated")
	return s.repo.FindByID(ctx, input.BookingID)
}

// ConfirmPayment records that the provider received payment.
func (s *service) ConfirmPayment(ctx context.Context, bookingID, providerID uuid.UUID, transactionID *string) (*models.Booking, error) {
	if _, err := s.loadForProvider(ctx, bookingID, providerID); err != nil {
		return nil, err
	}

	marked, err := s.repo.MarkPaid(ctx, bookingID, transactionID)
	if err != nil {
		return nil, err
	}
	if !marked {
		return nil, errors.New(errors.CodeConflict, "booking is not awaiting payment")
	}

	s.logger.Info(s.logger.WithBookingID(ctx, bookingID.String()), "booking payment confirmed")
	return s.repo.FindByID(ctx, bookingID)
}

func (s *service) ListForOwner(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]models.Booking, error) {
	if ownerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "owner id required")
	}
	return s.repo.ListByOwner(ctx, ownerID, params)
}

func (s *service) ListForProvider(ctx context.Context, providerID uuid.UUID, params ListParams) ([]models.Booking, error) {
	if providerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "provider id required")
	}
	return s.repo.ListByProvider(ctx, providerID, params)
}

func (s *service) loadForProvider(ctx context.Context, bookingID, providerID uuid.UUID) (*models.Booking, error) {
	if bookingID == uuid.Nil || providerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "booking id and provider id required")
	}
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ProviderID != providerID {
		return nil, errors.New(errors.CodeForbidden, "booking belongs to another provider")
	}
	return booking, nil
}

func (s *service) loadForOwner(ctx context.Context, bookingID, ownerID uuid.UUID) (*models.Booking, error) {
	if bookingID == uuid.Nil || ownerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "booking id and owner id required")
	}
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.OwnerID != ownerID {
		return nil, errors.New(errors.CodeForbidden, "booking belongs to another owner")
	}
	return booking, nil
}

func (s *service) transitionConflict(ctx context.Context, booking *models.Booking, action string) error {
	// The guarded update lost; report the state the booking is actually in.
	current, err := s.repo.FindByID(ctx, booking.ID)
	if err != nil {
		current = booking
	}
	s.logger.Warn(s.logger.WithBookingID(ctx, booking.ID.String()), "booking transition conflict")
	return errors.New(errors.CodeStateConflict, fmt.Sprintf("cannot %s booking in its current state", action)).
		WithDetails(map[string]any{"status": current.Status.String()})
}
