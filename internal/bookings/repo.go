package bookings

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive-backend/internal/repo"
	"github.com/bookhive/bookhive-backend/pkg/db/models"
	"github.com/bookhive/bookhive-backend/pkg/enums"
	"github.com/bookhive/bookhive-backend/pkg/errors"
	"github.com/bookhive/bookhive-backend/pkg/pagination"
)

// Stamps are the timestamp columns a status transition may set.
type Stamps struct {
	AcceptedAt  *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// Repository persists bookings. Status transitions are conditional
// updates guarded on the current status so concurrent actors get
// exactly one winner.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)

	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.BookingStatus, stamps Stamps) (bool, error)
	SetCompletionCode(ctx context.Context, id uuid.UUID, code string, issuedAt time.Time) (bool, error)
	CompleteWithCode(ctx context.Context, id uuid.UUID, secret string, completedAt time.Time) (bool, error)
	SetRating(ctx context.Context, id uuid.UUID, rating int, review *string, ratedAt time.Time) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, transactionID *string) (bool, error)

	ListByOwner(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]models.Booking, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, params ListParams) ([]models.Booking, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds the GORM-backed booking repository.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, booking *models.Booking) error {
	if err := r.DB(ctx).Create(booking).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating booking")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.DB(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "booking not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "fetching booking")
	}
	return &booking, nil
}

// TransitionStatus moves a booking between states only when it is still in
// the expected source state. False means another actor got there first or
// the booking never was in that state.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.BookingStatus, stamps Stamps) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if stamps.AcceptedAt != nil {
		updates["accepted_at"] = *stamps.AcceptedAt
	}
	if stamps.CompletedAt != nil {
		updates["completed_at"] = *stamps.CompletedAt
	}
	if stamps.CancelledAt != nil {
		updates["cancelled_at"] = *stamps.CancelledAt
	}

	result := r.DB(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, errors.Wrap(errors.CodeInternal, result.Error, "transitioning booking status")
	}
	return result.RowsAffected == 1, nil
}

// SetCompletionCode stores a fresh completion secret. Guarded on the
// ongoing status so a code can never be issued for a finished booking.
func (r *repository) SetCompletionCode(ctx context.Context, id uuid.UUID, code string, issuedAt time.Time) (bool, error) {
	result := r.DB(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, enums.BookingStatusOngoing).
		Updates(map[string]any{
			"completion_code":      code,
			"completion_issued_at": issuedAt,
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return false, errors.Wrap(errors.CodeInternal, result.Error, "storing completion code")
	}
	return result.RowsAffected == 1, nil
}

// CompleteWithCode finishes an ongoing booking and burns the secret in the
// same statement, making the code single-use even under concurrent scans.
// The presented secret is part of the guard, so a rotation landing after
// the caller's own check still voids the stale code.
func (r *repository) CompleteWithCode(ctx context.Context, id uuid.UUID, secret string, completedAt time.Time) (bool, error) {
	result := r.DB(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ? AND completion_code = ?", id, enums.BookingStatusOngoing, secret).
		Updates(map[string]any{
			"status":               enums.BookingStatusCompleted,
			"completed_at":         completedAt,
			"completion_code":      nil,
			"completion_issued_at": nil,
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return false, errors.Wrap(errors.CodeInternal, result.Error, "completing booking")
	}
	return result.RowsAffected == 1, nil
}

// SetRating records the owner's one-time rating. Guarded on rating IS NULL
// so a second attempt reports false.
func (r *repository) SetRating(ctx context.Context, id uuid.UUID, rating int, review *string, ratedAt time.Time) (bool, error) {
	result := r.DB(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ? AND rating IS NULL", id, enums.BookingStatusCompleted).
		Updates(map[string]any{
			"rating":     rating,
			"review":     review,
			"rated_at":   ratedAt,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, errors.Wrap(errors.CodeInternal, result.Error, "rating booking")
	}
	return result.RowsAffected == 1, nil
}

// MarkPaid flips payment status to paid once.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, transactionID *string) (bool, error) {
	result := r.DB(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND payment_status = ?", id, enums.PaymentStatusUnpaid).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"transaction_id": transactionID,
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return false, errors.Wrap(errors.CodeInternal, result.Error, "marking booking paid")
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]models.Booking, error) {
	return r.list(ctx, "owner_id = ?", ownerID, params)
}

func (r *repository) ListByProvider(ctx context.Context, providerID uuid.UUID, params ListParams) ([]models.Booking, error) {
	return r.list(ctx, "provider_id = ?", providerID, params)
}

func (r *repository) list(ctx context.Context, cond string, id uuid.UUID, params ListParams) ([]models.Booking, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid cursor")
	}

	query := r.DB(ctx).
		Where(cond, id).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var bookings []models.Booking
	if err := query.Find(&bookings).Error; err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing bookings")
	}
	return bookings, nil
}
