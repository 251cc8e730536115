package bookings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhive/bookhive-backend/pkg/enums"
	"github.com/bookhive/bookhive-backend/pkg/types"
)

// CreateBookingInput is the payload for requesting a new booking.
type CreateBookingInput struct {
	OwnerID       uuid.UUID           `json:"owner_id" validate:"required"`
	ServiceID     uuid.UUID           `json:"service_id" validate:"required"`
	ScheduledAt   time.Time           `json:"scheduled_at" validate:"required"`
	DurationHours decimal.Decimal     `json:"duration_hours"`
	Address       types.Address       `json:"address"`
	PhoneNumber   string              `json:"phone_number" validate:"required,min=7,max=20"`
	Description   *string             `json:"description" validate:"omitempty,max=2000"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
}

// RateBookingInput is the payload for reviewing a completed booking.
type RateBookingInput struct {
	OwnerID   uuid.UUID `json:"owner_id" validate:"required"`
	BookingID uuid.UUID `json:"booking_id" validate:"required"`
	Rating    int       `json:"rating" validate:"required,min=1,max=5"`
	Review    *string   `json:"review" validate:"omitempty,max=2000"`
}

// ListParams filters booking listings.
type ListParams struct {
	Status *enums.BookingStatus
	Limit  int
	Cursor string
}
