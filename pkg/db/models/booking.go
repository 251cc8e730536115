package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhive/bookhive-backend/pkg/enums"
	"github.com/bookhive/bookhive-backend/pkg/types"
)

// Booking is a single owner-to-provider engagement. ProviderID is
// denormalized from the service at creation time for query efficiency.
// Rows are never deleted, only status-transitioned.
type Booking struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID       uuid.UUID           `gorm:"column:owner_id;type:uuid;not null;index"`
	ProviderID    uuid.UUID           `gorm:"column:provider_id;type:uuid;not null;index"`
	ServiceID     uuid.UUID           `gorm:"column:service_id;type:uuid;not null;index"`
	Status        enums.BookingStatus `gorm:"column:status;type:booking_status;not null;default:'pending'"`
	ScheduledAt   time.Time           `gorm:"column:scheduled_at;not null"`
	DurationHours decimal.Decimal     `gorm:"column:duration_hours;type:numeric(6,2);not null"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Address       types.Address       `gorm:"column:address;type:jsonb;serializer:json"`
	PhoneNumber   string              `gorm:"column:phone_number;not null"`
	Description   *string             `gorm:"column:description"`

	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null;default:'cash'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	TransactionID *string             `gorm:"column:transaction_id"`

	// CompletionCode is the single-use secret handed to the owner while the
	// booking is ongoing. Regeneration overwrites it.
	CompletionCode     *string    `gorm:"column:completion_code"`
	CompletionIssuedAt *time.Time `gorm:"column:completion_issued_at"`

	Rating  *int    `gorm:"column:rating"`
	Review  *string `gorm:"column:review"`
	RatedAt *time.Time `gorm:"column:rated_at"`

	AcceptedAt  *time.Time `gorm:"column:accepted_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
