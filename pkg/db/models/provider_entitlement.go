package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookhive/bookhive-backend/pkg/enums"
)

// ProviderEntitlement is the per-provider subscription record plus the
// usage counters the limit evaluator reads. Counters never go negative;
// DistinctCategoryCount never exceeds ActiveServiceCount.
type ProviderEntitlement struct {
	ProviderID            uuid.UUID      `gorm:"column:provider_id;type:uuid;primaryKey"`
	CurrentPlan           enums.PlanTier `gorm:"column:current_plan;type:plan_tier;not null;default:'free'"`
	PlanExpiryDate        *time.Time     `gorm:"column:plan_expiry_date"`
	ActiveServiceCount    int            `gorm:"column:active_service_count;not null;default:0"`
	DistinctCategoryCount int            `gorm:"column:distinct_category_count;not null;default:0"`
	BookingsThisMonth     int            `gorm:"column:bookings_this_month;not null;default:0"`
	BookingsResetAt       *time.Time     `gorm:"column:bookings_reset_at"`
	CreatedAt             time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the table name in line with the migration files.
func (ProviderEntitlement) TableName() string {
	return "provider_entitlements"
}
