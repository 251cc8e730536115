package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhive/bookhive-backend/pkg/types"
)

// ServiceOffering is an hourly service a provider lists in the catalog.
type ServiceOffering struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderID  uuid.UUID           `gorm:"column:provider_id;type:uuid;not null;index"`
	CategoryID  uuid.UUID           `gorm:"column:category_id;type:uuid;not null;index"`
	Title       string              `gorm:"column:title;not null"`
	Description *string             `gorm:"column:description"`
	HourlyRate  decimal.Decimal     `gorm:"column:hourly_rate;type:numeric(12,2);not null"`
	Active      bool                `gorm:"column:active;not null;default:true"`
	Rating      types.RatingSummary `gorm:"embedded"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
