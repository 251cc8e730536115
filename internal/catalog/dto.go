package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateCategoryInput is the payload for registering a new category.
type CreateCategoryInput struct {
	Name    string  `json:"name" validate:"required,min=2,max=80"`
	IconURL *string `json:"icon_url" validate:"omitempty,url"`
}

// CreateServiceInput is the payload for listing a new service offering.
type CreateServiceInput struct {
	ProviderID  uuid.UUID       `json:"provider_id" validate:"required"`
	CategoryID  uuid.UUID       `json:"category_id" validate:"required"`
	Title       string          `json:"title" validate:"required,min=3,max=140"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
}
