package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups provider services. Names are unique across the catalog.
type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:categories_name_key"`
	IconURL   *string   `gorm:"column:icon_url"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
