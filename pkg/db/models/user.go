package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookhive/bookhive-backend/pkg/enums"
)

// User is an account on the marketplace, either an owner booking services
// or a provider fulfilling them.
type User struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Role        enums.UserRole `gorm:"column:role;type:user_role;not null"`
	FullName    string         `gorm:"column:full_name;not null"`
	Email       string         `gorm:"column:email;not null;uniqueIndex"`
	PhoneNumber string         `gorm:"column:phone_number;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
