package users

import (
	"github.com/google/uuid"

	"github.com/bookhive/bookhive-backend/pkg/db/models"
	"github.com/bookhive/bookhive-backend/pkg/enums"
)

// CreateUserInput carries a new account registration.
type CreateUserInput struct {
	Role        enums.UserRole `validate:"required"`
	FullName    string         `validate:"required,min=2,max=120"`
	Email       string         `validate:"required,email"`
	PhoneNumber string         `validate:"required,min=7,max=20"`
}

// ToModel maps the input onto a fresh user row.
func (in CreateUserInput) ToModel() *models.User {
	return &models.User{
		ID:          uuid.New(),
		Role:        in.Role,
		FullName:    in.FullName,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
	}
}
