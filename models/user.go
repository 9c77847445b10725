package models

import (
	"context"
	"strings"
	"time"

	"github.com/keyflowhq/keyflow_backend/utils"
)

type User struct {
	ID           string `gorm:"primary_key;size:36" json:"id"`
	DealershipId string `gorm:"index;size:36" json:"dealership_id"`
	Name         string `gorm:"size:100;not null" json:"name" binding:"required"`
	Email        string `gorm:"index;size:255" json:"email"`
	Role         string `gorm:"size:50;not null" json:"role" binding:"required"`

	// PinHash is set for staff who sign in on the shared kiosk with a
	// 4-6 digit PIN. PasswordHash is set for admins and owners.
	PinHash      string `gorm:"size:100" json:"-"`
	PasswordHash string `gorm:"size:100" json:"-"`

	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Role     string `json:"role" binding:"required"`
	Pin      string `json:"pin"`
	Password string `json:"password"`
}

func (input *NewUser) validate(ctx context.Context) error {
	if strings.TrimSpace(input.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return NewValidationError("email", "email must be a valid email")
	}
	role := UserRole(input.Role)
	if role == UserRoleOwner {
		return NewValidationError("role", "owner accounts cannot be created here")
	}
	if input.Pin != "" && !utils.IsValidPin(input.Pin) {
		return NewValidationError("pin", "pin must be 4-6 digits")
	}
	if role.IsAdmin() && input.Password == "" && input.Pin == "" {
		return NewValidationError("password", "admins need a password or pin")
	}
	return nil
}
