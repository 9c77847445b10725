package models

import (
	"context"
	"time"

	"github.com/keyflowhq/keyflow_backend/utils"
)

// Invite lets an admin onboard a teammate by link. Invites expire after
// seven days and are single-use.
type Invite struct {
	ID           string     `gorm:"primary_key;size:36" json:"id"`
	DealershipId string     `gorm:"index;size:36;not null" json:"dealership_id"`
	Email        string     `gorm:"size:255;not null" json:"email"`
	Role         string     `gorm:"size:50;not null" json:"role"`
	Token        string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt    time.Time  `gorm:"not null" json:"expires_at"`
	AcceptedAt   *time.Time `json:"accepted_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

const inviteLifespan = 7 * 24 * time.Hour

type NewInvite struct {
	Email string `json:"email" binding:"required"`
	Role  string `json:"role" binding:"required"`
}

func (input *NewInvite) validate(ctx context.Context) error {
	if !utils.IsValidEmail(input.Email) {
		return NewValidationError("email", "email must be a valid email")
	}
	if UserRole(input.Role) == UserRoleOwner {
		return NewValidationError("role", "cannot invite an owner")
	}
	return nil
}

type AcceptInvite struct {
	Token    string `json:"token" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Pin      string `json:"pin"`
	Password string `json:"password"`
}

func (inv *Invite) Expired(now time.Time) bool {
	return inv.AcceptedAt != nil || now.After(inv.ExpiresAt)
}
