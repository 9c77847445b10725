package models

import (
	"context"
	"strings"

	"github.com/keyflowhq/keyflow_backend/config"
	"github.com/keyflowhq/keyflow_backend/utils"
)

type Login struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

type PinLogin struct {
	DealershipId string `json:"dealership_id" binding:"required"`
	Pin          string `json:"pin" binding:"required"`
	RememberMe   bool   `json:"remember_me"`
}

type AuthPayload struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Authenticate signs in owners and admins by email and password.
func (l *KeyLifecycle) Authenticate(ctx context.Context, input *Login) (*AuthPayload, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	user, err := l.db.GetUserByEmail(ctx, "", email)
	if err != nil {
		if err == ErrUserNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" ||
		utils.ComparePassword(user.PasswordHash, input.Password) != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := utils.JwtGenerate(user.ID, user.Name, user.Role, user.DealershipId, false, input.RememberMe)
	if err != nil {
		return nil, err
	}
	return &AuthPayload{Token: token, User: user}, nil
}

// AuthenticatePin signs in kiosk staff: the shared tablet knows its
// dealership, the user types their pin.
func (l *KeyLifecycle) AuthenticatePin(ctx context.Context, input *PinLogin) (*AuthPayload, error) {
	if !utils.IsValidPin(input.Pin) {
		return nil, ErrInvalidCredentials
	}

	users, err := l.db.ListUsers(ctx, input.DealershipId)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if user.PinHash == "" {
			continue
		}
		if utils.ComparePassword(user.PinHash, input.Pin) == nil {
			token, err := utils.JwtGenerate(user.ID, user.Name, user.Role, user.DealershipId, false, input.RememberMe)
			if err != nil {
				return nil, err
			}
			return &AuthPayload{Token: token, User: user}, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// CurrentUser resolves the authenticated user behind the request token.
func (l *KeyLifecycle) CurrentUser(ctx context.Context) (*User, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return l.storeFor(actor).GetUser(ctx, actor.ID)
}

type ChangePin struct {
	CurrentPin      string `json:"current_pin"`
	CurrentPassword string `json:"current_password"`
	NewPin          string `json:"new_pin" binding:"required"`
}

// ChangePin rotates the caller's own pin after re-proving the current
// credential (pin when one is set, password otherwise).
func (l *KeyLifecycle) ChangePin(ctx context.Context, input *ChangePin) (*User, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !utils.IsValidPin(input.NewPin) {
		return nil, NewValidationError("new_pin", "pin must be 4-6 digits")
	}

	store := l.storeFor(actor)
	user, err := store.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case user.PinHash != "":
		if utils.ComparePassword(user.PinHash, input.CurrentPin) != nil {
			return nil, ErrInvalidCredentials
		}
	case user.PasswordHash != "":
		if utils.ComparePassword(user.PasswordHash, input.CurrentPassword) != nil {
			return nil, ErrInvalidCredentials
		}
	}

	hash, err := utils.HashPassword(input.NewPin)
	if err != nil {
		return nil, err
	}
	user.PinHash = string(hash)
	if err := store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AuthenticateDemo issues a sandbox session against the seeded in-memory
// tenant. No credentials needed.
func (l *KeyLifecycle) AuthenticateDemo(ctx context.Context) (*AuthPayload, error) {
	user, err := l.demo.GetUser(ctx, DemoAdminUserID)
	if err != nil {
		config.LogError(l.logger, "models", "AuthenticateDemo", "seeded demo admin missing", nil, err)
		return nil, err
	}
	token, err := utils.JwtGenerate(user.ID, user.Name, user.Role, user.DealershipId, true, false)
	if err != nil {
		return nil, err
	}
	return &AuthPayload{Token: token, User: user}, nil
}
