package models

import (
	"context"
	"time"
)

// LifecycleStore is the persistence boundary for the key lifecycle engine.
// Two implementations exist: the MySQL store for real dealerships and the
// in-memory store backing demo/sandbox sessions. Multi-write operations
// (open, close, attention changes) are atomic in both.
type LifecycleStore interface {
	// Dealerships.
	CreateDealership(ctx context.Context, dealership *Dealership) error
	GetDealership(ctx context.Context, id string) (*Dealership, error)
	UpdateDealership(ctx context.Context, dealership *Dealership) error
	ListDealerships(ctx context.Context) ([]*Dealership, error)

	// Users.
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, dealershipId, email string) (*User, error)
	ListUsers(ctx context.Context, dealershipId string) ([]*User, error)
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id string) error
	CountUsers(ctx context.Context, dealershipId string) (int64, error)

	// Keys.
	CreateKey(ctx context.Context, key *Key) error
	GetKey(ctx context.Context, dealershipId, id string) (*Key, error)
	GetActiveKeyByStockNumber(ctx context.Context, dealershipId, stockNumber string) (*Key, error)
	UpdateKey(ctx context.Context, key *Key) error
	ListKeys(ctx context.Context, dealershipId string, activeOnly bool) ([]*Key, error)
	CountActiveKeys(ctx context.Context, dealershipId string) (int64, error)

	// Checkout sessions. OpenSession fails with ErrAlreadyOpen when the key
	// already has an open session; attention may be nil. The session, the
	// attention record and every entry commit together or not at all.
	// CloseSession and UpdateOpenSessionBay fail with ErrNoOpenSession when
	// the key is not out.
	OpenSession(ctx context.Context, session *CheckoutSession, key *Key, attention *RepairRequest, entries []*KeyHistory) error
	CloseSession(ctx context.Context, dealershipId, keyId string, returnedAt time.Time, entry *KeyHistory) (*CheckoutSession, error)
	UpdateOpenSessionBay(ctx context.Context, dealershipId, keyId, bay string, entry *KeyHistory) (*CheckoutSession, error)
	GetOpenSession(ctx context.Context, dealershipId, keyId string) (*CheckoutSession, error)
	ListOpenSessions(ctx context.Context, dealershipId string) ([]*CheckoutSession, error)
	ListSessions(ctx context.Context, dealershipId, keyId string, limit int) ([]*CheckoutSession, error)

	// Audit.
	ListHistory(ctx context.Context, dealershipId, keyId string, limit int) ([]*KeyHistory, error)

	// Attention. SaveAttention upserts the record, updates the key's
	// attention status and appends the audit entry atomically.
	// ClearAttention removes all repair records for the key.
	SaveAttention(ctx context.Context, key *Key, record *RepairRequest, entry *KeyHistory) error
	ClearAttention(ctx context.Context, key *Key, entry *KeyHistory) error
	GetPendingRepairRequest(ctx context.Context, dealershipId, keyId string) (*RepairRequest, error)
	ListRepairRequests(ctx context.Context, dealershipId, keyId string) ([]*RepairRequest, error)
	CountPendingRepairRequests(ctx context.Context, dealershipId string) (int64, error)

	// PDI.
	SavePdiStatus(ctx context.Context, key *Key, log *PdiAuditLog) error
	ListPdiAudit(ctx context.Context, dealershipId, keyId string) ([]*PdiAuditLog, error)

	// Invites.
	CreateInvite(ctx context.Context, invite *Invite) error
	GetInviteByToken(ctx context.Context, token string) (*Invite, error)
	ListInvites(ctx context.Context, dealershipId string) ([]*Invite, error)
	UpdateInvite(ctx context.Context, invite *Invite) error
	DeleteInvite(ctx context.Context, id string) error
}
