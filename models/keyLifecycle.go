package models

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/keyflowhq/keyflow_backend/config"
	"github.com/keyflowhq/keyflow_backend/utils"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// Actor is the authenticated caller, pulled from the request context.
type Actor struct {
	ID           string
	Name         string
	Role         UserRole
	DealershipId string
	IsDemo       bool
}

func ActorFromContext(ctx context.Context) (*Actor, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, ErrForbidden
	}
	name, _ := utils.GetUserNameFromContext(ctx)
	role, _ := utils.GetUserRoleFromContext(ctx)
	dealershipId, _ := utils.GetDealershipIdFromContext(ctx)
	isDemo, _ := utils.GetIsDemoFromContext(ctx)
	return &Actor{
		ID:           userId,
		Name:         name,
		Role:         UserRole(role),
		DealershipId: dealershipId,
		IsDemo:       isDemo,
	}, nil
}

// KeyLifecycle orchestrates every key state change. All authorization and
// demo capacity checks live here so both the MySQL and the sandbox store see
// only valid operations.
type KeyLifecycle struct {
	db     LifecycleStore
	demo   LifecycleStore
	logger *logrus.Logger
	tracer trace.Tracer
}

func NewKeyLifecycle(db LifecycleStore, demo LifecycleStore, logger *logrus.Logger) *KeyLifecycle {
	return &KeyLifecycle{
		db:     db,
		demo:   demo,
		logger: logger,
		tracer: otel.Tracer("keyflow/lifecycle"),
	}
}

func (l *KeyLifecycle) storeFor(actor *Actor) LifecycleStore {
	if actor.IsDemo {
		return l.demo
	}
	return l.db
}

func requireAdmin(actor *Actor) error {
	if !actor.Role.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (l *KeyLifecycle) dealershipFor(ctx context.Context, actor *Actor) (*Dealership, error) {
	if actor.DealershipId == "" {
		return nil, nil
	}
	return l.storeFor(actor).GetDealership(ctx, actor.DealershipId)
}

// --- keys ---

func (l *KeyLifecycle) CreateKey(ctx context.Context, input *NewKey) (*Key, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	store := l.storeFor(actor)

	if actor.IsDemo {
		count, err := store.CountActiveKeys(ctx, actor.DealershipId)
		if err != nil {
			return nil, err
		}
		if count >= int64(config.DemoMaxKeys()) {
			return nil, ErrCapacityExceeded
		}
	}

	if _, err := store.GetActiveKeyByStockNumber(ctx, actor.DealershipId, input.StockNumber); err == nil {
		return nil, ErrDuplicateStockNumber
	} else if err != ErrKeyNotFound {
		return nil, err
	}

	key := &Key{
		ID:              uuid.NewString(),
		DealershipId:    actor.DealershipId,
		StockNumber:     input.StockNumber,
		Condition:       KeyCondition(input.Condition),
		Vin:             input.Vin,
		Make:            input.Make,
		Model:           input.Model,
		Year:            input.Year,
		Color:           input.Color,
		TagNumber:       input.TagNumber,
		AttentionStatus: AttentionStatusNone,
		PdiStatus:       PdiStatusNotYet,
		IsActive:        utils.NewTrue(),
	}
	if err := store.CreateKey(ctx, key); err != nil {
		config.LogError(l.logger, "models", "CreateKey", "create", key.StockNumber, err)
		return nil, err
	}
	return key, nil
}

func (l *KeyLifecycle) UpdateKey(ctx context.Context, keyId string, input *NewKey) (*Key, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	store := l.storeFor(actor)
	key, err := store.GetKey(ctx, actor.DealershipId, keyId)
	if err != nil {
		return nil, err
	}

	if input.StockNumber != key.StockNumber {
		if _, err := store.GetActiveKeyByStockNumber(ctx, actor.DealershipId, input.StockNumber); err == nil {
			return nil, ErrDuplicateStockNumber
		} else if err != ErrKeyNotFound {
			return nil, err
		}
	}

	key.StockNumber = input.StockNumber
	key.Condition = KeyCondition(input.Condition)
	key.Vin = input.Vin
	key.Make = input.Make
	key.Model = input.Model
	key.Year = input.Year
	key.Color = input.Color
	key.TagNumber = input.TagNumber
	if err := store.UpdateKey(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// SetKeyPhoto records the stored photo URL on the key.
func (l *KeyLifecycle) SetKeyPhoto(ctx context.Context, keyId, photoUrl string) (*Key, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	store := l.storeFor(actor)
	key, err := store.GetKey(ctx, actor.DealershipId, keyId)
	if err != nil {
		return nil, err
	}
	key.PhotoUrl = photoUrl
	if err := store.UpdateKey(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// RetireKey soft-deletes a key. Its sessions and audit trail remain; the
// stock number becomes reusable.
func (l *KeyLifecycle) RetireKey(ctx context.Context, keyId string) (*Key, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	store := l.storeFor(actor)
	key, err := store.GetKey(ctx, actor.DealershipId, keyId)
	if err != nil {
		return nil, err
	}
	if open, err := store.GetOpenSession(ctx, actor.DealershipId, keyId); err != nil {
		return nil, err
	} else if open != nil {
		return nil, ErrAlreadyOpen
	}

	key.IsActive = utils.NewFalse()
	if err := store.UpdateKey(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (l *KeyLifecycle) GetKeyView(ctx context.Context, keyId string) (*KeyView, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	store := l.storeFor(actor)

	key, err := store.GetKey(ctx, actor.DealershipId, keyId)
	if err != nil {
		return nil, err
	}
	open, err := store.GetOpenSession(ctx, actor.DealershipId, keyId)
	if err != nil {
		return nil, err
	}
	dealership, err := l.dealershipFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	view := BuildKeyView(key, open, dealership, timeNow())
	return &view, nil
}

func (l *KeyLifecycle) ListKeyViews(ctx context.Context) ([]KeyView, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	store := l.storeFor(actor)

	keys, err := store.ListKeys(ctx, actor.DealershipId, true)
	if err != nil {
		return nil, err
	}
	openSessions, err := store.ListOpenSessions(ctx, actor.DealershipId)
	if err != nil {
		return nil, err
	}
	dealership, err := l.dealershipFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	openByKey := make(map[string]*CheckoutSession, len(openSessions))
	for _, sess := range openSessions {
		openByKey[sess.KeyId] = sess
	}

	now := timeNow()
	views := make([]KeyView, 0, len(keys))
	for _, key := range keys {
		views = append(views, BuildKeyView(key, openByKey[key.ID], dealership, now))
	}
	return views, nil
}

// OverdueKeys returns checked-out keys at YELLOW or RED, worst first.
func (l *KeyLifecycle) OverdueKeys(ctx context.Context) ([]KeyView, error) {
	views, err := l.ListKeyViews(ctx)
	if err != nil {
		return nil, err
	}
	var overdue []KeyView
	for _, view := range views {
		if view.AlertTier != AlertTierGreen {
			overdue = append(overdue, view)
		}
	}
	sort.Slice(overdue, func(i, j int) bool {
		return overdue[i].ElapsedMinutes > overdue[j].ElapsedMinutes
	})
	return overdue, nil
}

// --- checkout / return / bay moves ---

func (l *KeyLifecycle) Checkout(ctx context.Context, keyId string, input *NewCheckout) (*CheckoutSession, error) {
	ctx, span := l.tracer.Start(ctx, "KeyLifecycle.Checkout")
	defer span.End()

	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	dealership, err := l.dealershipFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, dealership); err != nil {
		return nil, err
	}

	store := l.storeFor(actor)
	key, err := store.GetKey(ctx, actor.DealershipId, keyId)
	if err != nil {
		return nil, err
	}
	if key.IsActive != nil && !*key.IsActive {
		return nil, ErrKeyNotFound
	}

	now := timeNow()
	openRef := key.ID
	session := &CheckoutSession{
		ID:           uuid.NewString(),
		DealershipId: actor.DealershipId,
		KeyId:        key.ID,
		OpenKeyRef:   &openRef,
		UserId:       actor.ID,
		UserName:     actor.Name,
		Reason:       CheckoutReason(input.Reason),
		CustomerName: input.CustomerName,
		Notes:        input.Notes,
		CheckedOutAt: now,
	}
	if input.Bay != "" {
		bay := strings.TrimSpace(input.Bay)
		session.Bay = &bay
	}

	entries := []*KeyHistory{{
		DealershipId: actor.DealershipId,
		KeyId:        key.ID,
		Action:       KeyHistoryActionCheckout,
		UserId:       actor.ID,
		UserName:     actor.Name,
		Reason:       input.Reason,
		Bay:          input.Bay,
		Notes:        input.Notes,
	}}

	// The attention flag rides in the same transaction and gets its own
	// audit entry, exactly as a standalone flag would.
	var attention *RepairRequest
	if input.ReportIssue {
		attention = &RepairRequest{
			ID:             uuid.NewString(),
			DealershipId:   actor.DealershipId,
			KeyId:          key.ID,
			Description:    input.IssueDescription,
			Images:         input.IssueImages,
			Status:         RepairRequestStatusPending,
			ReportedBy:     actor.ID,
			ReportedByName: actor.Name,
			CreatedAt:      now,
		}
		entries = append(entries, &KeyHistory{
			DealershipId: actor.DealershipId,
			KeyId:        key.ID,
			Action:       KeyHistoryActionAttentionFlagged,
			UserId:       actor.ID,
			UserName:     actor.Name,
			Notes:        input.IssueDescription,
		})
	}

	if err := store.OpenSession(ctx, session, key, attention, entries); err != nil {
		if err != ErrAlreadyOpen {
			config.LogError(l.logger, "models", "Checkout", "open session", key.StockNumber, err)
		}
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"key_id":       key.ID,
		"stock_number": key.StockNumber,
		"reason":       input.Reason,
		"user_id":      actor.ID,
	}).Info("key checked out")
	return session, nil
}

func (l *KeyLifecycle) Return(ctx context.Context, keyId string, input *ReturnKey) (*CheckoutSession, error) {
	ctx, span := l.tracer.Start(ctx, "KeyLifecycle.Return")
	defer span.End()

	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	store := l.storeFor(actor)
	key, err := store.GetKey(ctx, actor.DealershipId, keyId)
	if err != nil {
		return nil, err
	}

	var notes string
	if input != nil {
		notes = strings.TrimSpace(input.Notes)
	}
	entry := &KeyHistory{
		DealershipId: actor.DealershipId,
		KeyId:        key.ID,
		Action:       KeyHistoryActionReturn,
		UserId:       actor.ID,
		UserName:     actor.Name,
		Notes:        notes,
	}

	session, err := store.CloseSession(ctx, actor.DealershipId, key.ID, timeNow(), entry)
	if err != nil {
		if err != ErrNoOpenSession {
			config.LogError(l.logger, "models", "Return", "close session", key.StockNumber, err)
		}
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"key_id":           key.ID,
		"stock_number":     key.StockNumber,
		"duration_minutes": entry.DurationMinutes,
		"user_id":          actor.ID,
	}).Info("key returned")
	return session, nil
}

// MoveBay relocates an open service checkout to a different bay.
func (l *KeyLifecycle) MoveBay(ctx context.Context, keyId string, input *MoveBay) (*CheckoutSession, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	dealership, err := l.dealershipFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	bay := strings.TrimSpace(input.Bay)
	if !dealership.ValidBay(bay) {
		return nil, ErrInvalidBay
	}

	store := l.storeFor(actor)
	key, err := store.GetKey(ctx, actor.DealershipId, keyId)
	if err != nil {
		return nil, err
	}

	entry := &KeyHistory{
		DealershipId: actor.DealershipId,
		KeyId:        key.ID,
		Action:       KeyHistoryActionBayMove,
		UserId:       actor.ID,
		UserName:     actor.Name,
		Bay:          bay,
	}

	return store.UpdateOpenSessionBay(ctx, actor.DealershipId, key.ID, bay, entry)
}

// --- attention / repairs ---

func (l *KeyLifecycle) FlagAttention(ctx context.Context, keyId string, input *NewRepairRequest) (*RepairRequest, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	store := l.storeFor(actor)
	key, err := store.GetKey(ctx, actor.DealershipId, keyId)
	if err != nil {
		return nil, err
	}

	// A fresh record is always created, even when a previous one was marked
	// fixed. The fixed record stays behind as repair history.
	record := &RepairRequest{
		ID:             uuid.NewString(),
		DealershipId:   actor.DealershipId,
		KeyId:          key.ID,
		Description:    input.Description,
		Images:         input.Images,
		Status:         RepairRequestStatusPending,
		ReportedBy:     actor.ID,
		ReportedByName: actor.Name,
		CreatedAt:      timeNow(),
	}
	key.AttentionStatus = AttentionStatusNeeds

	entry := &KeyHistory{
		DealershipId: actor.DealershipId,
		KeyId:        key.ID,
		Action:       KeyHistoryActionAttentionFlagged,
		UserId:       actor.ID,
		UserName:     actor.Name,
		Notes:        input.Description,
	}

	if err := store.SaveAttention(ctx, key, record, entry); err != nil {
		config.LogError(l.logger, "models", "FlagAttention", "save", key.StockNumber, err)
		return nil, err
	}
	return record, nil
}

func (l *KeyLifecycle) MarkFixed(ctx context.Context, keyId string) (*RepairRequest, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	store := l.storeFor(actor)
	key, err := store.GetKey(ctx, actor.DealershipId, keyId)
	if err != nil {
		return nil, err
	}

	record, err := store.GetPendingRepairRequest(ctx, actor.DealershipId, key.ID)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	record.Status = RepairRequestStatusFixed
	record.FixedBy = &actor.ID
	record.FixedByName = actor.Name
	record.FixedAt = &now
	key.AttentionStatus = AttentionStatusFixed

	entry := &KeyHistory{
		DealershipId: actor.DealershipId,
		KeyId:        key.ID,
		Action:       KeyHistoryActionAttentionFixed,
		UserId:       actor.ID,
		UserName:     actor.Name,
	}

	if err := store.SaveAttention(ctx, key, record, entry); err != nil {
		config.LogError(l.logger, "models", "MarkFixed", "save", key.StockNumber, err)
		return nil, err
	}
	return record, nil
}

// ClearAttention hard-deletes a key's repair records and resets its attention
// status. Admin only.
func (l *KeyLifecycle) ClearAttention(ctx context.Context, keyId string) error {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return err
	}
	if err := requireAdmin(actor); err != nil {
		return err
	}

	store := l.storeFor(actor)
	key, err := store.GetKey(ctx, actor.DealershipId, keyId)
	if err != nil {
		return err
	}

	entry := &KeyHistory{
		DealershipId: actor.DealershipId,
		KeyId:        key.ID,
		Action:       KeyHistoryActionAttentionCleared,
		UserId:       actor.ID,
		UserName:     actor.Name,
	}
	return store.ClearAttention(ctx, key, entry)
}

func (l *KeyLifecycle) ListRepairRequests(ctx context.Context, keyId string) ([]*RepairRequest, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return l.storeFor(actor).ListRepairRequests(ctx, actor.DealershipId, keyId)
}

// --- pdi ---

func (l *KeyLifecycle) SetPdiStatus(ctx context.Context, keyId string, input *SetPdiStatus) (*Key, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	status := PdiStatus(strings.TrimSpace(input.Status))
	if !status.IsValid() {
		return nil, NewValidationError("status", "unknown pdi status")
	}

	store := l.storeFor(actor)
	key, err := store.GetKey(ctx, actor.DealershipId, keyId)
	if err != nil {
		return nil, err
	}
	if key.PdiStatus == status {
		return nil, ErrNoOpStatusChange
	}

	log := &PdiAuditLog{
		DealershipId: actor.DealershipId,
		KeyId:        key.ID,
		FromStatus:   key.PdiStatus,
		ToStatus:     status,
		UserId:       actor.ID,
		UserName:     actor.Name,
		Notes:        strings.TrimSpace(input.Notes),
	}
	now := timeNow()
	key.PdiStatus = status
	key.PdiLastUpdatedAt = &now
	key.PdiLastUpdatedBy = actor.Name

	if err := store.SavePdiStatus(ctx, key, log); err != nil {
		config.LogError(l.logger, "models", "SetPdiStatus", "save", key.StockNumber, err)
		return nil, err
	}
	return key, nil
}

// PdiHistory is admin only.
func (l *KeyLifecycle) PdiHistory(ctx context.Context, keyId string) ([]*PdiAuditLog, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return l.storeFor(actor).ListPdiAudit(ctx, actor.DealershipId, keyId)
}

// --- audit queries ---

func (l *KeyLifecycle) KeyHistory(ctx context.Context, keyId string, limit int) ([]*KeyHistory, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return l.storeFor(actor).ListHistory(ctx, actor.DealershipId, keyId, limit)
}

func (l *KeyLifecycle) CheckoutHistory(ctx context.Context, keyId string, limit int) ([]*CheckoutSession, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return l.storeFor(actor).ListSessions(ctx, actor.DealershipId, keyId, limit)
}

// --- bulk import ---

type BulkImportFailure struct {
	Row         int    `json:"row"`
	StockNumber string `json:"stock_number"`
	Error       string `json:"error"`
}

type BulkImportResult struct {
	Imported int                 `json:"imported"`
	Failed   []BulkImportFailure `json:"failed"`
}

// BulkImportKeys imports what it can and reports the rest. One bad row never
// aborts the batch.
func (l *KeyLifecycle) BulkImportKeys(ctx context.Context, rows []NewKey) (*BulkImportResult, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	result := &BulkImportResult{}
	seen := map[string]bool{}
	for i := range rows {
		row := rows[i]
		stockNumber := utils.NormalizeStockNumber(row.StockNumber)
		if seen[stockNumber] {
			result.Failed = append(result.Failed, BulkImportFailure{
				Row: i + 1, StockNumber: stockNumber, Error: ErrDuplicateStockNumber.Error(),
			})
			continue
		}
		if _, err := l.CreateKey(ctx, &row); err != nil {
			result.Failed = append(result.Failed, BulkImportFailure{
				Row: i + 1, StockNumber: stockNumber, Error: err.Error(),
			})
			continue
		}
		seen[stockNumber] = true
		result.Imported++
	}
	return result, nil
}

// --- users ---

func (l *KeyLifecycle) CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	store := l.storeFor(actor)

	if actor.IsDemo {
		count, err := store.CountUsers(ctx, actor.DealershipId)
		if err != nil {
			return nil, err
		}
		// The seeded demo admin does not count against the cap.
		if count-1 >= int64(config.DemoMaxUsers()) {
			return nil, ErrCapacityExceeded
		}
	}

	if input.Email != "" {
		if _, err := store.GetUserByEmail(ctx, actor.DealershipId, input.Email); err == nil {
			return nil, NewValidationError("email", "email already in use")
		} else if err != ErrUserNotFound {
			return nil, err
		}
	}

	user := &User{
		ID:           uuid.NewString(),
		DealershipId: actor.DealershipId,
		Name:         input.Name,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Role:         input.Role,
		IsActive:     utils.NewTrue(),
	}
	if input.Pin != "" {
		hash, err := utils.HashPassword(input.Pin)
		if err != nil {
			return nil, err
		}
		user.PinHash = string(hash)
	}
	if input.Password != "" {
		hash, err := utils.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	if err := store.CreateUser(ctx, user); err != nil {
		config.LogError(l.logger, "models", "CreateUser", "create", user.Email, err)
		return nil, err
	}
	return user, nil
}

func (l *KeyLifecycle) ListUsers(ctx context.Context) ([]*User, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return l.storeFor(actor).ListUsers(ctx, actor.DealershipId)
}

func (l *KeyLifecycle) DeleteUser(ctx context.Context, userId string) error {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return err
	}
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if userId == actor.ID {
		return NewValidationError("user_id", "cannot delete yourself")
	}
	user, err := l.storeFor(actor).GetUser(ctx, userId)
	if err != nil {
		return err
	}
	if user.DealershipId != actor.DealershipId {
		return ErrForbidden
	}
	return l.storeFor(actor).DeleteUser(ctx, userId)
}

// --- invites ---

func (l *KeyLifecycle) CreateInvite(ctx context.Context, input *NewInvite) (*Invite, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	invite := &Invite{
		ID:           uuid.NewString(),
		DealershipId: actor.DealershipId,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Role:         input.Role,
		Token:        strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", ""),
		ExpiresAt:    timeNow().Add(inviteLifespan),
	}
	if err := l.storeFor(actor).CreateInvite(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

func (l *KeyLifecycle) ListInvites(ctx context.Context) ([]*Invite, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return l.storeFor(actor).ListInvites(ctx, actor.DealershipId)
}

func (l *KeyLifecycle) RevokeInvite(ctx context.Context, inviteId string) error {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return err
	}
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return l.storeFor(actor).DeleteInvite(ctx, inviteId)
}

// ValidateInvite lets the signup page check a link before showing the
// form. Unauthenticated.
func (l *KeyLifecycle) ValidateInvite(ctx context.Context, token string) (*Invite, error) {
	invite, err := l.db.GetInviteByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invite.Expired(timeNow()) {
		return nil, ErrInviteNotFound
	}
	return invite, nil
}

// AcceptInvite runs unauthenticated against the primary store: the invitee
// has no token yet.
func (l *KeyLifecycle) AcceptInvite(ctx context.Context, input *AcceptInvite) (*User, error) {
	invite, err := l.db.GetInviteByToken(ctx, input.Token)
	if err != nil {
		return nil, err
	}
	if invite.Expired(timeNow()) {
		return nil, ErrInviteNotFound
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, NewValidationError("name", "name is required")
	}
	if input.Pin == "" && input.Password == "" {
		return nil, NewValidationError("pin", "a pin or password is required")
	}
	if input.Pin != "" && !utils.IsValidPin(input.Pin) {
		return nil, NewValidationError("pin", "pin must be 4-6 digits")
	}

	user := &User{
		ID:           uuid.NewString(),
		DealershipId: invite.DealershipId,
		Name:         input.Name,
		Email:        invite.Email,
		Role:         invite.Role,
		IsActive:     utils.NewTrue(),
	}
	if input.Pin != "" {
		hash, err := utils.HashPassword(input.Pin)
		if err != nil {
			return nil, err
		}
		user.PinHash = string(hash)
	}
	if input.Password != "" {
		hash, err := utils.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	if err := l.db.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	now := timeNow()
	invite.AcceptedAt = &now
	if err := l.db.UpdateInvite(ctx, invite); err != nil {
		config.LogError(l.logger, "models", "AcceptInvite", "mark accepted", invite.Email, err)
	}
	return user, nil
}

// --- dealerships ---

func (l *KeyLifecycle) CreateDealership(ctx context.Context, input *NewDealership) (*Dealership, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsOwner() {
		return nil, ErrForbidden
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	dealership := &Dealership{
		ID:                 uuid.NewString(),
		Name:               input.Name,
		Address:            input.Address,
		Phone:              input.Phone,
		Type:               DealershipType(input.Type),
		BayCount:           input.BayCount,
		AlertYellowMinutes: input.AlertYellowMinutes,
		AlertRedMinutes:    input.AlertRedMinutes,
		IsActive:           utils.NewTrue(),
	}
	if err := l.db.CreateDealership(ctx, dealership); err != nil {
		return nil, err
	}
	return dealership, nil
}

func (l *KeyLifecycle) UpdateDealership(ctx context.Context, input *NewDealership) (*Dealership, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	store := l.storeFor(actor)
	dealership, err := store.GetDealership(ctx, actor.DealershipId)
	if err != nil {
		return nil, err
	}

	dealership.Name = input.Name
	dealership.Address = input.Address
	dealership.Phone = input.Phone
	dealership.Type = DealershipType(input.Type)
	dealership.BayCount = input.BayCount
	dealership.AlertYellowMinutes = input.AlertYellowMinutes
	dealership.AlertRedMinutes = input.AlertRedMinutes
	if err := store.UpdateDealership(ctx, dealership); err != nil {
		return nil, err
	}
	return dealership, nil
}

func (l *KeyLifecycle) GetDealership(ctx context.Context) (*Dealership, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return l.storeFor(actor).GetDealership(ctx, actor.DealershipId)
}

func (l *KeyLifecycle) ListDealerships(ctx context.Context) ([]*Dealership, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsOwner() {
		return nil, ErrForbidden
	}
	return l.db.ListDealerships(ctx)
}

// PublicDealership is the login-screen listing: enough to pick a store,
// nothing more.
type PublicDealership struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListDealershipsPublic backs the unauthenticated dealership picker.
func (l *KeyLifecycle) ListDealershipsPublic(ctx context.Context) ([]PublicDealership, error) {
	dealerships, err := l.db.ListDealerships(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PublicDealership, 0, len(dealerships))
	for _, d := range dealerships {
		if d.IsActive != nil && !*d.IsActive {
			continue
		}
		out = append(out, PublicDealership{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

// DemoLimits reports sandbox usage so the UI can show "2 of 4 keys used".
type DemoLimits struct {
	MaxKeys   int   `json:"max_keys"`
	KeysUsed  int64 `json:"keys_used"`
	MaxUsers  int   `json:"max_users"`
	UsersUsed int64 `json:"users_used"`
}

func (l *KeyLifecycle) GetDemoLimits(ctx context.Context) (*DemoLimits, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.IsDemo {
		return nil, ErrForbidden
	}
	keys, err := l.demo.CountActiveKeys(ctx, actor.DealershipId)
	if err != nil {
		return nil, err
	}
	users, err := l.demo.CountUsers(ctx, actor.DealershipId)
	if err != nil {
		return nil, err
	}
	return &DemoLimits{
		MaxKeys:   config.DemoMaxKeys(),
		KeysUsed:  keys,
		MaxUsers:  config.DemoMaxUsers(),
		UsersUsed: users - 1,
	}, nil
}
