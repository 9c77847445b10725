package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/keyflowhq/keyflow_backend/config"
	"github.com/keyflowhq/keyflow_backend/utils"
)

// DBLifecycleStore persists the lifecycle in MySQL through the shared gorm
// handle. Session open/close run under a per-key advisory lock; the unique
// index on checkout_sessions.open_key_ref is the schema-level backstop in
// case a writer ever bypasses the lock.
type DBLifecycleStore struct{}

func NewDBLifecycleStore() *DBLifecycleStore {
	return &DBLifecycleStore{}
}

// acquireKeyLock takes a MySQL advisory lock named after the key. The lock is
// connection-scoped, so it must be acquired and released on the same
// transaction connection.
func acquireKeyLock(tx *gorm.DB, keyId string) error {
	var got int
	if err := tx.Raw("SELECT GET_LOCK(?, 5)", "key_session:"+keyId).Scan(&got).Error; err != nil {
		return err
	}
	if got != 1 {
		return errors.New("timed out waiting for key lock")
	}
	return nil
}

func releaseKeyLock(tx *gorm.DB, keyId string) {
	var released int
	tx.Raw("SELECT RELEASE_LOCK(?)", "key_session:"+keyId).Scan(&released)
}

func isDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "Duplicate entry") || strings.Contains(err.Error(), "1062")
}

// obtainRedisKeyLock is best effort: it shortens the window in which two app
// instances contend on the same key, but correctness never depends on Redis
// being up.
func obtainRedisKeyLock(keyId string) func() {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}
	}
	redisCtx := config.GetRedisContext()
	lock, err := locker.Obtain(redisCtx, "keylock:"+keyId, 5*time.Second, nil)
	if err != nil {
		return func() {}
	}
	return func() { _ = lock.Release(redisCtx) }
}

// --- dealerships ---

func (s *DBLifecycleStore) CreateDealership(ctx context.Context, dealership *Dealership) error {
	db := config.GetDB()
	return db.WithContext(ctx).Create(dealership).Error
}

func (s *DBLifecycleStore) GetDealership(ctx context.Context, id string) (*Dealership, error) {
	db := config.GetDB()
	var dealership Dealership
	err := db.WithContext(ctx).Where("id = ?", id).First(&dealership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDealershipNotFound
		}
		return nil, err
	}
	return &dealership, nil
}

func (s *DBLifecycleStore) UpdateDealership(ctx context.Context, dealership *Dealership) error {
	db := config.GetDB()
	return db.WithContext(ctx).Save(dealership).Error
}

func (s *DBLifecycleStore) ListDealerships(ctx context.Context) ([]*Dealership, error) {
	db := config.GetDB()
	var results []*Dealership
	err := db.WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&results).Error
	return results, err
}

// --- users ---

func (s *DBLifecycleStore) CreateUser(ctx context.Context, user *User) error {
	db := config.GetDB()
	return db.WithContext(ctx).Create(user).Error
}

func (s *DBLifecycleStore) GetUser(ctx context.Context, id string) (*User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *DBLifecycleStore) GetUserByEmail(ctx context.Context, dealershipId, email string) (*User, error) {
	db := config.GetDB()
	var user User
	query := db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true)
	if dealershipId != "" {
		query = query.Where("dealership_id = ?", dealershipId)
	}
	err := query.First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *DBLifecycleStore) ListUsers(ctx context.Context, dealershipId string) ([]*User, error) {
	db := config.GetDB()
	var results []*User
	err := db.WithContext(ctx).
		Where("dealership_id = ? AND is_active = ?", dealershipId, true).
		Order("name").Find(&results).Error
	return results, err
}

func (s *DBLifecycleStore) UpdateUser(ctx context.Context, user *User) error {
	db := config.GetDB()
	return db.WithContext(ctx).Save(user).Error
}

func (s *DBLifecycleStore) DeleteUser(ctx context.Context, id string) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
		Update("is_active", false).Error
}

func (s *DBLifecycleStore) CountUsers(ctx context.Context, dealershipId string) (int64, error) {
	return utils.ResourceCountWhere[User](ctx, "dealership_id = ? AND is_active = ?", dealershipId, true)
}

// --- keys ---

func (s *DBLifecycleStore) CreateKey(ctx context.Context, key *Key) error {
	db := config.GetDB()
	return db.WithContext(ctx).Create(key).Error
}

func (s *DBLifecycleStore) GetKey(ctx context.Context, dealershipId, id string) (*Key, error) {
	db := config.GetDB()
	var key Key
	err := db.WithContext(ctx).
		Where("id = ? AND dealership_id = ?", id, dealershipId).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return &key, nil
}

func (s *DBLifecycleStore) GetActiveKeyByStockNumber(ctx context.Context, dealershipId, stockNumber string) (*Key, error) {
	db := config.GetDB()
	var key Key
	err := db.WithContext(ctx).
		Where("dealership_id = ? AND stock_number = ? AND is_active = ?", dealershipId, stockNumber, true).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return &key, nil
}

func (s *DBLifecycleStore) UpdateKey(ctx context.Context, key *Key) error {
	db := config.GetDB()
	return db.WithContext(ctx).Save(key).Error
}

func (s *DBLifecycleStore) ListKeys(ctx context.Context, dealershipId string, activeOnly bool) ([]*Key, error) {
	db := config.GetDB()
	var results []*Key
	query := db.WithContext(ctx).Where("dealership_id = ?", dealershipId)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("stock_number").Find(&results).Error
	return results, err
}

func (s *DBLifecycleStore) CountActiveKeys(ctx context.Context, dealershipId string) (int64, error) {
	return utils.ResourceCountWhere[Key](ctx, "dealership_id = ? AND is_active = ?", dealershipId, true)
}

// --- sessions ---

func (s *DBLifecycleStore) OpenSession(ctx context.Context, session *CheckoutSession, key *Key, attention *RepairRequest, entries []*KeyHistory) error {
	db := config.GetDB()

	release := obtainRedisKeyLock(session.KeyId)
	defer release()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := acquireKeyLock(tx, session.KeyId); err != nil {
			return err
		}
		defer releaseKeyLock(tx, session.KeyId)

		var count int64
		if err := tx.Model(&CheckoutSession{}).
			Where("key_id = ? AND open_key_ref IS NOT NULL", session.KeyId).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyOpen
		}

		if err := tx.Create(session).Error; err != nil {
			if isDuplicateEntry(err) {
				return ErrAlreadyOpen
			}
			return err
		}

		if attention != nil && key != nil {
			if err := tx.Create(attention).Error; err != nil {
				return err
			}
			if err := tx.Model(&Key{}).Where("id = ?", key.ID).
				Update("attention_status", AttentionStatusNeeds).Error; err != nil {
				return err
			}
		}

		for _, entry := range entries {
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DBLifecycleStore) CloseSession(ctx context.Context, dealershipId, keyId string, returnedAt time.Time, entry *KeyHistory) (*CheckoutSession, error) {
	db := config.GetDB()

	release := obtainRedisKeyLock(keyId)
	defer release()

	var closed *CheckoutSession
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := acquireKeyLock(tx, keyId); err != nil {
			return err
		}
		defer releaseKeyLock(tx, keyId)

		var session CheckoutSession
		err := tx.Where("dealership_id = ? AND key_id = ? AND open_key_ref IS NOT NULL", dealershipId, keyId).
			First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoOpenSession
			}
			return err
		}

		duration := session.DurationMinutes(returnedAt)
		if err := tx.Model(&session).Updates(map[string]interface{}{
			"returned_at":  returnedAt,
			"open_key_ref": nil,
		}).Error; err != nil {
			return err
		}
		session.ReturnedAt = &returnedAt
		session.OpenKeyRef = nil

		entry.DurationMinutes = &duration
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		closed = &session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *DBLifecycleStore) UpdateOpenSessionBay(ctx context.Context, dealershipId, keyId, bay string, entry *KeyHistory) (*CheckoutSession, error) {
	db := config.GetDB()

	var updated *CheckoutSession
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := acquireKeyLock(tx, keyId); err != nil {
			return err
		}
		defer releaseKeyLock(tx, keyId)

		var session CheckoutSession
		err := tx.Where("dealership_id = ? AND key_id = ? AND open_key_ref IS NOT NULL", dealershipId, keyId).
			First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoOpenSession
			}
			return err
		}

		if err := tx.Model(&session).Update("bay", bay).Error; err != nil {
			return err
		}
		session.Bay = &bay

		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		updated = &session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *DBLifecycleStore) GetOpenSession(ctx context.Context, dealershipId, keyId string) (*CheckoutSession, error) {
	db := config.GetDB()
	var session CheckoutSession
	err := db.WithContext(ctx).
		Where("dealership_id = ? AND key_id = ? AND open_key_ref IS NOT NULL", dealershipId, keyId).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (s *DBLifecycleStore) ListOpenSessions(ctx context.Context, dealershipId string) ([]*CheckoutSession, error) {
	db := config.GetDB()
	var results []*CheckoutSession
	err := db.WithContext(ctx).
		Where("dealership_id = ? AND open_key_ref IS NOT NULL", dealershipId).
		Order("checked_out_at").Find(&results).Error
	return results, err
}

func (s *DBLifecycleStore) ListSessions(ctx context.Context, dealershipId, keyId string, limit int) ([]*CheckoutSession, error) {
	db := config.GetDB()
	var results []*CheckoutSession
	query := db.WithContext(ctx).Where("dealership_id = ?", dealershipId)
	if keyId != "" {
		query = query.Where("key_id = ?", keyId)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Order("checked_out_at DESC").Find(&results).Error
	return results, err
}

// --- audit ---

func (s *DBLifecycleStore) ListHistory(ctx context.Context, dealershipId, keyId string, limit int) ([]*KeyHistory, error) {
	db := config.GetDB()
	var results []*KeyHistory
	query := db.WithContext(ctx).Where("dealership_id = ?", dealershipId)
	if keyId != "" {
		query = query.Where("key_id = ?", keyId)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Order("id DESC").Find(&results).Error
	return results, err
}

// --- attention ---

func (s *DBLifecycleStore) SaveAttention(ctx context.Context, key *Key, record *RepairRequest, entry *KeyHistory) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(record).Error; err != nil {
			return err
		}
		if err := tx.Model(&Key{}).Where("id = ?", key.ID).
			Update("attention_status", key.AttentionStatus).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

func (s *DBLifecycleStore) ClearAttention(ctx context.Context, key *Key, entry *KeyHistory) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dealership_id = ? AND key_id = ?", key.DealershipId, key.ID).
			Delete(&RepairRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Key{}).Where("id = ?", key.ID).
			Update("attention_status", AttentionStatusNone).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

func (s *DBLifecycleStore) GetPendingRepairRequest(ctx context.Context, dealershipId, keyId string) (*RepairRequest, error) {
	db := config.GetDB()
	var record RepairRequest
	err := db.WithContext(ctx).
		Where("dealership_id = ? AND key_id = ? AND status = ?", dealershipId, keyId, RepairRequestStatusPending).
		Order("created_at DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveAttentionRecord
		}
		return nil, err
	}
	return &record, nil
}

func (s *DBLifecycleStore) ListRepairRequests(ctx context.Context, dealershipId, keyId string) ([]*RepairRequest, error) {
	db := config.GetDB()
	var results []*RepairRequest
	query := db.WithContext(ctx).Where("dealership_id = ?", dealershipId)
	if keyId != "" {
		query = query.Where("key_id = ?", keyId)
	}
	err := query.Order("created_at DESC").Find(&results).Error
	return results, err
}

func (s *DBLifecycleStore) CountPendingRepairRequests(ctx context.Context, dealershipId string) (int64, error) {
	return utils.ResourceCountWhere[RepairRequest](ctx, "dealership_id = ? AND status = ?", dealershipId, RepairRequestStatusPending)
}

// --- pdi ---

func (s *DBLifecycleStore) SavePdiStatus(ctx context.Context, key *Key, log *PdiAuditLog) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Key{}).Where("id = ?", key.ID).
			Updates(map[string]interface{}{
				"pdi_status":          key.PdiStatus,
				"pdi_last_updated_at": key.PdiLastUpdatedAt,
				"pdi_last_updated_by": key.PdiLastUpdatedBy,
			}).Error; err != nil {
			return err
		}
		return tx.Create(log).Error
	})
}

func (s *DBLifecycleStore) ListPdiAudit(ctx context.Context, dealershipId, keyId string) ([]*PdiAuditLog, error) {
	db := config.GetDB()
	var results []*PdiAuditLog
	err := db.WithContext(ctx).
		Where("dealership_id = ? AND key_id = ?", dealershipId, keyId).
		Order("id DESC").Find(&results).Error
	return results, err
}

// --- invites ---

func (s *DBLifecycleStore) CreateInvite(ctx context.Context, invite *Invite) error {
	db := config.GetDB()
	return db.WithContext(ctx).Create(invite).Error
}

func (s *DBLifecycleStore) GetInviteByToken(ctx context.Context, token string) (*Invite, error) {
	db := config.GetDB()
	var invite Invite
	err := db.WithContext(ctx).Where("token = ?", token).First(&invite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, err
	}
	return &invite, nil
}

func (s *DBLifecycleStore) ListInvites(ctx context.Context, dealershipId string) ([]*Invite, error) {
	db := config.GetDB()
	var results []*Invite
	err := db.WithContext(ctx).
		Where("dealership_id = ?", dealershipId).
		Order("created_at DESC").Find(&results).Error
	return results, err
}

func (s *DBLifecycleStore) UpdateInvite(ctx context.Context, invite *Invite) error {
	db := config.GetDB()
	return db.WithContext(ctx).Save(invite).Error
}

func (s *DBLifecycleStore) DeleteInvite(ctx context.Context, id string) error {
	db := config.GetDB()
	return db.WithContext(ctx).Where("id = ?", id).Delete(&Invite{}).Error
}
