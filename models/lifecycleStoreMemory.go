package models

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fixed ids for the seeded demo tenant so tokens issued for the sandbox stay
// valid across requests.
const (
	DemoDealershipID = "00000000-0000-0000-0000-00000000d390"
	DemoAdminUserID  = "00000000-0000-0000-0000-00000000ad31"
)

const lockStripes = 64

// MemoryLifecycleStore backs demo/sandbox sessions. Everything lives in
// process memory and vanishes on restart. A striped mutex set serializes
// session open/close per key, mirroring the advisory lock the MySQL store
// takes.
type MemoryLifecycleStore struct {
	mu sync.RWMutex

	dealerships map[string]*Dealership
	users       map[string]*User
	keys        map[string]*Key
	sessions    map[string]*CheckoutSession
	history     []*KeyHistory
	repairs     map[string]*RepairRequest
	pdiAudit    []*PdiAuditLog
	invites     map[string]*Invite

	nextHistoryID  int
	nextPdiAuditID int

	keyLocks [lockStripes]sync.Mutex
}

func NewMemoryLifecycleStore() *MemoryLifecycleStore {
	s := &MemoryLifecycleStore{
		dealerships: map[string]*Dealership{},
		users:       map[string]*User{},
		keys:        map[string]*Key{},
		sessions:    map[string]*CheckoutSession{},
		repairs:     map[string]*RepairRequest{},
		invites:     map[string]*Invite{},
	}
	s.seedDemo()
	return s
}

func (s *MemoryLifecycleStore) seedDemo() {
	active := true
	// RV with a full bay board so the sandbox can exercise bay service.
	s.dealerships[DemoDealershipID] = &Dealership{
		ID:        DemoDealershipID,
		Name:      "Demo Motors",
		Type:      DealershipTypeRV,
		BayCount:  8,
		IsActive:  &active,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.users[DemoAdminUserID] = &User{
		ID:           DemoAdminUserID,
		DealershipId: DemoDealershipID,
		Name:         "Demo Admin",
		Email:        "demo@example.com",
		Role:         string(UserRoleDealershipAdmin),
		IsActive:     &active,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func (s *MemoryLifecycleStore) keyLock(keyId string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(keyId))
	return &s.keyLocks[h.Sum32()%lockStripes]
}

func (s *MemoryLifecycleStore) appendHistoryLocked(entry *KeyHistory) {
	s.nextHistoryID++
	entry.ID = s.nextHistoryID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	copied := *entry
	s.history = append(s.history, &copied)
}

func copyDealership(d *Dealership) *Dealership { c := *d; return &c }
func copyUser(u *User) *User                   { c := *u; return &c }
func copyInvite(i *Invite) *Invite             { c := *i; return &c }

func copyKey(k *Key) *Key {
	c := *k
	if k.PdiLastUpdatedAt != nil {
		at := *k.PdiLastUpdatedAt
		c.PdiLastUpdatedAt = &at
	}
	return &c
}

func copySession(in *CheckoutSession) *CheckoutSession {
	c := *in
	if in.OpenKeyRef != nil {
		ref := *in.OpenKeyRef
		c.OpenKeyRef = &ref
	}
	if in.Bay != nil {
		bay := *in.Bay
		c.Bay = &bay
	}
	if in.ReturnedAt != nil {
		at := *in.ReturnedAt
		c.ReturnedAt = &at
	}
	return &c
}

func copyRepair(in *RepairRequest) *RepairRequest {
	c := *in
	c.Images = append([]string(nil), in.Images...)
	if in.FixedBy != nil {
		by := *in.FixedBy
		c.FixedBy = &by
	}
	if in.FixedAt != nil {
		at := *in.FixedAt
		c.FixedAt = &at
	}
	return &c
}

// --- dealerships ---

func (s *MemoryLifecycleStore) CreateDealership(ctx context.Context, dealership *Dealership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dealership.ID == "" {
		dealership.ID = uuid.NewString()
	}
	s.dealerships[dealership.ID] = copyDealership(dealership)
	return nil
}

func (s *MemoryLifecycleStore) GetDealership(ctx context.Context, id string) (*Dealership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dealerships[id]
	if !ok {
		return nil, ErrDealershipNotFound
	}
	return copyDealership(d), nil
}

func (s *MemoryLifecycleStore) UpdateDealership(ctx context.Context, dealership *Dealership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dealerships[dealership.ID]; !ok {
		return ErrDealershipNotFound
	}
	s.dealerships[dealership.ID] = copyDealership(dealership)
	return nil
}

func (s *MemoryLifecycleStore) ListDealerships(ctx context.Context) ([]*Dealership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]*Dealership, 0, len(s.dealerships))
	for _, d := range s.dealerships {
		if d.IsActive != nil && *d.IsActive {
			results = append(results, copyDealership(d))
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

// --- users ---

func (s *MemoryLifecycleStore) CreateUser(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *MemoryLifecycleStore) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *MemoryLifecycleStore) GetUserByEmail(ctx context.Context, dealershipId, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if dealershipId != "" && u.DealershipId != dealershipId {
			continue
		}
		if u.IsActive != nil && !*u.IsActive {
			continue
		}
		return copyUser(u), nil
	}
	return nil, ErrUserNotFound
}

func (s *MemoryLifecycleStore) ListUsers(ctx context.Context, dealershipId string) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*User
	for _, u := range s.users {
		if u.DealershipId == dealershipId && (u.IsActive == nil || *u.IsActive) {
			results = append(results, copyUser(u))
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

func (s *MemoryLifecycleStore) UpdateUser(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *MemoryLifecycleStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	inactive := false
	u.IsActive = &inactive
	return nil
}

func (s *MemoryLifecycleStore) CountUsers(ctx context.Context, dealershipId string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, u := range s.users {
		if u.DealershipId == dealershipId && (u.IsActive == nil || *u.IsActive) {
			count++
		}
	}
	return count, nil
}

// --- keys ---

func (s *MemoryLifecycleStore) CreateKey(ctx context.Context, key *Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	s.keys[key.ID] = copyKey(key)
	return nil
}

func (s *MemoryLifecycleStore) GetKey(ctx context.Context, dealershipId, id string) (*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[id]
	if !ok || k.DealershipId != dealershipId {
		return nil, ErrKeyNotFound
	}
	return copyKey(k), nil
}

func (s *MemoryLifecycleStore) GetActiveKeyByStockNumber(ctx context.Context, dealershipId, stockNumber string) (*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.DealershipId == dealershipId && k.StockNumber == stockNumber &&
			(k.IsActive == nil || *k.IsActive) {
			return copyKey(k), nil
		}
	}
	return nil, ErrKeyNotFound
}

func (s *MemoryLifecycleStore) UpdateKey(ctx context.Context, key *Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.ID]; !ok {
		return ErrKeyNotFound
	}
	s.keys[key.ID] = copyKey(key)
	return nil
}

func (s *MemoryLifecycleStore) ListKeys(ctx context.Context, dealershipId string, activeOnly bool) ([]*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*Key
	for _, k := range s.keys {
		if k.DealershipId != dealershipId {
			continue
		}
		if activeOnly && k.IsActive != nil && !*k.IsActive {
			continue
		}
		results = append(results, copyKey(k))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StockNumber < results[j].StockNumber })
	return results, nil
}

func (s *MemoryLifecycleStore) CountActiveKeys(ctx context.Context, dealershipId string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, k := range s.keys {
		if k.DealershipId == dealershipId && (k.IsActive == nil || *k.IsActive) {
			count++
		}
	}
	return count, nil
}

// --- sessions ---

func (s *MemoryLifecycleStore) openSessionLocked(keyId string) *CheckoutSession {
	for _, sess := range s.sessions {
		if sess.KeyId == keyId && sess.OpenKeyRef != nil {
			return sess
		}
	}
	return nil
}

func (s *MemoryLifecycleStore) OpenSession(ctx context.Context, session *CheckoutSession, key *Key, attention *RepairRequest, entries []*KeyHistory) error {
	lock := s.keyLock(session.KeyId)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openSessionLocked(session.KeyId) != nil {
		return ErrAlreadyOpen
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	s.sessions[session.ID] = copySession(session)

	if attention != nil && key != nil {
		if attention.ID == "" {
			attention.ID = uuid.NewString()
		}
		s.repairs[attention.ID] = copyRepair(attention)
		if stored, ok := s.keys[key.ID]; ok {
			stored.AttentionStatus = AttentionStatusNeeds
		}
	}

	for _, entry := range entries {
		s.appendHistoryLocked(entry)
	}
	return nil
}

func (s *MemoryLifecycleStore) CloseSession(ctx context.Context, dealershipId, keyId string, returnedAt time.Time, entry *KeyHistory) (*CheckoutSession, error) {
	lock := s.keyLock(keyId)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	open := s.openSessionLocked(keyId)
	if open == nil || open.DealershipId != dealershipId {
		return nil, ErrNoOpenSession
	}

	duration := open.DurationMinutes(returnedAt)
	open.ReturnedAt = &returnedAt
	open.OpenKeyRef = nil

	entry.DurationMinutes = &duration
	s.appendHistoryLocked(entry)

	return copySession(open), nil
}

func (s *MemoryLifecycleStore) UpdateOpenSessionBay(ctx context.Context, dealershipId, keyId, bay string, entry *KeyHistory) (*CheckoutSession, error) {
	lock := s.keyLock(keyId)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	open := s.openSessionLocked(keyId)
	if open == nil || open.DealershipId != dealershipId {
		return nil, ErrNoOpenSession
	}

	open.Bay = &bay
	s.appendHistoryLocked(entry)

	return copySession(open), nil
}

func (s *MemoryLifecycleStore) GetOpenSession(ctx context.Context, dealershipId, keyId string) (*CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	open := s.openSessionLocked(keyId)
	if open == nil || open.DealershipId != dealershipId {
		return nil, nil
	}
	return copySession(open), nil
}

func (s *MemoryLifecycleStore) ListOpenSessions(ctx context.Context, dealershipId string) ([]*CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*CheckoutSession
	for _, sess := range s.sessions {
		if sess.DealershipId == dealershipId && sess.OpenKeyRef != nil {
			results = append(results, copySession(sess))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CheckedOutAt.Before(results[j].CheckedOutAt)
	})
	return results, nil
}

func (s *MemoryLifecycleStore) ListSessions(ctx context.Context, dealershipId, keyId string, limit int) ([]*CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*CheckoutSession
	for _, sess := range s.sessions {
		if sess.DealershipId != dealershipId {
			continue
		}
		if keyId != "" && sess.KeyId != keyId {
			continue
		}
		results = append(results, copySession(sess))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CheckedOutAt.After(results[j].CheckedOutAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// --- audit ---

func (s *MemoryLifecycleStore) ListHistory(ctx context.Context, dealershipId, keyId string, limit int) ([]*KeyHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*KeyHistory
	for i := len(s.history) - 1; i >= 0; i-- {
		entry := s.history[i]
		if entry.DealershipId != dealershipId {
			continue
		}
		if keyId != "" && entry.KeyId != keyId {
			continue
		}
		copied := *entry
		results = append(results, &copied)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// --- attention ---

func (s *MemoryLifecycleStore) SaveAttention(ctx context.Context, key *Key, record *RepairRequest, entry *KeyHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	s.repairs[record.ID] = copyRepair(record)
	if stored, ok := s.keys[key.ID]; ok {
		stored.AttentionStatus = key.AttentionStatus
	}
	s.appendHistoryLocked(entry)
	return nil
}

func (s *MemoryLifecycleStore) ClearAttention(ctx context.Context, key *Key, entry *KeyHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.repairs {
		if rec.KeyId == key.ID && rec.DealershipId == key.DealershipId {
			delete(s.repairs, id)
		}
	}
	if stored, ok := s.keys[key.ID]; ok {
		stored.AttentionStatus = AttentionStatusNone
	}
	s.appendHistoryLocked(entry)
	return nil
}

func (s *MemoryLifecycleStore) GetPendingRepairRequest(ctx context.Context, dealershipId, keyId string) (*RepairRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *RepairRequest
	for _, rec := range s.repairs {
		if rec.DealershipId != dealershipId || rec.KeyId != keyId ||
			rec.Status != RepairRequestStatusPending {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrNoActiveAttentionRecord
	}
	return copyRepair(latest), nil
}

func (s *MemoryLifecycleStore) ListRepairRequests(ctx context.Context, dealershipId, keyId string) ([]*RepairRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*RepairRequest
	for _, rec := range s.repairs {
		if rec.DealershipId != dealershipId {
			continue
		}
		if keyId != "" && rec.KeyId != keyId {
			continue
		}
		results = append(results, copyRepair(rec))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

func (s *MemoryLifecycleStore) CountPendingRepairRequests(ctx context.Context, dealershipId string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, rec := range s.repairs {
		if rec.DealershipId == dealershipId && rec.Status == RepairRequestStatusPending {
			count++
		}
	}
	return count, nil
}

// --- pdi ---

func (s *MemoryLifecycleStore) SavePdiStatus(ctx context.Context, key *Key, log *PdiAuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.keys[key.ID]; ok {
		stored.PdiStatus = key.PdiStatus
		stored.PdiLastUpdatedBy = key.PdiLastUpdatedBy
		if key.PdiLastUpdatedAt != nil {
			at := *key.PdiLastUpdatedAt
			stored.PdiLastUpdatedAt = &at
		}
	}
	s.nextPdiAuditID++
	log.ID = s.nextPdiAuditID
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	copied := *log
	s.pdiAudit = append(s.pdiAudit, &copied)
	return nil
}

func (s *MemoryLifecycleStore) ListPdiAudit(ctx context.Context, dealershipId, keyId string) ([]*PdiAuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*PdiAuditLog
	for i := len(s.pdiAudit) - 1; i >= 0; i-- {
		entry := s.pdiAudit[i]
		if entry.DealershipId == dealershipId && entry.KeyId == keyId {
			copied := *entry
			results = append(results, &copied)
		}
	}
	return results, nil
}

// --- invites ---

func (s *MemoryLifecycleStore) CreateInvite(ctx context.Context, invite *Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if invite.ID == "" {
		invite.ID = uuid.NewString()
	}
	s.invites[invite.ID] = copyInvite(invite)
	return nil
}

func (s *MemoryLifecycleStore) GetInviteByToken(ctx context.Context, token string) (*Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invites {
		if inv.Token == token {
			return copyInvite(inv), nil
		}
	}
	return nil, ErrInviteNotFound
}

func (s *MemoryLifecycleStore) ListInvites(ctx context.Context, dealershipId string) ([]*Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*Invite
	for _, inv := range s.invites {
		if inv.DealershipId == dealershipId {
			results = append(results, copyInvite(inv))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

func (s *MemoryLifecycleStore) UpdateInvite(ctx context.Context, invite *Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invites[invite.ID]; !ok {
		return ErrInviteNotFound
	}
	s.invites[invite.ID] = copyInvite(invite)
	return nil
}

func (s *MemoryLifecycleStore) DeleteInvite(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invites, id)
	return nil
}
