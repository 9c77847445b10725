package models

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/keyflowhq/keyflow_backend/config"
	"github.com/keyflowhq/keyflow_backend/utils"
)

// Needs a reachable MySQL (DB_* env vars). Run with INTEGRATION_TESTS=1.
func TestDBStoreSessionLifecycle(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run against MySQL")
	}

	config.ConnectDatabaseWithRetry()
	MigrateTable()

	ctx := context.Background()
	store := NewDBLifecycleStore()

	dealership := &Dealership{
		ID:       uuid.NewString(),
		Name:     "Integration Motors " + uuid.NewString()[:8],
		IsActive: utils.NewTrue(),
	}
	if err := store.CreateDealership(ctx, dealership); err != nil {
		t.Fatalf("CreateDealership: %v", err)
	}

	key := &Key{
		ID:              uuid.NewString(),
		DealershipId:    dealership.ID,
		StockNumber:     "IT-" + uuid.NewString()[:8],
		AttentionStatus: AttentionStatusNone,
		PdiStatus:       PdiStatusNotYet,
		IsActive:        utils.NewTrue(),
	}
	if err := store.CreateKey(ctx, key); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	openRef := key.ID
	session := &CheckoutSession{
		ID:           uuid.NewString(),
		DealershipId: dealership.ID,
		KeyId:        key.ID,
		OpenKeyRef:   &openRef,
		UserId:       uuid.NewString(),
		UserName:     "Integration Tester",
		Reason:       CheckoutReasonTestDrive,
		CheckedOutAt: time.Now(),
	}
	entry := &KeyHistory{
		DealershipId: dealership.ID,
		KeyId:        key.ID,
		Action:       KeyHistoryActionCheckout,
		UserId:       session.UserId,
	}
	if err := store.OpenSession(ctx, session, key, nil, []*KeyHistory{entry}); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	// A second open against the same key must lose.
	secondRef := key.ID
	second := &CheckoutSession{
		ID:           uuid.NewString(),
		DealershipId: dealership.ID,
		KeyId:        key.ID,
		OpenKeyRef:   &secondRef,
		UserId:       uuid.NewString(),
		Reason:       CheckoutReasonShowMove,
		CheckedOutAt: time.Now(),
	}
	err := store.OpenSession(ctx, second, key, nil, []*KeyHistory{{
		DealershipId: dealership.ID,
		KeyId:        key.ID,
		Action:       KeyHistoryActionCheckout,
		UserId:       second.UserId,
	}})
	if !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second open = %v, want ErrAlreadyOpen", err)
	}

	closed, err := store.CloseSession(ctx, dealership.ID, key.ID, time.Now(), &KeyHistory{
		DealershipId: dealership.ID,
		KeyId:        key.ID,
		Action:       KeyHistoryActionReturn,
		UserId:       session.UserId,
	})
	if err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if closed.ReturnedAt == nil || closed.OpenKeyRef != nil {
		t.Fatal("closed session not cleared")
	}

	if _, err := store.CloseSession(ctx, dealership.ID, key.ID, time.Now(), &KeyHistory{}); !errors.Is(err, ErrNoOpenSession) {
		t.Fatalf("double close = %v, want ErrNoOpenSession", err)
	}

	// The key is free again.
	if err := store.OpenSession(ctx, second, key, nil, []*KeyHistory{{
		DealershipId: dealership.ID,
		KeyId:        key.ID,
		Action:       KeyHistoryActionCheckout,
		UserId:       second.UserId,
	}}); err != nil {
		t.Fatalf("reopen after close: %v", err)
	}

	history, err := store.ListHistory(ctx, dealership.ID, key.ID, 0)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history rows = %d, want 3", len(history))
	}
}
