package models

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/keyflowhq/keyflow_backend/utils"
)

func newTestEngine() *KeyLifecycle {
	store := NewMemoryLifecycleStore()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewKeyLifecycle(store, store, logger)
}

func demoAdminContext() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, DemoAdminUserID)
	ctx = utils.SetUserNameInContext(ctx, "Demo Admin")
	ctx = utils.SetUserRoleInContext(ctx, string(UserRoleDealershipAdmin))
	ctx = utils.SetDealershipIdInContext(ctx, DemoDealershipID)
	ctx = utils.SetIsDemoInContext(ctx, true)
	return ctx
}

func demoStaffContext(role UserRole) context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, "staff-1")
	ctx = utils.SetUserNameInContext(ctx, "Sam Staff")
	ctx = utils.SetUserRoleInContext(ctx, string(role))
	ctx = utils.SetDealershipIdInContext(ctx, DemoDealershipID)
	ctx = utils.SetIsDemoInContext(ctx, true)
	return ctx
}

func mustCreateKey(t *testing.T, engine *KeyLifecycle, ctx context.Context, stockNumber string) *Key {
	t.Helper()
	key, err := engine.CreateKey(ctx, &NewKey{StockNumber: stockNumber, Make: "Toyota", Model: "Camry"})
	if err != nil {
		t.Fatalf("CreateKey(%s): %v", stockNumber, err)
	}
	return key
}

func TestCheckoutReturnRoundTrip(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()
	key := mustCreateKey(t, engine, ctx, "a100")

	if key.StockNumber != "A100" {
		t.Fatalf("stock number not normalized: %s", key.StockNumber)
	}

	session, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "test_drive", CustomerName: "Jo Buyer"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if session.OpenKeyRef == nil || *session.OpenKeyRef != key.ID {
		t.Fatal("open session must carry the key ref")
	}

	view, err := engine.GetKeyView(ctx, key.ID)
	if err != nil {
		t.Fatalf("GetKeyView: %v", err)
	}
	if view.Status != KeyStatusCheckedOut {
		t.Fatalf("status = %s, want checked_out", view.Status)
	}

	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "show_move"}); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second checkout = %v, want ErrAlreadyOpen", err)
	}

	closed, err := engine.Return(ctx, key.ID, &ReturnKey{Notes: "left at the front desk"})
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if closed.ReturnedAt == nil || closed.OpenKeyRef != nil {
		t.Fatal("returned session must be closed")
	}

	if _, err := engine.Return(ctx, key.ID, nil); !errors.Is(err, ErrNoOpenSession) {
		t.Fatalf("second return = %v, want ErrNoOpenSession", err)
	}

	history, err := engine.KeyHistory(ctx, key.ID, 0)
	if err != nil {
		t.Fatalf("KeyHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	// Newest first.
	if history[0].Action != KeyHistoryActionReturn || history[1].Action != KeyHistoryActionCheckout {
		t.Fatalf("history order wrong: %s, %s", history[0].Action, history[1].Action)
	}
	if history[0].DurationMinutes == nil {
		t.Fatal("return entry must record duration")
	}
	if history[0].Notes != "left at the front desk" {
		t.Fatalf("return notes = %q", history[0].Notes)
	}
}

func TestConcurrentCheckoutSingleWinner(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()
	key := mustCreateKey(t, engine, ctx, "B200")

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "test_drive"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	won, lost := 0, 0
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrAlreadyOpen):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("winners = %d, want exactly 1", won)
	}
	if lost != workers-1 {
		t.Fatalf("losers = %d, want %d", lost, workers-1)
	}
}

func TestCheckoutValidation(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()
	key := mustCreateKey(t, engine, ctx, "C300")

	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "joyride"}); !errors.Is(err, ErrInvalidReason) {
		t.Fatalf("bad reason = %v, want ErrInvalidReason", err)
	}
	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "service"}); !errors.Is(err, ErrInvalidBay) {
		t.Fatalf("service without bay = %v, want ErrInvalidBay", err)
	}
	// The demo dealership has eight bays; anything outside 1..8 is rejected.
	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "service", Bay: "99"}); !errors.Is(err, ErrInvalidBay) {
		t.Fatalf("bay 99 = %v, want ErrInvalidBay", err)
	}
	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "service", Bay: "0"}); !errors.Is(err, ErrInvalidBay) {
		t.Fatalf("bay 0 = %v, want ErrInvalidBay", err)
	}
	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "test_drive", Bay: "banana"}); !errors.Is(err, ErrInvalidBay) {
		t.Fatalf("non-numeric bay = %v, want ErrInvalidBay", err)
	}
}

func automotiveTestEngine(t *testing.T) (*KeyLifecycle, context.Context) {
	t.Helper()
	store := NewMemoryLifecycleStore()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	engine := NewKeyLifecycle(store, store, logger)

	dealership := &Dealership{
		ID:       "auto-lot-1",
		Name:     "Main Street Motors",
		Type:     DealershipTypeAutomotive,
		IsActive: utils.NewTrue(),
	}
	if err := store.CreateDealership(context.Background(), dealership); err != nil {
		t.Fatalf("CreateDealership: %v", err)
	}

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, "auto-admin-1")
	ctx = utils.SetUserNameInContext(ctx, "Alex Admin")
	ctx = utils.SetUserRoleInContext(ctx, string(UserRoleDealershipAdmin))
	ctx = utils.SetDealershipIdInContext(ctx, dealership.ID)
	return engine, ctx
}

func TestServiceReasonRequiresRVDealership(t *testing.T) {
	engine, ctx := automotiveTestEngine(t)
	key := mustCreateKey(t, engine, ctx, "A900")

	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "service", Bay: "1"}); !errors.Is(err, ErrInvalidReason) {
		t.Fatalf("service on automotive lot = %v, want ErrInvalidReason", err)
	}
	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "test_drive", Bay: "1"}); !errors.Is(err, ErrInvalidBay) {
		t.Fatalf("bay on automotive lot = %v, want ErrInvalidBay", err)
	}
	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "test_drive"}); err != nil {
		t.Fatalf("plain checkout: %v", err)
	}
	if _, err := engine.MoveBay(ctx, key.ID, &MoveBay{Bay: "1"}); !errors.Is(err, ErrInvalidBay) {
		t.Fatalf("bay move on automotive lot = %v, want ErrInvalidBay", err)
	}
}

func TestMoveBay(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()
	key := mustCreateKey(t, engine, ctx, "D400")

	if _, err := engine.MoveBay(ctx, key.ID, &MoveBay{Bay: "7"}); !errors.Is(err, ErrNoOpenSession) {
		t.Fatalf("move with no session = %v, want ErrNoOpenSession", err)
	}

	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "service", Bay: "3"}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	session, err := engine.MoveBay(ctx, key.ID, &MoveBay{Bay: "7"})
	if err != nil {
		t.Fatalf("MoveBay: %v", err)
	}
	if session.Bay == nil || *session.Bay != "7" {
		t.Fatal("bay not updated")
	}

	history, _ := engine.KeyHistory(ctx, key.ID, 1)
	if len(history) != 1 || history[0].Action != KeyHistoryActionBayMove {
		t.Fatalf("latest history = %+v, want bay_move", history)
	}
}

func TestDealershipTypeAndBays(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, "owner-1")
	ctx = utils.SetUserNameInContext(ctx, "Olive Owner")
	ctx = utils.SetUserRoleInContext(ctx, string(UserRoleOwner))

	plain, err := engine.CreateDealership(ctx, &NewDealership{Name: "Main Street Motors"})
	if err != nil {
		t.Fatalf("CreateDealership: %v", err)
	}
	if plain.Type != DealershipTypeAutomotive {
		t.Fatalf("default type = %s, want automotive", plain.Type)
	}
	if plain.BayCount != 0 {
		t.Fatalf("automotive bay count = %d, want 0", plain.BayCount)
	}

	// Bay counts only mean something on RV lots.
	trimmed, err := engine.CreateDealership(ctx, &NewDealership{Name: "Trim Lot", Type: "automotive", BayCount: 6})
	if err != nil {
		t.Fatalf("CreateDealership: %v", err)
	}
	if trimmed.BayCount != 0 {
		t.Fatalf("bay count on automotive lot = %d, want 0", trimmed.BayCount)
	}

	rv, err := engine.CreateDealership(ctx, &NewDealership{Name: "River RV", Type: "rv", BayCount: 6})
	if err != nil {
		t.Fatalf("CreateDealership rv: %v", err)
	}
	if rv.Type != DealershipTypeRV || rv.BayCount != 6 {
		t.Fatalf("rv dealership = %s/%d, want rv/6", rv.Type, rv.BayCount)
	}
	if !rv.ValidBay("6") || rv.ValidBay("7") || rv.ValidBay("0") || rv.ValidBay("two") {
		t.Fatal("bay range check wrong")
	}

	if _, err := engine.CreateDealership(ctx, &NewDealership{Name: "Odd Lot", Type: "boat"}); !IsValidationError(err) {
		t.Fatalf("bad type = %v, want validation error", err)
	}
	if _, err := engine.CreateDealership(ctx, &NewDealership{Name: "Odd Lot", Type: "rv", BayCount: -1}); !IsValidationError(err) {
		t.Fatalf("negative bays = %v, want validation error", err)
	}
}

func TestDemoKeyCap(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()

	for i, stockNumber := range []string{"K1", "K2", "K3", "K4"} {
		if _, err := engine.CreateKey(ctx, &NewKey{StockNumber: stockNumber}); err != nil {
			t.Fatalf("key %d: %v", i+1, err)
		}
	}
	if _, err := engine.CreateKey(ctx, &NewKey{StockNumber: "K5"}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("fifth key = %v, want ErrCapacityExceeded", err)
	}

	// Retiring a key frees a slot.
	views, _ := engine.ListKeyViews(ctx)
	if _, err := engine.RetireKey(ctx, views[0].Key.ID); err != nil {
		t.Fatalf("RetireKey: %v", err)
	}
	if _, err := engine.CreateKey(ctx, &NewKey{StockNumber: "K5"}); err != nil {
		t.Fatalf("key after retire: %v", err)
	}
}

func TestDuplicateStockNumber(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()
	key := mustCreateKey(t, engine, ctx, "E500")

	if _, err := engine.CreateKey(ctx, &NewKey{StockNumber: "e500"}); !errors.Is(err, ErrDuplicateStockNumber) {
		t.Fatalf("duplicate = %v, want ErrDuplicateStockNumber", err)
	}

	// Retired keys release their stock number.
	if _, err := engine.RetireKey(ctx, key.ID); err != nil {
		t.Fatalf("RetireKey: %v", err)
	}
	if _, err := engine.CreateKey(ctx, &NewKey{StockNumber: "E500"}); err != nil {
		t.Fatalf("reuse after retire: %v", err)
	}
}

func TestAttentionLifecycle(t *testing.T) {
	engine := newTestEngine()
	adminCtx := demoAdminContext()
	staffCtx := demoStaffContext(UserRoleService)
	key := mustCreateKey(t, engine, adminCtx, "F600")

	record, err := engine.FlagAttention(staffCtx, key.ID, &NewRepairRequest{Description: "fob battery dead"})
	if err != nil {
		t.Fatalf("FlagAttention: %v", err)
	}
	if record.Status != RepairRequestStatusPending {
		t.Fatalf("status = %s, want pending", record.Status)
	}

	view, _ := engine.GetKeyView(adminCtx, key.ID)
	if view.Key.AttentionStatus != AttentionStatusNeeds {
		t.Fatalf("attention = %s, want needs_attention", view.Key.AttentionStatus)
	}

	fixed, err := engine.MarkFixed(staffCtx, key.ID)
	if err != nil {
		t.Fatalf("MarkFixed: %v", err)
	}
	if fixed.Status != RepairRequestStatusFixed || fixed.FixedAt == nil {
		t.Fatal("record not marked fixed")
	}
	if _, err := engine.MarkFixed(staffCtx, key.ID); !errors.Is(err, ErrNoActiveAttentionRecord) {
		t.Fatalf("double fix = %v, want ErrNoActiveAttentionRecord", err)
	}

	// Re-flagging creates a fresh record; the fixed one survives as history.
	if _, err := engine.FlagAttention(staffCtx, key.ID, &NewRepairRequest{Description: "fob cracked"}); err != nil {
		t.Fatalf("re-flag: %v", err)
	}
	records, _ := engine.ListRepairRequests(adminCtx, key.ID)
	if len(records) != 2 {
		t.Fatalf("repair records = %d, want 2", len(records))
	}

	// Clearing is admin only and wipes all records.
	if err := engine.ClearAttention(staffCtx, key.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("staff clear = %v, want ErrForbidden", err)
	}
	if err := engine.ClearAttention(adminCtx, key.ID); err != nil {
		t.Fatalf("admin clear: %v", err)
	}
	records, _ = engine.ListRepairRequests(adminCtx, key.ID)
	if len(records) != 0 {
		t.Fatalf("records after clear = %d, want 0", len(records))
	}
	view, _ = engine.GetKeyView(adminCtx, key.ID)
	if view.Key.AttentionStatus != AttentionStatusNone {
		t.Fatalf("attention after clear = %s, want none", view.Key.AttentionStatus)
	}

	history, _ := engine.KeyHistory(adminCtx, key.ID, 0)
	var actions []KeyHistoryAction
	for _, entry := range history {
		actions = append(actions, entry.Action)
	}
	// Newest first: cleared, flagged, fixed, flagged.
	want := []KeyHistoryAction{
		KeyHistoryActionAttentionCleared,
		KeyHistoryActionAttentionFlagged,
		KeyHistoryActionAttentionFixed,
		KeyHistoryActionAttentionFlagged,
	}
	if len(actions) != len(want) {
		t.Fatalf("history = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("history[%d] = %s, want %s", i, actions[i], want[i])
		}
	}
}

func TestCheckoutWithIssueReport(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()
	key := mustCreateKey(t, engine, ctx, "G700")

	_, err := engine.Checkout(ctx, key.ID, &NewCheckout{
		Reason:           "service",
		Bay:              "2",
		ReportIssue:      true,
		IssueDescription: "check engine light on",
		IssueImages:      []string{"uploads/cel-1.jpg", "uploads/cel-2.jpg"},
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	view, _ := engine.GetKeyView(ctx, key.ID)
	if view.Key.AttentionStatus != AttentionStatusNeeds {
		t.Fatalf("attention = %s, want needs_attention", view.Key.AttentionStatus)
	}
	records, _ := engine.ListRepairRequests(ctx, key.ID)
	if len(records) != 1 {
		t.Fatalf("repair records = %d, want 1", len(records))
	}
	if len(records[0].Images) != 2 {
		t.Fatalf("record images = %d, want 2", len(records[0].Images))
	}

	// Both the checkout and the flag get their own audit entry, newest first.
	history, err := engine.KeyHistory(ctx, key.ID, 0)
	if err != nil {
		t.Fatalf("KeyHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	if history[0].Action != KeyHistoryActionAttentionFlagged || history[1].Action != KeyHistoryActionCheckout {
		t.Fatalf("history order wrong: %s, %s", history[0].Action, history[1].Action)
	}
}

func TestCheckoutWithIssueReportAtomicity(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()
	key := mustCreateKey(t, engine, ctx, "G800")

	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "test_drive"}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	// A losing checkout must leave no trace of its issue report behind.
	_, err := engine.Checkout(ctx, key.ID, &NewCheckout{
		Reason:           "service",
		Bay:              "2",
		ReportIssue:      true,
		IssueDescription: "mirror cracked",
	})
	if !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second checkout = %v, want ErrAlreadyOpen", err)
	}

	records, _ := engine.ListRepairRequests(ctx, key.ID)
	if len(records) != 0 {
		t.Fatalf("repair records = %d, want 0", len(records))
	}
	view, _ := engine.GetKeyView(ctx, key.ID)
	if view.Key.AttentionStatus != AttentionStatusNone {
		t.Fatalf("attention = %s, want none", view.Key.AttentionStatus)
	}
	history, _ := engine.KeyHistory(ctx, key.ID, 0)
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history))
	}
}

func TestAttentionImageLimit(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()
	key := mustCreateKey(t, engine, ctx, "G900")

	four := []string{"uploads/1.jpg", "uploads/2.jpg", "uploads/3.jpg", "uploads/4.jpg"}
	if _, err := engine.FlagAttention(ctx, key.ID, &NewRepairRequest{Description: "dents", Images: four}); !IsValidationError(err) {
		t.Fatalf("four images = %v, want validation error", err)
	}
	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{
		Reason:           "test_drive",
		ReportIssue:      true,
		IssueDescription: "dents",
		IssueImages:      four,
	}); !IsValidationError(err) {
		t.Fatalf("four checkout images = %v, want validation error", err)
	}
	// The failed checkout must not have opened a session.
	view, _ := engine.GetKeyView(ctx, key.ID)
	if view.Status != KeyStatusAvailable {
		t.Fatalf("status = %s, want available", view.Status)
	}

	record, err := engine.FlagAttention(ctx, key.ID, &NewRepairRequest{Description: "dents", Images: four[:3]})
	if err != nil {
		t.Fatalf("FlagAttention: %v", err)
	}
	if len(record.Images) != 3 {
		t.Fatalf("stored images = %d, want 3", len(record.Images))
	}
}

func TestPdiStatusChanges(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()
	key := mustCreateKey(t, engine, ctx, "H800")

	if _, err := engine.SetPdiStatus(ctx, key.ID, &SetPdiStatus{Status: "not_pdi_yet"}); !errors.Is(err, ErrNoOpStatusChange) {
		t.Fatalf("no-op change = %v, want ErrNoOpStatusChange", err)
	}
	if _, err := engine.SetPdiStatus(ctx, key.ID, &SetPdiStatus{Status: "almost_done"}); !IsValidationError(err) {
		t.Fatalf("bad status = %v, want validation error", err)
	}

	updated, err := engine.SetPdiStatus(ctx, key.ID, &SetPdiStatus{Status: "in_progress"})
	if err != nil {
		t.Fatalf("SetPdiStatus: %v", err)
	}
	if updated.PdiStatus != PdiStatusInProgress {
		t.Fatalf("pdi = %s, want in_progress", updated.PdiStatus)
	}
	if updated.PdiLastUpdatedAt == nil {
		t.Fatal("pdi_last_updated_at not stamped")
	}
	if updated.PdiLastUpdatedBy != "Demo Admin" {
		t.Fatalf("pdi_last_updated_by = %q", updated.PdiLastUpdatedBy)
	}
	if _, err := engine.SetPdiStatus(ctx, key.ID, &SetPdiStatus{Status: "finished", Notes: "walkthrough done"}); err != nil {
		t.Fatalf("finish: %v", err)
	}

	logs, err := engine.PdiHistory(ctx, key.ID)
	if err != nil {
		t.Fatalf("PdiHistory: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("pdi audit rows = %d, want 2", len(logs))
	}
	// Newest first.
	if logs[0].FromStatus != PdiStatusInProgress || logs[0].ToStatus != PdiStatusFinished {
		t.Fatalf("latest transition %s -> %s", logs[0].FromStatus, logs[0].ToStatus)
	}
	if logs[0].Notes != "walkthrough done" {
		t.Fatalf("audit notes = %q", logs[0].Notes)
	}
	if logs[1].Notes != "" {
		t.Fatalf("first audit notes = %q, want empty", logs[1].Notes)
	}

	staffCtx := demoStaffContext(UserRoleSales)
	if _, err := engine.PdiHistory(staffCtx, key.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("staff pdi history = %v, want ErrForbidden", err)
	}
}

func TestBulkImportPartialSuccess(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()

	result, err := engine.BulkImportKeys(ctx, []NewKey{
		{StockNumber: "M1", Condition: "used"},
		{StockNumber: "m1"}, // duplicate of the first after normalization
		{StockNumber: "M2"},
		{StockNumber: "M3", Condition: "damaged"}, // not a condition
	})
	if err != nil {
		t.Fatalf("BulkImportKeys: %v", err)
	}
	if result.Imported != 2 {
		t.Fatalf("imported = %d, want 2", result.Imported)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("failed = %d, want 2", len(result.Failed))
	}
	if result.Failed[0].Row != 2 || result.Failed[1].Row != 4 {
		t.Fatalf("failed rows = %d, %d, want 2, 4", result.Failed[0].Row, result.Failed[1].Row)
	}
}

func TestKeyCondition(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()

	key, err := engine.CreateKey(ctx, &NewKey{StockNumber: "U100"})
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	if key.Condition != KeyConditionNew {
		t.Fatalf("default condition = %s, want new", key.Condition)
	}

	used, err := engine.CreateKey(ctx, &NewKey{StockNumber: "U200", Condition: "Used"})
	if err != nil {
		t.Fatalf("CreateKey used: %v", err)
	}
	if used.Condition != KeyConditionUsed {
		t.Fatalf("condition = %s, want used", used.Condition)
	}

	if _, err := engine.CreateKey(ctx, &NewKey{StockNumber: "U300", Condition: "mint"}); !IsValidationError(err) {
		t.Fatalf("bad condition = %v, want validation error", err)
	}
}

func TestAlertTiersAdvanceWithClock(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()
	key := mustCreateKey(t, engine, ctx, "N900")

	base := time.Now()
	timeNow = func() time.Time { return base }
	defer func() { timeNow = time.Now }()

	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "test_drive"}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	view, _ := engine.GetKeyView(ctx, key.ID)
	if view.AlertTier != AlertTierGreen {
		t.Fatalf("at 0m tier = %s, want GREEN", view.AlertTier)
	}

	timeNow = func() time.Time { return base.Add(45 * time.Minute) }
	view, _ = engine.GetKeyView(ctx, key.ID)
	if view.AlertTier != AlertTierYellow {
		t.Fatalf("at 45m tier = %s, want YELLOW", view.AlertTier)
	}

	timeNow = func() time.Time { return base.Add(75 * time.Minute) }
	view, _ = engine.GetKeyView(ctx, key.ID)
	if view.AlertTier != AlertTierRed {
		t.Fatalf("at 75m tier = %s, want RED", view.AlertTier)
	}

	overdue, err := engine.OverdueKeys(ctx)
	if err != nil {
		t.Fatalf("OverdueKeys: %v", err)
	}
	if len(overdue) != 1 || overdue[0].Key.ID != key.ID {
		t.Fatalf("overdue = %+v, want the checked-out key", overdue)
	}
}

func TestRetireBlockedWhileCheckedOut(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()
	key := mustCreateKey(t, engine, ctx, "P100")

	if _, err := engine.Checkout(ctx, key.ID, &NewCheckout{Reason: "test_drive"}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if _, err := engine.RetireKey(ctx, key.ID); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("retire while out = %v, want ErrAlreadyOpen", err)
	}
}

func TestRoleGates(t *testing.T) {
	engine := newTestEngine()
	staffCtx := demoStaffContext(UserRolePorter)

	if _, err := engine.CreateKey(staffCtx, &NewKey{StockNumber: "Q200"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("staff create key = %v, want ErrForbidden", err)
	}
	if _, err := engine.ListUsers(staffCtx); !errors.Is(err, ErrForbidden) {
		t.Fatalf("staff list users = %v, want ErrForbidden", err)
	}
	if _, err := engine.BulkImportKeys(staffCtx, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("staff bulk import = %v, want ErrForbidden", err)
	}

	// Porters can still run the checkout flow itself.
	adminCtx := demoAdminContext()
	key := mustCreateKey(t, engine, adminCtx, "Q200")
	if _, err := engine.Checkout(staffCtx, key.ID, &NewCheckout{Reason: "show_move"}); err != nil {
		t.Fatalf("staff checkout: %v", err)
	}
}

func TestDemoUserCap(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()

	if _, err := engine.CreateUser(ctx, &NewUser{Name: "Pat", Role: "sales", Pin: "1234"}); err != nil {
		t.Fatalf("first user: %v", err)
	}
	if _, err := engine.CreateUser(ctx, &NewUser{Name: "Lee", Role: "porter", Pin: "5678"}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("second user = %v, want ErrCapacityExceeded", err)
	}
}

func TestDashboardStats(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()

	k1 := mustCreateKey(t, engine, ctx, "S1")
	mustCreateKey(t, engine, ctx, "S2")

	if _, err := engine.Checkout(ctx, k1.ID, &NewCheckout{Reason: "test_drive"}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if _, err := engine.FlagAttention(ctx, k1.ID, &NewRepairRequest{Description: "scratch"}); err != nil {
		t.Fatalf("FlagAttention: %v", err)
	}

	stats, err := engine.GetDashboardStats(ctx)
	if err != nil {
		t.Fatalf("GetDashboardStats: %v", err)
	}
	if stats.TotalKeys != 2 || stats.CheckedOut != 1 || stats.Available != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.NeedsAttention != 1 || stats.PendingRepairs != 1 {
		t.Fatalf("attention stats = %+v", stats)
	}
}

func TestServiceBaysBoard(t *testing.T) {
	engine := newTestEngine()
	ctx := demoAdminContext()

	k1 := mustCreateKey(t, engine, ctx, "T1")
	k2 := mustCreateKey(t, engine, ctx, "T2")

	if _, err := engine.Checkout(ctx, k1.ID, &NewCheckout{Reason: "service", Bay: "4"}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if _, err := engine.Checkout(ctx, k2.ID, &NewCheckout{Reason: "test_drive"}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	board, err := engine.ServiceBays(ctx)
	if err != nil {
		t.Fatalf("ServiceBays: %v", err)
	}
	if len(board) != 1 {
		t.Fatalf("board entries = %d, want 1", len(board))
	}
	if board[0].Bay != "4" || board[0].View.Key.ID != k1.ID {
		t.Fatalf("board = %+v", board[0])
	}
}
