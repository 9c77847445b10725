package models

import (
	"testing"
	"time"
)

func TestClassifyAlertTierBoundaries(t *testing.T) {
	cases := []struct {
		minutes int
		want    AlertTier
	}{
		{0, AlertTierGreen},
		{29, AlertTierGreen},
		{30, AlertTierYellow},
		{45, AlertTierYellow},
		{59, AlertTierYellow},
		{60, AlertTierRed},
		{600, AlertTierRed},
	}
	for _, tc := range cases {
		got := ClassifyAlertTier(time.Duration(tc.minutes)*time.Minute, 30, 60)
		if got != tc.want {
			t.Fatalf("ClassifyAlertTier(%dm) = %s, want %s", tc.minutes, got, tc.want)
		}
	}
}

func TestClassifyAlertTierCustomThresholds(t *testing.T) {
	if got := ClassifyAlertTier(14*time.Minute, 15, 20); got != AlertTierGreen {
		t.Fatalf("14m with 15/20 = %s, want GREEN", got)
	}
	if got := ClassifyAlertTier(15*time.Minute, 15, 20); got != AlertTierYellow {
		t.Fatalf("15m with 15/20 = %s, want YELLOW", got)
	}
	if got := ClassifyAlertTier(20*time.Minute, 15, 20); got != AlertTierRed {
		t.Fatalf("20m with 15/20 = %s, want RED", got)
	}
}

func TestResolveAlertThresholds(t *testing.T) {
	yellow, red := ResolveAlertThresholds(nil)
	if yellow != 30 || red != 60 {
		t.Fatalf("defaults = %d/%d, want 30/60", yellow, red)
	}

	dealership := &Dealership{AlertYellowMinutes: 20, AlertRedMinutes: 40}
	yellow, red = ResolveAlertThresholds(dealership)
	if yellow != 20 || red != 40 {
		t.Fatalf("custom = %d/%d, want 20/40", yellow, red)
	}

	// Red below yellow is clamped so the tiers stay ordered.
	dealership = &Dealership{AlertYellowMinutes: 50, AlertRedMinutes: 10}
	yellow, red = ResolveAlertThresholds(dealership)
	if red != 50 {
		t.Fatalf("clamped red = %d, want 50", red)
	}
}

func TestBuildKeyViewAvailable(t *testing.T) {
	key := &Key{ID: "k1", StockNumber: "A100"}
	view := BuildKeyView(key, nil, nil, time.Now())
	if view.Status != KeyStatusAvailable {
		t.Fatalf("status = %s, want available", view.Status)
	}
	if view.AlertTier != AlertTierGreen {
		t.Fatalf("tier = %s, want GREEN", view.AlertTier)
	}
	if view.OpenSession != nil {
		t.Fatal("expected no open session")
	}
}

func TestBuildKeyViewOverdue(t *testing.T) {
	now := time.Now()
	key := &Key{ID: "k1", StockNumber: "A100"}
	open := &CheckoutSession{KeyId: "k1", CheckedOutAt: now.Add(-45 * time.Minute)}

	view := BuildKeyView(key, open, nil, now)
	if view.Status != KeyStatusCheckedOut {
		t.Fatalf("status = %s, want checked_out", view.Status)
	}
	if view.AlertTier != AlertTierYellow {
		t.Fatalf("tier = %s, want YELLOW", view.AlertTier)
	}
	if view.ElapsedMinutes != 45 {
		t.Fatalf("elapsed = %d, want 45", view.ElapsedMinutes)
	}
	if view.OverdueMinutes != 15 {
		t.Fatalf("overdue = %d, want 15", view.OverdueMinutes)
	}
}
