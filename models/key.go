package models

import (
	"context"
	"strings"
	"time"

	"github.com/keyflowhq/keyflow_backend/utils"
)

// Key is the tracked record for one physical vehicle key. Its checked-out /
// available status is never stored here: it is derived from whether an open
// CheckoutSession exists for the key.
type Key struct {
	ID           string       `gorm:"primary_key;size:36" json:"id"`
	DealershipId string       `gorm:"index;size:36;not null" json:"dealership_id"`
	StockNumber  string       `gorm:"index;size:50;not null" json:"stock_number" binding:"required"`
	Condition    KeyCondition `gorm:"size:10;not null;default:'new'" json:"condition"`
	Vin          string       `gorm:"size:17" json:"vin"`
	Make         string       `gorm:"size:50" json:"make"`
	Model        string       `gorm:"size:50" json:"model"`
	Year         int          `json:"year"`
	Color        string       `gorm:"size:30" json:"color"`
	TagNumber    string       `gorm:"size:30" json:"tag_number"`
	PhotoUrl     string       `gorm:"size:500" json:"photo_url"`

	AttentionStatus AttentionStatus `gorm:"size:20;not null;default:'none'" json:"attention_status"`
	PdiStatus       PdiStatus       `gorm:"size:20;not null;default:'not_pdi_yet'" json:"pdi_status"`

	PdiLastUpdatedAt *time.Time `json:"pdi_last_updated_at"`
	PdiLastUpdatedBy string     `gorm:"size:100" json:"pdi_last_updated_by"`

	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewKey struct {
	StockNumber string `json:"stock_number" binding:"required"`
	Condition   string `json:"condition"`
	Vin         string `json:"vin"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        int    `json:"year"`
	Color       string `json:"color"`
	TagNumber   string `json:"tag_number"`
}

func (input *NewKey) validate(ctx context.Context) error {
	input.StockNumber = utils.NormalizeStockNumber(input.StockNumber)
	if input.StockNumber == "" {
		return NewValidationError("stock_number", "stock number is required")
	}
	input.Condition = strings.ToLower(strings.TrimSpace(input.Condition))
	if input.Condition == "" {
		input.Condition = string(KeyConditionNew)
	}
	if !KeyCondition(input.Condition).IsValid() {
		return NewValidationError("condition", "condition must be new or used")
	}
	if input.Vin != "" && len(input.Vin) != 17 {
		return NewValidationError("vin", "vin must be 17 characters")
	}
	if input.Year != 0 && (input.Year < 1900 || input.Year > time.Now().Year()+2) {
		return NewValidationError("year", "year is out of range")
	}
	input.Vin = strings.ToUpper(strings.TrimSpace(input.Vin))
	return nil
}

// KeyView is a key plus everything derived from its open session: status,
// alert tier and how long it has been out.
type KeyView struct {
	Key            Key              `json:"key"`
	Status         KeyStatus        `json:"status"`
	OpenSession    *CheckoutSession `json:"open_session,omitempty"`
	AlertTier      AlertTier        `json:"alert_tier"`
	ElapsedMinutes int              `json:"elapsed_minutes"`
	OverdueMinutes int              `json:"overdue_minutes"`
}

// BuildKeyView derives a key's presentation state at the given instant.
// Closed-out keys are always GREEN.
func BuildKeyView(key *Key, open *CheckoutSession, dealership *Dealership, now time.Time) KeyView {
	view := KeyView{
		Key:       *key,
		Status:    KeyStatusAvailable,
		AlertTier: AlertTierGreen,
	}
	if open == nil {
		return view
	}

	elapsed := now.Sub(open.CheckedOutAt)
	if elapsed < 0 {
		elapsed = 0
	}
	yellow, red := ResolveAlertThresholds(dealership)

	view.Status = KeyStatusCheckedOut
	view.OpenSession = open
	view.ElapsedMinutes = int(elapsed.Minutes())
	view.AlertTier = ClassifyAlertTier(elapsed, yellow, red)
	if view.AlertTier != AlertTierGreen {
		view.OverdueMinutes = view.ElapsedMinutes - yellow
	}
	return view
}
