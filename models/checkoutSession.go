package models

import (
	"context"
	"strings"
	"time"
)

// CheckoutSession records one borrow/return cycle of a key.
//
// OpenKeyRef carries the key id while the session is open and is set to NULL
// on return. The unique index on it is what makes "at most one open session
// per key" hold at the schema level even under concurrent writers: MySQL
// permits any number of NULLs in a unique column but only one non-NULL value.
type CheckoutSession struct {
	ID           string  `gorm:"primary_key;size:36" json:"id"`
	DealershipId string  `gorm:"index;size:36;not null" json:"dealership_id"`
	KeyId        string  `gorm:"index;size:36;not null" json:"key_id"`
	OpenKeyRef   *string `gorm:"uniqueIndex;size:36" json:"-"`

	UserId       string         `gorm:"size:36;not null" json:"user_id"`
	UserName     string         `gorm:"size:100" json:"user_name"`
	Reason       CheckoutReason `gorm:"size:30;not null" json:"reason"`
	Bay          *string        `gorm:"size:50" json:"bay,omitempty"`
	CustomerName string         `gorm:"size:100" json:"customer_name"`
	Notes        string         `gorm:"type:text" json:"notes"`

	CheckedOutAt time.Time  `gorm:"index;not null" json:"checked_out_at"`
	ReturnedAt   *time.Time `json:"returned_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (s *CheckoutSession) IsOpen() bool {
	return s.ReturnedAt == nil
}

// DurationMinutes is how long the session ran, or has been running for an
// open session measured against now.
func (s *CheckoutSession) DurationMinutes(now time.Time) int {
	end := now
	if s.ReturnedAt != nil {
		end = *s.ReturnedAt
	}
	d := end.Sub(s.CheckedOutAt)
	if d < 0 {
		return 0
	}
	return int(d.Minutes())
}

type NewCheckout struct {
	Reason       string `json:"reason" binding:"required"`
	Bay          string `json:"bay"`
	CustomerName string `json:"customer_name"`
	Notes        string `json:"notes"`

	// ReportIssue flags the key for attention in the same operation, so a
	// porter noticing a dead fob at checkout does not need a second trip.
	ReportIssue      bool     `json:"report_issue"`
	IssueDescription string   `json:"issue_description"`
	IssueImages      []string `json:"issue_images"`
}

// validate checks the request against the dealership's configuration: the
// bay-service reason and bay numbers only exist at RV dealerships, and any
// bay given must be within [1, bay_count].
func (input *NewCheckout) validate(ctx context.Context, dealership *Dealership) error {
	reason := CheckoutReason(strings.TrimSpace(input.Reason))
	if !reason.IsValid() {
		return ErrInvalidReason
	}
	input.Reason = string(reason)
	if reason == CheckoutReasonService {
		if dealership == nil || dealership.Type != DealershipTypeRV {
			return ErrInvalidReason
		}
		if !dealership.ValidBay(input.Bay) {
			return ErrInvalidBay
		}
	} else if strings.TrimSpace(input.Bay) != "" && !dealership.ValidBay(input.Bay) {
		return ErrInvalidBay
	}
	if input.ReportIssue && strings.TrimSpace(input.IssueDescription) == "" {
		return NewValidationError("issue_description", "describe the issue being reported")
	}
	if len(input.IssueImages) > maxAttentionImages {
		return NewValidationError("issue_images", "at most 3 images per report")
	}
	return nil
}

type MoveBay struct {
	Bay string `json:"bay" binding:"required"`
}

type ReturnKey struct {
	Notes string `json:"notes"`
}
