package models

import (
	"context"
	"strings"
	"time"
)

type RepairRequestStatus string

const (
	RepairRequestStatusPending RepairRequestStatus = "pending"
	RepairRequestStatusFixed   RepairRequestStatus = "fixed"
)

// RepairRequest is one reported problem on a key. Marking it fixed keeps the
// row; re-flagging the key creates a fresh pending row so the repair history
// survives.
// maxAttentionImages bounds the photo references on one report.
const maxAttentionImages = 3

type RepairRequest struct {
	ID           string              `gorm:"primary_key;size:36" json:"id"`
	DealershipId string              `gorm:"index;size:36;not null" json:"dealership_id"`
	KeyId        string              `gorm:"index;size:36;not null" json:"key_id"`
	Description  string              `gorm:"type:text;not null" json:"description"`
	Images       []string            `gorm:"serializer:json" json:"images"`
	Status       RepairRequestStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	ReportedBy     string     `gorm:"size:36;not null" json:"reported_by"`
	ReportedByName string     `gorm:"size:100" json:"reported_by_name"`
	FixedBy        *string    `gorm:"size:36" json:"fixed_by"`
	FixedByName    string     `gorm:"size:100" json:"fixed_by_name"`
	FixedAt        *time.Time `json:"fixed_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRepairRequest struct {
	Description string   `json:"description" binding:"required"`
	Images      []string `json:"images"`
}

func (input *NewRepairRequest) validate(ctx context.Context) error {
	if strings.TrimSpace(input.Description) == "" {
		return NewValidationError("description", "description is required")
	}
	if len(input.Images) > maxAttentionImages {
		return NewValidationError("images", "at most 3 images per report")
	}
	return nil
}
