package models

import "time"

// PdiAuditLog records every pre-delivery-inspection status change. Like
// KeyHistory it is append-only.
type PdiAuditLog struct {
	ID           int       `gorm:"primary_key" json:"id"`
	DealershipId string    `gorm:"index;size:36;not null" json:"dealership_id"`
	KeyId        string    `gorm:"index;size:36;not null" json:"key_id"`
	FromStatus   PdiStatus `gorm:"size:20;not null" json:"from_status"`
	ToStatus     PdiStatus `gorm:"size:20;not null" json:"to_status"`
	UserId       string    `gorm:"size:36;not null" json:"user_id"`
	UserName     string    `gorm:"size:100" json:"user_name"`
	Notes        string    `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type SetPdiStatus struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}
