package models

import "time"

// KeyHistory is the append-only audit trail. Rows are only ever inserted;
// the int autoincrement id doubles as a per-table ordering guarantee.
type KeyHistory struct {
	ID           int              `gorm:"primary_key" json:"id"`
	DealershipId string           `gorm:"index;size:36;not null" json:"dealership_id"`
	KeyId        string           `gorm:"index;size:36;not null" json:"key_id"`
	Action       KeyHistoryAction `gorm:"size:30;not null" json:"action"`
	UserId       string           `gorm:"size:36;not null" json:"user_id"`
	UserName     string           `gorm:"size:100" json:"user_name"`

	Reason          string `gorm:"size:30" json:"reason,omitempty"`
	Bay             string `gorm:"size:50" json:"bay,omitempty"`
	Notes           string `gorm:"type:text" json:"notes,omitempty"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
