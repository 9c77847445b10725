package models

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/keyflowhq/keyflow_backend/utils"
)

type Dealership struct {
	ID      string         `gorm:"primary_key;size:36" json:"id"`
	Name    string         `gorm:"size:255;not null" json:"name" binding:"required"`
	Type    DealershipType `gorm:"size:20;not null;default:'automotive'" json:"dealership_type"`
	Address string         `gorm:"size:255" json:"address"`
	Phone   string         `gorm:"size:30" json:"phone"`
	LogoUrl string         `gorm:"size:500" json:"logo_url"`

	// BayCount is how many numbered service bays exist. Always zero for
	// automotive dealerships.
	BayCount int `gorm:"not null;default:0" json:"bay_count"`

	// Alert thresholds in minutes. Zero means "use the fleet default".
	AlertYellowMinutes int `gorm:"not null;default:0" json:"alert_yellow_minutes"`
	AlertRedMinutes    int `gorm:"not null;default:0" json:"alert_red_minutes"`

	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ValidBay reports whether bay names one of the dealership's numbered
// service bays. Automotive dealerships have none.
func (d *Dealership) ValidBay(bay string) bool {
	if d == nil || d.Type != DealershipTypeRV {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(bay))
	if err != nil {
		return false
	}
	return n >= 1 && n <= d.BayCount
}

type NewDealership struct {
	Name               string `json:"name" binding:"required"`
	Type               string `json:"dealership_type"`
	Address            string `json:"address"`
	Phone              string `json:"phone"`
	BayCount           int    `json:"bay_count" binding:"omitempty,min=0"`
	AlertYellowMinutes int    `json:"alert_yellow_minutes" binding:"omitempty,min=1"`
	AlertRedMinutes    int    `json:"alert_red_minutes" binding:"omitempty,min=1"`
}

func (input *NewDealership) validate(ctx context.Context) error {
	if strings.TrimSpace(input.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if input.Type == "" {
		input.Type = string(DealershipTypeAutomotive)
	}
	if !DealershipType(input.Type).IsValid() {
		return NewValidationError("dealership_type", "dealership type must be automotive or rv")
	}
	if input.BayCount < 0 {
		return NewValidationError("bay_count", "bay count must not be negative")
	}
	if DealershipType(input.Type) != DealershipTypeRV {
		input.BayCount = 0
	}
	if input.Phone != "" {
		normalized, err := utils.ValidatePhoneNumber(input.Phone, "")
		if err != nil {
			return NewValidationError("phone", "invalid phone number")
		}
		input.Phone = normalized
	}
	if input.AlertYellowMinutes < 0 || input.AlertRedMinutes < 0 {
		return NewValidationError("alert_thresholds", "thresholds must be positive")
	}
	if input.AlertYellowMinutes > 0 && input.AlertRedMinutes > 0 &&
		input.AlertRedMinutes < input.AlertYellowMinutes {
		return NewValidationError("alert_red_minutes", "red threshold must not be below yellow")
	}
	return nil
}
