package models

import (
	"time"

	"github.com/keyflowhq/keyflow_backend/config"
)

// ClassifyAlertTier buckets how long a key has been out. Lower bounds are
// inclusive: at exactly yellowMinutes the tier is YELLOW, at exactly
// redMinutes it is RED.
func ClassifyAlertTier(elapsed time.Duration, yellowMinutes, redMinutes int) AlertTier {
	minutes := int(elapsed.Minutes())
	if minutes >= redMinutes {
		return AlertTierRed
	}
	if minutes >= yellowMinutes {
		return AlertTierYellow
	}
	return AlertTierGreen
}

// ResolveAlertThresholds returns the dealership's thresholds, falling back to
// the configured defaults. Red is clamped to be at least yellow so the tiers
// stay ordered.
func ResolveAlertThresholds(dealership *Dealership) (yellowMinutes, redMinutes int) {
	yellowMinutes = config.DefaultAlertYellowMinutes()
	redMinutes = config.DefaultAlertRedMinutes()
	if dealership != nil {
		if dealership.AlertYellowMinutes > 0 {
			yellowMinutes = dealership.AlertYellowMinutes
		}
		if dealership.AlertRedMinutes > 0 {
			redMinutes = dealership.AlertRedMinutes
		}
	}
	if redMinutes < yellowMinutes {
		redMinutes = yellowMinutes
	}
	return yellowMinutes, redMinutes
}
