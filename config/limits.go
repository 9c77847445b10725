package config

import (
	"os"
	"strconv"
	"strings"
)

// Demo/sandbox caps. The sandbox runs entirely in memory and is capped so a
// trial account cannot grow without bound.
//
// Set via env:
// - DEMO_MAX_KEYS (default 4)
// - DEMO_MAX_USERS (default 1)
func DemoMaxKeys() int {
	return intOrDefault(os.Getenv("DEMO_MAX_KEYS"), 4)
}

func DemoMaxUsers() int {
	return intOrDefault(os.Getenv("DEMO_MAX_USERS"), 1)
}

// Default alert thresholds (minutes) used when a dealership has not
// configured its own. Overridable via env for fleet-wide tuning:
// - ALERT_YELLOW_MINUTES (default 30)
// - ALERT_RED_MINUTES (default 60)
func DefaultAlertYellowMinutes() int {
	return intOrDefault(os.Getenv("ALERT_YELLOW_MINUTES"), 30)
}

func DefaultAlertRedMinutes() int {
	return intOrDefault(os.Getenv("ALERT_RED_MINUTES"), 60)
}

func intOrDefault(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
