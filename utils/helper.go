package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ttacon/libphonenumber"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(strings.TrimSpace(email))
}

// ValidatePhoneNumber checks the number against the given region ("US" when
// empty) and returns it in E.164 form.
func ValidatePhoneNumber(phone string, region string) (string, error) {
	if region == "" {
		region = "US"
	}
	num, err := libphonenumber.Parse(phone, region)
	if err != nil {
		return "", fmt.Errorf("invalid phone number: %w", err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", fmt.Errorf("invalid phone number for region %s", region)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

// NormalizeStockNumber trims and upper-cases a stock number so lookups and
// uniqueness checks are case-insensitive.
func NormalizeStockNumber(stockNumber string) string {
	return strings.ToUpper(strings.TrimSpace(stockNumber))
}

var pinRegex = regexp.MustCompile(`^[0-9]{4,6}$`)

func IsValidPin(pin string) bool {
	return pinRegex.MatchString(pin)
}

func GenerateUniqueFilename(originalName string) string {
	ext := filepath.Ext(originalName)
	return fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.NewString()[:8], ext)
}

// ProcessValidationErrors flattens validator errors into field -> message.
func ProcessValidationErrors(err error) map[string]string {
	out := map[string]string{}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		out["error"] = err.Error()
		return out
	}
	for _, fieldErr := range validationErrors {
		field := strings.ToLower(fieldErr.Field())
		switch fieldErr.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "email":
			out[field] = fmt.Sprintf("%s must be a valid email", field)
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s", field, fieldErr.Param())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s", field, fieldErr.Param())
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of: %s", field, fieldErr.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}
