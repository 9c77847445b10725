package utils

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/keyflowhq/keyflow_backend/config"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// FetchModel loads one record by id, scoped to the caller's dealership when
// the model carries a dealership_id column.
func FetchModel[T any](ctx context.Context, id string, scopeDealership bool) (*T, error) {
	db := config.GetDB()
	var model T

	query := db.WithContext(ctx).Where("id = ?", id)
	if scopeDealership {
		if dealershipId, ok := GetDealershipIdFromContext(ctx); ok && dealershipId != "" {
			query = query.Where("dealership_id = ?", dealershipId)
		}
	}

	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}

	return &model, nil
}

// ValidateUnique fails when another active record in the dealership already
// holds the same value in the given column. excludeId skips the record being
// updated.
func ValidateUnique[T any](ctx context.Context, dealershipId string, column string, value string, excludeId string) error {
	db := config.GetDB()
	var model T
	var count int64

	query := db.WithContext(ctx).Model(&model).
		Where(fmt.Sprintf("%s = ?", column), value).
		Where("dealership_id = ?", dealershipId).
		Where("is_active = ?", true)
	if excludeId != "" {
		query = query.Where("id <> ?", excludeId)
	}

	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%s %q is already in use", column, value)
	}

	return nil
}

// ResourceCountWhere counts records of T matching the given condition.
func ResourceCountWhere[T any](ctx context.Context, query string, args ...interface{}) (int64, error) {
	db := config.GetDB()
	var model T
	var count int64

	if err := db.WithContext(ctx).Model(&model).Where(query, args...).Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
