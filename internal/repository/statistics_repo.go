package repository

import (
	"context"
	"fmt"
	"time"

	"requisition/internal/model"

	"gorm.io/gorm"
)

type StatisticsRepository interface {
	CountRequests(ctx context.Context, groupBy string, start, end time.Time) ([]model.CountBucket, error)
	GetFulfilledValue(ctx context.Context, start, end time.Time) (string, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

var groupableColumns = map[string]bool{"type": true, "status": true, "workflow_stage": true}

// CountRequests groups requests submitted in [start, end] by one of type, status or workflow_stage
func (r *statisticsRepository) CountRequests(ctx context.Context, groupBy string, start, end time.Time) ([]model.CountBucket, error) {
	if !groupableColumns[groupBy] {
		return nil, fmt.Errorf("cannot group requests by %q", groupBy)
	}
	buckets := []model.CountBucket{}
	if err := GetDB(ctx, r.db).Model(&model.Request{}).
		Select(groupBy+" as key, COUNT(*) as count").
		Where("submitted_at >= ? AND submitted_at <= ?", start, end).
		Group(groupBy).
		Order(groupBy).
		Scan(&buckets).Error; err != nil {
		return nil, fmt.Errorf("failed to count requests by %s: %w", groupBy, err)
	}
	return buckets, nil
}

// GetFulfilledValue sums issued quantity times unit cost over fulfillments recorded in the range
func (r *statisticsRepository) GetFulfilledValue(ctx context.Context, start, end time.Time) (string, error) {
	var result struct {
		Value string
	}
	if err := GetDB(ctx, r.db).Table("fulfillment_records").
		Select("COALESCE(CAST(SUM(fulfillment_records.quantity * request_items.unit_cost) AS TEXT), '0') as value").
		Joins("JOIN request_items ON request_items.id = fulfillment_records.item_id").
		Where("fulfillment_records.created_at >= ? AND fulfillment_records.created_at <= ?", start, end).
		Scan(&result).Error; err != nil {
		return "", fmt.Errorf("failed to sum fulfilled value: %w", err)
	}
	return result.Value, nil
}
