package service

import (
	"context"
	"fmt"
	"time"

	"requisition/internal/model"
	"requisition/internal/repository"
	"requisition/internal/workflow"

	"github.com/shopspring/decimal"
)

type StatisticsService interface {
	GetRequestStatistics(ctx context.Context, startDate, endDate time.Time) (model.RequestStatistics, error)
}

type statisticsService struct {
	repo repository.StatisticsRepository
}

func NewStatisticsService(repo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{repo: repo}
}

// GetRequestStatistics counts requests submitted in the range by type, status and stage,
// plus the value of everything issued in it
func (s *statisticsService) GetRequestStatistics(ctx context.Context, startDate, endDate time.Time) (model.RequestStatistics, error) {
	if endDate.Before(startDate) {
		return model.RequestStatistics{}, workflow.Validation("end_date is before start_date")
	}
	stats := model.RequestStatistics{TimeRangeStartDate: startDate, TimeRangeEndDate: endDate}

	var err error
	if stats.ByType, err = s.repo.CountRequests(ctx, "type", startDate, endDate); err != nil {
		return stats, err
	}
	if stats.ByStatus, err = s.repo.CountRequests(ctx, "status", startDate, endDate); err != nil {
		return stats, err
	}
	if stats.ByStage, err = s.repo.CountRequests(ctx, "workflow_stage", startDate, endDate); err != nil {
		return stats, err
	}
	for _, b := range stats.ByType {
		stats.Total += b.Count
	}

	raw, err := s.repo.GetFulfilledValue(ctx, startDate, endDate)
	if err != nil {
		return stats, err
	}
	if stats.FulfilledValue, err = decimal.NewFromString(raw); err != nil {
		return stats, fmt.Errorf("failed to parse fulfilled value %q: %w", raw, err)
	}
	return stats, nil
}
