package services

import (
	"context"
	"fmt"
	"time"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/repository"
)

// historyWindows maps the accepted summary periods onto time windows.
var historyWindows = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// MetricsHistoryService serves the admin panel's SFU history charts and
// capacity summaries from the samples the collector wrote.
type MetricsHistoryService struct {
	history   repository.MetricsHistoryRepository
	instances repository.SFUInstanceRepository
}

func NewMetricsHistoryService(
	history repository.MetricsHistoryRepository,
	instances repository.SFUInstanceRepository,
) *MetricsHistoryService {
	return &MetricsHistoryService{history: history, instances: instances}
}

// Recent returns the chart samples for one instance over the period.
func (s *MetricsHistoryService) Recent(ctx context.Context, instanceID, period string) ([]models.MetricsSnapshot, error) {
	window, ok := historyWindows[period]
	if !ok {
		return nil, fmt.Errorf("%w: period must be 24h, 7d or 30d", pkg.ErrInvalidInput)
	}
	if _, err := s.instances.GetByID(ctx, instanceID); err != nil {
		return nil, err
	}
	samples, err := s.history.ListRecent(ctx, instanceID, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	if samples == nil {
		samples = []models.MetricsSnapshot{}
	}
	return samples, nil
}

// Summary returns peak and average load over the period.
func (s *MetricsHistoryService) Summary(ctx context.Context, instanceID, period string) (*models.MetricsHistorySummary, error) {
	window, ok := historyWindows[period]
	if !ok {
		return nil, fmt.Errorf("%w: period must be 24h, 7d or 30d", pkg.ErrInvalidInput)
	}
	if _, err := s.instances.GetByID(ctx, instanceID); err != nil {
		return nil, err
	}
	return s.history.Summary(ctx, instanceID, window, period)
}
