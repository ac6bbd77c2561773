package repository

import (
	"context"
	"time"

	"github.com/chorushq/chorus/models"
)

// MetricsHistoryRepository stores SFU metric samples for the admin panel's
// history charts and capacity summaries.
type MetricsHistoryRepository interface {
	Insert(ctx context.Context, snap *models.MetricsSnapshot) error
	// ListRecent returns samples newer than since, oldest first.
	ListRecent(ctx context.Context, instanceID string, since time.Time) ([]models.MetricsSnapshot, error)
	// Summary aggregates peak and average load over the window ending now.
	Summary(ctx context.Context, instanceID string, window time.Duration, period string) (*models.MetricsHistorySummary, error)
	// PurgeOlderThan drops samples past the retention horizon.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
