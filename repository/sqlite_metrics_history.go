package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/models"
)

type sqliteMetricsHistoryRepo struct {
	db database.TxQuerier
}

func NewSQLiteMetricsHistoryRepo(db database.TxQuerier) MetricsHistoryRepository {
	return &sqliteMetricsHistoryRepo{db: db}
}

func (r *sqliteMetricsHistoryRepo) Insert(ctx context.Context, snap *models.MetricsSnapshot) error {
	query := `
		INSERT INTO sfu_metrics_history (
			instance_id, room_count, participant_count, memory_bytes,
			goroutines, bytes_in, bytes_out, cpu_pct,
			bandwidth_in_bps, bandwidth_out_bps, available)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		snap.InstanceID, snap.RoomCount, snap.ParticipantCount, snap.MemoryBytes,
		snap.Goroutines, snap.BytesIn, snap.BytesOut, snap.CPUPercent,
		snap.BandwidthInBps, snap.BandwidthOutBps, snap.Available,
	).Scan(&snap.ID, &snap.CollectedAt)
	if err != nil {
		return fmt.Errorf("insert metrics sample: %w", err)
	}
	return nil
}

func (r *sqliteMetricsHistoryRepo) ListRecent(ctx context.Context, instanceID string, since time.Time) ([]models.MetricsSnapshot, error) {
	query := `
		SELECT id, instance_id, room_count, participant_count, memory_bytes,
		       goroutines, bytes_in, bytes_out, cpu_pct,
		       bandwidth_in_bps, bandwidth_out_bps, available, created_at
		FROM sfu_metrics_history
		WHERE instance_id = ? AND created_at >= ?
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, instanceID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("list metrics samples: %w", err)
	}
	defer rows.Close()

	var samples []models.MetricsSnapshot
	for rows.Next() {
		var s models.MetricsSnapshot
		if err := rows.Scan(
			&s.ID, &s.InstanceID, &s.RoomCount, &s.ParticipantCount,
			&s.MemoryBytes, &s.Goroutines, &s.BytesIn, &s.BytesOut,
			&s.CPUPercent, &s.BandwidthInBps, &s.BandwidthOutBps,
			&s.Available, &s.CollectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan metrics row: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Summary aggregates only samples where the scrape succeeded; unavailable
// samples would drag every average toward zero.
func (r *sqliteMetricsHistoryRepo) Summary(ctx context.Context, instanceID string, window time.Duration, period string) (*models.MetricsHistorySummary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(MAX(participant_count), 0), COALESCE(AVG(participant_count), 0),
		       COALESCE(MAX(room_count), 0), COALESCE(AVG(room_count), 0),
		       COALESCE(MAX(memory_bytes), 0), COALESCE(AVG(memory_bytes), 0),
		       COALESCE(MAX(cpu_pct), 0), COALESCE(AVG(cpu_pct), 0),
		       COALESCE(MAX(bandwidth_in_bps), 0), COALESCE(AVG(bandwidth_in_bps), 0),
		       COALESCE(MAX(bandwidth_out_bps), 0), COALESCE(AVG(bandwidth_out_bps), 0)
		FROM sfu_metrics_history
		WHERE instance_id = ? AND available = 1 AND created_at >= ?`

	since := time.Now().Add(-window).UTC()
	summary := &models.MetricsHistorySummary{Period: period}
	var avgMemory float64
	err := r.db.QueryRowContext(ctx, query, instanceID, since).Scan(
		&summary.SampleCount,
		&summary.PeakParticipants, &summary.AvgParticipants,
		&summary.PeakRooms, &summary.AvgRooms,
		&summary.PeakMemoryBytes, &avgMemory,
		&summary.PeakCPUPercent, &summary.AvgCPUPercent,
		&summary.PeakBandwidthIn, &summary.AvgBandwidthIn,
		&summary.PeakBandwidthOut, &summary.AvgBandwidthOut,
	)
	if err != nil {
		return nil, fmt.Errorf("metrics summary: %w", err)
	}
	summary.AvgMemoryBytes = uint64(avgMemory)
	return summary, nil
}

func (r *sqliteMetricsHistoryRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sfu_metrics_history WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge metrics samples: %w", err)
	}
	return result.RowsAffected()
}
