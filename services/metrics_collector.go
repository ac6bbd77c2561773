package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg/logger"
	"github.com/chorushq/chorus/pkg/promparse"
	"github.com/chorushq/chorus/pkg/sfu"
	"github.com/chorushq/chorus/repository"
)

const (
	// collectInterval is how often every instance is scraped.
	collectInterval = 5 * time.Minute
	// historyRetention is how long samples are kept.
	historyRetention = 30 * 24 * time.Hour
)

// prevSample holds the counters from the previous scrape of one instance, so
// the collector can turn cumulative counters into rates.
type prevSample struct {
	cpuSeconds float64
	bytesIn    uint64
	bytesOut   uint64
	at         time.Time
}

// MetricsCollector periodically scrapes every SFU instance's Prometheus
// endpoint and persists one history sample per instance per cycle. A failed
// scrape still writes a sample (Available=false) so downtime shows up in the
// charts.
type MetricsCollector struct {
	instances repository.SFUInstanceRepository
	history   repository.MetricsHistoryRepository
	admin     *sfu.Admin

	prev map[string]prevSample
}

func NewMetricsCollector(
	instances repository.SFUInstanceRepository,
	history repository.MetricsHistoryRepository,
	admin *sfu.Admin,
) *MetricsCollector {
	return &MetricsCollector{
		instances: instances,
		history:   history,
		admin:     admin,
		prev:      make(map[string]prevSample),
	}
}

// Start runs the collection loop until ctx ends.
func (c *MetricsCollector) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(collectInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.collectAll(ctx)
			}
		}
	}()
}

func (c *MetricsCollector) collectAll(ctx context.Context) {
	instances, err := c.instances.List(ctx)
	if err != nil {
		logger.L().Error("metrics collection: list instances", zap.Error(err))
		return
	}
	for _, inst := range instances {
		c.collectOne(ctx, &inst)
	}

	if n, err := c.history.PurgeOlderThan(ctx, time.Now().Add(-historyRetention)); err != nil {
		logger.L().Error("metrics history purge failed", zap.Error(err))
	} else if n > 0 {
		logger.L().Info("metrics history purged", zap.Int64("rows", n))
	}
}

func (c *MetricsCollector) collectOne(ctx context.Context, inst *models.SFUInstance) {
	scrapeCtx, cancel := context.WithTimeout(ctx, sfuScrapeTimeout)
	body, err := c.admin.ScrapeMetrics(scrapeCtx, inst.URL)
	cancel()

	now := time.Now()
	snap := &models.MetricsSnapshot{InstanceID: inst.ID, CollectedAt: now}
	if err != nil {
		logger.L().Warn("sfu metrics scrape failed",
			zap.String("instance_id", inst.ID), zap.Error(err))
		delete(c.prev, inst.ID)
		if err := c.history.Insert(ctx, snap); err != nil {
			logger.L().Error("metrics history insert failed", zap.Error(err))
		}
		return
	}

	p := promparse.Parse(body)
	cpuSeconds := p.Float64("process_cpu_seconds_total")
	snap.Available = true
	snap.RoomCount = p.SumInt("livekit_room_active")
	snap.ParticipantCount = p.SumInt("livekit_participant_active")
	snap.MemoryBytes = p.Uint64("process_resident_memory_bytes")
	snap.Goroutines = p.Int("go_goroutines")
	snap.BytesIn = p.SumUint64("livekit_bytes_in_total")
	snap.BytesOut = p.SumUint64("livekit_bytes_out_total")

	// Rates come from deltas between consecutive scrapes; the first sample
	// after a gap has no baseline and reports zero rates.
	if prev, ok := c.prev[inst.ID]; ok {
		elapsed := now.Sub(prev.at).Seconds()
		if elapsed > 0 {
			if cpuSeconds >= prev.cpuSeconds {
				snap.CPUPercent = (cpuSeconds - prev.cpuSeconds) / elapsed * 100
			}
			if snap.BytesIn >= prev.bytesIn {
				snap.BandwidthInBps = float64(snap.BytesIn-prev.bytesIn) / elapsed
			}
			if snap.BytesOut >= prev.bytesOut {
				snap.BandwidthOutBps = float64(snap.BytesOut-prev.bytesOut) / elapsed
			}
		}
	}
	c.prev[inst.ID] = prevSample{
		cpuSeconds: cpuSeconds,
		bytesIn:    snap.BytesIn,
		bytesOut:   snap.BytesOut,
		at:         now,
	}

	if err := c.history.Insert(ctx, snap); err != nil {
		logger.L().Error("metrics history insert failed",
			zap.String("instance_id", inst.ID), zap.Error(err))
	}
}
