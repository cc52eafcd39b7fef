package metrics

import (
	"context"
	"time"

	"exposureflow/internal/feed"
	"exposureflow/logger"
)

// StartChannelSizeMetrics emits occupancy metrics for the quote feed buffer.
// Metrics are logged every `interval` until the context is cancelled. When
// interval <= 0, a one-second cadence is used.
func StartChannelSizeMetrics(ctx context.Context, updates *feed.Updates, interval time.Duration) {
	if !IsFeatureEnabled(FeatureChannelSize) {
		return
	}
	if updates == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	log := logger.GetLogger()
	ticker := time.NewTicker(interval)
	component := "feed_buffers"

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				EmitMetric(log, component, "quote_feed_buffer_length", len(updates.Quotes), "gauge", logger.Fields{
					"buffer":   "quote_feed",
					"capacity": cap(updates.Quotes),
				})
			}
		}
	}()
}
