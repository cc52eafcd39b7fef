package metrics

import "exposureflow/logger"

// DropMetric identifies the metric name emitted when feed messages are dropped.
type DropMetric string

const (
	// DropMetricQuoteUpdate records streamed quote updates dropped because the
	// feed buffer was full.
	DropMetricQuoteUpdate DropMetric = "quote_updates_dropped"
	// DropMetricStreamMessage records raw stream frames discarded before they
	// could be decoded.
	DropMetricStreamMessage DropMetric = "stream_messages_dropped"
)

// EmitDropMetric logs and emits a metric representing a dropped feed message. The
// metric value is always incremented by one so callers should invoke this helper
// for each dropped message. Optional metadata (backend, account, symbol, stage)
// is added to the metric fields when provided which enables downstream
// aggregation per provider and instrument.
func EmitDropMetric(log *logger.Log, metric DropMetric, backend, account, symbol, stage string) {
	fields := logger.Fields{}
	if backend != "" {
		fields["backend"] = backend
	}
	if account != "" {
		fields["account"] = account
	}
	if symbol != "" {
		fields["symbol"] = symbol
	}
	if stage != "" {
		fields["stage"] = stage
	}

	EmitMetric(log, "feed_drops", string(metric), 1, "counter", fields)
}
