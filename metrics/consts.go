package metrics

const (
	defaultMetricsEndpoint = "/metrics"
)

// Metric types
const (
	typeGauge     = "gauge"
	typeCounter   = "counter"
	typeHistogram = "histogram"
)

// Metric names and labels
const (
	prefix   = "valt_bridge_"
	labelEnv = "env"

	prefixRequest        = prefix + "request_"
	metricRequestCount   = prefixRequest + "total"
	metricRequestLatency = prefixRequest + "latency_ms"
	labelMethod          = "method"
	labelPath            = "path"
	labelCode            = "code"

	metricDepositsDetected = prefix + "deposits_detected_total"
	metricLiquidityAdded   = prefix + "liquidity_added_total"
	labelNetwork           = "network"

	metricCursorPosition = prefix + "cursor_position"
	labelSource          = "source"

	metricPayouts        = prefix + "payouts_total"
	metricPayoutDuration = prefix + "payout_duration_sec"
	labelResult          = "result"

	metricFeesDistributed = prefix + "fees_distributed_total"
)
