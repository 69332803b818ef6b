package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func initMetrics(c Config) {
	if !initialized {
		registerer = prometheus.WrapRegistererWith(prometheus.Labels{labelEnv: c.Env}, prometheus.DefaultRegisterer)
		gauges = make(map[string]*prometheus.GaugeVec)
		counters = make(map[string]*prometheus.CounterVec)
		histograms = make(map[string]*prometheus.HistogramVec)
		initialized = true
	}

	registerCounter(prometheus.CounterOpts{Name: metricRequestCount}, labelMethod, labelPath, labelCode)
	registerHistogram(prometheus.HistogramOpts{Name: metricRequestLatency}, labelMethod, labelPath)
	registerCounter(prometheus.CounterOpts{Name: metricDepositsDetected}, labelNetwork)
	registerCounter(prometheus.CounterOpts{Name: metricLiquidityAdded}, labelNetwork)
	registerGauge(prometheus.GaugeOpts{Name: metricCursorPosition}, labelSource)
	registerCounter(prometheus.CounterOpts{Name: metricPayouts}, labelNetwork, labelPath, labelResult)
	registerHistogram(prometheus.HistogramOpts{Name: metricPayoutDuration}, labelNetwork)
	registerCounter(prometheus.CounterOpts{Name: metricFeesDistributed}, labelNetwork)
}

// RecordRequest increments the request count of an api route
func RecordRequest(method, path string, code int) {
	counterInc(metricRequestCount, map[string]string{labelMethod: method, labelPath: path, labelCode: strconv.Itoa(code)})
}

// RecordRequestLatency records the latency histogram in milliseconds
func RecordRequestLatency(method, path string, latency time.Duration) {
	histogramObserve(metricRequestLatency, float64(latency.Milliseconds()), map[string]string{labelMethod: method, labelPath: path})
}

// RecordDepositDetected counts a deposit event confirmed on the source network
func RecordDepositDetected(network string) {
	counterInc(metricDepositsDetected, map[string]string{labelNetwork: network})
}

// RecordLiquidityAdded counts an LP contribution credited to a pool
func RecordLiquidityAdded(network string) {
	counterInc(metricLiquidityAdded, map[string]string{labelNetwork: network})
}

// SetCursorPosition exposes how far a source was ingested. Block sources report the block
// number, mirror node sources the consensus timestamp in seconds.
func SetCursorPosition(source string, position float64) {
	gaugeSet(metricCursorPosition, position, map[string]string{labelSource: source})
}

// RecordPayout counts a payout attempt by destination network, payout path and result
func RecordPayout(network, path, result string) {
	counterInc(metricPayouts, map[string]string{labelNetwork: network, labelPath: path, labelResult: result})
}

// RecordPayoutDuration records how long a deposit waited from confirmation to payout
func RecordPayoutDuration(network string, dur time.Duration) {
	histogramObserve(metricPayoutDuration, dur.Seconds(), map[string]string{labelNetwork: network})
}

// RecordFeeDistributed adds a booked fee to the network total
func RecordFeeDistributed(network string, amount float64) {
	counterAdd(metricFeesDistributed, amount, map[string]string{labelNetwork: network})
}
