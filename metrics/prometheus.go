package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

var (
	mutex       sync.RWMutex
	registerer  prometheus.Registerer
	initialized bool

	gauges     map[string]*prometheus.GaugeVec
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
)

func getLogger(metricName, metricType string) *log.Logger {
	return log.WithFields("metricName", metricName, "metricType", metricType)
}

// Init initializes the metrics registry. Recording before Init is a no-op.
func Init(c Config) {
	if c.Enabled {
		initMetrics(c)
	}
}

// StartMetricsHttpServer serves the prometheus endpoint until ctx is done
func StartMetricsHttpServer(ctx context.Context, c Config) {
	if !c.Enabled {
		return
	}
	initMetrics(c)

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = defaultMetricsEndpoint
	}
	mux := http.NewServeMux()
	mux.Handle(endpoint, promhttp.Handler())
	srv := &http.Server{
		Addr:        ":" + c.Port,
		Handler:     mux,
		ReadTimeout: 5 * time.Second, //nolint:gomnd
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("metrics http server shutdown: %v", err)
		}
	}()

	log.Infof("metrics server listening on %s%s", srv.Addr, endpoint)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("serve metrics http server error: %v", err)
	}
}

// register adds a collector to vecs once; later registrations of the same name are ignored
func register[V prometheus.Collector](kind, name string, vecs map[string]V, newVec func() V) {
	if !initialized {
		return
	}
	logger := getLogger(name, kind)
	mutex.Lock()
	defer mutex.Unlock()

	if _, ok := vecs[name]; ok {
		return
	}
	collector := newVec()
	if err := registerer.Register(collector); err != nil {
		logger.Errorf("metrics register error: %v", err)
		return
	}
	vecs[name] = collector
	logger.Debugf("metrics register successfully")
}

func lookup[V any](kind, name string, vecs map[string]V) (V, bool) {
	var zero V
	if !initialized {
		return zero, false
	}
	mutex.RLock()
	c, ok := vecs[name]
	mutex.RUnlock()
	if !ok {
		getLogger(name, kind).Errorf("collector not found")
		return zero, false
	}
	return c, true
}

func registerGauge(opt prometheus.GaugeOpts, labelNames ...string) {
	register(typeGauge, opt.Name, gauges, func() *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(opt, labelNames)
	})
}

func registerCounter(opt prometheus.CounterOpts, labelNames ...string) {
	register(typeCounter, opt.Name, counters, func() *prometheus.CounterVec {
		return prometheus.NewCounterVec(opt, labelNames)
	})
}

func registerHistogram(opt prometheus.HistogramOpts, labelNames ...string) {
	register(typeHistogram, opt.Name, histograms, func() *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(opt, labelNames)
	})
}

func gaugeSet(name string, value float64, labelValues map[string]string) {
	if c, ok := lookup(typeGauge, name, gauges); ok {
		c.With(labelValues).Set(value)
	}
}

func counterInc(name string, labelValues map[string]string) {
	counterAdd(name, 1, labelValues)
}

func counterAdd(name string, value float64, labelValues map[string]string) {
	if c, ok := lookup(typeCounter, name, counters); ok {
		c.With(labelValues).Add(value)
	}
}

func histogramObserve(name string, value float64, labelValues map[string]string) {
	if c, ok := lookup(typeHistogram, name, histograms); ok {
		c.With(labelValues).Observe(value)
	}
}
