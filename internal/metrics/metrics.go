// Registers:
//
//	#ExposureFlow_pass_success_total
//	#ExposureFlow_pass_errors_total
//	#go_* and process_* system metrics
//
// Exposes them on the configured address using the Prometheus HTTP handler
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once          sync.Once
	passSuccess   *prometheus.CounterVec
	passErrors    *prometheus.CounterVec
	quotesFetched *prometheus.CounterVec
	passDuration  *prometheus.GaugeVec
	totalNotional *prometheus.GaugeVec
)

func Init(address string) {
	once.Do(func() {
		if address == "" {
			address = "0.0.0.0:2112"
		}

		passSuccess = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ExposureFlow_pass_success_total",
				Help: "Number of exposure passes published",
			},
			[]string{"account"},
		)

		passErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ExposureFlow_pass_errors_total",
				Help: "Number of exposure passes abandoned on upstream failure",
			},
			[]string{"account"},
		)

		quotesFetched = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ExposureFlow_quotes_fetched_total",
				Help: "Number of quote snapshots fetched from the provider",
			},
			[]string{"backend"},
		)

		passDuration = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ExposureFlow_pass_duration_ms",
				Help: "Duration of the most recent exposure pass in milliseconds",
			},
			[]string{"account"},
		)

		totalNotional = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ExposureFlow_total_notional",
				Help: "Total notional exposure of the most recent published report",
			},
			[]string{"account"},
		)

		_ = prometheus.Register(passSuccess)
		_ = prometheus.Register(passErrors)
		_ = prometheus.Register(quotesFetched)
		_ = prometheus.Register(passDuration)
		_ = prometheus.Register(totalNotional)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(address, nil); err != nil {
				panic("metrics server failed: " + err.Error())
			}
		}()
	})
}

// IncrementPassSuccess increases the published pass counter for an account.
func IncrementPassSuccess(account string) {
	if passSuccess != nil {
		passSuccess.WithLabelValues(account).Inc()
	}
}

// IncrementPassError increases the failed pass counter for an account.
func IncrementPassError(account string) {
	if passErrors != nil {
		passErrors.WithLabelValues(account).Inc()
	}
}

// AddQuotesFetched adds fetched quote snapshots for a backend.
func AddQuotesFetched(backend string, count int) {
	if quotesFetched != nil && count > 0 {
		quotesFetched.WithLabelValues(backend).Add(float64(count))
	}
}

// SetPassDuration records the duration of the latest pass for an account.
func SetPassDuration(account string, ms float64) {
	if passDuration != nil {
		passDuration.WithLabelValues(account).Set(ms)
	}
}

// SetTotalNotional records the total notional of the latest report for an account.
func SetTotalNotional(account string, value float64) {
	if totalNotional != nil {
		totalNotional.WithLabelValues(account).Set(value)
	}
}
