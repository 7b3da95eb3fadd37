package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry           *prometheus.Registry
	transfersCompleted prometheus.Counter
	transfersRejected  *prometheus.CounterVec
	transferDuration   prometheus.Histogram
	requestEvents      *prometheus.CounterVec
	accountBalance     *prometheus.GaugeVec
	logger             *slog.Logger
}

func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	collector := &Collector{
		registry: registry,
		transfersCompleted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "transfers_completed_total",
			Help: "Total number of completed fund transfers",
		}),
		transfersRejected: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "transfers_rejected_total",
			Help: "Total number of rejected fund transfers",
		}, []string{"reason"}),
		transferDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "transfer_duration_seconds",
			Help:    "Time taken to execute a transfer operation",
			Buckets: prometheus.DefBuckets,
		}),
		requestEvents: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_request_events_total",
			Help: "Transfer request lifecycle transitions",
		}, []string{"event"}),
		accountBalance: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "account_balance",
			Help: "Current account balance",
		}, []string{"account_id"}),
		logger: logger,
	}

	return collector
}

func (c *Collector) RecordTransfer(duration time.Duration, rejectionReason string) {
	if rejectionReason == "" {
		c.transfersCompleted.Inc()
	} else {
		c.transfersRejected.WithLabelValues(rejectionReason).Inc()
	}
	c.transferDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordRequestEvent(event string) {
	c.requestEvents.WithLabelValues(event).Inc()
}

func (c *Collector) UpdateAccountBalance(accountID string, balance float64) {
	c.accountBalance.WithLabelValues(accountID).Set(balance)
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		c.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (c *Collector) Shutdown(ctx context.Context) error {
	c.logger.Info("Metrics collector shutdown complete")
	return nil
}
