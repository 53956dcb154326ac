package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"KlinePull/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsMerged    *prometheus.CounterVec
	reconnects    *prometheus.CounterVec
	backfillPages *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
	feedStatus    *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsMerged: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klinepull_bars_merged_total",
				Help: "Total number of live bar updates merged into the series",
			},
			[]string{"symbol"},
		),
		reconnects: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klinepull_stream_reconnects_total",
				Help: "Total number of stream reconnect attempts",
			},
			[]string{"symbol"},
		),
		backfillPages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klinepull_backfill_pages_total",
				Help: "Total number of kline pages fetched during backfills",
			},
			[]string{"symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klinepull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "klinepull_last_price",
				Help: "Last merged price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "klinepull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		feedStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "klinepull_feed_status",
				Help: "Live feed state per symbol (0 idle, 1 connecting, 2 live, 3 disconnected, 4 reconnecting)",
			},
			[]string{"symbol"},
		),
	}
}

// RecordBarMerged counts one merged live update.
func (r *Recorder) RecordBarMerged(symbol string) {
	r.barsMerged.WithLabelValues(symbol).Inc()
}

// RecordReconnect counts one reconnect attempt.
func (r *Recorder) RecordReconnect(symbol string) {
	r.reconnects.WithLabelValues(symbol).Inc()
}

// RecordBackfillPages counts pages fetched by one backfill window.
func (r *Recorder) RecordBackfillPages(symbol string, pages int) {
	r.backfillPages.WithLabelValues(symbol).Add(float64(pages))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last merged price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetFeedStatus exports the live feed state for a symbol.
func (r *Recorder) SetFeedStatus(symbol string, status models.FeedStatus) {
	r.feedStatus.WithLabelValues(symbol).Set(statusValue(status))
}

func statusValue(status models.FeedStatus) float64 {
	switch status {
	case models.FeedConnecting:
		return 1
	case models.FeedLive:
		return 2
	case models.FeedDisconnected:
		return 3
	case models.FeedReconnecting:
		return 4
	default:
		return 0
	}
}
