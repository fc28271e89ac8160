package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	ticks          prometheus.Counter
	packets        prometheus.Counter
	rows           prometheus.Counter
	overflows      prometheus.Counter
	discarded      prometheus.Counter
	queueDepth     prometheus.Gauge
	tickSeconds    prometheus.Histogram
	lowPercentile  prometheus.Gauge
	highPercentile prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rfscope",
			Name:      "ticks_total",
			Help:      "Render ticks executed.",
		}),
		packets: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rfscope",
			Name:      "packets_absorbed_total",
			Help:      "Packets drained from the acquisition queue into the buffer.",
		}),
		rows: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rfscope",
			Name:      "rows_absorbed_total",
			Help:      "Spectrum rows written into the rolling buffer.",
		}),
		overflows: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rfscope",
			Name:      "overflow_events_total",
			Help:      "Ticks that discarded a backlog because rendering fell behind.",
		}),
		discarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rfscope",
			Name:      "packets_discarded_total",
			Help:      "Packets thrown away by the drain policy.",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "rfscope",
			Name:      "queue_depth",
			Help:      "Packets waiting in the acquisition queue after the last tick.",
		}),
		tickSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rfscope",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one drain, absorb, normalize and display cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		lowPercentile: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "rfscope",
			Name:      "contrast_low_db",
			Help:      "Lower contrast bound of the last frame.",
		}),
		highPercentile: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "rfscope",
			Name:      "contrast_high_db",
			Help:      "Upper contrast bound of the last frame.",
		}),
	}
}
