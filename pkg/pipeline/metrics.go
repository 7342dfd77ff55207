package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors updated by the Manager.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	Joins              *prometheus.CounterVec
	JoinDuration       prometheus.Histogram
	StreamStarts       prometheus.Counter
	StreamFailures     *prometheus.CounterVec
	Reconnects         prometheus.Counter
	ReconnectExhausted prometheus.Counter
	Cleanups           *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. A nil reg creates unregistered
// collectors, which is what tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lofibot",
			Name:      "audio_sessions_active",
			Help:      "Number of registered guild audio sessions.",
		}),
		Joins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lofibot",
			Name:      "voice_joins_total",
			Help:      "Voice join attempts by result.",
		}, []string{"result"}),
		JoinDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lofibot",
			Name:      "voice_join_duration_seconds",
			Help:      "Time until a voice connection became ready.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		StreamStarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lofibot",
			Name:      "stream_starts_total",
			Help:      "Transcoding pipelines handed to a player.",
		}),
		StreamFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lofibot",
			Name:      "stream_failures_total",
			Help:      "Stream failures by reason.",
		}, []string{"reason"}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lofibot",
			Name:      "stream_reconnects_total",
			Help:      "Scheduled stream restarts.",
		}),
		ReconnectExhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lofibot",
			Name:      "stream_reconnects_exhausted_total",
			Help:      "Sessions that stopped after running out of restarts.",
		}),
		Cleanups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lofibot",
			Name:      "session_cleanups_total",
			Help:      "Session teardowns by reason.",
		}, []string{"reason"}),
	}
}
