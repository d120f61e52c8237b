package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Embeds holds the collectors for video embed lifecycles.
type Embeds struct {
	Mounted       prometheus.Counter
	Released      *prometheus.CounterVec
	Activated     *prometheus.CounterVec
	Registrations prometheus.Gauge
}

// NewEmbeds creates the collectors and registers them on reg.
func NewEmbeds(reg prometheus.Registerer) *Embeds {
	m := &Embeds{
		Mounted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "embed",
			Name:      "mounted_total",
			Help:      "Video embed instances mounted.",
		}),
		Released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "embed",
			Name:      "released_total",
			Help:      "Video embed instances released, by reason.",
		}, []string{"reason"}),
		Activated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "embed",
			Name:      "activated_total",
			Help:      "Video embeds switched to autoplay.",
		}, []string{"video_id"}),
		Registrations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "portfolio",
			Subsystem: "viewport",
			Name:      "registrations",
			Help:      "Live visibility observations.",
		}),
	}
	reg.MustRegister(m.Mounted, m.Released, m.Activated, m.Registrations)
	return m
}
