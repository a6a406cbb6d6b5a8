// Package metrics exports engine and output counters as Prometheus metrics.
//
// A Collector observes one network's Context (ticks, chain computations,
// pulse firings), decorates its Sink (notes, control changes, pitches) and
// wraps its Driver hook (evaluation errors by code). Metrics live on a
// private registry and are written out with WriteTextfile, for the node
// exporter's textfile collector.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/host"
	"github.com/roach88/tangram/internal/ir"
)

// Namespace prefixes every metric name.
const Namespace = "tangram"

var (
	_ engine.Observer = (*Collector)(nil)
	_ host.Sink       = (*sink)(nil)
)

// Collector holds one performance's metrics.
//
// Thread Safety: safe for concurrent use; Prometheus metrics are atomic.
type Collector struct {
	registry *prometheus.Registry

	ticks        prometheus.Counter
	lastTick     prometheus.Gauge
	computations *prometheus.CounterVec
	fires        *prometheus.CounterVec
	notes        prometheus.Counter
	controls     prometheus.Counter
	pitches      prometheus.Histogram
	sinkErrors   prometheus.Counter
	eventErrors  *prometheus.CounterVec
}

// NewCollector creates a Collector with its metrics registered on a fresh registry.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ticks_total",
			Help:      "Triggers delivered to the root pulse.",
		}),
		lastTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_tick",
			Help:      "Most recent logical tick.",
		}),
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chain_computations_total",
			Help:      "Chain recomputations, by chain kind. At most one per chain per tick.",
		}, []string{"kind"}),
		fires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pulse_fires_total",
			Help:      "Engine pulse firings, by pulse kind.",
		}, []string{"kind"}),
		notes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "notes_total",
			Help:      "Notes emitted.",
		}),
		controls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "controls_total",
			Help:      "Control changes emitted.",
		}),
		pitches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "note_pitch",
			Help:      "Pitch of emitted notes, bucketed by octave.",
			Buckets:   prometheus.LinearBuckets(11, 12, 11),
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sink_errors_total",
			Help:      "Notes and control changes the output sink rejected.",
		}),
		eventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "event_errors_total",
			Help:      "Triggers abandoned by a runtime error, by error code.",
		}, []string{"code"}),
	}

	for _, m := range []prometheus.Collector{
		c.ticks, c.lastTick, c.computations, c.fires,
		c.notes, c.controls, c.pitches, c.sinkErrors, c.eventErrors,
	} {
		if err := c.registry.Register(m); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return c, nil
}

// Registry returns the registry holding the Collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Ticked implements engine.Observer.
func (c *Collector) Ticked(stamp int64) {
	c.ticks.Inc()
	c.lastTick.Set(float64(stamp))
}

// Computed implements engine.Observer.
func (c *Collector) Computed(kind string) {
	c.computations.WithLabelValues(kind).Inc()
}

// Fired implements engine.Observer.
func (c *Collector) Fired(kind string) {
	c.fires.WithLabelValues(kind).Inc()
}

// Sink returns a host.Sink counting output before passing it to next.
// A nil next discards output after counting it.
func (c *Collector) Sink(next host.Sink) host.Sink {
	if next == nil {
		next = host.Discard
	}
	return &sink{c: c, next: next}
}

// Hook returns an EventHook counting runtime errors by code, then calling
// next if it is not nil.
func (c *Collector) Hook(next engine.EventHook) engine.EventHook {
	return func(stamp int64, value int, err error) {
		if err != nil {
			code := "UNKNOWN"
			var rerr *engine.RuntimeError
			if errors.As(err, &rerr) {
				code = string(rerr.Code)
			}
			c.eventErrors.WithLabelValues(code).Inc()
		}
		if next != nil {
			next(stamp, value, err)
		}
	}
}

// WriteTextfile writes the Collector's metrics to path in the Prometheus
// text format. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

type sink struct {
	c    *Collector
	next host.Sink
}

func (s *sink) Note(n ir.Note) error {
	s.c.notes.Inc()
	s.c.pitches.Observe(float64(n.Pitch))
	if err := s.next.Note(n); err != nil {
		s.c.sinkErrors.Inc()
		return err
	}
	return nil
}

func (s *sink) Control(cc ir.Control) error {
	s.c.controls.Inc()
	if err := s.next.Control(cc); err != nil {
		s.c.sinkErrors.Inc()
		return err
	}
	return nil
}
