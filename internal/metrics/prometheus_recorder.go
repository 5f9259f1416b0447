package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "stepd"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	samples         *prom.CounterVec
	pulses          prom.Counter
	dailySteps      prom.Gauge
	totalSteps      prom.Gauge
	listening       prom.Gauge
	daysClosed      prom.Counter
	commands        *prom.CounterVec
	persistDuration *prom.HistogramVec
	persistResults  *prom.CounterVec
	coalesced       prom.Counter
	eventsDropped   *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them with reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		samples: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Raw counter samples by effect on the step state",
		}, []string{"result"}),
		pulses: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "step_pulses_total",
			Help:      "Step detector pulses received",
		}),
		dailySteps: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_steps",
			Help:      "Steps counted since the last daily reset",
		}),
		totalSteps: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "total_steps",
			Help:      "Last raw counter value folded into the state",
		}),
		listening: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "listening",
			Help:      "1 while subscribed to the counter source",
		}),
		daysClosed: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "days_closed_total",
			Help:      "Calendar-day rollovers observed",
		}),
		commands: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Tracker commands by name and result",
		}, []string{"command", "result"}),
		persistDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_duration_seconds",
			Help:      "Duration of record saves",
			Buckets:   prom.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"backend"}),
		persistResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "persist_results_total",
			Help:      "Record saves by backend and result",
		}, []string{"backend", "result"}),
		coalesced: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "persist_coalesced_total",
			Help:      "Pending states superseded by a newer state before being written",
		}),
		eventsDropped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Bus events dropped because a subscriber buffer was full",
		}, []string{"type"}),
	}
	reg.MustRegister(pr.samples, pr.pulses, pr.dailySteps, pr.totalSteps, pr.listening,
		pr.daysClosed, pr.commands, pr.persistDuration, pr.persistResults, pr.coalesced, pr.eventsDropped)
	return pr
}

func (p *PrometheusRecorder) IncSample(result SampleLabel) {
	if p == nil {
		return
	}
	p.samples.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncPulse() {
	if p == nil {
		return
	}
	p.pulses.Inc()
}

func (p *PrometheusRecorder) SetSteps(daily, total uint64) {
	if p == nil {
		return
	}
	p.dailySteps.Set(float64(daily))
	p.totalSteps.Set(float64(total))
}

func (p *PrometheusRecorder) SetListening(listening bool) {
	if p == nil {
		return
	}
	if listening {
		p.listening.Set(1)
		return
	}
	p.listening.Set(0)
}

func (p *PrometheusRecorder) IncDayClosed() {
	if p == nil {
		return
	}
	p.daysClosed.Inc()
}

func (p *PrometheusRecorder) IncCommand(command string, result ResultLabel) {
	if p == nil {
		return
	}
	p.commands.WithLabelValues(command, string(result)).Inc()
}

func (p *PrometheusRecorder) ObservePersist(backend string, d time.Duration, result ResultLabel) {
	if p == nil {
		return
	}
	p.persistDuration.WithLabelValues(backend).Observe(d.Seconds())
	p.persistResults.WithLabelValues(backend, string(result)).Inc()
}

func (p *PrometheusRecorder) IncPersistCoalesced() {
	if p == nil {
		return
	}
	p.coalesced.Inc()
}

func (p *PrometheusRecorder) IncEventDropped(eventType string) {
	if p == nil {
		return
	}
	p.eventsDropped.WithLabelValues(eventType).Inc()
}
