package metrics

import (
	"testing"
	"time"
)

// Compile-time checks.
var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncSample(SampleUpdated)
	r.IncPulse()
	r.SetSteps(1, 2)
	r.SetListening(true)
	r.IncDayClosed()
	r.IncCommand("start", ResultSuccess)
	r.ObservePersist("file", time.Millisecond, ResultFailed)
	r.IncPersistCoalesced()
	r.IncEventDropped("steps.updated")
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var p *PrometheusRecorder
	p.IncSample(SampleIgnored)
	p.SetSteps(3, 4)
	p.ObservePersist("sqlite", time.Second, ResultSuccess)
}
