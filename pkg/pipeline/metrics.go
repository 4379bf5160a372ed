package pipeline

import "sync/atomic"

// Metrics accumulates counters for one Executor across pipeline runs. It
// mirrors the shape of a StreamingMetrics snapshot: cheap atomic counters an
// embedding collaborator can read at any time, not a persisted store.
type Metrics struct {
	stepsRun      atomic.Int64
	bytesStreamed atomic.Int64
	cancellations atomic.Int64
	failures      atomic.Int64
}

func (m *Metrics) recordStep()            { m.stepsRun.Add(1) }
func (m *Metrics) recordBytes(n int)      { m.bytesStreamed.Add(int64(n)) }
func (m *Metrics) recordCancellation()    { m.cancellations.Add(1) }
func (m *Metrics) recordFailure()         { m.failures.Add(1) }

type MetricsSnapshot struct {
	StepsRun      int64
	BytesStreamed int64
	Cancellations int64
	Failures      int64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		StepsRun:      m.stepsRun.Load(),
		BytesStreamed: m.bytesStreamed.Load(),
		Cancellations: m.cancellations.Load(),
		Failures:      m.failures.Load(),
	}
}

// ProgressReporter lets a caller embedding the engine observe step
// transitions without the executor depending on any UI. The default is a
// no-op; StepStarted/StepFinished are called synchronously from the
// executor goroutine.
type ProgressReporter interface {
	StepStarted(stepType string, index int)
	StepFinished(stepType string, index int, err error)
}

type noopProgressReporter struct{}

func (noopProgressReporter) StepStarted(string, int)       {}
func (noopProgressReporter) StepFinished(string, int, error) {}

// NoopProgressReporter is the executor's default when none is supplied.
var NoopProgressReporter ProgressReporter = noopProgressReporter{}
