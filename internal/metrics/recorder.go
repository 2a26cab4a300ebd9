package metrics

import "time"

// ResultLabel enumerates operation result categories for counters.
type ResultLabel string

const (
	ResultSuccess    ResultLabel = "success"
	ResultRolledBack ResultLabel = "rolled_back"
	ResultFailed     ResultLabel = "failed"
	ResultCanceled   ResultLabel = "canceled"
)

// Operation names the orchestrator call being measured.
type Operation string

const (
	OpAdd      Operation = "add"
	OpRemove   Operation = "remove"
	OpManifest Operation = "manifest"
)

// Recorder defines observability hooks for orchestrator calls.
type Recorder interface {
	ObserveOperationDuration(op Operation, d time.Duration)
	IncOperationResult(op Operation, result ResultLabel)
	IncItemSkipped(kind string)
	IncRegistryRetry()
	IncRegistryRetryExhausted()
	SetInstalledPlugins(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveOperationDuration(Operation, time.Duration) {}
func (NoopRecorder) IncOperationResult(Operation, ResultLabel)         {}
func (NoopRecorder) IncItemSkipped(string)                             {}
func (NoopRecorder) IncRegistryRetry()                                 {}
func (NoopRecorder) IncRegistryRetryExhausted()                        {}
func (NoopRecorder) SetInstalledPlugins(int)                           {}
