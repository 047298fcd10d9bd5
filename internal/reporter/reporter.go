// Package reporter defines the progress-reporting interface the pipeline
// executor and orchestrator publish to, plus two implementations: an
// in-process printer and a bounded-channel broadcaster. Both are grounded on
// the "callback-heavy pipeline -> Reporter interface" design note in spec §9.
package reporter

import "github.com/jmylchreest/wallhue/internal/wallcore"

// Status is the lifecycle state reported alongside a progress fraction.
type Status string

const (
	StatusStarted  Status = "Started"
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusWarning  Status = "Warning"
)

// Reporter is the external interface the core depends on for progress and
// error broadcasting (spec §6). Implementations must tolerate calls from
// multiple goroutines concurrently.
type Reporter interface {
	OnProgress(stepName string, cumulativeFraction float64, status Status)
	OnError(stepName string, err *wallcore.StructuredError)
}

// NoopReporter discards everything. Useful as a safe default and in tests.
type NoopReporter struct{}

func (NoopReporter) OnProgress(string, float64, Status)        {}
func (NoopReporter) OnError(string, *wallcore.StructuredError) {}
