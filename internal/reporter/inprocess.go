package reporter

import (
	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// InProcessReporter prints progress and errors directly through an
// hclog.Logger. It is synchronous: callers block for the duration of the
// log write, which is fine for the common single-consumer CLI case.
type InProcessReporter struct {
	log hclog.Logger
}

// NewInProcessReporter builds an InProcessReporter backed by log.
func NewInProcessReporter(log hclog.Logger) *InProcessReporter {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &InProcessReporter{log: log}
}

func (r *InProcessReporter) OnProgress(stepName string, cumulativeFraction float64, status Status) {
	r.log.Info("progress", "step", stepName, "fraction", cumulativeFraction, "status", string(status))
}

func (r *InProcessReporter) OnError(stepName string, err *wallcore.StructuredError) {
	r.log.Warn("step error", "step", stepName, "kind", string(err.Kind), "message", err.Message, "recoverable", err.Recoverable)
}
