package reporter

import (
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

func TestInProcessReporterDoesNotPanicOnNilLogger(t *testing.T) {
	r := NewInProcessReporter(nil)
	r.OnProgress("step", 0.5, StatusRunning)
	r.OnError("step", wallcore.NewError(wallcore.ErrInternal, "step", "boom", false, nil))
}

func TestInProcessReporterSatisfiesReporter(t *testing.T) {
	var _ Reporter = NewInProcessReporter(hclog.NewNullLogger())
}
