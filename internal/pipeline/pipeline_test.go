package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/jmylchreest/wallhue/internal/reporter"
	"github.com/jmylchreest/wallhue/internal/wallcore"
)

func TestExecutorRunAllSucceed(t *testing.T) {
	pc := NewContext(reporter.NoopReporter{}, t.TempDir())
	ex := NewExecutor(nil)

	entries := []Entry{
		Single(Step{Name: "a", Run: func(ctx context.Context, pc *Context) StepOutcome { return Ok("a-result") }}),
		Single(Step{Name: "b", Run: func(ctx context.Context, pc *Context) StepOutcome { return Ok("b-result") }}),
	}

	outcome := ex.Run(context.Background(), pc, entries)
	if outcome != RunCompleted {
		t.Fatalf("Run() = %v, want RunCompleted", outcome)
	}
	if v, ok := pc.Result("a"); !ok || v != "a-result" {
		t.Errorf("pc.Result(a) = %v, %v, want a-result, true", v, ok)
	}
}

func TestExecutorCriticalFailureStopsRun(t *testing.T) {
	pc := NewContext(reporter.NoopReporter{}, t.TempDir())
	ex := NewExecutor(nil)

	ranSecond := false
	entries := []Entry{
		Single(Step{
			Name:     "critical",
			Critical: true,
			Run: func(ctx context.Context, pc *Context) StepOutcome {
				return Fail(wallcore.NewError(wallcore.ErrInternal, "critical", "boom", false, nil))
			},
		}),
		Single(Step{Name: "second", Run: func(ctx context.Context, pc *Context) StepOutcome {
			ranSecond = true
			return Ok(nil)
		}}),
	}

	outcome := ex.Run(context.Background(), pc, entries)
	if outcome != RunFailed {
		t.Fatalf("Run() = %v, want RunFailed", outcome)
	}
	if ranSecond {
		t.Error("entry after a critically-failed entry was started, want it skipped")
	}
}

func TestExecutorNonCriticalFailureContinuesWithWarning(t *testing.T) {
	pc := NewContext(reporter.NoopReporter{}, t.TempDir())
	ex := NewExecutor(nil)

	ranSecond := false
	entries := []Entry{
		Single(Step{
			Name:     "noncritical",
			Critical: false,
			Run: func(ctx context.Context, pc *Context) StepOutcome {
				return Fail(wallcore.NewError(wallcore.ErrEffectFailed, "noncritical", "minor", true, nil))
			},
		}),
		Single(Step{Name: "second", Run: func(ctx context.Context, pc *Context) StepOutcome {
			ranSecond = true
			return Ok(nil)
		}}),
	}

	outcome := ex.Run(context.Background(), pc, entries)
	if outcome != RunCompleted {
		t.Fatalf("Run() = %v, want RunCompleted (non-critical failures don't fail the run)", outcome)
	}
	if !ranSecond {
		t.Error("entry after a non-critically-failed entry was skipped, want it to run")
	}
	if len(pc.Errors()) != 1 {
		t.Errorf("pc.Errors() has %d entries, want 1", len(pc.Errors()))
	}
}

func TestExecutorRetriesUntilSuccess(t *testing.T) {
	pc := NewContext(reporter.NoopReporter{}, t.TempDir())
	ex := NewExecutor(nil)

	attempts := 0
	entries := []Entry{
		Single(Step{
			Name:        "flaky",
			MaxAttempts: 3,
			Run: func(ctx context.Context, pc *Context) StepOutcome {
				attempts++
				if attempts < 3 {
					return Fail(wallcore.NewError(wallcore.ErrInternal, "flaky", "transient", true, nil))
				}
				return Ok("finally")
			},
		}),
	}

	outcome := ex.Run(context.Background(), pc, entries)
	if outcome != RunCompleted {
		t.Fatalf("Run() = %v, want RunCompleted", outcome)
	}
	if attempts != 3 {
		t.Errorf("step ran %d times, want 3 (retried until success)", attempts)
	}
}

func TestExecutorStepTimeoutFails(t *testing.T) {
	pc := NewContext(reporter.NoopReporter{}, t.TempDir())
	ex := NewExecutor(nil)

	entries := []Entry{
		Single(Step{
			Name:     "slow",
			Critical: true,
			Timeout:  10 * time.Millisecond,
			Run: func(ctx context.Context, pc *Context) StepOutcome {
				<-ctx.Done()
				return Fail(wallcore.NewError(wallcore.ErrCancelled, "slow", "timed out", false, ctx.Err()))
			},
		}),
	}

	outcome := ex.Run(context.Background(), pc, entries)
	if outcome != RunFailed {
		t.Fatalf("Run() = %v, want RunFailed", outcome)
	}
	errs := pc.Errors()
	if len(errs) != 1 {
		t.Fatalf("pc.Errors() has %d entries, want 1", len(errs))
	}
}

func TestSkipIsNotAFailure(t *testing.T) {
	pc := NewContext(reporter.NoopReporter{}, t.TempDir())
	ex := NewExecutor(nil)

	entries := []Entry{
		Single(Step{Name: "skippable", Run: func(ctx context.Context, pc *Context) StepOutcome {
			return Skip("nothing to do")
		}}),
	}

	outcome := ex.Run(context.Background(), pc, entries)
	if outcome != RunCompleted {
		t.Fatalf("Run() = %v, want RunCompleted", outcome)
	}
	if len(pc.Errors()) != 0 {
		t.Errorf("pc.Errors() has %d entries, want 0 for a skipped step", len(pc.Errors()))
	}
}
