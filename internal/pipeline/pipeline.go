// Package pipeline runs a declared sequence of entries, where each entry is
// either a single step or a set of steps executed concurrently, merging
// their outputs into a shared context and reporting progress as it goes.
//
// The Run loop is grounded on Skryldev-image-processor's pipeline.Pipeline
// (hook-based Run/runStep with retry-with-delay), generalized to support
// parallel entries in the idiom jmylchreest/tvarr uses for its own
// Orchestrator (ordered, named stages, re-exported result types).
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/wallhue/internal/reporter"
	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// StepOutcome is the result of running a single Step.
type StepOutcome struct {
	Result  any
	Skipped string // non-empty reason if the step was skipped
	Err     *wallcore.StructuredError
}

// Ok builds a successful StepOutcome.
func Ok(result any) StepOutcome { return StepOutcome{Result: result} }

// Skip builds a skipped StepOutcome.
func Skip(reason string) StepOutcome { return StepOutcome{Skipped: reason} }

// Fail builds a failed StepOutcome.
func Fail(err *wallcore.StructuredError) StepOutcome { return StepOutcome{Err: err} }

// Step is a single unit of pipeline work.
type Step struct {
	Name        string
	Run         func(ctx context.Context, pc *Context) StepOutcome
	Critical    bool
	Timeout     time.Duration
	MaxAttempts int // 0 or 1 means "no retry"
	Weight      float64
}

// Entry is one position in the pipeline: either a single step or a set of
// steps run concurrently with no ordering guarantee between them.
type Entry struct {
	Steps []Step // len==1 for a single-step entry, >1 for a parallel set
}

// Single wraps one step as an Entry.
func Single(s Step) Entry { return Entry{Steps: []Step{s}} }

// Parallel wraps a set of steps as a concurrent Entry.
func Parallel(steps ...Step) Entry { return Entry{Steps: steps} }

// Context is the shared mutable record threaded through a pipeline run. It
// is created once per invocation and never outlives it.
type Context struct {
	mu       sync.Mutex
	results  map[string]any
	skips    map[string]string
	errors   []*wallcore.StructuredError
	cursor   float64
	reporter reporter.Reporter
	cancel   atomicBool
	Scratch  string
}

type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (b *atomicBool) set(v bool) {
	b.mu.Lock()
	b.v = v
	b.mu.Unlock()
}

func (b *atomicBool) get() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}

// NewContext creates a fresh, empty pipeline Context.
func NewContext(rep reporter.Reporter, scratchDir string) *Context {
	return &Context{
		results:  make(map[string]any),
		skips:    make(map[string]string),
		reporter: rep,
		Scratch:  scratchDir,
	}
}

// Result reads a prior step's output, returning false if absent.
func (pc *Context) Result(name string) (any, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	v, ok := pc.results[name]
	return v, ok
}

// Errors returns a snapshot of accumulated structured errors.
func (pc *Context) Errors() []*wallcore.StructuredError {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	out := make([]*wallcore.StructuredError, len(pc.errors))
	copy(out, pc.errors)
	return out
}

// Cancelled reports whether cancellation has been requested.
func (pc *Context) Cancelled() bool { return pc.cancel.get() }

// Cancel requests cooperative cancellation of the remaining run.
func (pc *Context) Cancel() { pc.cancel.set(true) }

func (pc *Context) record(name string, outcome StepOutcome) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	switch {
	case outcome.Err != nil:
		pc.errors = append(pc.errors, outcome.Err)
	case outcome.Skipped != "":
		pc.skips[name] = outcome.Skipped
	default:
		pc.results[name] = outcome.Result
	}
}

// EntryStatus is the terminal state of one executed Entry.
type EntryStatus string

const (
	EntrySucceeded            EntryStatus = "Succeeded"
	EntrySucceededWithWarning EntryStatus = "SucceededWithWarnings"
	EntryFailedCritically     EntryStatus = "FailedCritically"
	EntryCancelled            EntryStatus = "Cancelled"
)

// Outcome is the terminal result of a full pipeline Run.
type Outcome string

const (
	RunCompleted  Outcome = "Completed"
	RunFailed     Outcome = "Failed"
	RunCancelled  Outcome = "Cancelled"
)

// Executor runs a declared list of Entries against a Context.
type Executor struct {
	log hclog.Logger
}

// NewExecutor creates a pipeline Executor.
func NewExecutor(log hclog.Logger) *Executor {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Executor{log: log}
}

// Run executes entries in declared order against pc, returning the final
// Outcome. It stops starting new entries once any entry ends
// FailedCritically or the context is cancelled, but never interrupts
// already-running parallel-entry members (spec §4.1).
func (ex *Executor) Run(ctx context.Context, pc *Context, entries []Entry) Outcome {
	totalWeight := 0.0
	for _, e := range entries {
		for _, s := range e.Steps {
			w := s.Weight
			if w == 0 {
				w = 1
			}
			totalWeight += w
		}
	}
	if totalWeight == 0 {
		totalWeight = 1
	}

	var doneWeight float64
	for _, entry := range entries {
		if pc.Cancelled() {
			return RunCancelled
		}

		status := ex.runEntry(ctx, pc, entry, totalWeight, &doneWeight)
		switch status {
		case EntryFailedCritically:
			return RunFailed
		case EntryCancelled:
			return RunCancelled
		}
	}
	return RunCompleted
}

func (ex *Executor) runEntry(ctx context.Context, pc *Context, entry Entry, totalWeight float64, doneWeight *float64) EntryStatus {
	var wg sync.WaitGroup
	outcomes := make([]StepOutcome, len(entry.Steps))

	for i, step := range entry.Steps {
		wg.Add(1)
		go func(i int, step Step) {
			defer wg.Done()
			outcomes[i] = ex.runStep(ctx, pc, step)
		}(i, step)
	}
	wg.Wait()

	anyCriticalFailure := false
	anyFailure := false
	for i, outcome := range outcomes {
		step := entry.Steps[i]
		pc.record(step.Name, outcome)
		if outcome.Err != nil {
			anyFailure = true
			if step.Critical {
				anyCriticalFailure = true
			}
			if pc.reporter != nil {
				pc.reporter.OnError(step.Name, outcome.Err)
			}
		}
		w := step.Weight
		if w == 0 {
			w = 1
		}
		*doneWeight += w
		if pc.reporter != nil {
			status := reporter.StatusRunning
			if outcome.Err != nil {
				status = reporter.StatusWarning
			}
			pc.reporter.OnProgress(step.Name, clamp01(*doneWeight/totalWeight), status)
		}
	}

	if pc.Cancelled() {
		return EntryCancelled
	}
	if anyCriticalFailure {
		return EntryFailedCritically
	}
	if anyFailure {
		return EntrySucceededWithWarning
	}
	return EntrySucceeded
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// runStep executes a single step with retry/backoff and cooperative timeout
// handling (spec §4.1, §5).
func (ex *Executor) runStep(ctx context.Context, pc *Context, step Step) StepOutcome {
	attempts := step.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last StepOutcome
	for attempt := 0; attempt < attempts; attempt++ {
		stepCtx := ctx
		var cancelTimeout context.CancelFunc
		if step.Timeout > 0 {
			stepCtx, cancelTimeout = context.WithTimeout(ctx, step.Timeout)
		}

		done := make(chan StepOutcome, 1)
		go func() {
			done <- step.Run(stepCtx, pc)
		}()

		select {
		case outcome := <-done:
			if cancelTimeout != nil {
				cancelTimeout()
			}
			last = outcome
		case <-stepCtx.Done():
			if cancelTimeout != nil {
				cancelTimeout()
			}
			const grace = 2 * time.Second
			select {
			case outcome := <-done:
				last = outcome
			case <-time.After(grace):
				last = Fail(wallcore.NewError(wallcore.ErrCancelled, step.Name,
					"step did not return within grace window after timeout", false, stepCtx.Err()))
			}
		}

		if last.Err == nil {
			return last
		}
		if attempt < attempts-1 {
			ex.log.Debug("step failed, retrying", "step", step.Name, "attempt", attempt+1, "err", last.Err)
			backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return last
			}
		}
	}
	return last
}
