package reporter

import (
	"testing"
	"time"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

func TestBroadcastReporterDeliversToSubscriber(t *testing.T) {
	b := NewBroadcastReporter(nil, 8)
	defer b.Close()

	sub := b.Subscribe(8)
	b.OnProgress("step", 0.5, StatusRunning)

	select {
	case e := <-sub:
		if e.stepName != "step" || e.fraction != 0.5 {
			t.Errorf("got event %+v, want step=step fraction=0.5", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestBroadcastReporterErrorNeverDropped(t *testing.T) {
	b := NewBroadcastReporter(nil, 1)
	defer b.Close()

	sub := b.Subscribe(4)
	// Fill the queue with a progress event first so the error would be the
	// one competing for room.
	b.OnProgress("fill", 0.1, StatusRunning)
	b.OnError("step", wallcore.NewError(wallcore.ErrInternal, "step", "boom", false, nil))

	seenError := false
	for i := 0; i < 2; i++ {
		select {
		case e := <-sub:
			if e.isError {
				seenError = true
			}
		case <-time.After(time.Second):
		}
	}
	if !seenError {
		t.Error("error event was dropped, want error events to never be dropped")
	}
}

func TestBroadcastReporterCloseStopsPublisher(t *testing.T) {
	b := NewBroadcastReporter(nil, 4)
	sub := b.Subscribe(4)
	b.Close()

	if _, ok := <-sub; ok {
		t.Error("subscriber channel still open after Close(), want closed")
	}
}
