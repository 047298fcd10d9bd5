package reporter

import (
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// event is the internal envelope queued onto the broadcaster's channel.
type event struct {
	isError  bool
	stepName string
	fraction float64
	status   Status
	err      *wallcore.StructuredError
}

// BroadcastReporter fans progress and error events out to subscribers via a
// single background publisher goroutine reading off a bounded channel, per
// spec §5's "broadcast reporter uses a single background publisher thread."
// Progress events are dropped (oldest first) when the channel is full;
// error events are never dropped — the send blocks until there is room,
// which in turn applies natural backpressure to whoever is driving the
// pipeline. A subscriber whose own channel is full when an event is
// published misses that event, whatever its kind. A desktop notification
// is fired on terminal failures as a
// stand-in for the out-of-scope socket broadcaster (spec §4.7 design notes).
type BroadcastReporter struct {
	log      hclog.Logger
	notifier notifier
	mu       sync.Mutex
	subs     []chan event
	queue    chan event
	done     chan struct{}
}

type notifier interface {
	Notify(summary, body string)
}

// NewBroadcastReporter starts a BroadcastReporter with the given bounded
// queue capacity. Call Close to stop the publisher goroutine.
func NewBroadcastReporter(log hclog.Logger, capacity int) *BroadcastReporter {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if capacity < 1 {
		capacity = 64
	}
	b := &BroadcastReporter{
		log:      log,
		notifier: newDBusNotifier(log),
		queue:    make(chan event, capacity),
		done:     make(chan struct{}),
	}
	go b.publish()
	return b
}

// Subscribe registers a new subscriber channel that receives the events
// this reporter publishes from now on; an event published while the
// channel is full is dropped for this subscriber.
func (b *BroadcastReporter) Subscribe(capacity int) <-chan event {
	if capacity < 1 {
		capacity = 16
	}
	ch := make(chan event, capacity)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

func (b *BroadcastReporter) OnProgress(stepName string, cumulativeFraction float64, status Status) {
	e := event{stepName: stepName, fraction: cumulativeFraction, status: status}
	select {
	case b.queue <- e:
	default:
		// Channel full: drop the oldest progress event to make room, never
		// drop errors (spec §5). An error at the head is requeued at the
		// back and this progress event is dropped instead.
		select {
		case old := <-b.queue:
			if old.isError {
				b.queue <- old
				return
			}
		default:
		}
		select {
		case b.queue <- e:
		default:
		}
	}
}

func (b *BroadcastReporter) OnError(stepName string, err *wallcore.StructuredError) {
	b.queue <- event{isError: true, stepName: stepName, err: err}
	if !err.Recoverable && b.notifier != nil {
		b.notifier.Notify("wallhue", err.Error())
	}
}

// Close stops the publisher goroutine and closes all subscriber channels.
func (b *BroadcastReporter) Close() {
	close(b.done)
}

func (b *BroadcastReporter) publish() {
	for {
		select {
		case e := <-b.queue:
			b.mu.Lock()
			subs := append([]chan event(nil), b.subs...)
			b.mu.Unlock()
			for _, s := range subs {
				select {
				case s <- e:
				default:
					b.log.Debug("broadcast subscriber channel full, dropping event")
				}
			}
		case <-b.done:
			b.mu.Lock()
			for _, s := range b.subs {
				close(s)
			}
			b.subs = nil
			b.mu.Unlock()
			return
		}
	}
}

// dbusNotifier sends desktop notifications via the standard
// org.freedesktop.Notifications session-bus interface.
type dbusNotifier struct {
	log  hclog.Logger
	conn *dbus.Conn
}

func newDBusNotifier(log hclog.Logger) *dbusNotifier {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		log.Debug("dbus session bus unavailable, desktop notifications disabled", "err", err)
		return &dbusNotifier{log: log}
	}
	if err := conn.Auth(nil); err != nil {
		log.Debug("dbus auth failed, desktop notifications disabled", "err", err)
		conn.Close()
		return &dbusNotifier{log: log}
	}
	if err := conn.Hello(); err != nil {
		log.Debug("dbus hello failed, desktop notifications disabled", "err", err)
		conn.Close()
		return &dbusNotifier{log: log}
	}
	return &dbusNotifier{log: log, conn: conn}
}

func (n *dbusNotifier) Notify(summary, body string) {
	if n == nil || n.conn == nil {
		return
	}
	obj := n.conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.Call("org.freedesktop.Notifications.Notify", 0,
		"wallhue", uint32(0), "", summary, body, []string{}, map[string]dbus.Variant{}, int32(5000))
	if call.Err != nil {
		n.log.Debug("dbus notify failed", "err", call.Err)
	}
}
