package watch

import (
	"context"
	"log/slog"
	"time"
)

// Snapshot is one rendered state of the order-history page, pushed by
// the browser companion after a DOM mutation settles on its side.
type Snapshot struct {
	HTML       string
	ReceivedAt time.Time
}

// Debouncer separates "when to scan" from "what a scan does": mutation
// notifications go in, at most one snapshot comes out per quiet window.
// A burst of offers inside the window yields the latest snapshot only,
// the others are superseded page states nobody needs to scan.
type Debouncer struct {
	window time.Duration
	in     chan Snapshot
	out    chan Snapshot
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		in:     make(chan Snapshot, 16),
		out:    make(chan Snapshot, 1),
	}
}

// Offer hands a snapshot to the debouncer without ever blocking the
// caller. When the intake buffer is full the oldest entry is dropped,
// newer page states always supersede older ones.
func (d *Debouncer) Offer(s Snapshot) {
	for {
		select {
		case d.in <- s:
			return
		default:
		}
		select {
		case <-d.in:
			slog.Debug("dropping superseded snapshot")
		default:
		}
	}
}

// Snapshots is the debounced output stream consumed by the scan loop.
func (d *Debouncer) Snapshots() <-chan Snapshot {
	return d.out
}

func (d *Debouncer) emit(s Snapshot) {
	for {
		select {
		case d.out <- s:
			return
		default:
		}
		select {
		case <-d.out:
		default:
		}
	}
}

// Run consumes offered snapshots until the context is cancelled.
func (d *Debouncer) Run(ctx context.Context) {
	timer := time.NewTimer(d.window)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	var pending Snapshot
	hasPending := false

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-d.in:
			pending = s
			hasPending = true
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(d.window)
			armed = true
		case <-timer.C:
			armed = false
			if hasPending {
				d.emit(pending)
				hasPending = false
			}
		}
	}
}
