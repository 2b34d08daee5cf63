package watch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebouncerCollapsesBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(time.Millisecond * 50)
	go d.Run(ctx)

	// a burst of mutations well inside one quiet window
	for i := 0; i < 5; i++ {
		d.Offer(Snapshot{HTML: fmt.Sprintf("<html>state %d</html>", i)})
	}

	select {
	case s := <-d.Snapshots():
		require.Equal(t, "<html>state 4</html>", s.HTML)
	case <-time.After(time.Second):
		t.Fatal("debouncer never emitted")
	}

	// nothing else was pending, the stream must stay quiet
	select {
	case s := <-d.Snapshots():
		t.Fatalf("unexpected second emission: %q", s.HTML)
	case <-time.After(time.Millisecond * 150):
	}
}

func TestDebouncerEmitsAgainAfterQuietWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(time.Millisecond * 20)
	go d.Run(ctx)

	d.Offer(Snapshot{HTML: "<html>first</html>"})
	select {
	case s := <-d.Snapshots():
		require.Equal(t, "<html>first</html>", s.HTML)
	case <-time.After(time.Second):
		t.Fatal("debouncer never emitted the first snapshot")
	}

	d.Offer(Snapshot{HTML: "<html>second</html>"})
	select {
	case s := <-d.Snapshots():
		require.Equal(t, "<html>second</html>", s.HTML)
	case <-time.After(time.Second):
		t.Fatal("debouncer never emitted the second snapshot")
	}
}

func TestOfferNeverBlocks(t *testing.T) {
	// no Run goroutine draining, the intake buffer overflows and sheds
	// the oldest entries instead of blocking the page session reader
	d := NewDebouncer(time.Millisecond * 20)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			d.Offer(Snapshot{HTML: fmt.Sprintf("<html>%d</html>", i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("offer blocked on a full intake buffer")
	}
}
