package tracker

import "sync"

// Ledger is the session-scoped set of order ids that were already
// delivered to the backend. It is owned by one Service instance and
// passed explicitly to whatever needs it, it never lives in package
// state. Entries are added only after a successful delivery, so a
// failed record stays eligible for the next scan or backfill.
//
// The ledger holds no durable state at all: a daemon restart starts an
// empty session and rescans will re-encounter still-undelivered orders.
// A re-delivered successful order is an acceptable rare duplicate, the
// backend rejects it by order id.
type Ledger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{seen: map[string]struct{}{}}
}

func (l *Ledger) HasSeen(orderID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[orderID]
	return ok
}

func (l *Ledger) MarkSeen(orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[orderID] = struct{}{}
}

func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
