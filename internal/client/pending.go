package client

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/ledgerlink/internal/metrics"
	"github.com/rickgao/ledgerlink/internal/protocol"
)

// result settles a pending request. Exactly one of msg and err is set.
type result struct {
	msg *protocol.Message
	err error
}

// pendingEntry is one outstanding request.
type pendingEntry struct {
	id    string
	ch    chan result
	timer *clock.Timer // nil when timeouts are disabled
	sent  time.Time
}

// pendingTable maps correlation id to outstanding request. An entry is
// created on dispatch and removed exactly once, by whichever of reply,
// timeout, or disconnect arrives first; later events for the same id find
// no entry and are no-ops.
type pendingTable struct {
	clock   clock.Clock
	metrics *metrics.Metrics

	mu      sync.Mutex
	entries map[string]*pendingEntry
}

func newPendingTable(clk clock.Clock, m *metrics.Metrics) *pendingTable {
	return &pendingTable{
		clock:   clk,
		metrics: m,
		entries: make(map[string]*pendingEntry),
	}
}

// add registers a pending request. timeout 0 disables the timer. The
// returned channel receives the settlement; it is buffered so the settler
// never blocks.
func (t *pendingTable) add(id string, timeout time.Duration) (*pendingEntry, error) {
	e := &pendingEntry{
		id:   id,
		ch:   make(chan result, 1),
		sent: t.clock.Now(),
	}

	t.mu.Lock()
	if _, exists := t.entries[id]; exists {
		t.mu.Unlock()
		return nil, ErrDuplicateID
	}
	// The timer is assigned before the entry is published so settle,
	// remove, and drain never observe a half-built entry. A timer that
	// fires immediately blocks on t.mu until the entry is in the map.
	if timeout > 0 {
		e.timer = t.clock.AfterFunc(timeout, func() {
			t.settle(id, result{err: ErrRequestTimeout})
		})
	}
	t.entries[id] = e
	n := len(t.entries)
	t.mu.Unlock()

	t.metrics.SetPending(n)
	return e, nil
}

// settle removes the entry for id and delivers the outcome. Returns false
// when the entry was already settled (or never existed).
func (t *pendingTable) settle(id string, res result) bool {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	n := len(t.entries)
	t.mu.Unlock()

	if !ok {
		return false
	}

	t.metrics.SetPending(n)
	if e.timer != nil {
		e.timer.Stop()
	}
	t.metrics.ObserveRequestSeconds(t.clock.Since(e.sent).Seconds())
	e.ch <- res
	return true
}

// remove drops an entry without settling it. Used when the waiter gave up
// (context cancellation) and nobody will read the channel.
func (t *pendingTable) remove(id string) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	n := len(t.entries)
	t.mu.Unlock()

	if ok {
		t.metrics.SetPending(n)
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}

// drain settles every outstanding request with err and empties the table.
// Every timer is stopped so none fires after its entry is gone.
func (t *pendingTable) drain(err error) {
	t.mu.Lock()
	drained := make([]*pendingEntry, 0, len(t.entries))
	for _, e := range t.entries {
		drained = append(drained, e)
	}
	t.entries = make(map[string]*pendingEntry)
	t.mu.Unlock()

	t.metrics.SetPending(0)
	for _, e := range drained {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.ch <- result{err: err}
	}
}

// size returns the number of outstanding requests.
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
