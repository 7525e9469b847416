package client

import (
	"context"
	"testing"

	"github.com/rickgao/ledgerlink/internal/protocol"
)

func TestListen_WildcardAndFiltered(t *testing.T) {
	tr := newFakeTransport(true)
	c := newTestClient(t, tr, nil)

	all := make(chan string, 8)
	ledger := make(chan string, 8)
	c.Listen(func(msg *protocol.Message) { all <- msg.Type })
	c.ListenType("ledgerClosed", func(msg *protocol.Message) { ledger <- msg.Type })

	tr.deliver(`{"type":"accountUpdate","account":"cExample"}`)
	tr.deliver(`{"type":"ledgerClosed","ledger_index":7}`)

	if got := <-all; got != "accountUpdate" {
		t.Errorf("wildcard got %q first, want accountUpdate", got)
	}
	if got := <-all; got != "ledgerClosed" {
		t.Errorf("wildcard got %q second, want ledgerClosed", got)
	}

	// Filtered listener sees only its category, exactly once.
	if got := <-ledger; got != "ledgerClosed" {
		t.Errorf("filtered got %q, want ledgerClosed", got)
	}
	select {
	case got := <-ledger:
		t.Errorf("filtered listener got extra message %q", got)
	default:
	}
}

func TestListen_RemoverIdempotent(t *testing.T) {
	tr := newFakeTransport(true)
	c := newTestClient(t, tr, nil)

	got := make(chan struct{}, 8)
	remove := c.Listen(func(msg *protocol.Message) { got <- struct{}{} })
	if n := c.listeners.size(); n != 1 {
		t.Fatalf("listeners = %d, want 1", n)
	}

	remove()
	if n := c.listeners.size(); n != 0 {
		t.Errorf("listeners = %d after remove, want 0", n)
	}
	remove() // no-op, not an error
	if n := c.listeners.size(); n != 0 {
		t.Errorf("listeners = %d after double remove, want 0", n)
	}
}

func TestListen_SameFuncTwiceRemovableIndependently(t *testing.T) {
	tr := newFakeTransport(true)
	c := newTestClient(t, tr, nil)

	got := make(chan struct{}, 8)
	fn := func(msg *protocol.Message) { got <- struct{}{} }

	remove1 := c.Listen(fn)
	remove2 := c.Listen(fn)
	if n := c.listeners.size(); n != 2 {
		t.Fatalf("listeners = %d, want 2", n)
	}

	remove1()
	if n := c.listeners.size(); n != 1 {
		t.Errorf("listeners = %d after one remove, want 1", n)
	}
	remove1() // still a no-op; must not touch the second entry
	if n := c.listeners.size(); n != 1 {
		t.Errorf("listeners = %d after repeat remove, want 1", n)
	}
	remove2()
	if n := c.listeners.size(); n != 0 {
		t.Errorf("listeners = %d, want 0", n)
	}
}

func TestListen_PanickingListenerIsolated(t *testing.T) {
	tr := newFakeTransport(true)
	c := newTestClient(t, tr, nil)

	second := make(chan struct{}, 1)
	c.Listen(func(msg *protocol.Message) { panic("listener boom") })
	c.Listen(func(msg *protocol.Message) { second <- struct{}{} })

	tr.deliver(`{"type":"ledgerClosed"}`)

	// The second listener still runs and nothing escapes the router.
	<-second
}

func TestListen_SettlementBeforeFanOut(t *testing.T) {
	tr := newFakeTransport(true)
	c := newTestClient(t, tr, nil)

	// When the listener observes the reply, the request caller must
	// already be settleable: the entry is gone from the table.
	observed := make(chan int, 1)
	c.ListenType("response", func(msg *protocol.Message) {
		observed <- c.pending.size()
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Request(context.Background(), "server_info", nil)
		done <- err
	}()
	waitFor(t, "request sent", func() bool { return tr.sentCount() == 1 })

	tr.deliver(`{"id":1,"status":"success","type":"response"}`)

	if n := <-observed; n != 0 {
		t.Errorf("pending size seen by listener = %d, want 0 (settled first)", n)
	}
	if err := <-done; err != nil {
		t.Errorf("Request = %v", err)
	}
}
