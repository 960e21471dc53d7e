package backlog

import (
	"fmt"
	"testing"
	"time"

	"main/internal/frame"
)

func push(m *Mailbox, n int) {
	for i := 0; i < n; i++ {
		m.Append(frame.Inbound{Action: frame.ActionOptStatus, NS: frame.NS(fmt.Sprintf("%d", i))})
	}
}

func TestAppendAndTakeOrder(t *testing.T) {
	m := New(0, 0)
	push(m, 3)

	for i := 0; i < 3; i++ {
		msg, ok := m.Take(func(frame.Inbound) bool { return true })
		if !ok {
			t.Fatalf("take %d: mailbox should not be empty", i)
		}
		if want := fmt.Sprintf("%d", i); string(msg.NS) != want {
			t.Fatalf("take %d: oldest-first violated, want ns %s got %s", i, want, msg.NS)
		}
	}
	if m.Len() != 0 {
		t.Fatalf("mailbox should be drained, got %d", m.Len())
	}
}

func TestTakeMatchesFirstOnly(t *testing.T) {
	m := New(0, 0)
	m.Append(frame.Inbound{Action: frame.ActionOptStatus})
	m.Append(frame.Inbound{Action: frame.ActionBuySuccessful})
	m.Append(frame.Inbound{Action: frame.ActionBuySuccessful})

	msg, ok := m.Take(func(f frame.Inbound) bool { return f.Action == frame.ActionBuySuccessful })
	if !ok || msg.Action != frame.ActionBuySuccessful {
		t.Fatal("should take the first matching entry")
	}
	if m.Len() != 2 {
		t.Fatalf("non-matching entries must stay, got len %d", m.Len())
	}
}

func TestTakeNoMatch(t *testing.T) {
	m := New(0, 0)
	push(m, 5)

	if _, ok := m.Take(func(f frame.Inbound) bool { return f.Action == frame.ActionPong }); ok {
		t.Fatal("take should miss")
	}
	if m.Len() != 5 {
		t.Fatalf("a missed take must not consume, got len %d", m.Len())
	}
}

func TestTrimEvictsOldest(t *testing.T) {
	m := New(0, 0)
	push(m, DefaultCapacity+1)

	if got := m.Len(); got != DefaultTrimTo {
		t.Fatalf("overflow should trim to %d, got %d", DefaultTrimTo, got)
	}
	if dropped := m.Dropped(); dropped != uint64(DefaultCapacity+1-DefaultTrimTo) {
		t.Fatalf("dropped counter mismatch, got %d", dropped)
	}

	// The survivors are the newest entries.
	msg, ok := m.Take(func(frame.Inbound) bool { return true })
	if !ok {
		t.Fatal("mailbox should not be empty")
	}
	if want := fmt.Sprintf("%d", DefaultCapacity+1-DefaultTrimTo); string(msg.NS) != want {
		t.Fatalf("oldest survivor should be ns %s, got %s", want, msg.NS)
	}
}

func TestTrimCustomBounds(t *testing.T) {
	m := New(10, 4)
	push(m, 11)
	if got := m.Len(); got != 4 {
		t.Fatalf("want 4 entries after trim, got %d", got)
	}
}

func TestBoundedForever(t *testing.T) {
	m := New(50, 20)
	for round := 0; round < 10; round++ {
		push(m, 60)
		if got := m.Len(); got > 50 {
			t.Fatalf("round %d: mailbox exceeded its bound, len %d", round, got)
		}
	}
}

func TestSubscribeWakes(t *testing.T) {
	m := New(0, 0)
	wake, cancel := m.Subscribe()
	defer cancel()

	m.Append(frame.Inbound{Action: frame.ActionOptStatus})

	select {
	case <-wake:
	case <-time.After(time.Second):
		t.Fatal("append should wake the subscriber")
	}
}

func TestSubscribeCanceled(t *testing.T) {
	m := New(0, 0)
	_, cancel := m.Subscribe()
	cancel()

	// Appending after cancel must not block or panic.
	push(m, 3)
}
