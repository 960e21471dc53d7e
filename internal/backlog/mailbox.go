package backlog

import (
	"sync"

	"github.com/yanun0323/logs"

	"main/internal/frame"
)

const (
	// DefaultCapacity is the high-water mark beyond which the mailbox trims.
	DefaultCapacity = 2000
	// DefaultTrimTo is the size kept after a trim, most recent entries first.
	DefaultTrimTo = 1000
)

// Mailbox is the bounded, insertion-ordered store of push frames that no
// pending slot claimed. Scanners consume entries by predicate; overflowing
// the capacity silently drops the oldest entries down to the trim mark.
type Mailbox struct {
	mu      sync.Mutex
	entries []frame.Inbound
	cap     int
	trimTo  int
	dropped uint64

	subs    map[int]chan struct{}
	nextSub int
}

func New(capacity, trimTo int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if trimTo <= 0 || trimTo > capacity {
		trimTo = capacity / 2
	}
	return &Mailbox{
		cap:    capacity,
		trimTo: trimTo,
		subs:   make(map[int]chan struct{}),
	}
}

// Append stores a push frame, evicting oldest entries when the capacity is
// exceeded, and wakes every subscribed scanner.
func (m *Mailbox) Append(msg frame.Inbound) {
	if m == nil {
		return
	}

	m.mu.Lock()
	m.entries = append(m.entries, msg)
	if len(m.entries) > m.cap {
		drop := len(m.entries) - m.trimTo
		m.entries = append(m.entries[:0:0], m.entries[drop:]...)
		m.dropped += uint64(drop)
		logs.Warnf("backlog over capacity, dropped %d oldest entries", drop)
	}
	m.mu.Unlock()

	m.wake()
}

// Take removes and returns the oldest entry matching the predicate.
func (m *Mailbox) Take(match func(frame.Inbound) bool) (frame.Inbound, bool) {
	if m == nil {
		return frame.Inbound{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, msg := range m.entries {
		if match(msg) {
			m.entries = append(m.entries[:i:i], m.entries[i+1:]...)
			return msg, true
		}
	}
	return frame.Inbound{}, false
}

// Len reports the number of stored entries.
func (m *Mailbox) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Dropped reports the total number of evicted entries.
func (m *Mailbox) Dropped() uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Subscribe registers a wakeup channel signaled on every append. Scanners
// block on it between scans instead of polling; the returned cancel func
// must be called when the scanner is done.
func (m *Mailbox) Subscribe() (<-chan struct{}, func()) {
	if m == nil {
		ch := make(chan struct{})
		close(ch)
		return ch, func() {}
	}

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan struct{}, 1)
	m.subs[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Mailbox) wake() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
