package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/yanun0323/errors"

	"main/internal/frame"
	"main/pkg/exception"
)

// Registry matches inbound frames to callers awaiting them by correlation
// key. Each key holds at most one unresolved slot; resolving is a one-shot,
// idempotent transition. Slots are reclaimed when resolved.
type Registry struct {
	mu    sync.Mutex
	slots map[string]*Slot
	clock clock.Clock
}

// Slot is a single-resolution result holder for one correlation key.
type Slot struct {
	done      chan struct{}
	once      sync.Once
	abandoned atomic.Bool

	value frame.Inbound
	err   error
}

func New(clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		slots: make(map[string]*Slot),
		clock: clk,
	}
}

// Claim creates the pending slot for key. A key that already carries an
// unresolved, still-awaited slot is an explicit error rather than a silent
// overwrite; a slot whose waiter timed out is replaced.
func (r *Registry) Claim(key string) (*Slot, error) {
	if r == nil {
		return nil, exception.ErrNilInstance
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.slots[key]; ok {
		if !prev.abandoned.Load() {
			return nil, errors.Wrap(exception.ErrKeyAlreadyAwaited, key)
		}
		delete(r.slots, key)
	}

	slot := &Slot{done: make(chan struct{})}
	r.slots[key] = slot
	return slot, nil
}

// Resolve fulfills the pending slot for key with a success value and reclaims
// it. Returns false when no slot is pending; resolving twice is a no-op.
func (r *Registry) Resolve(key string, value frame.Inbound) bool {
	return r.complete(key, value, nil)
}

// Fail fulfills the pending slot for key with an error and reclaims it.
func (r *Registry) Fail(key string, err error) bool {
	return r.complete(key, frame.Inbound{}, err)
}

func (r *Registry) complete(key string, value frame.Inbound, err error) bool {
	if r == nil {
		return false
	}

	r.mu.Lock()
	slot, ok := r.slots[key]
	if ok {
		delete(r.slots, key)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	slot.once.Do(func() {
		slot.value = value
		slot.err = err
		close(slot.done)
	})
	return true
}

// Len reports the number of unresolved slots.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Wait suspends until the slot resolves, the timeout expires, or ctx is
// canceled. Expiry abandons the wait only; a frame arriving later still
// resolves and reclaims the slot, it just goes unobserved.
func (s *Slot) Wait(ctx context.Context, clk clock.Clock, timeout time.Duration) (frame.Inbound, error) {
	if s == nil {
		return frame.Inbound{}, exception.ErrNilInstance
	}
	if clk == nil {
		clk = clock.New()
	}

	timer := clk.Timer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return s.value, s.err
	case <-timer.C:
		s.abandoned.Store(true)
		return frame.Inbound{}, exception.ErrAwaitTimeout
	case <-ctx.Done():
		s.abandoned.Store(true)
		return frame.Inbound{}, ctx.Err()
	}
}

// Await is the claim-then-wait convenience used by callers that have already
// sent their request, keyed by a well-known action name.
func (r *Registry) Await(ctx context.Context, key string, timeout time.Duration) (frame.Inbound, error) {
	slot, err := r.Claim(key)
	if err != nil {
		return frame.Inbound{}, err
	}
	return slot.Wait(ctx, r.clock, timeout)
}

// Clock exposes the registry's clock so callers waiting on claimed slots
// share the same time source.
func (r *Registry) Clock() clock.Clock {
	return r.clock
}
