package deal

import (
	"sync"

	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
)

var (
	ErrDuplicateDeal = errors.New("deal already tracked")
	ErrUnknownDeal   = errors.New("deal not found")
)

// Tracker records the lifecycle of placed deals. Once a deal reaches a
// terminal status, later transitions are ignored.
type Tracker struct {
	mu    sync.Mutex
	deals map[int64]*model.Deal
}

func NewTracker() *Tracker {
	return &Tracker{deals: make(map[int64]*model.Deal)}
}

// Add registers a confirmed deal in pending state.
func (t *Tracker) Add(d model.Deal) error {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.deals[d.ID]; ok {
		return errors.Wrapf(ErrDuplicateDeal, "id: %d", d.ID)
	}
	if !d.Status.IsAvailable() {
		d.Status = enum.DealStatusPending
	}
	stored := d
	t.deals[d.ID] = &stored
	return nil
}

// Deal returns a copy of the tracked deal.
func (t *Tracker) Deal(id int64) (model.Deal, bool) {
	if t == nil {
		return model.Deal{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.deals[id]
	if !ok {
		return model.Deal{}, false
	}
	return *d, true
}

// Transition moves the deal to status, ignoring updates on terminated deals.
func (t *Tracker) Transition(id int64, status enum.DealStatus) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.deals[id]
	if !ok {
		return
	}
	if isTerminal(d.Status) {
		return
	}
	d.Status = status
}

func isTerminal(s enum.DealStatus) bool {
	return s == enum.DealStatusFinal || s == enum.DealStatusTimedOut
}
