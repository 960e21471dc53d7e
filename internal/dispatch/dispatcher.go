package dispatch

import (
	"strconv"
	"sync"

	"github.com/yanun0323/logs"

	"main/internal/backlog"
	"main/internal/candle"
	"main/internal/frame"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/registry"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

// singleShot lists the reply kinds that answer exactly one previously sent
// request and resolve their correlation slot directly.
var singleShot = map[frame.Action]bool{
	frame.ActionProfile:           true,
	frame.ActionAssets:            true,
	frame.ActionCandlesTimeframes: true,
	frame.ActionCurrency:          true,
	frame.ActionCountries:         true,
	frame.ActionUserGroup:         true,
	frame.ActionUserDepositSum:    true,
	frame.ActionUserAchievements:  true,
	frame.ActionExpertSubscribe:   true,
	frame.ActionOneTimeToken:      true,
}

// cacheable lists reference-table replies mirrored into the named cache.
var cacheable = map[frame.Action]bool{
	frame.ActionProfile:           true,
	frame.ActionAssets:            true,
	frame.ActionCandlesTimeframes: true,
	frame.ActionCurrency:          true,
	frame.ActionCountries:         true,
}

// Dispatcher classifies every inbound frame: resolve a correlated slot,
// update a named cache, fold candles into the cache, or append to the push
// backlog. It is the single writer of the registry, candle cache, and
// mailbox.
type Dispatcher struct {
	registry *registry.Registry
	mailbox  *backlog.Mailbox
	candles  *candle.Cache

	onToken func(token string)

	mu            sync.RWMutex
	named         map[frame.Action]frame.Inbound
	tradersChoice map[int]model.TradersChoice
	hints         map[string]int
	taps          []func(assetID int, cd model.Candle)
}

func New(reg *registry.Registry, mailbox *backlog.Mailbox, candles *candle.Cache, onToken func(string)) *Dispatcher {
	return &Dispatcher{
		registry:      reg,
		mailbox:       mailbox,
		candles:       candles,
		onToken:       onToken,
		named:         make(map[frame.Action]frame.Inbound),
		tradersChoice: make(map[int]model.TradersChoice),
		hints:         make(map[string]int),
	}
}

// HintTimeframe records the timeframe a historical request was issued with,
// keyed by its correlation id, so abbreviated reply candles that omit their
// own timeframe can be merged under the right series.
func (d *Dispatcher) HintTimeframe(ns string, timeframe int) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.hints[ns] = timeframe
	d.mu.Unlock()
}

// TapCandles registers fn to observe every live candle after it is merged
// into the cache. Taps must not block.
func (d *Dispatcher) TapCandles(fn func(assetID int, cd model.Candle)) {
	if d == nil || fn == nil {
		return
	}
	d.mu.Lock()
	d.taps = append(d.taps, fn)
	d.mu.Unlock()
}

// Handle classifies one raw inbound frame. Malformed frames are logged and
// dropped; the receive loop never stops on them.
func (d *Dispatcher) Handle(raw []byte) {
	if d == nil {
		return
	}

	f, err := frame.Decode(raw)
	if err != nil {
		logs.Warnf("drop malformed frame, err: %+v", err)
		return
	}

	switch {
	case f.Action == frame.ActionError:
		d.handleError(f)
	case singleShot[f.Action]:
		d.handleSingleShot(f)
	case f.Action == frame.ActionToken:
		d.handleToken(f)
	case f.Action == frame.ActionMultipleAction:
		d.handleBatch(f)
	case f.Action == frame.ActionCandles:
		d.handleCandles(f, enum.ProvenanceLive)
	case f.Action == frame.ActionHistoryCandles:
		d.handleCandles(f, enum.ProvenanceHistorical)
	case f.Action == frame.ActionTradesStatus, f.Action == frame.ActionOptStatus, f.Action == frame.ActionOptionFinished:
		d.handleStatusBatch(f)
	case f.Action == frame.ActionTradersChoice:
		d.handleTradersChoice(f)
	default:
		if !d.registry.Resolve(f.Key(), f) {
			d.mailbox.Append(f)
		}
	}
}

func (d *Dispatcher) handleError(f frame.Inbound) {
	err := errors.Wrap(exception.ErrVenueRejected, f.ErrorText())
	if !d.registry.Fail(f.Key(), err) {
		logs.Warnf("venue error without pending slot, key %q: %s", f.Key(), f.ErrorText())
	}
}

func (d *Dispatcher) handleSingleShot(f frame.Inbound) {
	if cacheable[f.Action] {
		d.mu.Lock()
		d.named[f.Action] = f
		d.mu.Unlock()
	}
	// A reply nobody claimed is still observable through the backlog, the
	// same as any unclaimed push.
	if !d.registry.Resolve(f.Key(), f) {
		d.mailbox.Append(f)
	}
}

func (d *Dispatcher) handleToken(f frame.Inbound) {
	var payload frame.TokenPayload
	if err := f.Bind(&payload); err != nil {
		logs.Warnf("drop token refresh, err: %+v", err)
		return
	}
	if payload.Token == "" || d.onToken == nil {
		return
	}
	d.onToken(payload.Token)
}

func (d *Dispatcher) handleBatch(f frame.Inbound) {
	var batch frame.Batch
	if err := f.Bind(&batch); err != nil {
		logs.Warnf("drop multipleAction batch, err: %+v", err)
		return
	}

	// Sub-actions resolve in the batch's listed order.
	for _, sub := range batch.Actions {
		inner := sub.Inbound()
		if cacheable[inner.Action] {
			d.mu.Lock()
			d.named[inner.Action] = inner
			d.mu.Unlock()
		}
		d.registry.Resolve(sub.Key(), inner)
	}
}

func (d *Dispatcher) handleCandles(f frame.Inbound, provenance enum.Provenance) {
	var batch frame.CandleBatch
	if err := f.Bind(&batch); err != nil {
		logs.Warnf("drop candle frame, err: %+v", err)
		return
	}

	fallback := d.takeHint(f.Key())

	byTimeframe := make(map[int][]model.Candle)
	dropped := 0
	for _, point := range batch.Candles {
		cd, ok := point.Candle(fallback, provenance)
		if !ok {
			dropped++
			continue
		}
		byTimeframe[cd.Timeframe] = append(byTimeframe[cd.Timeframe], cd)
	}
	if dropped > 0 {
		logs.Warnf("asset %d: dropped %d malformed candles", batch.AssetID, dropped)
	}
	for tf, candles := range byTimeframe {
		d.candles.Merge(batch.AssetID, tf, candles)
	}

	if provenance == enum.ProvenanceLive {
		d.mu.RLock()
		taps := d.taps
		d.mu.RUnlock()
		for _, tap := range taps {
			for _, candles := range byTimeframe {
				for _, cd := range candles {
					tap(batch.AssetID, cd)
				}
			}
		}
	}

	// A caller separately awaiting this exact key still gets its reply.
	d.registry.Resolve(f.Key(), f)
}

func (d *Dispatcher) handleStatusBatch(f frame.Inbound) {
	d.mailbox.Append(f)
	for _, id := range frame.DealIDs(f) {
		d.registry.Resolve(strconv.FormatInt(id, 10), f)
	}
}

func (d *Dispatcher) handleTradersChoice(f frame.Inbound) {
	var payload frame.TradersChoicePayload
	if err := f.Bind(&payload); err != nil {
		logs.Warnf("drop tradersChoice, err: %+v", err)
		return
	}
	d.mu.Lock()
	for _, tc := range payload.Assets {
		d.tradersChoice[tc.AssetID] = tc
	}
	d.mu.Unlock()
}

func (d *Dispatcher) takeHint(ns string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	tf, ok := d.hints[ns]
	if ok {
		delete(d.hints, ns)
	}
	return tf
}
