package dispatch

import (
	"main/internal/frame"
	"main/internal/model"
)

// Named-cache readers. Each returns the latest reply of its kind seen on the
// connection, whether solicited or pushed.

// Cached returns the raw cached frame for a reference-table kind.
func (d *Dispatcher) Cached(action frame.Action) (frame.Inbound, bool) {
	if d == nil {
		return frame.Inbound{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.named[action]
	return f, ok
}

// Profile returns the cached account profile.
func (d *Dispatcher) Profile() (model.Profile, bool) {
	f, ok := d.Cached(frame.ActionProfile)
	if !ok {
		return model.Profile{}, false
	}
	var payload frame.ProfilePayload
	if err := f.Bind(&payload); err != nil {
		return model.Profile{}, false
	}
	return payload.Profile, true
}

// Assets returns the cached instrument list.
func (d *Dispatcher) Assets() ([]model.Asset, bool) {
	f, ok := d.Cached(frame.ActionAssets)
	if !ok {
		return nil, false
	}
	var payload frame.AssetsPayload
	if err := f.Bind(&payload); err != nil {
		return nil, false
	}
	return payload.Assets, true
}

// Timeframes returns the cached candle timeframe list.
func (d *Dispatcher) Timeframes() ([]int, bool) {
	f, ok := d.Cached(frame.ActionCandlesTimeframes)
	if !ok {
		return nil, false
	}
	var payload frame.TimeframesPayload
	if err := f.Bind(&payload); err != nil {
		return nil, false
	}
	return payload.Timeframes, len(payload.Timeframes) > 0
}

// Currencies returns the cached currency table.
func (d *Dispatcher) Currencies() ([]model.Currency, bool) {
	f, ok := d.Cached(frame.ActionCurrency)
	if !ok {
		return nil, false
	}
	var payload frame.CurrencyPayload
	if err := f.Bind(&payload); err != nil {
		return nil, false
	}
	return payload.Currency, true
}

// Countries returns the cached country table.
func (d *Dispatcher) Countries() ([]model.Country, bool) {
	f, ok := d.Cached(frame.ActionCountries)
	if !ok {
		return nil, false
	}
	var payload frame.CountriesPayload
	if err := f.Bind(&payload); err != nil {
		return nil, false
	}
	return payload.Countries, true
}

// TradersChoice returns the latest sentiment split pushed for an asset.
func (d *Dispatcher) TradersChoice(assetID int) (model.TradersChoice, bool) {
	if d == nil {
		return model.TradersChoice{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	tc, ok := d.tradersChoice[assetID]
	return tc, ok
}
