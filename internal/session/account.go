package session

import (
	"context"
	"encoding/json"

	"github.com/yanun0323/errors"

	"main/internal/frame"
	"main/internal/model"
	"main/pkg/exception"
)

// Default timeframes offered when the venue never answered the timeframe
// query, in seconds.
var defaultTimeframes = []int{5, 60, 300, 900, 1800, 3600, 14400, 86400}

// Profile returns the account snapshot, from cache when one was received.
func (s *Session) Profile(ctx context.Context) (model.Profile, error) {
	if p, ok := s.dispatcher.Profile(); ok {
		return p, nil
	}

	reply, err := s.requestAction(ctx, frame.ActionProfile, map[string]any{})
	if err != nil {
		return model.Profile{}, err
	}
	var payload frame.ProfilePayload
	if err := reply.Bind(&payload); err != nil {
		return model.Profile{}, err
	}
	return payload.Profile, nil
}

// Balance returns the balance of the active account context.
func (s *Session) Balance(ctx context.Context) (float64, error) {
	profile, err := s.Profile(ctx)
	if err != nil {
		return 0, err
	}
	if s.cfg.Demo {
		return profile.DemoBalance, nil
	}
	return profile.RealBalance, nil
}

// Assets returns the instrument snapshot, from cache when one was received.
func (s *Session) Assets(ctx context.Context) ([]model.Asset, error) {
	if assets, ok := s.dispatcher.Assets(); ok {
		return assets, nil
	}

	reply, err := s.requestAction(ctx, frame.ActionAssets, map[string]any{})
	if err != nil {
		return nil, err
	}
	var payload frame.AssetsPayload
	if err := reply.Bind(&payload); err != nil {
		return nil, err
	}
	return payload.Assets, nil
}

// ActiveAssets filters the snapshot down to tradable instruments.
func (s *Session) ActiveAssets(ctx context.Context) ([]model.Asset, error) {
	assets, err := s.Assets(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]model.Asset, 0, len(assets))
	for _, a := range assets {
		if a.Active() {
			active = append(active, a)
		}
	}
	return active, nil
}

// Payout returns the payout percentage for one asset.
func (s *Session) Payout(ctx context.Context, assetID int) (float64, error) {
	asset, err := s.assetByID(ctx, assetID)
	if err != nil {
		return 0, err
	}
	if !asset.Active() {
		return 0, errors.Wrapf(exception.ErrAssetUnavailable, "id: %d", assetID)
	}
	return asset.Profit, nil
}

// Timeframes returns the candle timeframes the venue supports, falling back
// to the default ladder when the venue never answered.
func (s *Session) Timeframes(ctx context.Context) []int {
	if tfs, ok := s.dispatcher.Timeframes(); ok {
		return tfs
	}

	reply, err := s.requestAction(ctx, frame.ActionCandlesTimeframes, map[string]any{})
	if err == nil {
		var payload frame.TimeframesPayload
		if bindErr := reply.Bind(&payload); bindErr == nil && len(payload.Timeframes) > 0 {
			return payload.Timeframes
		}
	}

	out := make([]int, len(defaultTimeframes))
	copy(out, defaultTimeframes)
	return out
}

// Currencies returns the currency reference table.
func (s *Session) Currencies(ctx context.Context) ([]model.Currency, error) {
	if currencies, ok := s.dispatcher.Currencies(); ok {
		return currencies, nil
	}

	reply, err := s.requestAction(ctx, frame.ActionCurrency, map[string]any{})
	if err != nil {
		return nil, err
	}
	var payload frame.CurrencyPayload
	if err := reply.Bind(&payload); err != nil {
		return nil, err
	}
	return payload.Currency, nil
}

// Countries returns the country reference table.
func (s *Session) Countries(ctx context.Context) ([]model.Country, error) {
	if countries, ok := s.dispatcher.Countries(); ok {
		return countries, nil
	}

	reply, err := s.requestAction(ctx, frame.ActionCountries, map[string]any{})
	if err != nil {
		return nil, err
	}
	var payload frame.CountriesPayload
	if err := reply.Bind(&payload); err != nil {
		return nil, err
	}
	return payload.Countries, nil
}

// TradersChoice returns the cached call/put sentiment split for one asset.
func (s *Session) TradersChoice(assetID int) (model.TradersChoice, bool) {
	return s.dispatcher.TradersChoice(assetID)
}

// UserGroups returns the raw user group entries.
func (s *Session) UserGroups(ctx context.Context) ([]json.RawMessage, error) {
	reply, err := s.requestAction(ctx, frame.ActionUserGroup, map[string]any{})
	if err != nil {
		return nil, err
	}
	var payload frame.UserGroupsPayload
	if err := reply.Bind(&payload); err != nil {
		return nil, err
	}
	return payload.UserGroups, nil
}

// DepositSum returns the raw lifetime deposit summary.
func (s *Session) DepositSum(ctx context.Context) (json.RawMessage, error) {
	reply, err := s.requestAction(ctx, frame.ActionUserDepositSum, map[string]any{})
	if err != nil {
		return nil, err
	}
	return reply.Message, nil
}

// Achievements returns the raw achievement entries.
func (s *Session) Achievements(ctx context.Context) ([]json.RawMessage, error) {
	reply, err := s.requestAction(ctx, frame.ActionUserAchievements, map[string]any{})
	if err != nil {
		return nil, err
	}
	var payload frame.AchievementsPayload
	if err := reply.Bind(&payload); err != nil {
		return nil, err
	}
	return payload.Achievements, nil
}

// ExpertSubscribe opts in to the expert trade feed.
func (s *Session) ExpertSubscribe(ctx context.Context) error {
	_, err := s.requestAction(ctx, frame.ActionExpertSubscribe, map[string]any{})
	return err
}

// ExpertOptions returns the raw expert trade entries.
func (s *Session) ExpertOptions(ctx context.Context) ([]json.RawMessage, error) {
	reply, err := s.requestAction(ctx, frame.ActionExpertOption, map[string]any{})
	if err != nil {
		return nil, err
	}
	var payload frame.ExpertOptionsPayload
	if err := reply.Bind(&payload); err != nil {
		return nil, err
	}
	return payload.Options, nil
}

// OpenTrades returns the raw currently open trades.
func (s *Session) OpenTrades(ctx context.Context) ([]json.RawMessage, error) {
	reply, err := s.requestAction(ctx, frame.ActionOpenTrades, map[string]any{})
	if err != nil {
		return nil, err
	}
	var payload frame.OpenTradesPayload
	if err := reply.Bind(&payload); err != nil {
		return nil, err
	}
	return payload.Trades, nil
}

// TradeHistory returns the raw closed trade history for the given page,
// newest first.
func (s *Session) TradeHistory(ctx context.Context, page int) (json.RawMessage, error) {
	if page < 0 {
		page = 0
	}
	reply, err := s.requestAction(ctx, frame.ActionTradeHistory, map[string]any{
		"index_from": page,
		"count":      100,
	})
	if err != nil {
		return nil, err
	}
	return reply.Message, nil
}

// OpenOptionsStat returns the raw open option statistics.
func (s *Session) OpenOptionsStat(ctx context.Context) ([]json.RawMessage, error) {
	reply, err := s.requestAction(ctx, frame.ActionOpenOptionsStat, map[string]any{})
	if err != nil {
		return nil, err
	}
	var payload frame.OpenOptionsStatPayload
	if err := reply.Bind(&payload); err != nil {
		return nil, err
	}
	return payload.OpenOptions, nil
}

// ClearClosedTrades asks the venue to drop finished trades from its pushes.
func (s *Session) ClearClosedTrades(ctx context.Context) error {
	return s.send(ctx, frame.ActionClearClosed, map[string]any{})
}

// OneTimeToken fetches a single-use token for a parallel login.
func (s *Session) OneTimeToken(ctx context.Context) (string, error) {
	reply, err := s.requestAction(ctx, frame.ActionOneTimeToken, map[string]any{})
	if err != nil {
		return "", err
	}
	var payload frame.TokenPayload
	if err := reply.Bind(&payload); err != nil {
		return "", err
	}
	if payload.Token == "" {
		return "", errors.Wrap(exception.ErrMalformedFrame, "empty one-time token")
	}
	return payload.Token, nil
}
