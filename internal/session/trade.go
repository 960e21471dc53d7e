package session

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/deal"
	"main/internal/frame"
	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// PlaceRequest describes one binary option order. Either AssetID or Symbol
// identifies the instrument; an explicit id wins.
type PlaceRequest struct {
	AssetID    int
	Symbol     string
	Amount     float64
	Direction  enum.Direction
	Expiration time.Duration
}

// Place submits a binary option order and waits for the venue to confirm it
// with a deal id. The returned deal is open; its outcome is a separate wait
// via Result.
func (s *Session) Place(ctx context.Context, req PlaceRequest) (model.Deal, error) {
	if s == nil {
		return model.Deal{}, exception.ErrNilInstance
	}
	if req.Amount <= 0 {
		return model.Deal{}, errors.Wrap(exception.ErrInvalidArgument, "amount must be > 0")
	}
	if !req.Direction.IsAvailable() {
		return model.Deal{}, errors.Wrap(exception.ErrInvalidArgument, "unknown direction")
	}
	if req.Expiration <= 0 {
		return model.Deal{}, errors.Wrap(exception.ErrInvalidArgument, "expiration must be > 0")
	}

	assetID, err := s.resolveAssetID(ctx, req.AssetID, req.Symbol)
	if err != nil {
		return model.Deal{}, err
	}
	asset, err := s.assetByID(ctx, assetID)
	if err != nil {
		return model.Deal{}, err
	}
	if !asset.Active() {
		return model.Deal{}, errors.Wrapf(exception.ErrAssetUnavailable, "id: %d", assetID)
	}

	strike := s.ServerTime(ctx) + int64(asset.PurchaseTime)
	shift := expirationShift(req.Expiration, asset.ExpirationStep)

	isDemo := 0
	if s.cfg.Demo {
		isDemo = 1
	}
	ns := uuid.NewString()
	slot, err := s.registry.Claim(ns)
	if err != nil {
		return model.Deal{}, err
	}

	if err := s.conn.Send(ctx, frame.Outbound{
		Action: frame.ActionBuyOption,
		NS:     ns,
		Token:  s.Token(),
		Message: map[string]any{
			"type":             req.Direction.Wire(),
			"amount":           req.Amount,
			"assetid":          assetID,
			"strike_time":      strike,
			"expiration_shift": shift,
			"is_demo":          isDemo,
			"ratePosition":     0,
		},
	}); err != nil {
		s.registry.Fail(ns, err)
		return model.Deal{}, err
	}

	// The venue acks the order on its ns: an error frame there is a
	// rejection and must beat the confirmation timeout; a success echo
	// carries no deal id and is ignored.
	confirmCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rejected := make(chan error, 1)
	go func() {
		if _, waitErr := slot.Wait(confirmCtx, s.clock, s.confirmTimeout()); waitErr != nil &&
			errors.Is(waitErr, exception.ErrVenueRejected) {
			rejected <- waitErr
			cancel()
		}
	}()

	dealID, err := s.resolver.AwaitConfirmation(confirmCtx)
	if err != nil {
		select {
		case rejErr := <-rejected:
			return model.Deal{}, rejErr
		default:
		}
		return model.Deal{}, err
	}

	placed := model.Deal{
		ID:              dealID,
		AssetID:         assetID,
		Direction:       req.Direction,
		Amount:          req.Amount,
		StrikeTime:      strike,
		ExpirationShift: shift,
		Status:          enum.DealStatusOpen,
	}
	if err := s.tracker.Add(placed); err != nil {
		return model.Deal{}, err
	}
	if err := s.journal.RecordPlaced(placed); err != nil {
		logs.Warnf("journal deal %d, err: %+v", dealID, err)
	}
	logs.Infof("deal %d placed: asset %d %s %.2f, shift %d", dealID, assetID, req.Direction.Wire(), req.Amount, shift)
	return placed, nil
}

// Buy places a call option.
func (s *Session) Buy(ctx context.Context, symbol string, amount float64, expiration time.Duration) (model.Deal, error) {
	return s.Place(ctx, PlaceRequest{Symbol: symbol, Amount: amount, Direction: enum.DirectionCall, Expiration: expiration})
}

// Sell places a put option.
func (s *Session) Sell(ctx context.Context, symbol string, amount float64, expiration time.Duration) (model.Deal, error) {
	return s.Place(ctx, PlaceRequest{Symbol: symbol, Amount: amount, Direction: enum.DirectionPut, Expiration: expiration})
}

// Result waits for the outcome of a placed deal and journals it. A deal
// seen only through interim status comes back with its last known result;
// a deal never heard of again surfaces a timeout.
func (s *Session) Result(ctx context.Context, dealID int64) (model.DealResult, error) {
	if s == nil {
		return model.DealResult{}, exception.ErrNilInstance
	}

	result, err := s.resolver.AwaitResult(ctx, dealID)
	if err != nil {
		if errors.Is(err, exception.ErrDealTimeout) {
			if journalErr := s.journal.RecordOutcome(dealID, enum.DealStatusTimedOut, model.DealResult{}); journalErr != nil {
				logs.Warnf("journal deal %d timeout, err: %+v", dealID, journalErr)
			}
		}
		return model.DealResult{}, err
	}

	status := enum.DealStatusFinal
	if tracked, ok := s.tracker.Deal(dealID); ok {
		status = tracked.Status
	}
	if journalErr := s.journal.RecordOutcome(dealID, status, result); journalErr != nil {
		logs.Warnf("journal deal %d outcome, err: %+v", dealID, journalErr)
	}
	logs.Infof("deal %d resolved: %s %.2f", dealID, result.Result, result.Profit)
	return result, nil
}

// PlaceAndWait is Place followed by Result on the confirmed deal.
func (s *Session) PlaceAndWait(ctx context.Context, req PlaceRequest) (model.Deal, model.DealResult, error) {
	placed, err := s.Place(ctx, req)
	if err != nil {
		return model.Deal{}, model.DealResult{}, err
	}
	result, err := s.Result(ctx, placed.ID)
	if err != nil {
		return placed, model.DealResult{}, err
	}
	if tracked, ok := s.tracker.Deal(placed.ID); ok {
		placed = tracked
	}
	return placed, result, nil
}

func (s *Session) confirmTimeout() time.Duration {
	if s.cfg.ConfirmTimeout > 0 {
		return s.cfg.ConfirmTimeout
	}
	return deal.DefaultConfirmTimeout
}

// expirationShift converts a wall-clock expiration into the venue's step
// count, never below the venue minimum of two steps.
func expirationShift(expiration time.Duration, step int) int {
	if step <= 0 {
		step = 5
	}
	shift := int(math.Ceil(expiration.Seconds() / float64(step)))
	if shift < 2 {
		shift = 2
	}
	return shift
}
