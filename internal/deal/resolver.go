package deal

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/backlog"
	"main/internal/frame"
	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

const (
	// DefaultConfirmTimeout bounds the wait for the buySuccessful push that
	// carries the generated deal id.
	DefaultConfirmTimeout = 10 * time.Second
	// DefaultResultTimeout bounds the overall wait for a deal outcome.
	DefaultResultTimeout = 90 * time.Second
	// rescanInterval is the safety-net re-scan period; the mailbox wakeup
	// is the primary trigger.
	rescanInterval = 500 * time.Millisecond
)

// Resolver determines deal outcomes by scanning the push backlog. It has no
// dedicated per-trade channel: confirmation and result pushes are matched by
// deal id across several message kinds, authoritative completions taking
// priority over interim status updates regardless of arrival order.
type Resolver struct {
	mailbox *backlog.Mailbox
	tracker *Tracker
	clock   clock.Clock

	confirmTimeout time.Duration
	resultTimeout  time.Duration
}

func NewResolver(mailbox *backlog.Mailbox, tracker *Tracker, clk clock.Clock) *Resolver {
	if clk == nil {
		clk = clock.New()
	}
	return &Resolver{
		mailbox:        mailbox,
		tracker:        tracker,
		clock:          clk,
		confirmTimeout: DefaultConfirmTimeout,
		resultTimeout:  DefaultResultTimeout,
	}
}

// SetTimeouts overrides the confirmation and result bounds; zero keeps the
// current value.
func (r *Resolver) SetTimeouts(confirm, result time.Duration) {
	if r == nil {
		return
	}
	if confirm > 0 {
		r.confirmTimeout = confirm
	}
	if result > 0 {
		r.resultTimeout = result
	}
}

// AwaitConfirmation waits for the buySuccessful push and returns its deal
// id. Failing the bound means the request was not placed.
func (r *Resolver) AwaitConfirmation(ctx context.Context) (int64, error) {
	if r == nil {
		return 0, exception.ErrNilInstance
	}

	wake, cancel := r.mailbox.Subscribe()
	defer cancel()

	deadline := r.clock.Timer(r.confirmTimeout)
	defer deadline.Stop()
	rescan := r.clock.Ticker(rescanInterval)
	defer rescan.Stop()

	for {
		if msg, ok := r.mailbox.Take(func(f frame.Inbound) bool {
			return f.Action == frame.ActionBuySuccessful
		}); ok {
			var payload frame.BuySuccessfulPayload
			if err := msg.Bind(&payload); err != nil {
				logs.Errorf("decode buySuccessful payload, err: %+v", err)
				continue
			}
			if payload.Option.ID == 0 {
				continue
			}
			return payload.Option.ID, nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-deadline.C:
			return 0, exception.ErrDealNotConfirmed
		case <-wake:
		case <-rescan.C:
		}
	}
}

// AwaitResult waits for the outcome of dealID. An authoritative completion
// (optionFinished or closeTradeSuccessful) terminates immediately and
// overrides any interim result; when only interim status pushes arrive
// within the bound, the last one is returned instead of a timeout error.
func (r *Resolver) AwaitResult(ctx context.Context, dealID int64) (model.DealResult, error) {
	if r == nil {
		return model.DealResult{}, exception.ErrNilInstance
	}

	wake, cancel := r.mailbox.Subscribe()
	defer cancel()

	deadline := r.clock.Timer(r.resultTimeout)
	defer deadline.Stop()
	rescan := r.clock.Ticker(rescanInterval)
	defer rescan.Stop()

	var (
		interim    *model.DealResult
		hasInterim bool
	)

	for {
		// Opened notifications are consumed and discarded.
		for {
			if _, ok := r.mailbox.Take(func(f frame.Inbound) bool {
				return f.Action == frame.ActionOpenTradeSuccessful && opensDeal(f, dealID)
			}); !ok {
				break
			}
			r.tracker.Transition(dealID, enum.DealStatusOpen)
		}

		// Authoritative completion first; interim status may trail it.
		if msg, ok := r.mailbox.Take(func(f frame.Inbound) bool {
			return (f.Action == frame.ActionOptionFinished || f.Action == frame.ActionCloseTradeSuccessful) &&
				referencesDeal(f, dealID)
		}); ok {
			status, _ := statusFor(msg, dealID)
			profit := status.CashResult()
			r.tracker.Transition(dealID, enum.DealStatusFinal)
			return model.DealResult{
				Result:  enum.OutcomeOfProfit(profit),
				Profit:  profit,
				Details: status.Raw,
			}, nil
		}

		if msg, ok := r.mailbox.Take(func(f frame.Inbound) bool {
			return (f.Action == frame.ActionOptStatus || f.Action == frame.ActionTradesStatus) &&
				referencesDeal(f, dealID)
		}); ok {
			status, _ := statusFor(msg, dealID)
			r.tracker.Transition(dealID, enum.DealStatusResolving)
			interim = &model.DealResult{
				Result:  enum.OutcomeOfProfit(status.Profit),
				Profit:  status.Profit,
				Details: status.Raw,
			}
			hasInterim = true
			continue
		}

		select {
		case <-ctx.Done():
			return model.DealResult{}, ctx.Err()
		case <-deadline.C:
			r.tracker.Transition(dealID, enum.DealStatusTimedOut)
			if hasInterim {
				logs.Warnf("deal %d: no authoritative completion, returning interim result %s", dealID, interim.Result)
				return *interim, nil
			}
			return model.DealResult{}, errors.Wrapf(exception.ErrDealTimeout, "id: %d", dealID)
		case <-wake:
		case <-rescan.C:
		}
	}
}

// referencesDeal reports whether a status batch contains an entry for id.
func referencesDeal(f frame.Inbound, id int64) bool {
	_, ok := statusFor(f, id)
	return ok
}

// opensDeal reports whether an openTradeSuccessful push refers to id.
func opensDeal(f frame.Inbound, id int64) bool {
	var payload frame.OpenTradePayload
	if err := f.Bind(&payload); err != nil {
		return false
	}
	return payload.Trade.ID == id
}

// statusFor extracts the entry for id from either batch shape.
func statusFor(f frame.Inbound, id int64) (frame.TradeStatus, bool) {
	var options frame.OptionsPayload
	if err := f.Bind(&options); err == nil {
		for _, t := range options.Options {
			if t.ID == id {
				return t, true
			}
		}
	}

	var trades frame.TradesPayload
	if err := f.Bind(&trades); err == nil {
		for _, t := range trades.Trades {
			if t.ID == id {
				return t, true
			}
		}
	}

	return frame.TradeStatus{}, false
}
