package enum

// Direction call, put
type Direction uint8

const (
	_direction_beg Direction = iota
	DirectionCall
	DirectionPut
	_direction_end
)

func (d Direction) IsAvailable() bool {
	return d > _direction_beg && d < _direction_end
}

// Wire returns the option type string the venue expects.
func (d Direction) Wire() string {
	switch d {
	case DirectionPut:
		return "put"
	default:
		return "call"
	}
}

// DealStatus pending, open, resolving, final, timed out
type DealStatus uint8

const (
	_deal_status_beg DealStatus = iota
	DealStatusPending
	DealStatusOpen
	DealStatusResolving
	DealStatusFinal
	DealStatusTimedOut
	_deal_status_end
)

func (s DealStatus) IsAvailable() bool {
	return s > _deal_status_beg && s < _deal_status_end
}

func (s DealStatus) String() string {
	switch s {
	case DealStatusPending:
		return "pending"
	case DealStatusOpen:
		return "open"
	case DealStatusResolving:
		return "resolving"
	case DealStatusFinal:
		return "final"
	case DealStatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome win, loss, draw
type Outcome uint8

const (
	_outcome_beg Outcome = iota
	OutcomeWin
	OutcomeLoss
	OutcomeDraw
	_outcome_end
)

func (o Outcome) IsAvailable() bool {
	return o > _outcome_beg && o < _outcome_end
}

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLoss:
		return "loss"
	case OutcomeDraw:
		return "draw"
	default:
		return "unknown"
	}
}

// OutcomeOfProfit maps the venue-reported profit sign to an outcome.
func OutcomeOfProfit(profit float64) Outcome {
	switch {
	case profit > 0:
		return OutcomeWin
	case profit < 0:
		return OutcomeLoss
	default:
		return OutcomeDraw
	}
}
