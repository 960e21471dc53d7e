package model

import (
	"encoding/json"

	"main/internal/model/enum"
)

// Deal is one placed option contract tracked from placement to outcome.
type Deal struct {
	ID              int64
	AssetID         int
	Direction       enum.Direction
	Amount          float64
	StrikeTime      int64
	ExpirationShift int
	Status          enum.DealStatus
}

// DealResult is the resolved outcome of a deal. Profit is the venue-reported
// cash result; the engine only inspects its sign.
type DealResult struct {
	Result  enum.Outcome
	Profit  float64
	Details json.RawMessage
}
