package frame

import (
	"encoding/json"

	"github.com/bytedance/sonic"

	"main/internal/model"
)

// Typed message payloads for single-shot replies and pushes.

type ProfilePayload struct {
	Profile model.Profile `json:"profile"`
}

type AssetsPayload struct {
	Assets []model.Asset `json:"assets"`
}

type TimeframesPayload struct {
	Timeframes []int `json:"timeframes"`
}

type CurrencyPayload struct {
	Currency []model.Currency `json:"currency"`
}

type CountriesPayload struct {
	Countries []model.Country `json:"countries"`
}

type TokenPayload struct {
	Token string `json:"token"`
}

type PongPayload struct {
	Data string `json:"data"`
}

type TradersChoicePayload struct {
	Assets []model.TradersChoice `json:"assets"`
}

// TradeStatus is one trade/option entry inside a status batch. The venue
// reports the final cash result as result_amount_cash on completion frames
// and a running profit on interim ones.
type TradeStatus struct {
	ID               int64           `json:"id"`
	Profit           float64         `json:"profit"`
	ResultAmountCash *float64        `json:"result_amount_cash"`
	Raw              json.RawMessage `json:"-"`
}

func (t *TradeStatus) UnmarshalJSON(b []byte) error {
	type plain TradeStatus
	var p plain
	if err := sonic.ConfigFastest.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = TradeStatus(p)
	t.Raw = append([]byte(nil), b...)
	return nil
}

// CashResult returns the authoritative cash result when present, the running
// profit otherwise.
func (t TradeStatus) CashResult() float64 {
	if t.ResultAmountCash != nil {
		return *t.ResultAmountCash
	}
	return t.Profit
}

type TradesPayload struct {
	Trades []TradeStatus `json:"trades"`
}

type OptionsPayload struct {
	Options []TradeStatus `json:"options"`
}

type BuySuccessfulPayload struct {
	Option struct {
		ID int64 `json:"id"`
	} `json:"option"`
}

type OpenTradePayload struct {
	Trade TradeStatus `json:"trade"`
}

type OpenTradesPayload struct {
	Trades []json.RawMessage `json:"trades"`
}

type UserGroupsPayload struct {
	UserGroups []json.RawMessage `json:"userGroups"`
}

type AchievementsPayload struct {
	Achievements []json.RawMessage `json:"achievements"`
}

type ExpertOptionsPayload struct {
	Options []json.RawMessage `json:"options"`
}

type OpenOptionsStatPayload struct {
	OpenOptions []json.RawMessage `json:"openOptions"`
}

// DealIDs extracts the trade ids referenced by a status batch frame,
// regardless of whether the batch uses the trades or options shape.
func DealIDs(f Inbound) []int64 {
	var ids []int64

	var trades TradesPayload
	if err := f.Bind(&trades); err == nil {
		for _, t := range trades.Trades {
			if t.ID != 0 {
				ids = append(ids, t.ID)
			}
		}
	}

	var options OptionsPayload
	if err := f.Bind(&options); err == nil {
		for _, t := range options.Options {
			if t.ID != 0 {
				ids = append(ids, t.ID)
			}
		}
	}

	return ids
}
