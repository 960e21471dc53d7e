package frame

import (
	"encoding/json"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
)

// CandleBatch is the payload of a live or historical candle frame.
type CandleBatch struct {
	AssetID int           `json:"assetId"`
	Candles []CandlePoint `json:"candles"`
}

// CandlePoint is one candle on the wire. Live frames use an object
// {"t":ts,"tf":tf,"v":[o,h,l,c]}; historical batches may abbreviate entries
// to a [ts,[o,h,l,c]] pair inheriting the requested timeframe.
type CandlePoint struct {
	Timestamp int64
	Timeframe int
	Values    []float64
}

func (p *CandlePoint) UnmarshalJSON(b []byte) error {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	if i < len(b) && b[i] == '[' {
		var pair []json.RawMessage
		if err := sonic.ConfigFastest.Unmarshal(b[i:], &pair); err != nil {
			return errors.Wrap(err, "unmarshal candle pair")
		}
		if len(pair) < 2 {
			return errors.New("candle pair too short")
		}
		if err := sonic.ConfigFastest.Unmarshal(pair[0], &p.Timestamp); err != nil {
			return errors.Wrap(err, "unmarshal candle timestamp")
		}
		if err := sonic.ConfigFastest.Unmarshal(pair[1], &p.Values); err != nil {
			return errors.Wrap(err, "unmarshal candle values")
		}
		return nil
	}

	var obj struct {
		T  int64     `json:"t"`
		TF int       `json:"tf"`
		V  []float64 `json:"v"`
	}
	if err := sonic.ConfigFastest.Unmarshal(b, &obj); err != nil {
		return errors.Wrap(err, "unmarshal candle object")
	}
	p.Timestamp = obj.T
	p.Timeframe = obj.TF
	p.Values = obj.V
	return nil
}

// Candle converts the point to a model candle. Points with fewer than 4 OHLC
// values are malformed and reported as not ok. A point without its own
// timeframe inherits fallback.
func (p CandlePoint) Candle(fallback int, provenance enum.Provenance) (model.Candle, bool) {
	if len(p.Values) < 4 {
		return model.Candle{}, false
	}
	tf := p.Timeframe
	if tf == 0 {
		tf = fallback
	}
	c := model.Candle{
		Timestamp:  p.Timestamp,
		Open:       p.Values[0],
		High:       p.Values[1],
		Low:        p.Values[2],
		Close:      p.Values[3],
		Timeframe:  tf,
		Provenance: provenance,
	}
	if len(p.Values) >= 5 {
		c.Volume = p.Values[4]
	}
	return c, true
}
