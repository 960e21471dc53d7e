package exception

import "github.com/yanun0323/errors"

var (
	ErrMalformedCandle = errors.New("candle: batch has fewer than 4 ohlc values")
	ErrEmptySeries     = errors.New("candle: empty series")
)
