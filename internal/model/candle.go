package model

import "main/internal/model/enum"

// Candle is one OHLC interval of an asset at a fixed timeframe.
// Timestamp is the bucket start in unix seconds.
type Candle struct {
	Timestamp  int64
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Timeframe  int
	Volume     float64
	Provenance enum.Provenance
}

// SeriesKey addresses one candle series in the cache.
type SeriesKey struct {
	AssetID   int
	Timeframe int
}
