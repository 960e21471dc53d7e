package candle

import (
	"sort"
	"sync"

	"main/internal/model"
)

// Cache holds one ordered, timestamp-unique OHLC series per (asset,
// timeframe) pair, merged from live pushes and historical batch replies.
type Cache struct {
	mu     sync.Mutex
	series map[model.SeriesKey][]model.Candle
}

func NewCache() *Cache {
	return &Cache{series: make(map[model.SeriesKey][]model.Candle)}
}

// Merge folds candles into the (assetID, timeframe) series: concatenate,
// sort by timestamp, deduplicate keeping the most recently merged entry.
// A live candle overwriting a historical one at the same timestamp wins;
// merging the same batch twice leaves the series unchanged. Returns the
// resulting series length.
func (c *Cache) Merge(assetID, timeframe int, in []model.Candle) int {
	if c == nil {
		return 0
	}

	key := model.SeriesKey{AssetID: assetID, Timeframe: timeframe}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.series[key]
	if len(in) == 0 {
		return len(existing)
	}

	byTS := make(map[int64]model.Candle, len(existing)+len(in))
	for _, cd := range existing {
		byTS[cd.Timestamp] = cd
	}
	for _, cd := range in {
		if cd.Timeframe == 0 {
			cd.Timeframe = timeframe
		}
		byTS[cd.Timestamp] = cd
	}

	merged := make([]model.Candle, 0, len(byTS))
	for _, cd := range byTS {
		merged = append(merged, cd)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })

	c.series[key] = merged
	return len(merged)
}

// Series returns a copy of the (assetID, timeframe) series.
func (c *Cache) Series(assetID, timeframe int) []model.Candle {
	if c == nil {
		return nil
	}

	key := model.SeriesKey{AssetID: assetID, Timeframe: timeframe}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.series[key]
	if len(s) == 0 {
		return nil
	}
	out := make([]model.Candle, len(s))
	copy(out, s)
	return out
}

// Window returns the series entries with from <= timestamp < to.
func (c *Cache) Window(assetID, timeframe int, from, to int64) []model.Candle {
	s := c.Series(assetID, timeframe)
	if len(s) == 0 {
		return nil
	}

	lo := sort.Search(len(s), func(i int) bool { return s[i].Timestamp >= from })
	hi := sort.Search(len(s), func(i int) bool { return s[i].Timestamp >= to })
	if lo >= hi {
		return nil
	}
	return s[lo:hi]
}

// Oldest returns the lowest timestamp in the series, or false when empty.
func (c *Cache) Oldest(assetID, timeframe int) (int64, bool) {
	s := c.Series(assetID, timeframe)
	if len(s) == 0 {
		return 0, false
	}
	return s[0].Timestamp, true
}
