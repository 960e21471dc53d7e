package candle

import (
	"testing"

	"main/internal/model"
	"main/internal/model/enum"
)

func series(timeframe int, start int64, closes ...float64) []model.Candle {
	out := make([]model.Candle, 0, len(closes))
	for i, cl := range closes {
		out = append(out, model.Candle{
			Timestamp:  start + int64(i*timeframe),
			Open:       cl - 1,
			High:       cl + 2,
			Low:        cl - 2,
			Close:      cl,
			Timeframe:  timeframe,
			Volume:     1,
			Provenance: enum.ProvenanceHistorical,
		})
	}
	return out
}

func TestMergeSortsAndDedupes(t *testing.T) {
	c := NewCache()

	batch := series(60, 600, 10, 11, 12)
	// Shuffle arrival order and repeat one timestamp.
	in := []model.Candle{batch[2], batch[0], batch[1], batch[0]}

	if got := c.Merge(7, 60, in); got != 3 {
		t.Fatalf("want 3 unique candles, got %d", got)
	}

	s := c.Series(7, 60)
	for i := 1; i < len(s); i++ {
		if s[i-1].Timestamp >= s[i].Timestamp {
			t.Fatalf("series not strictly ascending at %d: %d >= %d", i, s[i-1].Timestamp, s[i].Timestamp)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	c := NewCache()
	batch := series(60, 0, 1, 2, 3, 4)

	first := c.Merge(1, 60, batch)
	second := c.Merge(1, 60, batch)
	if first != second {
		t.Fatalf("re-merging the same batch changed the series: %d != %d", first, second)
	}
}

func TestMergeLastWriteWins(t *testing.T) {
	c := NewCache()
	c.Merge(1, 60, series(60, 120, 10))

	live := series(60, 120, 10)
	live[0].Close = 99
	live[0].Provenance = enum.ProvenanceLive
	c.Merge(1, 60, live)

	s := c.Series(1, 60)
	if len(s) != 1 {
		t.Fatalf("same-timestamp merge must collapse, got %d", len(s))
	}
	if s[0].Close != 99 || s[0].Provenance != enum.ProvenanceLive {
		t.Fatalf("newest write should win, got close %.0f provenance %s", s[0].Close, s[0].Provenance)
	}
}

func TestMergeTimeframeFallback(t *testing.T) {
	c := NewCache()
	in := series(0, 0, 5)
	c.Merge(1, 300, in)

	s := c.Series(1, 300)
	if len(s) != 1 || s[0].Timeframe != 300 {
		t.Fatalf("zero timeframe should take the series timeframe, got %+v", s)
	}
}

func TestSeriesIsolation(t *testing.T) {
	c := NewCache()
	c.Merge(1, 60, series(60, 0, 1, 2))
	c.Merge(1, 300, series(300, 0, 1))
	c.Merge(2, 60, series(60, 0, 1))

	if got := len(c.Series(1, 60)); got != 2 {
		t.Fatalf("(1,60) should hold 2, got %d", got)
	}
	if got := len(c.Series(1, 300)); got != 1 {
		t.Fatalf("(1,300) should hold 1, got %d", got)
	}
	if got := len(c.Series(3, 60)); got != 0 {
		t.Fatalf("unknown series should be empty, got %d", got)
	}
}

func TestSeriesReturnsCopy(t *testing.T) {
	c := NewCache()
	c.Merge(1, 60, series(60, 0, 7))

	s := c.Series(1, 60)
	s[0].Close = -1

	if c.Series(1, 60)[0].Close == -1 {
		t.Fatal("mutating the returned slice must not touch the cache")
	}
}

func TestWindow(t *testing.T) {
	c := NewCache()
	c.Merge(1, 60, series(60, 0, 1, 2, 3, 4, 5))

	testCases := []struct {
		desc     string
		from, to int64
		want     int
	}{
		{"full", 0, 300, 5},
		{"inner", 60, 180, 2},
		{"half-open end", 0, 240, 4},
		{"empty", 500, 600, 0},
		{"inverted", 200, 100, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := c.Window(1, 60, tc.from, tc.to)
			if len(got) != tc.want {
				t.Fatalf("want %d candles, got %d", tc.want, len(got))
			}
		})
	}
}

func TestOldest(t *testing.T) {
	c := NewCache()
	if _, ok := c.Oldest(1, 60); ok {
		t.Fatal("empty series has no oldest")
	}

	c.Merge(1, 60, series(60, 300, 1, 2))
	c.Merge(1, 60, series(60, 60, 9))

	ts, ok := c.Oldest(1, 60)
	if !ok || ts != 60 {
		t.Fatalf("want oldest 60, got %d ok %v", ts, ok)
	}
}
