package candle

import (
	"time"

	"main/internal/model"
)

// Chunker folds every N consecutive live candles into one synthetic candle.
type Chunker struct {
	size int
	buf  []model.Candle
}

func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = 1
	}
	return &Chunker{size: size}
}

// Push adds a live candle and emits a synthetic candle once the chunk is
// full.
func (c *Chunker) Push(cd model.Candle) (model.Candle, bool) {
	if c == nil {
		return model.Candle{}, false
	}

	c.buf = append(c.buf, cd)
	if len(c.buf) < c.size {
		return model.Candle{}, false
	}

	out := aggregate(c.buf, c.size*cd.Timeframe)
	c.buf = c.buf[:0]
	return out, true
}

// Pending reports the number of buffered candles awaiting a full chunk.
func (c *Chunker) Pending() int {
	if c == nil {
		return 0
	}
	return len(c.buf)
}

// Windower folds live candles into rolling fixed-duration windows, keyed by
// candle timestamps. A synthetic candle is emitted when the window holds at
// least minCount candles or an arriving candle crosses the window boundary.
type Windower struct {
	window   int64
	minCount int

	start int64
	buf   []model.Candle
}

func NewWindower(window time.Duration, minCount int) *Windower {
	sec := int64(window / time.Second)
	if sec <= 0 {
		sec = 1
	}
	if minCount <= 0 {
		minCount = 1
	}
	return &Windower{window: sec, minCount: minCount, start: -1}
}

// Push adds a live candle and emits the closed window's synthetic candle
// when the boundary is crossed; the fresh candle seeds the next window.
// Reaching minCount inside the window also emits immediately.
func (w *Windower) Push(cd model.Candle) (model.Candle, bool) {
	if w == nil {
		return model.Candle{}, false
	}

	if w.start >= 0 && cd.Timestamp >= w.start+w.window {
		var out model.Candle
		emitted := false
		if len(w.buf) > 0 {
			out = aggregate(w.buf, int(w.window))
			emitted = true
		}
		w.start = cd.Timestamp
		w.buf = append(w.buf[:0], cd)
		return out, emitted
	}

	if w.start < 0 {
		w.start = cd.Timestamp
	}
	w.buf = append(w.buf, cd)

	if len(w.buf) >= w.minCount {
		out := aggregate(w.buf, int(w.window))
		w.buf = w.buf[:0]
		w.start = -1
		return out, true
	}
	return model.Candle{}, false
}
