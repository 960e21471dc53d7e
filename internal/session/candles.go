package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/candle"
	"main/internal/frame"
	"main/internal/model"
	"main/pkg/exception"
)

// maxHistoryPages bounds the backwards paging of one GetCandles call.
const maxHistoryPages = 30

// GetCandles returns candles for the asset covering the lookback window at
// the requested timeframe, paging history backwards until the window is
// covered. A timeframe the venue does not serve is synthesized by
// resampling the largest served timeframe that divides it.
func (s *Session) GetCandles(ctx context.Context, symbol string, timeframe int, lookback time.Duration) ([]model.Candle, error) {
	if s == nil {
		return nil, exception.ErrNilInstance
	}
	if timeframe <= 0 {
		return nil, errors.Wrap(exception.ErrTimeframeInvalid, "timeframe must be > 0")
	}
	if lookback <= 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "lookback must be > 0")
	}

	assetID, err := s.resolveAssetID(ctx, 0, symbol)
	if err != nil {
		return nil, err
	}
	return s.GetCandlesByID(ctx, assetID, timeframe, lookback)
}

// GetCandlesByID is GetCandles addressed by venue asset id.
func (s *Session) GetCandlesByID(ctx context.Context, assetID, timeframe int, lookback time.Duration) ([]model.Candle, error) {
	fetchTF, err := s.fetchTimeframe(ctx, timeframe)
	if err != nil {
		return nil, err
	}
	if err := s.SubscribeCandles(ctx, assetID); err != nil {
		return nil, err
	}

	end := s.ServerTime(ctx)
	from := end - int64(lookback/time.Second)

	for i := 0; i < maxHistoryPages; i++ {
		oldest, seeded := s.candles.Oldest(assetID, fetchTF)
		if seeded && oldest <= from {
			break
		}
		reqTo := end
		if seeded {
			reqTo = oldest
		}

		ns := uuid.NewString()
		s.dispatcher.HintTimeframe(ns, fetchTF)
		if _, err := s.request(ctx, ns, frame.Outbound{
			Action: frame.ActionHistoryCandles,
			NS:     ns,
			Message: map[string]any{
				"assetid":    assetID,
				"periods":    [][]int64{{from, reqTo}},
				"timeframes": []int{fetchTF},
			},
		}, 0); err != nil {
			return nil, err
		}

		// A page that moves the oldest bound no further means the venue
		// has no deeper history.
		newOldest, ok := s.candles.Oldest(assetID, fetchTF)
		if !ok || (seeded && newOldest >= oldest) {
			break
		}
	}

	series := s.candles.Window(assetID, fetchTF, from, end+1)
	if len(series) == 0 {
		return nil, errors.Wrapf(exception.ErrEmptySeries, "asset %d tf %d", assetID, fetchTF)
	}
	if fetchTF != timeframe {
		series = candle.Resample(series, timeframe)
	}
	return series, nil
}

// fetchTimeframe picks the timeframe to request from the venue: the target
// itself when served, otherwise the largest served timeframe dividing it.
func (s *Session) fetchTimeframe(ctx context.Context, target int) (int, error) {
	supported := s.Timeframes(ctx)

	best := 0
	for _, tf := range supported {
		if tf == target {
			return target, nil
		}
		if tf < target && target%tf == 0 && tf > best {
			best = tf
		}
	}
	if best == 0 {
		return 0, errors.Wrapf(exception.ErrTimeframeInvalid, "%d not served and not divisible by any served timeframe", target)
	}
	return best, nil
}

// SubscribeCandles adds assets to the live candle subscription. The full
// subscribed set is re-announced so adding one asset never drops another.
func (s *Session) SubscribeCandles(ctx context.Context, assetIDs ...int) error {
	if s == nil {
		return exception.ErrNilInstance
	}

	s.subMu.Lock()
	changed := false
	for _, id := range assetIDs {
		if _, ok := s.subscribed[id]; !ok {
			s.subscribed[id] = struct{}{}
			changed = true
		}
	}
	all := s.subscribedLocked()
	s.subMu.Unlock()

	if !changed {
		return nil
	}
	entries := make([]map[string]any, 0, len(all))
	for _, id := range all {
		entries = append(entries, map[string]any{"id": id, "timeframes": []int{0, 5}})
	}
	return s.send(ctx, frame.ActionSubscribeCandles, map[string]any{"assets": entries})
}

// UnsubscribeCandles removes assets from the live candle subscription,
// leaving the rest subscribed.
func (s *Session) UnsubscribeCandles(ctx context.Context, assetIDs ...int) error {
	if s == nil {
		return exception.ErrNilInstance
	}

	s.subMu.Lock()
	removed := make([]int, 0, len(assetIDs))
	for _, id := range assetIDs {
		if _, ok := s.subscribed[id]; ok {
			delete(s.subscribed, id)
			removed = append(removed, id)
		}
	}
	s.subMu.Unlock()

	if len(removed) == 0 {
		return nil
	}
	entries := make([]map[string]any, 0, len(removed))
	for _, id := range removed {
		entries = append(entries, map[string]any{"id": id})
	}
	return s.send(ctx, frame.ActionUnsubscribe, map[string]any{"assets": entries})
}

// Subscribed returns the asset ids currently on the live candle feed.
func (s *Session) Subscribed() []int {
	if s == nil {
		return nil
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return s.subscribedLocked()
}

func (s *Session) subscribedLocked() []int {
	all := make([]int, 0, len(s.subscribed))
	for id := range s.subscribed {
		all = append(all, id)
	}
	return all
}

// stream is a closable candle channel shared between a dispatcher tap and
// the consumer-side closer.
type stream struct {
	mu     sync.Mutex
	ch     chan model.Candle
	closed bool
}

func newStream() *stream {
	return &stream{ch: make(chan model.Candle, 16)}
}

func (st *stream) emit(cd model.Candle) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	select {
	case st.ch <- cd:
	default:
		logs.Warnf("candle stream full, dropping candle at %d", cd.Timestamp)
	}
}

func (st *stream) close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.closed {
		st.closed = true
		close(st.ch)
	}
}

// StreamChunked emits one synthetic candle per chunk of consecutive live
// candles for the asset. The stream closes when ctx is canceled; announcing
// it also subscribes the asset to the live feed.
func (s *Session) StreamChunked(ctx context.Context, assetID, chunk int) (<-chan model.Candle, error) {
	if chunk <= 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "chunk must be > 0")
	}
	if err := s.SubscribeCandles(ctx, assetID); err != nil {
		return nil, err
	}
	if err := s.send(ctx, frame.ActionSubscribeChunked, map[string]any{
		"assetId":   assetID,
		"chunkSize": chunk,
	}); err != nil {
		return nil, err
	}

	st := newStream()
	chunker := candle.NewChunker(chunk)
	var mu sync.Mutex
	s.dispatcher.TapCandles(func(id int, cd model.Candle) {
		if id != assetID || ctx.Err() != nil {
			return
		}
		mu.Lock()
		out, ok := chunker.Push(cd)
		mu.Unlock()
		if ok {
			st.emit(out)
		}
	})
	go func() {
		<-ctx.Done()
		st.close()
	}()
	return st.ch, nil
}

// StreamTimed emits one synthetic candle per wall-clock window of live
// candles, early-completing a window once minCount candles arrived.
func (s *Session) StreamTimed(ctx context.Context, assetID int, window time.Duration, minCount int) (<-chan model.Candle, error) {
	if window <= 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "window must be > 0")
	}
	if err := s.SubscribeCandles(ctx, assetID); err != nil {
		return nil, err
	}
	if err := s.send(ctx, frame.ActionSubscribeTimed, map[string]any{
		"assetId":  assetID,
		"interval": int(window / time.Second),
	}); err != nil {
		return nil, err
	}

	st := newStream()
	windower := candle.NewWindower(window, minCount)
	var mu sync.Mutex
	s.dispatcher.TapCandles(func(id int, cd model.Candle) {
		if id != assetID || ctx.Err() != nil {
			return
		}
		mu.Lock()
		out, ok := windower.Push(cd)
		mu.Unlock()
		if ok {
			st.emit(out)
		}
	})
	go func() {
		<-ctx.Done()
		st.close()
	}()
	return st.ch, nil
}
