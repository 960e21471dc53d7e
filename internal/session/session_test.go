package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"main/internal/frame"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// fakeVenue speaks just enough of the venue protocol to drive a session:
// it answers the init batch, pings, buy orders, and history requests.
type fakeVenue struct {
	upgrader websocket.Upgrader
	srv      *httptest.Server

	mu        sync.Mutex
	ws        *websocket.Conn
	sent      [][]byte
	rejectBuy string

	serverTime int64
	nextDealID int64
}

func newFakeVenue(t *testing.T) *fakeVenue {
	t.Helper()
	v := &fakeVenue{
		serverTime: 1699999920, // aligned to the coarsest test timeframe
		nextDealID: 777,
	}
	v.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := v.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		v.mu.Lock()
		v.ws = ws
		v.mu.Unlock()

		for {
			_, data, readErr := ws.ReadMessage()
			if readErr != nil {
				return
			}
			v.mu.Lock()
			v.sent = append(v.sent, data)
			v.mu.Unlock()
			v.handle(data)
		}
	}))
	t.Cleanup(v.srv.Close)
	return v
}

func (v *fakeVenue) url() string {
	return "ws" + strings.TrimPrefix(v.srv.URL, "http")
}

func (v *fakeVenue) reply(format string, args ...any) {
	v.mu.Lock()
	ws := v.ws
	v.mu.Unlock()
	if ws == nil {
		return
	}
	_ = ws.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(format, args...)))
}

func (v *fakeVenue) sentActions() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.sent))
	for _, raw := range v.sent {
		var f struct {
			Action string `json:"action"`
		}
		if err := sonic.Unmarshal(raw, &f); err == nil {
			out = append(out, f.Action)
		}
	}
	return out
}

func (v *fakeVenue) lastSent(action string) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := len(v.sent) - 1; i >= 0; i-- {
		var f struct {
			Action string `json:"action"`
		}
		if err := sonic.Unmarshal(v.sent[i], &f); err == nil && f.Action == action {
			return v.sent[i]
		}
	}
	return nil
}

func (v *fakeVenue) waitSent(t *testing.T, action string) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if raw := v.lastSent(action); raw != nil {
			return raw
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("frame %q never arrived", action)
	return nil
}

func (v *fakeVenue) handle(raw []byte) {
	var f struct {
		Action  string `json:"action"`
		NS      any    `json:"ns"`
		Message struct {
			AssetID    int       `json:"assetid"`
			Periods    [][]int64 `json:"periods"`
			Timeframes []int     `json:"timeframes"`
		} `json:"message"`
	}
	if err := sonic.Unmarshal(raw, &f); err != nil {
		return
	}

	switch f.Action {
	case "multipleAction":
		v.reply(`{"action":"multipleAction","message":{"actions":[
			{"action":"profile","message":{"profile":{"id":9,"nickname":"tester","demo_balance":10000,"real_balance":25.5,"currency":"USD"}}},
			{"action":"assets","message":{"assets":[
				{"id":240,"symbol":"EURUSD","is_active":1,"profit":80,"expiration_step":30,"purchase_time":30},
				{"id":300,"symbol":"HALTED","is_active":0,"profit":0,"expiration_step":30,"purchase_time":30}
			]}},
			{"action":"getCandlesTimeframes","message":{"timeframes":[5,60,300]}}
		]}}`)
	case "expertSubscribe":
		v.reply(`{"action":"expertSubscribe","message":{"success":true}}`)
	case "ping":
		v.reply(`{"action":"pong","message":{"data":"%d123"}}`, v.serverTime)
	case "buyOption":
		v.mu.Lock()
		reject := v.rejectBuy
		v.mu.Unlock()
		if reject != "" {
			ns, _ := f.NS.(string)
			v.reply(`{"action":"error","ns":"%s","message":"%s"}`, ns, reject)
			return
		}
		id := v.nextDealID
		v.reply(`{"action":"buySuccessful","message":{"option":{"id":%d}}}`, id)
		v.reply(`{"action":"optStatus","message":{"options":[{"id":%d,"profit":-10}]}}`, id)
		v.reply(`{"action":"optionFinished","message":{"options":[{"id":%d,"profit":-10,"result_amount_cash":8}]}}`, id)
	case "assetHistoryCandles":
		if len(f.Message.Periods) == 0 || len(f.Message.Timeframes) == 0 {
			return
		}
		ns, _ := f.NS.(string)
		tf := int64(f.Message.Timeframes[0])
		from, to := f.Message.Periods[0][0], f.Message.Periods[0][1]

		var candles []string
		for ts := from; ts < to; ts += tf {
			price := float64(ts%100) / 10
			candles = append(candles, fmt.Sprintf(`[%d,[%f,%f,%f,%f]]`, ts, price, price+1, price-1, price+0.5))
		}
		v.reply(`{"action":"assetHistoryCandles","ns":"%s","message":{"assetId":%d,"candles":[%s]}}`,
			ns, f.Message.AssetID, strings.Join(candles, ","))
	}
}

func newTestSession(t *testing.T, venue *fakeVenue) *Session {
	t.Helper()
	s, err := New(Config{
		URL:            venue.url(),
		Token:          "test-token",
		Demo:           true,
		RequestTimeout: 3 * time.Second,
		ConfirmTimeout: 3 * time.Second,
		ResultTimeout:  3 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Disconnect() })
	return s
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{Token: "t"}); err == nil {
		t.Fatal("empty url should be rejected")
	}
	if _, err := New(Config{URL: "wss://x"}); err == nil {
		t.Fatal("empty token should be rejected")
	}
}

func TestConnectPrimesCaches(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)

	ctx := context.Background()

	profile, err := s.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tester", profile.Nickname)

	balance, err := s.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, balance)

	assets, err := s.Assets(ctx)
	require.NoError(t, err)
	assert.Len(t, assets, 2)

	active, err := s.ActiveAssets(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "EURUSD", active[0].Symbol)

	assert.Equal(t, []int{5, 60, 300}, s.Timeframes(ctx))
	assert.Eventually(t, func() bool {
		for _, action := range venue.sentActions() {
			if action == "setContext" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestServerTime(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)

	assert.Equal(t, venue.serverTime, s.ServerTime(context.Background()))
}

func TestPlaceAndResult(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)
	ctx := context.Background()

	placed, err := s.Place(ctx, PlaceRequest{
		Symbol:     "EURUSD",
		Amount:     10,
		Direction:  enum.DirectionCall,
		Expiration: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(777), placed.ID)
	assert.Equal(t, 240, placed.AssetID)
	assert.Equal(t, 2, placed.ExpirationShift)
	assert.Equal(t, venue.serverTime+30, placed.StrikeTime)

	result, err := s.Result(ctx, placed.ID)
	require.NoError(t, err)
	// The authoritative completion says win even though the interim said loss.
	assert.Equal(t, enum.OutcomeWin, result.Result)
	assert.Equal(t, 8.0, result.Profit)

	tracked, ok := s.Tracker().Deal(placed.ID)
	require.True(t, ok)
	assert.Equal(t, enum.DealStatusFinal, tracked.Status)
}

func TestPlaceSurfacesVenueRejection(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)
	venue.mu.Lock()
	venue.rejectBuy = "mode mismatch"
	venue.mu.Unlock()

	_, err := s.Place(context.Background(), PlaceRequest{
		Symbol:     "EURUSD",
		Amount:     10,
		Direction:  enum.DirectionCall,
		Expiration: time.Minute,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrVenueRejected))
	assert.False(t, errors.Is(err, exception.ErrDealNotConfirmed))
	assert.Contains(t, err.Error(), "mode mismatch")
}

func TestBuyOptionWireShape(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)

	_, err := s.Buy(context.Background(), "EURUSD", 10, time.Minute)
	require.NoError(t, err)

	raw := venue.lastSent("buyOption")
	require.NotNil(t, raw)
	var f struct {
		NS      string `json:"ns"`
		Message struct {
			Type            string  `json:"type"`
			Amount          float64 `json:"amount"`
			AssetID         int     `json:"assetid"`
			StrikeTime      int64   `json:"strike_time"`
			ExpirationShift int     `json:"expiration_shift"`
			IsDemo          int     `json:"is_demo"`
			RatePosition    *int    `json:"ratePosition"`
		} `json:"message"`
	}
	require.NoError(t, sonic.Unmarshal(raw, &f))
	assert.NotEmpty(t, f.NS)
	assert.Equal(t, "call", f.Message.Type)
	assert.Equal(t, 240, f.Message.AssetID)
	assert.Equal(t, 1, f.Message.IsDemo)
	require.NotNil(t, f.Message.RatePosition)
	assert.Equal(t, 0, *f.Message.RatePosition)
}

func TestPlaceRejectsBadRequests(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)
	ctx := context.Background()

	testCases := []struct {
		desc string
		req  PlaceRequest
	}{
		{"zero amount", PlaceRequest{Symbol: "EURUSD", Direction: enum.DirectionCall, Expiration: time.Minute}},
		{"no direction", PlaceRequest{Symbol: "EURUSD", Amount: 5, Expiration: time.Minute}},
		{"no expiration", PlaceRequest{Symbol: "EURUSD", Amount: 5, Direction: enum.DirectionPut}},
		{"unknown symbol", PlaceRequest{Symbol: "NOPE", Amount: 5, Direction: enum.DirectionPut, Expiration: time.Minute}},
		{"halted asset", PlaceRequest{Symbol: "HALTED", Amount: 5, Direction: enum.DirectionPut, Expiration: time.Minute}},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if _, err := s.Place(ctx, tc.req); err == nil {
				t.Fatal("bad request should be rejected")
			}
		})
	}
}

func TestGetCandles(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)

	candles, err := s.GetCandles(context.Background(), "EURUSD", 60, 4*time.Minute)
	require.NoError(t, err)
	require.Len(t, candles, 4)
	for i := 1; i < len(candles); i++ {
		assert.Equal(t, candles[i-1].Timestamp+60, candles[i].Timestamp)
	}
}

func TestGetCandlesResamples(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)

	// 120s is not served; it is synthesized from the 60s series.
	candles, err := s.GetCandles(context.Background(), "EURUSD", 120, 4*time.Minute)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	for _, cd := range candles {
		assert.Equal(t, 120, cd.Timeframe)
		assert.Equal(t, enum.ProvenanceSynthetic, cd.Provenance)
	}
}

func TestGetCandlesRejectsUnservableTimeframe(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)

	if _, err := s.GetCandles(context.Background(), "EURUSD", 7, time.Minute); err == nil {
		t.Fatal("timeframe with no divisor should be rejected")
	}
}

func TestSubscriptionMultiplexing(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)
	ctx := context.Background()

	require.NoError(t, s.SubscribeCandles(ctx, 240))
	require.NoError(t, s.SubscribeCandles(ctx, 300))
	assert.ElementsMatch(t, []int{240, 300}, s.Subscribed())

	// Re-subscribing an existing asset sends nothing new.
	time.Sleep(50 * time.Millisecond)
	before := len(venue.sentActions())
	require.NoError(t, s.SubscribeCandles(ctx, 240))
	assert.Equal(t, before, len(venue.sentActions()))

	require.NoError(t, s.UnsubscribeCandles(ctx, 240))
	assert.ElementsMatch(t, []int{300}, s.Subscribed())
}

func TestSubscriptionWireShapes(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)
	ctx := context.Background()

	require.NoError(t, s.SubscribeCandles(ctx, 240))
	require.NoError(t, s.UnsubscribeCandles(ctx, 240))

	type assetEntry struct {
		ID         int   `json:"id"`
		Timeframes []int `json:"timeframes"`
	}
	var sub struct {
		Message struct {
			Assets []assetEntry `json:"assets"`
		} `json:"message"`
	}
	raw := venue.waitSent(t, "subscribeCandles")
	require.NoError(t, sonic.Unmarshal(raw, &sub))
	require.Len(t, sub.Message.Assets, 1)
	assert.Equal(t, 240, sub.Message.Assets[0].ID)
	assert.NotEmpty(t, sub.Message.Assets[0].Timeframes)

	var unsub struct {
		Message struct {
			Assets []assetEntry `json:"assets"`
		} `json:"message"`
	}
	raw = venue.waitSent(t, "unsubscribeCandles")
	require.NoError(t, sonic.Unmarshal(raw, &unsub))
	require.Len(t, unsub.Message.Assets, 1)
	assert.Equal(t, 240, unsub.Message.Assets[0].ID)
}

func TestStreamRequestWireShapes(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := s.StreamChunked(ctx, 240, 3)
	require.NoError(t, err)
	var chunked struct {
		Message struct {
			AssetID   int `json:"assetId"`
			ChunkSize int `json:"chunkSize"`
		} `json:"message"`
	}
	raw := venue.waitSent(t, "subscribeChunked")
	require.NoError(t, sonic.Unmarshal(raw, &chunked))
	assert.Equal(t, 240, chunked.Message.AssetID)
	assert.Equal(t, 3, chunked.Message.ChunkSize)

	_, err = s.StreamTimed(ctx, 240, 10*time.Second, 2)
	require.NoError(t, err)
	var timed struct {
		Message struct {
			AssetID  int `json:"assetId"`
			Interval int `json:"interval"`
		} `json:"message"`
	}
	raw = venue.waitSent(t, "subscribeTimed")
	require.NoError(t, sonic.Unmarshal(raw, &timed))
	assert.Equal(t, 240, timed.Message.AssetID)
	assert.Equal(t, 10, timed.Message.Interval)
}

func TestRawRequest(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)

	reply, err := s.RawRequest(context.Background(), frame.Outbound{
		Action:  frame.ActionExpertSubscribe,
		Message: map[string]any{},
	}, func(f frame.Inbound) bool {
		return f.Action == frame.ActionExpertSubscribe
	})
	require.NoError(t, err)
	assert.Equal(t, frame.ActionExpertSubscribe, reply.Action)
}

func TestTokenConfigured(t *testing.T) {
	venue := newFakeVenue(t)
	s := newTestSession(t, venue)
	assert.Equal(t, "test-token", s.Token())
}
