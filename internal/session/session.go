package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/backlog"
	"main/internal/candle"
	"main/internal/client"
	"main/internal/deal"
	"main/internal/dispatch"
	"main/internal/frame"
	"main/internal/journal"
	"main/internal/model"
	"main/internal/registry"
	"main/pkg/exception"
)

// DefaultRequestTimeout bounds a single request/reply round trip.
const DefaultRequestTimeout = 10 * time.Second

// Config assembles a venue session.
type Config struct {
	URL                string
	Origin             string
	UserAgent          string
	Token              string
	Demo               bool
	Heartbeat          time.Duration
	Handshake          time.Duration
	DialRetries        uint64
	InsecureSkipVerify bool

	BacklogCapacity int
	BacklogTrimTo   int
	ConfirmTimeout  time.Duration
	ResultTimeout   time.Duration
	RequestTimeout  time.Duration

	// Symbols maps human symbols to venue asset ids ahead of the first
	// assets snapshot. The snapshot extends, never overrides, this table.
	Symbols map[string]int

	Journal *journal.Journal
	Clock   clock.Clock
}

// Session is the facade over the single venue connection: it owns the
// transport, the correlation registry, the dispatcher, the candle cache,
// and the trade lifecycle resolver, and exposes venue operations as plain
// calls.
type Session struct {
	cfg   Config
	clock clock.Clock

	registry   *registry.Registry
	mailbox    *backlog.Mailbox
	candles    *candle.Cache
	tracker    *deal.Tracker
	resolver   *deal.Resolver
	dispatcher *dispatch.Dispatcher
	conn       *client.Conn
	journal    *journal.Journal

	tokenMu sync.RWMutex
	token   string

	subMu      sync.Mutex
	subscribed map[int]struct{}
}

// New wires a session from cfg. The connection is not dialed until Connect.
func New(cfg Config) (*Session, error) {
	if cfg.URL == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "empty venue url")
	}
	if cfg.Token == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "empty session token")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	s := &Session{
		cfg:        cfg,
		clock:      cfg.Clock,
		registry:   registry.New(cfg.Clock),
		mailbox:    backlog.New(cfg.BacklogCapacity, cfg.BacklogTrimTo),
		candles:    candle.NewCache(),
		tracker:    deal.NewTracker(),
		journal:    cfg.Journal,
		token:      cfg.Token,
		subscribed: make(map[int]struct{}),
	}
	s.resolver = deal.NewResolver(s.mailbox, s.tracker, cfg.Clock)
	s.resolver.SetTimeouts(cfg.ConfirmTimeout, cfg.ResultTimeout)
	s.dispatcher = dispatch.New(s.registry, s.mailbox, s.candles, s.setToken)
	s.conn = client.New(client.Config{
		URL:                cfg.URL,
		Origin:             cfg.Origin,
		UserAgent:          cfg.UserAgent,
		HandshakeTimeout:   cfg.Handshake,
		HeartbeatInterval:  cfg.Heartbeat,
		DialRetries:        cfg.DialRetries,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Clock:              cfg.Clock,
	}, s.dispatcher.Handle)
	return s, nil
}

// Connect dials the venue, replays the initialization batch, and waits for
// the profile and instrument snapshots before returning.
func (s *Session) Connect(ctx context.Context) error {
	if s == nil {
		return exception.ErrNilInstance
	}

	if err := s.conn.Connect(ctx); err != nil {
		return err
	}

	keys := []string{
		string(frame.ActionProfile),
		string(frame.ActionAssets),
		string(frame.ActionCandlesTimeframes),
	}
	slots := make([]*registry.Slot, 0, len(keys))
	for _, key := range keys {
		slot, err := s.registry.Claim(key)
		if err != nil {
			return err
		}
		slots = append(slots, slot)
	}

	token := s.Token()
	batch := map[string]any{
		"token": token,
		"actions": []frame.Outbound{
			{Action: frame.ActionProfile, Token: token, Message: map[string]any{}},
			{Action: frame.ActionAssets, Token: token, Message: map[string]any{}},
			{Action: frame.ActionCandlesTimeframes, Token: token, Message: map[string]any{}},
			{Action: frame.ActionUserGroup, Token: token, Message: map[string]any{}},
			{Action: frame.ActionCurrency, Token: token, Message: map[string]any{}},
			{Action: frame.ActionCountries, Token: token, Message: map[string]any{}},
			{Action: frame.ActionEnvironment, Token: token, Message: map[string]any{}},
			{Action: frame.ActionDefaultSubscribe, Token: token, Message: map[string]any{
				"modes":      []string{"vanilla"},
				"timeframes": []int{0, 5},
			}},
			{Action: frame.ActionSetTimeZone, Token: token, Message: map[string]any{
				"timeZone": timezoneOffsetMinutes(s.clock.Now()),
			}},
		},
	}
	if err := s.conn.Send(ctx, frame.Outbound{
		Action:  frame.ActionMultipleAction,
		Token:   token,
		Message: batch,
	}); err != nil {
		for _, key := range keys {
			s.registry.Fail(key, err)
		}
		return err
	}

	for i, slot := range slots {
		if _, err := slot.Wait(ctx, s.clock, s.cfg.RequestTimeout); err != nil {
			return errors.Wrapf(err, "await %s snapshot", keys[i])
		}
	}

	return s.SetContext(ctx, s.cfg.Demo)
}

// Disconnect closes the socket. Pending awaits observe their own timeouts.
func (s *Session) Disconnect() error {
	if s == nil {
		return nil
	}
	return s.conn.Disconnect()
}

// Connected reports whether the underlying socket is established.
func (s *Session) Connected() bool {
	return s != nil && s.conn.Connected()
}

// SetContext switches between the demo and real account context.
func (s *Session) SetContext(ctx context.Context, demo bool) error {
	isDemo := 0
	if demo {
		isDemo = 1
	}
	return s.send(ctx, frame.ActionSetContext, map[string]any{"is_demo": isDemo})
}

// Token returns the current session token, following venue refreshes.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.tokenMu.RLock()
	defer s.tokenMu.RUnlock()
	return s.token
}

func (s *Session) setToken(token string) {
	s.tokenMu.Lock()
	s.token = token
	s.tokenMu.Unlock()
	logs.Info("session token refreshed")
}

// send transmits a fire-and-forget request carrying the session token.
func (s *Session) send(ctx context.Context, action frame.Action, message any) error {
	return s.conn.Send(ctx, frame.Outbound{
		Action:  action,
		Token:   s.Token(),
		Message: message,
	})
}

// request sends out and waits for the reply under key. The key is the
// correlation id the venue echoes back, or the reply action name for
// endpoints that do not echo one.
func (s *Session) request(ctx context.Context, key string, out frame.Outbound, timeout time.Duration) (frame.Inbound, error) {
	if s == nil {
		return frame.Inbound{}, exception.ErrNilInstance
	}
	if timeout <= 0 {
		timeout = s.cfg.RequestTimeout
	}

	slot, err := s.registry.Claim(key)
	if err != nil {
		return frame.Inbound{}, err
	}
	out.Token = s.Token()
	if err := s.conn.Send(ctx, out); err != nil {
		s.registry.Fail(key, err)
		return frame.Inbound{}, err
	}
	return slot.Wait(ctx, s.clock, timeout)
}

// requestAction is the common case: the reply arrives tagged with the same
// action name that was sent.
func (s *Session) requestAction(ctx context.Context, action frame.Action, message any) (frame.Inbound, error) {
	return s.request(ctx, string(action), frame.Outbound{Action: action, Message: message}, 0)
}

// ServerTime returns the venue clock in unix seconds via a ping round trip,
// falling back to local time when the venue does not answer in time.
func (s *Session) ServerTime(ctx context.Context) int64 {
	reply, err := s.request(ctx, string(frame.ActionPong), frame.Ping(), 0)
	if err != nil {
		logs.Warnf("server time probe failed, using local clock, err: %+v", err)
		return s.clock.Now().Unix()
	}

	var payload frame.PongPayload
	if err := reply.Bind(&payload); err == nil && len(payload.Data) >= 10 {
		if ts, parseErr := strconv.ParseInt(payload.Data[:10], 10, 64); parseErr == nil {
			return ts
		}
	}
	return s.clock.Now().Unix()
}

// Tracker exposes the deal tracker for read-side inspection.
func (s *Session) Tracker() *deal.Tracker {
	if s == nil {
		return nil
	}
	return s.tracker
}

// Candles exposes the read side of the candle cache.
func (s *Session) Candles() *candle.Cache {
	if s == nil {
		return nil
	}
	return s.candles
}

// BacklogDropped reports how many unclaimed pushes were evicted so far.
func (s *Session) BacklogDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.mailbox.Dropped()
}

// resolveAssetID maps a request to a venue asset id: an explicit id wins,
// then the configured symbol table, then the live assets snapshot.
func (s *Session) resolveAssetID(ctx context.Context, assetID int, symbol string) (int, error) {
	if assetID > 0 {
		return assetID, nil
	}
	if symbol == "" {
		return 0, errors.Wrap(exception.ErrInvalidArgument, "no asset id or symbol")
	}
	if id, ok := s.cfg.Symbols[symbol]; ok {
		return id, nil
	}

	assets, err := s.Assets(ctx)
	if err != nil {
		return 0, err
	}
	for _, a := range assets {
		if a.Symbol == symbol || a.Name == symbol {
			return a.ID, nil
		}
	}
	return 0, errors.Wrap(exception.ErrAssetUnknown, symbol)
}

// assetByID finds an instrument in the live snapshot.
func (s *Session) assetByID(ctx context.Context, id int) (model.Asset, error) {
	assets, err := s.Assets(ctx)
	if err != nil {
		return model.Asset{}, err
	}
	for _, a := range assets {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Asset{}, errors.Wrapf(exception.ErrAssetUnknown, "id: %d", id)
}

func timezoneOffsetMinutes(now time.Time) int {
	_, offset := now.Zone()
	return offset / 60
}
