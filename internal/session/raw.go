package session

import (
	"context"
	"time"

	"main/internal/frame"
	"main/pkg/exception"
)

// rawRescanInterval is the safety-net re-scan period for RawRequest; the
// mailbox wakeup is the primary trigger.
const rawRescanInterval = 500 * time.Millisecond

// SendRaw writes an arbitrary frame without waiting for a reply. The session
// token is stamped in when the caller left it empty.
func (s *Session) SendRaw(ctx context.Context, out frame.Outbound) error {
	if s == nil {
		return exception.ErrNilInstance
	}
	if out.Token == "" {
		out.Token = s.Token()
	}
	return s.conn.Send(ctx, out)
}

// RawRequest sends an arbitrary frame and blocks until an inbound frame
// satisfies validate, consuming it from the push backlog. It is the escape
// hatch for venue messages the typed API does not cover: replies that do not
// echo a correlation key still land in the backlog and are matched here.
func (s *Session) RawRequest(ctx context.Context, out frame.Outbound, validate func(frame.Inbound) bool) (frame.Inbound, error) {
	if s == nil {
		return frame.Inbound{}, exception.ErrNilInstance
	}
	if validate == nil {
		return frame.Inbound{}, exception.ErrInvalidArgument
	}

	wake, cancel := s.mailbox.Subscribe()
	defer cancel()

	if err := s.SendRaw(ctx, out); err != nil {
		return frame.Inbound{}, err
	}

	deadline := s.clock.Timer(s.cfg.RequestTimeout)
	defer deadline.Stop()
	rescan := s.clock.Ticker(rawRescanInterval)
	defer rescan.Stop()

	for {
		if msg, ok := s.mailbox.Take(validate); ok {
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return frame.Inbound{}, ctx.Err()
		case <-deadline.C:
			return frame.Inbound{}, exception.ErrAwaitTimeout
		case <-wake:
		case <-rescan.C:
		}
	}
}
