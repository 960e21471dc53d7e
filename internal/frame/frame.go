package frame

import (
	"encoding/json"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// NS is the opaque correlation id echoed by the venue. The wire value may be
// a JSON string or a bare number; both normalize to a string.
type NS string

func (n *NS) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*n = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NS(s)
		return nil
	}
	*n = NS(b)
	return nil
}

// Outbound is a request frame sent to the venue.
type Outbound struct {
	Action  Action `json:"action"`
	NS      string `json:"ns,omitempty"`
	Token   string `json:"token,omitempty"`
	Version int    `json:"v,omitempty"`
	Message any    `json:"message,omitempty"`
}

// Encode serializes an outbound frame.
func (f Outbound) Encode() ([]byte, error) {
	payload, err := sonic.ConfigFastest.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "marshal outbound frame")
	}
	return payload, nil
}

// Ping builds the keepalive frame. The venue replies with a pong carrying
// server time.
func Ping() Outbound {
	return Outbound{
		Action:  ActionPing,
		Version: protocolVersion,
		Message: map[string]any{},
	}
}

// Inbound is a frame received from the venue.
type Inbound struct {
	Action  Action          `json:"action"`
	NS      NS              `json:"ns"`
	Message json.RawMessage `json:"message"`
}

// Key returns the correlation key: the echoed ns when present, the action
// name otherwise.
func (f Inbound) Key() string {
	if f.NS != "" {
		return string(f.NS)
	}
	return string(f.Action)
}

// Bind unmarshals the frame's message payload into out.
func (f Inbound) Bind(out any) error {
	if len(f.Message) == 0 {
		return errors.Wrap(exception.ErrMalformedFrame, "empty message payload")
	}
	if err := sonic.ConfigFastest.Unmarshal(f.Message, out); err != nil {
		return errors.Wrap(err, "unmarshal message payload")
	}
	return nil
}

// ErrorText extracts the venue's error description from an error frame.
// The message field may be a plain string or an arbitrary object.
func (f Inbound) ErrorText() string {
	if len(f.Message) == 0 {
		return "unknown venue error"
	}
	var s string
	if err := sonic.ConfigFastest.Unmarshal(f.Message, &s); err == nil {
		return s
	}
	return string(f.Message)
}

// Decode parses a raw frame. Non-object input and frames without an action
// are rejected so the receive loop can drop them.
func Decode(raw []byte) (Inbound, error) {
	i := 0
	for i < len(raw) && (raw[i] == ' ' || raw[i] == '\t' || raw[i] == '\n' || raw[i] == '\r') {
		i++
	}
	if i >= len(raw) || raw[i] != '{' {
		return Inbound{}, exception.ErrNonObjectFrame
	}

	var f Inbound
	if err := sonic.ConfigFastest.Unmarshal(raw[i:], &f); err != nil {
		return Inbound{}, errors.Wrap(exception.ErrMalformedFrame, err.Error())
	}
	if f.Action == "" {
		return Inbound{}, exception.ErrEmptyAction
	}
	return f, nil
}

// SubAction is one element of a multiplexed multipleAction batch.
type SubAction struct {
	Action  Action          `json:"action"`
	NS      NS              `json:"ns"`
	Message json.RawMessage `json:"message"`
}

// Key mirrors Inbound.Key for batch elements.
func (s SubAction) Key() string {
	if s.NS != "" {
		return string(s.NS)
	}
	return string(s.Action)
}

// Inbound lifts a sub-action into a standalone frame.
func (s SubAction) Inbound() Inbound {
	return Inbound{Action: s.Action, NS: s.NS, Message: s.Message}
}

// Batch is the payload of a multipleAction frame.
type Batch struct {
	Actions []SubAction `json:"actions"`
}
