package exception

import "github.com/yanun0323/errors"

var (
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	ErrNonObjectFrame = errors.New("protocol: frame is not a json object")
	ErrEmptyAction    = errors.New("protocol: empty action")
)
