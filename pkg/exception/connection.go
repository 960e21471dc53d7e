package exception

import "github.com/yanun0323/errors"

var (
	ErrNotConnected     = errors.New("connection: not connected")
	ErrHandshakeFailed  = errors.New("connection: handshake failed")
	ErrConnectionClosed = errors.New("connection: closed")
	ErrReconnectFailed  = errors.New("connection: reconnect failed")
)
