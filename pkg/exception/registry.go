package exception

import "github.com/yanun0323/errors"

var (
	ErrKeyAlreadyAwaited = errors.New("registry: key already has an unresolved slot")
	ErrAwaitTimeout      = errors.New("registry: await timed out")
)
