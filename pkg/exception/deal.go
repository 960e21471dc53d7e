package exception

import "github.com/yanun0323/errors"

var (
	ErrDealNotConfirmed = errors.New("deal: no confirmation received")
	ErrDealTimeout      = errors.New("deal: timed out waiting for result")
	ErrDealRejected     = errors.New("deal: rejected by venue")
)
