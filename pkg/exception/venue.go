package exception

import "github.com/yanun0323/errors"

// Application-level failures reported by the venue itself.
var (
	ErrVenueRejected    = errors.New("venue: request rejected")
	ErrAssetUnavailable = errors.New("venue: asset not available for trading")
	ErrTimeframeInvalid = errors.New("venue: timeframe not supported for asset")
	ErrAssetUnknown     = errors.New("venue: unknown asset")
)
