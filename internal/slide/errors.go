package slide

import "errors"

// Sentinel errors. Every error returned by this package and by the drivers
// wraps one of these, so callers can classify failures with errors.Is.
var (
	ErrOpen            = errors.New("cannot open slide")
	ErrUnknownDriver   = errors.New("unknown driver")
	ErrInvalidRegion   = errors.New("invalid region")
	ErrInvalidChannel  = errors.New("invalid channel index")
	ErrInvalidRange    = errors.New("invalid slice or frame range")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNameNotFound    = errors.New("name not found")
	ErrDecode          = errors.New("decode failed")
	ErrStaleHandle     = errors.New("slide is closed")
)
