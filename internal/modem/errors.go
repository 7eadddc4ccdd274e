package modem

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTimeout         = errors.New("response timeout")
	ErrProtocol        = errors.New("device reported error")
	ErrTooLarge        = errors.New("payload too large")
	ErrMalformedReply  = errors.New("unrecognized reply")
	ErrUnsupported     = errors.New("not supported by this module")
	ErrNotAttached     = errors.New("module not attached")
)
