package model

import "errors"

var (
	// ErrInvalidParameter is returned when a basis-point setting is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrUnauthorized is returned when the caller may not change settings.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSlippageExceeded is returned when a conversion yields less than its minimum output.
	ErrSlippageExceeded = errors.New("slippage exceeded")
	// ErrExternalCallFailed wraps failures of the vault, pool or token contracts.
	ErrExternalCallFailed = errors.New("external call failed")
)
