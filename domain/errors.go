package domain

import "errors"

// Sentinel error kinds. Adapters and services wrap one of these with
// fmt.Errorf("...: %w", sentinel) so callers can classify a failure with
// errors.Is regardless of which adapter produced it (spec error table,
// SPEC_FULL.md §10.3).
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidColor       = errors.New("invalid color id")
	ErrValidationFailed   = errors.New("validation failed")
	ErrInsufficientCredit = errors.New("insufficient credits")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrCache              = errors.New("cache error")
	ErrDatabase           = errors.New("database error")
	ErrCodec              = errors.New("codec error")
	ErrCodecTimeout       = errors.New("codec timeout")
	ErrWebSocket          = errors.New("websocket error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrEmptyBatch         = errors.New("empty batch")
)

// InsufficientCreditsError carries the structured detail the error table
// requires for a 403 response (spec.md §7).
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return "insufficient credits"
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredit
}
