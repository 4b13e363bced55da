package player

import "errors"

// Sentinel errors for control-surface misuse. Callers can distinguish them
// with errors.Is; engine failures (open, seek) are wrapped and carried
// through unchanged.
var (
	ErrInvalidParameter = errors.New("player: invalid parameter")
	ErrInvalidState     = errors.New("player: invalid state")
)
