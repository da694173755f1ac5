package gamedb

import "errors"

var (
	// ErrDisabled is returned when the game database is turned off by configuration.
	ErrDisabled = errors.New("game database disabled")
	// ErrUnavailable is returned for transient connectivity or overload failures.
	// Callers decide whether to retry; the gateway never retries on its own.
	ErrUnavailable = errors.New("game database unavailable")
	// ErrCircuitOpen is returned while the breaker is inside its reset cooldown.
	ErrCircuitOpen = errors.New("game database circuit open")
)
