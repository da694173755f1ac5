package wallet

import "errors"

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidKind       = errors.New("invalid balance kind")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)
