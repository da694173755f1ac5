package payment

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyConcluded = errors.New("order already concluded")
	ErrVerification     = errors.New("webhook verification failed")
)
