package payment

import "errors"

var (
	ErrInvalidAmount    = errors.New("invalid payment amount")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrNotReleasable    = errors.New("payment is not in a releasable state")
	ErrTerminalState    = errors.New("payment is in a terminal state")
	ErrMissingIntentID  = errors.New("payment intent id is required")
	ErrHoldAlreadySet   = errors.New("hold window already stamped")
	ErrNoPayoutsCreated = errors.New("release produced no payouts")
)
