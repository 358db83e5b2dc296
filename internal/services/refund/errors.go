package refund

import "errors"

var (
	ErrInvalidAmount   = errors.New("invalid refund amount")
	ErrNotPending      = errors.New("refund request is not pending")
	ErrPaymentNotLive  = errors.New("payment is not refundable in its current state")
	ErrAlreadyDecided  = errors.New("refund request already decided")
	ErrGatewayDeclined = errors.New("refund gateway declined the request")
)
