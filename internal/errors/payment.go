package errors

var (
	ErrPaymentNotFound = &DomainError{
		Code:    CodeNotFound,
		Message: "payment not found",
	}
	ErrPayoutNotFound = &DomainError{
		Code:    CodeNotFound,
		Message: "payout not found",
	}
	ErrRefundNotFound = &DomainError{
		Code:    CodeNotFound,
		Message: "refund request not found",
	}
	ErrHoldNotMatured = &DomainError{
		Code:    CodeStateConflict,
		Message: "payment hold has not matured",
	}
	ErrRefundExceedsBalance = &DomainError{
		Code:    CodeValidation,
		Message: "refund amount exceeds remaining refundable balance",
	}
	ErrDuplicateEvent = &DomainError{
		Code:    CodeDuplicateEvent,
		Message: "event already processed",
	}
	ErrDeadlockExhausted = &DomainError{
		Code:    CodeDeadlockExhausted,
		Message: "transaction retries exhausted",
	}
)
