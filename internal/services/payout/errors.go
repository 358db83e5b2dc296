package payout

import "errors"

var (
	ErrNotSubmittable = errors.New("payout is not submittable")
	ErrSubmitFailed   = errors.New("payout submission failed")
)
