package handlers

import (
	"strconv"

	"paylock/internal/services/payment"
	"paylock/internal/services/payout"
	"paylock/internal/utils/response"
	"paylock/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	payments payment.Service
	payouts  payout.Service
}

func NewPaymentHandler(payments payment.Service, payouts payout.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments, payouts: payouts}
}

// CreatePayment records a capture attempt on behalf of the checkout
// collaborator.
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var params payment.CreateParams
	if err := c.BodyParser(&params); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if err := validation.Struct(params); err != nil {
		return response.Domain(c, err)
	}

	p, err := h.payments.Create(c.Context(), params)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Payment recorded", p)
}

func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid payment ID")
	}
	p, err := h.payments.Get(c.Context(), id)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Payment retrieved", p)
}

func (h *PaymentHandler) GetPaymentPayouts(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid payment ID")
	}
	payouts, err := h.payouts.ListByPayment(c.Context(), id)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Payouts retrieved", payouts)
}

// ReleasePayment is the admin manual release: same transition as the
// sweep, bypassing only the hold-maturity time guard. Racing against a
// sweep is safe; the loser gets an "already released" success.
func (h *PaymentHandler) ReleasePayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid payment ID")
	}

	res, err := h.payments.Release(c.Context(), id, payment.ReleaseOptions{Manual: true})
	if err != nil {
		return response.Domain(c, err)
	}
	if res.AlreadyReleased {
		return response.Success(c, "Payment already released", res.Payment)
	}

	if err := h.payouts.SubmitForPayment(c.Context(), id); err != nil {
		// Release committed; stranded payouts are recovered by the
		// sweep's pending scan.
		return response.Success(c, "Payment released, payout submission pending retry", res.Payment)
	}
	return response.Success(c, "Payment released", res.Payment)
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
