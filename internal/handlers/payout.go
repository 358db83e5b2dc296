package handlers

import (
	"paylock/internal/services/payout"
	"paylock/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type PayoutHandler struct {
	service payout.Service
}

func NewPayoutHandler(service payout.Service) *PayoutHandler {
	return &PayoutHandler{service: service}
}

// RetryPayout resubmits a failed payout. The payout id doubles as the
// gateway idempotency key, so a retry can never duplicate the transfer.
func (h *PayoutHandler) RetryPayout(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid payout ID")
	}

	if err := h.service.Submit(c.Context(), id); err != nil {
		if err == payout.ErrNotSubmittable {
			return response.Error(c, fiber.StatusConflict, err.Error())
		}
		return response.Domain(c, err)
	}
	return response.Success(c, "Payout submitted", nil)
}
