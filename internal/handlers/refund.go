package handlers

import (
	"paylock/internal/models"
	"paylock/internal/services/refund"
	"paylock/internal/utils/response"
	"paylock/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type RefundHandler struct {
	service refund.Service
}

func NewRefundHandler(service refund.Service) *RefundHandler {
	return &RefundHandler{service: service}
}

// RequestRefund files a buyer refund ask against a payment.
func (h *RefundHandler) RequestRefund(c *fiber.Ctx) error {
	paymentID, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid payment ID")
	}

	var input struct {
		Amount int64  `json:"amount" validate:"required,gt=0"`
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.Domain(c, err)
	}

	claims := c.Locals("claims").(*models.UserClaims)
	req, err := h.service.Request(c.Context(), refund.RequestParams{
		PaymentID:   paymentID,
		RequesterID: claims.UserID,
		Amount:      input.Amount,
		Reason:      input.Reason,
	})
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Refund requested", req)
}

func (h *RefundHandler) GetRefund(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid refund ID")
	}
	req, err := h.service.Get(c.Context(), id)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Refund retrieved", req)
}

func (h *RefundHandler) ApproveRefund(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid refund ID")
	}
	claims := c.Locals("claims").(*models.UserClaims)

	req, err := h.service.Approve(c.Context(), id, claims.UserID)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Refund approved", req)
}

func (h *RefundHandler) RejectRefund(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid refund ID")
	}
	claims := c.Locals("claims").(*models.UserClaims)

	req, err := h.service.Reject(c.Context(), id, claims.UserID)
	if err != nil {
		return response.Domain(c, err)
	}
	return response.Success(c, "Refund rejected", req)
}
