package handlers

import (
	"errors"
	"log"

	errs "paylock/internal/errors"
	"paylock/internal/services/webhook"

	"github.com/gofiber/fiber/v2"
)

type WebhookHandler struct {
	service *webhook.Service
}

func NewWebhookHandler(service *webhook.Service) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandleStripe ingests one signed gateway event. A bad signature is a
// client error so the sender does not treat the delivery as done; a
// dispatch failure is a server error so the sender redelivers; everything
// else, duplicates included, acknowledges fast with 200.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	payload := c.Body()
	sig := c.Get("Stripe-Signature")

	err := h.service.Ingest(c.Context(), payload, sig)
	if err == nil {
		return c.SendStatus(fiber.StatusOK)
	}

	var dErr *errs.DomainError
	if errors.As(err, &dErr) && dErr.Code == errs.CodeValidation {
		log.Printf("webhook rejected: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": dErr.Message})
	}

	log.Printf("webhook processing failed: %v", err)
	return c.SendStatus(fiber.StatusInternalServerError)
}
