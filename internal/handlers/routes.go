// Package handlers exposes the settlement engine over HTTP: the gateway
// webhook endpoint, buyer refund requests, read-only lookups, and the
// admin operations (manual release, refund decisions, payout retry).
package handlers

import (
	"paylock/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes wires all routes onto the app.
func SetupRoutes(app *fiber.App, wh *WebhookHandler, ph *PaymentHandler, rh *RefundHandler, poh *PayoutHandler) {
	app.Use(middleware.RequestID)

	api := app.Group("/api")

	// Unauthenticated: the gateway signs its own deliveries.
	api.Post("/webhook/stripe", wh.HandleStripe)

	authed := api.Group("", middleware.Auth)
	authed.Post("/payments", ph.CreatePayment)
	authed.Get("/payments/:id", ph.GetPayment)
	authed.Get("/payments/:id/payouts", ph.GetPaymentPayouts)
	authed.Post("/payments/:id/refunds", rh.RequestRefund)
	authed.Get("/refunds/:id", rh.GetRefund)

	admin := authed.Group("/admin", middleware.AdminOnly)
	admin.Post("/payments/:id/release", ph.ReleasePayment)
	admin.Post("/payouts/:id/retry", poh.RetryPayout)
	admin.Post("/refunds/:id/approve", rh.ApproveRefund)
	admin.Post("/refunds/:id/reject", rh.RejectRefund)
}
