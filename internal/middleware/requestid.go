package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader is echoed on every response and accepted from trusted
// upstream proxies.
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with a correlation id so a settlement
// operation can be traced across logs and gateway dashboards.
func RequestID(c *fiber.Ctx) error {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals("requestID", id)
	c.Set(RequestIDHeader, id)
	return c.Next()
}
