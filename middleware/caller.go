// middleware/caller.go
package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"tournament-escrow-system/utils"
)

// CallerContextMiddleware extracts the verified caller wallet address set by
// the Gateway after signature verification. Mutating routes are registered
// behind it; a missing or malformed address is rejected before any handler
// runs.
func CallerContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get("X-Caller-Address")
		if raw == "" {
			log.Printf("[CALLER_CTX] X-Caller-Address missing on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-Caller-Address — request must come through gateway with a verified wallet",
				"code":  "unauthorized",
			})
		}

		caller, err := utils.NormalizeAddress(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "malformed X-Caller-Address",
				"code":  "validation",
			})
		}

		c.Locals("caller_address", caller)
		return c.Next()
	}
}
