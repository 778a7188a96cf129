package api

import (
	"strings"

	"github.com/example/realtime-chat/modules/roster"
	"github.com/gofiber/fiber/v2"
)

// UserContextKey is the Fiber locals key holding the validated claims.
const UserContextKey = "user"

// AuthMiddleware validates the Bearer token on protected routes and
// stores the resulting claims in the request locals.
func AuthMiddleware(rosterAdapter roster.RosterPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Detail: "missing authorization header",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Detail: "invalid authorization header format",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := rosterAdapter.ValidateToken(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Detail: "invalid or expired token",
			})
		}

		c.Locals(UserContextKey, claims)
		return c.Next()
	}
}
