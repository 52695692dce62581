package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/icupa/giomessaging/shared"
)

// JWTVerifier is the slice of the JWT service the guard needs.
type JWTVerifier interface {
	ExtractTokenFromHeader(authHeader string) (string, error)
	VerifyJWTToken(token string) (string, error)
}

// RequireAdmin rejects requests without a valid admin bearer token and puts
// the admin id into locals.
func RequireAdmin(jwt JWTVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := jwt.ExtractTokenFromHeader(c.Get("Authorization"))
		if err != nil {
			return shared.ResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", err.Error())
		}

		adminID, err := jwt.VerifyJWTToken(token)
		if err != nil || adminID == "" {
			return shared.ResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "Invalid JWT token")
		}

		c.Locals(shared.AdminID, adminID)
		return c.Next()
	}
}
