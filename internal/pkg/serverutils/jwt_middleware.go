// FILE: internal/pkg/serverutils/jwt_middleware.go
package serverutils

import (
	"github.com/gofiber/fiber/v2"
)

// NewJwtMiddleware protects REST routes. The authenticated user id is stored in
// ctx.Locals("user_id") as a string.
func NewJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get(fiber.HeaderAuthorization)
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return NewUnauthorized("Missing token")
		}

		userID, err := ParseIdentity(authHeader[7:], secret)
		if err != nil {
			return NewUnauthorized("Invalid token")
		}

		ctx.Locals("user_id", userID.String())
		return ctx.Next()
	}
}
