package middleware

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// OptionalAuth extracts the member id from a bearer token when one is
// present. Anonymous requests pass through; voting falls back to the
// anonymous cookie id.
func OptionalAuth(c *fiber.Ctx) error {
	claims, ok := parseClaims(c.Get("Authorization"))
	if !ok {
		return c.Next()
	}
	if memberIDFloat, ok := claims["member_id"].(float64); ok {
		c.Locals("member_id", int(memberIDFloat))
		if admin, ok := claims["admin"].(bool); ok {
			c.Locals("member_admin", admin)
		}
	}
	return c.Next()
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(c *fiber.Ctx) error {
	claims, ok := parseClaims(c.Get("Authorization"))
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}
	memberIDFloat, ok := claims["member_id"].(float64)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing member ID in token"})
	}
	c.Locals("member_id", int(memberIDFloat))
	admin, _ := claims["admin"].(bool)
	c.Locals("member_admin", admin)
	return c.Next()
}

// RequireAdmin guards the admin surface.
func RequireAdmin(c *fiber.Ctx) error {
	claims, ok := parseClaims(c.Get("Authorization"))
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}
	memberIDFloat, ok := claims["member_id"].(float64)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing member ID in token"})
	}
	if admin, _ := claims["admin"].(bool); !admin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Admin access required"})
	}
	c.Locals("member_id", int(memberIDFloat))
	c.Locals("member_admin", true)
	return c.Next()
}

func parseClaims(header string) (jwt.MapClaims, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	rawToken := header[len("Bearer "):]
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	return claims, true
}
