package middleware

import (
	"fmt"
	"strings"
	"time"

	"assistant_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTAuth validates the platform-issued HS256 tokens and scopes the request.
// Two token shapes pass through here: member tokens (sub = user id) and the
// agent's tenant-scoped service token (no sub). Both must carry tenant_id.
func JWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == "OPTIONS" {
			return c.Next()
		}

		var tokenString string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing authorization"})
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unsupported signing method: %v", token.Header["alg"])
			}
			if secret == "" {
				return nil, fmt.Errorf("JWT secret not configured")
			}
			return []byte(secret), nil
		})
		if err != nil {
			logger.WithError(err).Warn("JWT validation failed")
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}
		if !token.Valid {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(401).JSON(fiber.Map{"error": "invalid claims"})
		}

		if exp, ok := claims["exp"].(float64); ok {
			if time.Now().Unix() > int64(exp) {
				return c.Status(401).JSON(fiber.Map{
					"error": "token expired",
					"code":  "TOKEN_EXPIRED",
				})
			}
		}

		tenantStr, ok := claims["tenant_id"].(string)
		if !ok {
			return c.Status(401).JSON(fiber.Map{"error": "missing tenant id in token"})
		}
		tenantID, err := uuid.Parse(tenantStr)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid tenant id format"})
		}
		c.Locals("tenant_id", tenantID)

		if sub, ok := claims["sub"].(string); ok && sub != "" {
			userID, err := uuid.Parse(sub)
			if err != nil {
				return c.Status(401).JSON(fiber.Map{"error": "invalid user id format"})
			}
			c.Locals("user_id", userID)
		}

		if role, ok := claims["role"].(string); ok {
			c.Locals("role", role)
		}
		c.Locals("claims", claims)

		return c.Next()
	}
}
