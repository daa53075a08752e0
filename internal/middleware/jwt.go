package middleware

import (
	"net/http"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/utils"
	"github.com/labstack/echo/v4"
)

// JWTAuth validates a Bearer access token and stores the caller's id and
// role in the context under "user_id" (uint64) and "role" (string).
// Requests without a valid token are rejected with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set("user_id", claims.UserID)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}

// OptionalJWT is JWTAuth for endpoints that also serve guests, such as
// checkout.  A missing token passes through; a present but invalid token
// is still rejected so a stale session is not silently downgraded.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	auth := JWTAuth(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withAuth := auth(next)
		return func(c echo.Context) error {
			if _, ok := bearer(c); !ok {
				return next(c)
			}
			return withAuth(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	h := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return raw, raw != ""
}
