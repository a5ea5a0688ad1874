package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/hiring-negotiation/internal/utils" // token verification shared with the websocket gateway
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the token's subject in the request context under "user_id".  The
// provided secret must match the one used when issuing tokens.  Handlers
// behind it read the caller with UserID(c).
func JWTAuth(secret string) echo.MiddlewareFunc {
	// The outer function returns a middleware function.  Echo executes this
	// once when registering the middleware.
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		// The returned handler is invoked for each incoming HTTP request.
		return func(c echo.Context) error {
			// Read the Authorization header.  A valid header starts with
			// "Bearer " followed by the JWT; anything else is a 401.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			// Remove the "Bearer " prefix to obtain the raw token string.
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Verify signature, expiry and subject.  The websocket auth frame
			// goes through the same parser.
			sub, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			// Store the subject (user ID) for downstream handlers and the
			// rate limiter's identity lookup.
			c.Set(userIDKey, sub)
			// Call the next handler in the chain and return its result.
			return next(c)
		}
	}
}
