package middleware

import "github.com/labstack/echo/v4"

const userIDKey = "user_id"

// UserID returns the subject stored by JWTAuth, or "" for anonymous
// requests.
func UserID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok {
		return s
	}
	return ""
}

// rateIdentity is UserID with a stable placeholder for anonymous callers.
func rateIdentity(c echo.Context) string {
	if s := UserID(c); s != "" {
		return s
	}
	return "anon"
}
