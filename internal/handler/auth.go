package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hiring-negotiation/internal/utils"
)

// AuthHandler issues access tokens in development.  User accounts live in
// another service; in dev this stands in for it so clients can connect.
type AuthHandler struct {
	Secret   string
	TokenTTL time.Duration
}

type devTokenReq struct {
	UserID string `json:"userId"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// DevToken signs a token for the userId in the body.
func (h *AuthHandler) DevToken(c echo.Context) error {
	var req devTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId required"})
	}
	tok, err := utils.NewAccessToken(h.Secret, req.UserID, h.TokenTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token issue failed"})
	}
	return c.JSON(http.StatusOK, tokenPart{Token: tok.Token, Expires: tok.Exp})
}
