package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/hiring-negotiation/internal/middleware"
	"github.com/iliyamo/hiring-negotiation/internal/model"
	"github.com/iliyamo/hiring-negotiation/internal/service"
	"github.com/iliyamo/hiring-negotiation/pkg/protocol"
)

// Snapshotter loads the current state of a request.
type Snapshotter interface {
	Snapshot(ctx context.Context, requestID string) (model.HiringRequest, []model.HiringResponse, error)
}

// RequestsHandler serves the pull catch-up endpoint clients call after a
// reconnect, since frames broadcast while they were offline are not replayed.
type RequestsHandler struct {
	Service Snapshotter
	Log     zerolog.Logger
}

// RequestView is the body of GET /v1/requests/:id.
type RequestView struct {
	Request   protocol.RequestSnapshot    `json:"request"`
	Responses []protocol.ResponseSnapshot `json:"responses"`
}

// Get returns the request and the responses the caller may see: every
// response for the request's client, only their own for anyone else.
func (h *RequestsHandler) Get(c echo.Context) error {
	userID := middleware.UserID(c)
	req, responses, err := h.Service.Snapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		status := httpStatus(err)
		if status == http.StatusInternalServerError {
			h.Log.Error().Err(err).Str("request_id", c.Param("id")).Msg("snapshot failed")
			return c.JSON(status, echo.Map{"error": "internal error"})
		}
		return c.JSON(status, echo.Map{"error": err.Error()})
	}

	view := RequestView{Request: service.RequestSnapshot(req), Responses: []protocol.ResponseSnapshot{}}
	for _, r := range responses {
		if req.ClientID == userID || r.ArtistID == userID {
			view.Responses = append(view.Responses, service.ResponseSnapshot(r))
		}
	}
	return c.JSON(http.StatusOK, view)
}
