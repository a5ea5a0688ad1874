package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hiring-negotiation/internal/apperr"
	"github.com/iliyamo/hiring-negotiation/internal/middleware"
	"github.com/iliyamo/hiring-negotiation/internal/model"
	"github.com/iliyamo/hiring-negotiation/internal/realtime"
	"github.com/iliyamo/hiring-negotiation/internal/utils"
)

type stubSnapshots struct {
	req       model.HiringRequest
	responses []model.HiringResponse
	err       error
}

func (s stubSnapshots) Snapshot(context.Context, string) (model.HiringRequest, []model.HiringResponse, error) {
	return s.req, s.responses, s.err
}

func getRequest(t *testing.T, snap Snapshotter, userID string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h := &RequestsHandler{Service: snap, Log: zerolog.Nop()}
	e.GET("/v1/requests/:id", h.Get, middleware.JWTAuth(testSecret))

	tok, err := utils.NewAccessToken(testSecret, userID, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/requests/r1", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequestsHandlerFiltersResponses(t *testing.T) {
	snap := stubSnapshots{
		req: model.HiringRequest{ID: "r1", ClientID: "client-1", City: "Bogotá", Status: model.RequestActive},
		responses: []model.HiringResponse{
			{ID: "x1", RequestID: "r1", ArtistID: "artist-1", Status: model.ResponsePending},
			{ID: "x2", RequestID: "r1", ArtistID: "artist-2", Status: model.ResponsePending},
		},
	}

	cases := []struct {
		user string
		want []string
	}{
		{"client-1", []string{"x1", "x2"}},
		{"artist-2", []string{"x2"}},
		{"stranger", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.user, func(t *testing.T) {
			rec := getRequest(t, snap, tc.user)
			require.Equal(t, http.StatusOK, rec.Code)

			var view RequestView
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
			assert.Equal(t, "r1", view.Request.ID)
			assert.Equal(t, "active", view.Request.Status)
			got := []string{}
			for _, r := range view.Responses {
				got = append(got, r.ID)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRequestsHandlerErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.ErrForbidden, http.StatusForbidden},
		{apperr.ErrConflict, http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := getRequest(t, stubSnapshots{err: tc.err}, "client-1")
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, httpStatus(apperr.ErrInvalidBudget))
	assert.Equal(t, http.StatusConflict, httpStatus(apperr.ErrRequestNotActive))
	assert.Equal(t, http.StatusUnauthorized, httpStatus(apperr.ErrInvalidToken))
	assert.Equal(t, http.StatusForbidden, httpStatus(apperr.ErrForbidden.WithMessage("nope")))
}

func TestHealthReportsConnections(t *testing.T) {
	reg := realtime.NewRegistry()
	e := echo.New()
	e.GET("/healthz", Health(reg))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","connections":0}`, rec.Body.String())
}

func TestDevToken(t *testing.T) {
	e := echo.New()
	a := &AuthHandler{Secret: testSecret, TokenTTL: time.Minute}
	e.POST("/v1/dev/token", a.DevToken)

	req := httptest.NewRequest(http.MethodPost, "/v1/dev/token", strings.NewReader(`{"userId":"artist-9"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body tokenPart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	sub, err := JWTAuthenticator{Secret: testSecret}.Authenticate(context.Background(), body.Token)
	require.NoError(t, err)
	assert.Equal(t, "artist-9", sub)

	req = httptest.NewRequest(http.MethodPost, "/v1/dev/token", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
