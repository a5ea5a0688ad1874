package handler

import (
	"errors"
	"net/http"

	"github.com/iliyamo/hiring-negotiation/internal/apperr"
	"github.com/iliyamo/hiring-negotiation/pkg/protocol"
)

// internalError is what clients see for failures that carry no type.
var internalError = protocol.Error{Kind: apperr.KindInternal.String(), Code: "internal", Message: "internal error"}

// errorFrame converts err to the payload of an error frame.  ok is false for
// untyped errors, which callers should log.
func errorFrame(err error) (protocol.Error, bool) {
	e, ok := apperr.As(err)
	if !ok {
		return internalError, false
	}
	return protocol.Error{Kind: e.Kind.String(), Code: e.Code, Message: e.Message}, true
}

// httpStatus maps err onto the REST status code.
func httpStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindState, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindAuth:
		if errors.Is(err, apperr.ErrForbidden) {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
