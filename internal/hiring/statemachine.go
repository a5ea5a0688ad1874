// Package hiring holds the transition rules for hiring requests and their
// responses.  Every function here is pure: it takes already-loaded records,
// returns the records that must be persisted, and never performs I/O.
// Callers are responsible for serialising work on a single request and for
// persisting each returned batch atomically.
package hiring

import (
	"time"

	"github.com/iliyamo/hiring-negotiation/internal/apperr"
	"github.com/iliyamo/hiring-negotiation/internal/model"
)

// Outcome is the set of records changed by a transition that touches more
// than one record.
type Outcome struct {
	Request  model.HiringRequest
	Accepted *model.HiringResponse
	Rejected []model.HiringResponse
}

// ValidateResponse checks the shape of a candidate response independently
// of any request state.
func ValidateResponse(candidate model.HiringResponse) error {
	if !candidate.ResponseType.Valid() {
		return apperr.ErrInvalidResponseType
	}
	if candidate.ResponseType == model.ResponseCounterOffer {
		if candidate.ProposedPrice == nil || *candidate.ProposedPrice <= 0 {
			return apperr.ErrInvalidCounterOffer
		}
		return nil
	}
	if candidate.ProposedPrice != nil {
		return apperr.ErrUnexpectedPrice
	}
	return nil
}

// SubmitResponse decides whether candidate may be recorded against req,
// given the responses already stored for it.  On success it returns the
// response in its initial status: pending, or rejected when the artist
// declined, and the request with its response counter advanced.
func SubmitResponse(req model.HiringRequest, existing []model.HiringResponse, candidate model.HiringResponse) (model.HiringRequest, model.HiringResponse, error) {
	if !req.IsActive() {
		return req, candidate, apperr.ErrRequestNotActive
	}
	for _, r := range existing {
		if r.ArtistID != candidate.ArtistID {
			continue
		}
		// A decline is final for that artist even though it is stored as rejected.
		if !r.Status.Terminal() || r.ResponseType == model.ResponseReject {
			return req, candidate, apperr.ErrDuplicateResponse
		}
	}
	if err := ValidateResponse(candidate); err != nil {
		return req, candidate, err
	}

	candidate.RequestID = req.ID
	candidate.Status = model.ResponsePending
	if candidate.ResponseType == model.ResponseReject {
		candidate.Status = model.ResponseRejected
	}
	req.ResponseCount++
	return req, candidate, nil
}

// AcceptResponse completes req in favour of target.  Every other pending
// response in siblings is rejected in the same outcome.  siblings may
// include target; it is skipped.
func AcceptResponse(req model.HiringRequest, target model.HiringResponse, siblings []model.HiringResponse) (Outcome, error) {
	if !req.IsActive() {
		return Outcome{}, apperr.ErrRequestNotActive
	}
	if target.Status != model.ResponsePending {
		return Outcome{}, apperr.ErrResponseNotPending
	}

	target.Status = model.ResponseAccepted
	req.Status = model.RequestCompleted
	return Outcome{
		Request:  req,
		Accepted: &target,
		Rejected: rejectPending(siblings, target.ID),
	}, nil
}

// RejectResponse moves a pending response to rejected.  The request is not
// affected.
func RejectResponse(resp model.HiringResponse) (model.HiringResponse, error) {
	if resp.Status != model.ResponsePending {
		return resp, apperr.ErrResponseNotPending
	}
	resp.Status = model.ResponseRejected
	return resp, nil
}

// CloseRequest withdraws an active request.  Pending responses are rejected
// so none is left open against a closed request.
func CloseRequest(req model.HiringRequest, responses []model.HiringResponse) (Outcome, error) {
	if !req.IsActive() {
		return Outcome{}, apperr.ErrRequestNotActive
	}
	req.Status = model.RequestClosed
	return Outcome{Request: req, Rejected: rejectPending(responses, "")}, nil
}

// Expire marks req expired when it is still active and now has reached its
// expiry.  changed is false, with no error, in every other case.
func Expire(req model.HiringRequest, now time.Time) (model.HiringRequest, bool) {
	if !req.IsActive() || now.Before(req.ExpiresAt) {
		return req, false
	}
	req.Status = model.RequestExpired
	return req, true
}

func rejectPending(responses []model.HiringResponse, skipID string) []model.HiringResponse {
	var out []model.HiringResponse
	for _, r := range responses {
		if r.ID == skipID || r.Status != model.ResponsePending {
			continue
		}
		r.Status = model.ResponseRejected
		out = append(out, r)
	}
	return out
}
