package model

import "time"

// ResponseType is the kind of reply an artist gives to a request.
type ResponseType string

const (
	ResponseAccept       ResponseType = "accept"
	ResponseCounterOffer ResponseType = "counteroffer"
	ResponseReject       ResponseType = "reject"
)

// Valid reports whether t is one of the known response types.
func (t ResponseType) Valid() bool {
	switch t {
	case ResponseAccept, ResponseCounterOffer, ResponseReject:
		return true
	}
	return false
}

// ResponseStatus is the lifecycle state of a HiringResponse.
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "pending"
	ResponseAccepted ResponseStatus = "accepted"
	ResponseRejected ResponseStatus = "rejected"
)

// Terminal reports whether the status is final.
func (s ResponseStatus) Terminal() bool { return s != ResponsePending }

// HiringResponse is an artist's reply to a HiringRequest.  It is owned
// by the artist but only ever mutated by the negotiation service.
//
// Fields:
//  ID            – server-generated UUID.
//  RequestID     – the HiringRequest answered; must be active at creation.
//  ArtistID      – artist who replied.
//  ResponseType  – accept, counteroffer or reject.
//  ProposedPrice – required for counter-offers, nil otherwise.
//  Message       – free text from the artist.
//  Status        – pending, accepted or rejected.
//  CreatedAt     – creation timestamp.
type HiringResponse struct {
	ID            string         // hiring_responses.id
	RequestID     string         // hiring_responses.request_id
	ArtistID      string         // hiring_responses.artist_id
	ResponseType  ResponseType   // hiring_responses.response_type
	ProposedPrice *int64         // hiring_responses.proposed_price (nullable)
	Message       string         // hiring_responses.message
	Status        ResponseStatus // hiring_responses.status
	CreatedAt     time.Time      // hiring_responses.created_at
}
