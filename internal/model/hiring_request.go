package model

import "time"

// RequestStatus is the lifecycle state of a HiringRequest.  Only
// RequestActive has outgoing transitions.
type RequestStatus string

const (
	RequestActive    RequestStatus = "active"
	RequestClosed    RequestStatus = "closed"
	RequestCompleted RequestStatus = "completed"
	RequestExpired   RequestStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool { return s != RequestActive }

// HiringRequest is a client's advertised need for an artist in a
// category, city and date, with a budget range.
//
// Fields:
//  ID                – server-generated UUID.
//  ClientID          – user who created the request and may accept responses.
//  CategoryID        – artist category the request is broadcast to.
//  City              – where the event takes place.
//  EventDate         – when the event takes place; must be in the future at creation.
//  BudgetMin         – lower bound in the smallest currency unit.
//  BudgetMax         – upper bound; BudgetMin <= BudgetMax.
//  AdditionalDetails – free text from the client.
//  Status            – active, closed, completed or expired.
//  ResponseCount     – number of responses received; never decreases.
//  CreatedAt         – creation timestamp.
//  ExpiresAt         – CreatedAt plus the configured TTL.
type HiringRequest struct {
	ID                string        // hiring_requests.id
	ClientID          string        // hiring_requests.client_id
	CategoryID        string        // hiring_requests.category_id
	City              string        // hiring_requests.city
	EventDate         time.Time     // hiring_requests.event_date
	BudgetMin         int64         // hiring_requests.budget_min
	BudgetMax         int64         // hiring_requests.budget_max
	AdditionalDetails string        // hiring_requests.additional_details
	Status            RequestStatus // hiring_requests.status
	ResponseCount     int           // hiring_requests.response_count
	CreatedAt         time.Time     // hiring_requests.created_at
	ExpiresAt         time.Time     // hiring_requests.expires_at
}

// IsActive reports whether the request still accepts responses.
func (r HiringRequest) IsActive() bool { return r.Status == RequestActive }
