package protocol

import "time"

// RequestSnapshot is the wire form of a hiring request.
type RequestSnapshot struct {
	ID                string    `json:"id"`
	ClientID          string    `json:"clientId"`
	CategoryID        string    `json:"categoryId"`
	City              string    `json:"city"`
	EventDate         time.Time `json:"eventDate"`
	BudgetMin         int64     `json:"budgetMin"`
	BudgetMax         int64     `json:"budgetMax"`
	AdditionalDetails string    `json:"additionalDetails,omitempty"`
	Status            string    `json:"status"`
	ResponseCount     int       `json:"responseCount"`
	CreatedAt         time.Time `json:"createdAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// ResponseSnapshot is the wire form of a hiring response.
type ResponseSnapshot struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"requestId"`
	ArtistID      string    `json:"artistId"`
	ResponseType  string    `json:"responseType"`
	ProposedPrice *int64    `json:"proposedPrice,omitempty"`
	Message       string    `json:"message,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}
