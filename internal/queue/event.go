// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// HiringCompletedQueue is the durable queue completed hirings are published to.
const HiringCompletedQueue = "hiring.completed"

// HiringCompletedEvent is published when a client accepts an artist's
// response.  It carries enough for downstream consumers (contracts,
// notifications, analytics) to act without reading the primary database.
type HiringCompletedEvent struct {
	RequestID     string   `json:"request_id"`
	ResponseID    string   `json:"response_id"`
	ClientID      string   `json:"client_id"`
	ArtistID      string   `json:"artist_id"`
	CategoryID    string   `json:"category_id"`
	City          string   `json:"city"`
	EventDate     string   `json:"event_date"`
	ResponseType  string   `json:"response_type"`
	AgreedPrice   *int64   `json:"agreed_price,omitempty"`
	RejectedCount int      `json:"rejected_count"`
	RejectedIDs   []string `json:"rejected_response_ids,omitempty"`
	CompletedAt   string   `json:"completed_at"`
}
