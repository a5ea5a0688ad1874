package service

import (
	"github.com/iliyamo/hiring-negotiation/internal/model"
	"github.com/iliyamo/hiring-negotiation/pkg/protocol"
)

// RequestSnapshot converts a request to its wire form.
func RequestSnapshot(r model.HiringRequest) protocol.RequestSnapshot {
	return protocol.RequestSnapshot{
		ID:                r.ID,
		ClientID:          r.ClientID,
		CategoryID:        r.CategoryID,
		City:              r.City,
		EventDate:         r.EventDate,
		BudgetMin:         r.BudgetMin,
		BudgetMax:         r.BudgetMax,
		AdditionalDetails: r.AdditionalDetails,
		Status:            string(r.Status),
		ResponseCount:     r.ResponseCount,
		CreatedAt:         r.CreatedAt,
		ExpiresAt:         r.ExpiresAt,
	}
}

// ResponseSnapshot converts a response to its wire form.
func ResponseSnapshot(r model.HiringResponse) protocol.ResponseSnapshot {
	return protocol.ResponseSnapshot{
		ID:            r.ID,
		RequestID:     r.RequestID,
		ArtistID:      r.ArtistID,
		ResponseType:  string(r.ResponseType),
		ProposedPrice: r.ProposedPrice,
		Message:       r.Message,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
	}
}
