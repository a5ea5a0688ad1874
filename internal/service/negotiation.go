// Package service orchestrates hiring negotiations: it loads state from the
// store, applies the rules in package hiring, persists the result and then
// broadcasts it.  Every mutation of one hiring request happens under that
// request's lock, including the broadcast, so frames about a request are
// published in the order the changes were made.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/hiring-negotiation/internal/apperr"
	"github.com/iliyamo/hiring-negotiation/internal/hiring"
	"github.com/iliyamo/hiring-negotiation/internal/model"
	q "github.com/iliyamo/hiring-negotiation/internal/queue"
	"github.com/iliyamo/hiring-negotiation/pkg/protocol"
)

// DefaultRequestTTL is how long a request stays open when not configured.
const DefaultRequestTTL = 24 * time.Hour

// Store persists requests and responses.  Lookups of missing records return
// apperr.ErrNotFound; Apply returns apperr.ErrConflict when a request in the
// changeset is no longer active.
type Store interface {
	LoadRequest(ctx context.Context, id string) (model.HiringRequest, error)
	SaveRequest(ctx context.Context, req model.HiringRequest) error
	LoadResponses(ctx context.Context, requestID string) ([]model.HiringResponse, error)
	SaveResponse(ctx context.Context, resp model.HiringResponse) error
	Apply(ctx context.Context, cs model.Changeset) error
	ListExpirable(ctx context.Context, now time.Time) ([]model.HiringRequest, error)
}

// Broadcaster pushes a message to every subscriber of a topic.
type Broadcaster interface {
	Publish(ctx context.Context, topic protocol.Topic, msg protocol.Message)
}

// Options configures a NegotiationService.  Zero values select defaults.
type Options struct {
	RequestTTL time.Duration
	Events     EventPublisher
	Now        func() time.Time
	NewID      func() string
}

// RequestDraft is the client input for a new request.
type RequestDraft struct {
	CategoryID        string
	City              string
	EventDate         time.Time
	BudgetMin         int64
	BudgetMax         int64
	AdditionalDetails string
}

// ResponseDraft is the artist input for a new response.
type ResponseDraft struct {
	ResponseType  model.ResponseType
	ProposedPrice *int64
	Message       string
}

// NegotiationService exposes one method per client action.
type NegotiationService struct {
	store  Store
	bus    Broadcaster
	events EventPublisher
	locks  *KeyedMutex
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
	log    zerolog.Logger
}

func NewNegotiationService(store Store, bus Broadcaster, log zerolog.Logger, opts Options) *NegotiationService {
	if store == nil || bus == nil {
		panic("nil dependency passed to NewNegotiationService")
	}
	s := &NegotiationService{
		store:  store,
		bus:    bus,
		events: opts.Events,
		locks:  NewKeyedMutex(),
		ttl:    opts.RequestTTL,
		now:    opts.Now,
		newID:  opts.NewID,
		log:    log.With().Str("component", "negotiation").Logger(),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultRequestTTL
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// CreateRequest validates draft, stores a new active request owned by
// clientID and announces it to the category, the client and the request
// topic.
func (s *NegotiationService) CreateRequest(ctx context.Context, clientID string, draft RequestDraft) (model.HiringRequest, error) {
	if clientID == "" {
		return model.HiringRequest{}, apperr.ErrUnauthenticated
	}
	now := s.now()
	if err := validateDraft(draft, now); err != nil {
		return model.HiringRequest{}, err
	}

	req := model.HiringRequest{
		ID:                s.newID(),
		ClientID:          clientID,
		CategoryID:        strings.TrimSpace(draft.CategoryID),
		City:              strings.TrimSpace(draft.City),
		EventDate:         draft.EventDate.UTC(),
		BudgetMin:         draft.BudgetMin,
		BudgetMax:         draft.BudgetMax,
		AdditionalDetails: draft.AdditionalDetails,
		Status:            model.RequestActive,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.ttl),
	}

	unlock := s.locks.Lock(req.ID)
	defer unlock()

	if err := s.store.SaveRequest(ctx, req); err != nil {
		return model.HiringRequest{}, fmt.Errorf("save request: %w", err)
	}
	s.log.Info().Str("request_id", req.ID).Str("client_id", clientID).Str("category_id", req.CategoryID).Msg("hiring request created")

	msg := protocol.RequestCreated{RequestSnapshot: RequestSnapshot(req)}
	s.bus.Publish(ctx, protocol.RequestTopic(req.ID), msg)
	s.bus.Publish(ctx, protocol.CategoryTopic(req.CategoryID), msg)
	s.bus.Publish(ctx, protocol.UserTopic(clientID), msg)
	return req, nil
}

func validateDraft(d RequestDraft, now time.Time) error {
	if strings.TrimSpace(d.CategoryID) == "" {
		return apperr.ErrMissingField.WithMessage("categoryId is required")
	}
	if strings.TrimSpace(d.City) == "" {
		return apperr.ErrMissingField.WithMessage("city is required")
	}
	if d.BudgetMin < 0 || d.BudgetMin > d.BudgetMax {
		return apperr.ErrInvalidBudget
	}
	if !d.EventDate.After(now) {
		return apperr.ErrInvalidEventDate
	}
	return nil
}

// SubmitResponse records artistID's reply to requestID.  State machine
// failures are returned unchanged and nothing is persisted.
func (s *NegotiationService) SubmitResponse(ctx context.Context, artistID, requestID string, draft ResponseDraft) (model.HiringResponse, error) {
	if artistID == "" {
		return model.HiringResponse{}, apperr.ErrUnauthenticated
	}
	unlock := s.locks.Lock(requestID)
	defer unlock()

	req, err := s.loadActive(ctx, requestID)
	if err != nil {
		return model.HiringResponse{}, err
	}
	if req.ClientID == artistID {
		return model.HiringResponse{}, apperr.ErrForbidden.WithMessage("clients cannot respond to their own request")
	}
	existing, err := s.store.LoadResponses(ctx, requestID)
	if err != nil {
		return model.HiringResponse{}, fmt.Errorf("load responses: %w", err)
	}

	candidate := model.HiringResponse{
		ID:            s.newID(),
		ArtistID:      artistID,
		ResponseType:  draft.ResponseType,
		ProposedPrice: draft.ProposedPrice,
		Message:       draft.Message,
		CreatedAt:     s.now(),
	}
	updated, resp, err := hiring.SubmitResponse(req, existing, candidate)
	if err != nil {
		return model.HiringResponse{}, err
	}
	if err := s.store.Apply(ctx, model.Changeset{Requests: []model.HiringRequest{updated}, Responses: []model.HiringResponse{resp}}); err != nil {
		return model.HiringResponse{}, fmt.Errorf("persist response: %w", err)
	}
	s.log.Info().Str("request_id", requestID).Str("response_id", resp.ID).Str("artist_id", artistID).
		Str("type", string(resp.ResponseType)).Msg("hiring response submitted")

	msg := protocol.ResponseSubmitted{ResponseSnapshot: ResponseSnapshot(resp)}
	s.bus.Publish(ctx, protocol.RequestTopic(requestID), msg)
	s.bus.Publish(ctx, protocol.UserTopic(req.ClientID), msg)
	return resp, nil
}

// AcceptResponse completes requestID in favour of responseID.  Only the
// request's client may accept.  The accepted response, the completed request
// and every auto-rejected sibling are persisted as one changeset; if that
// fails nothing is published.
// The hiring-completed event goes out after the request lock is released.
func (s *NegotiationService) AcceptResponse(ctx context.Context, clientID, requestID, responseID string) (hiring.Outcome, error) {
	out, err := s.accept(ctx, clientID, requestID, responseID)
	if err != nil {
		return hiring.Outcome{}, err
	}
	s.announceCompleted(ctx, out)
	return out, nil
}

func (s *NegotiationService) accept(ctx context.Context, clientID, requestID, responseID string) (hiring.Outcome, error) {
	unlock := s.locks.Lock(requestID)
	defer unlock()

	req, err := s.loadOwned(ctx, clientID, requestID)
	if err != nil {
		return hiring.Outcome{}, err
	}
	if req, err = s.expireIfDue(ctx, req); err != nil {
		return hiring.Outcome{}, err
	}
	responses, err := s.store.LoadResponses(ctx, requestID)
	if err != nil {
		return hiring.Outcome{}, fmt.Errorf("load responses: %w", err)
	}
	target, ok := findResponse(responses, responseID)
	if !ok {
		return hiring.Outcome{}, apperr.ErrNotFound.WithMessage("hiring response not found")
	}

	out, err := hiring.AcceptResponse(req, target, responses)
	if err != nil {
		return hiring.Outcome{}, err
	}
	cs := model.Changeset{
		Requests:  []model.HiringRequest{out.Request},
		Responses: append([]model.HiringResponse{*out.Accepted}, out.Rejected...),
	}
	if err := s.store.Apply(ctx, cs); err != nil {
		return hiring.Outcome{}, fmt.Errorf("persist acceptance: %w", err)
	}
	s.log.Info().Str("request_id", requestID).Str("response_id", responseID).
		Int("rejected", len(out.Rejected)).Msg("hiring response accepted")

	accepted := protocol.ResponseAccepted{RequestID: requestID, ResponseID: responseID}
	s.bus.Publish(ctx, protocol.RequestTopic(requestID), accepted)
	s.bus.Publish(ctx, protocol.UserTopic(out.Accepted.ArtistID), accepted)
	for _, r := range out.Rejected {
		s.bus.Publish(ctx, protocol.UserTopic(r.ArtistID), protocol.ResponseRejected{RequestID: requestID, ResponseID: r.ID})
	}
	return out, nil
}

// RejectResponse declines one pending response.  The request stays as it is.
func (s *NegotiationService) RejectResponse(ctx context.Context, clientID, requestID, responseID string) (model.HiringResponse, error) {
	unlock := s.locks.Lock(requestID)
	defer unlock()

	if _, err := s.loadOwned(ctx, clientID, requestID); err != nil {
		return model.HiringResponse{}, err
	}
	responses, err := s.store.LoadResponses(ctx, requestID)
	if err != nil {
		return model.HiringResponse{}, fmt.Errorf("load responses: %w", err)
	}
	target, ok := findResponse(responses, responseID)
	if !ok {
		return model.HiringResponse{}, apperr.ErrNotFound.WithMessage("hiring response not found")
	}
	rejected, err := hiring.RejectResponse(target)
	if err != nil {
		return model.HiringResponse{}, err
	}
	if err := s.store.SaveResponse(ctx, rejected); err != nil {
		return model.HiringResponse{}, fmt.Errorf("persist rejection: %w", err)
	}

	msg := protocol.ResponseRejected{RequestID: requestID, ResponseID: responseID}
	s.bus.Publish(ctx, protocol.RequestTopic(requestID), msg)
	s.bus.Publish(ctx, protocol.UserTopic(rejected.ArtistID), msg)
	return rejected, nil
}

// CloseRequest withdraws an active request and rejects its pending
// responses.
func (s *NegotiationService) CloseRequest(ctx context.Context, clientID, requestID string) (hiring.Outcome, error) {
	unlock := s.locks.Lock(requestID)
	defer unlock()

	req, err := s.loadOwned(ctx, clientID, requestID)
	if err != nil {
		return hiring.Outcome{}, err
	}
	responses, err := s.store.LoadResponses(ctx, requestID)
	if err != nil {
		return hiring.Outcome{}, fmt.Errorf("load responses: %w", err)
	}
	out, err := hiring.CloseRequest(req, responses)
	if err != nil {
		return hiring.Outcome{}, err
	}
	if err := s.store.Apply(ctx, model.Changeset{Requests: []model.HiringRequest{out.Request}, Responses: out.Rejected}); err != nil {
		return hiring.Outcome{}, fmt.Errorf("persist close: %w", err)
	}
	s.log.Info().Str("request_id", requestID).Msg("hiring request closed")

	closed := protocol.RequestClosed{RequestID: requestID}
	s.bus.Publish(ctx, protocol.RequestTopic(requestID), closed)
	s.bus.Publish(ctx, protocol.UserTopic(clientID), closed)
	for _, r := range out.Rejected {
		s.bus.Publish(ctx, protocol.UserTopic(r.ArtistID), protocol.ResponseRejected{RequestID: requestID, ResponseID: r.ID})
	}
	return out, nil
}

// Snapshot returns the current state of a request for clients catching up
// after a reconnect.
func (s *NegotiationService) Snapshot(ctx context.Context, requestID string) (model.HiringRequest, []model.HiringResponse, error) {
	req, err := s.store.LoadRequest(ctx, requestID)
	if err != nil {
		return model.HiringRequest{}, nil, err
	}
	responses, err := s.store.LoadResponses(ctx, requestID)
	if err != nil {
		return model.HiringRequest{}, nil, fmt.Errorf("load responses: %w", err)
	}
	return req, responses, nil
}

// ExpireStaleRequests expires every active request whose TTL has passed and
// returns how many it expired.  Each candidate is reloaded under its lock, so
// concurrent sweeps expire and announce a request exactly once.
func (s *NegotiationService) ExpireStaleRequests(ctx context.Context) (int, error) {
	candidates, err := s.store.ListExpirable(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list expirable: %w", err)
	}
	var (
		expired int
		errs    []error
	)
	for _, c := range candidates {
		changed, err := s.expireOne(ctx, c.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("request_id", c.ID).Msg("expire request")
			errs = append(errs, err)
			continue
		}
		if changed {
			expired++
		}
	}
	return expired, errors.Join(errs...)
}

func (s *NegotiationService) expireOne(ctx context.Context, requestID string) (bool, error) {
	unlock := s.locks.Lock(requestID)
	defer unlock()

	req, err := s.store.LoadRequest(ctx, requestID)
	if err != nil {
		return false, err
	}
	next, changed := hiring.Expire(req, s.now())
	if !changed {
		return false, nil
	}
	if err := s.persistExpiry(ctx, next); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// loadActive loads a request and, when its TTL has passed, expires it
// before reporting it as not active.  Caller holds the request lock.
func (s *NegotiationService) loadActive(ctx context.Context, requestID string) (model.HiringRequest, error) {
	req, err := s.store.LoadRequest(ctx, requestID)
	if err != nil {
		return model.HiringRequest{}, err
	}
	return s.expireIfDue(ctx, req)
}

// loadOwned loads a request and checks clientID owns it.  Caller holds the
// request lock.
func (s *NegotiationService) loadOwned(ctx context.Context, clientID, requestID string) (model.HiringRequest, error) {
	if clientID == "" {
		return model.HiringRequest{}, apperr.ErrUnauthenticated
	}
	req, err := s.store.LoadRequest(ctx, requestID)
	if err != nil {
		return model.HiringRequest{}, err
	}
	if req.ClientID != clientID {
		return model.HiringRequest{}, apperr.ErrForbidden
	}
	return req, nil
}

// expireIfDue returns ErrRequestNotActive after expiring a request whose TTL
// passed before the sweeper reached it.  Caller holds the request lock.
func (s *NegotiationService) expireIfDue(ctx context.Context, req model.HiringRequest) (model.HiringRequest, error) {
	next, changed := hiring.Expire(req, s.now())
	if !changed {
		return req, nil
	}
	if err := s.persistExpiry(ctx, next); err != nil && !errors.Is(err, apperr.ErrConflict) {
		return req, err
	}
	return next, apperr.ErrRequestNotActive
}

func (s *NegotiationService) persistExpiry(ctx context.Context, req model.HiringRequest) error {
	if err := s.store.Apply(ctx, model.Changeset{Requests: []model.HiringRequest{req}}); err != nil {
		return fmt.Errorf("persist expiry: %w", err)
	}
	s.log.Info().Str("request_id", req.ID).Msg("hiring request expired")
	msg := protocol.RequestExpired{RequestID: req.ID}
	s.bus.Publish(ctx, protocol.RequestTopic(req.ID), msg)
	s.bus.Publish(ctx, protocol.UserTopic(req.ClientID), msg)
	return nil
}

func (s *NegotiationService) announceCompleted(ctx context.Context, out hiring.Outcome) {
	if s.events == nil || out.Accepted == nil {
		return
	}
	ids := make([]string, 0, len(out.Rejected))
	for _, r := range out.Rejected {
		ids = append(ids, r.ID)
	}
	ev := q.HiringCompletedEvent{
		RequestID:     out.Request.ID,
		ResponseID:    out.Accepted.ID,
		ClientID:      out.Request.ClientID,
		ArtistID:      out.Accepted.ArtistID,
		CategoryID:    out.Request.CategoryID,
		City:          out.Request.City,
		EventDate:     out.Request.EventDate.Format(time.RFC3339),
		ResponseType:  string(out.Accepted.ResponseType),
		AgreedPrice:   out.Accepted.ProposedPrice,
		RejectedCount: len(ids),
		RejectedIDs:   ids,
		CompletedAt:   s.now().Format(time.RFC3339),
	}
	if err := s.events.PublishHiringCompleted(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("request_id", ev.RequestID).Msg("publish hiring completed event")
	}
}

func findResponse(responses []model.HiringResponse, id string) (model.HiringResponse, bool) {
	for _, r := range responses {
		if r.ID == id {
			return r, true
		}
	}
	return model.HiringResponse{}, false
}
