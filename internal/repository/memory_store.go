package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/hiring-negotiation/internal/apperr"
	"github.com/iliyamo/hiring-negotiation/internal/model"
)

// MemoryStore keeps requests and responses in process memory.  It follows
// the same contract as HiringRepo, including the active guard in Apply, and
// is used by tests and by STORAGE_DRIVER=memory.
type MemoryStore struct {
	mu        sync.RWMutex
	requests  map[string]model.HiringRequest
	responses map[string]model.HiringResponse
	byRequest map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:  make(map[string]model.HiringRequest),
		responses: make(map[string]model.HiringResponse),
		byRequest: make(map[string][]string),
	}
}

func (m *MemoryStore) LoadRequest(_ context.Context, id string) (model.HiringRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return model.HiringRequest{}, apperr.ErrNotFound
	}
	return req, nil
}

func (m *MemoryStore) SaveRequest(_ context.Context, req model.HiringRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; ok {
		return apperr.ErrConflict.WithMessage(fmt.Sprintf("hiring request %s already exists", req.ID))
	}
	m.requests[req.ID] = req
	return nil
}

// LoadResponses returns every response to requestID, oldest first.
func (m *MemoryStore) LoadResponses(_ context.Context, requestID string) ([]model.HiringResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byRequest[requestID]
	out := make([]model.HiringResponse, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.responses[id])
	}
	return out, nil
}

func (m *MemoryStore) SaveResponse(_ context.Context, resp model.HiringResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putResponse(resp)
	return nil
}

// putResponse stores resp.  Caller holds m.mu.
func (m *MemoryStore) putResponse(resp model.HiringResponse) {
	if _, ok := m.responses[resp.ID]; !ok {
		m.byRequest[resp.RequestID] = append(m.byRequest[resp.RequestID], resp.ID)
	}
	m.responses[resp.ID] = resp
}

// Apply validates every guard before writing anything, so a conflict leaves
// the store untouched.
func (m *MemoryStore) Apply(_ context.Context, cs model.Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range cs.Requests {
		cur, ok := m.requests[req.ID]
		if !ok {
			return apperr.ErrNotFound
		}
		if cur.Status != model.RequestActive {
			return apperr.ErrConflict.WithMessage(fmt.Sprintf("hiring request %s is no longer active", req.ID))
		}
	}
	for _, req := range cs.Requests {
		cur := m.requests[req.ID]
		cur.Status = req.Status
		cur.ResponseCount = req.ResponseCount
		m.requests[req.ID] = cur
	}
	for _, resp := range cs.Responses {
		m.putResponse(resp)
	}
	return nil
}

func (m *MemoryStore) ListExpirable(_ context.Context, now time.Time) ([]model.HiringRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.HiringRequest
	for _, req := range m.requests {
		if req.Status == model.RequestActive && !now.Before(req.ExpiresAt) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > expirableBatch {
		out = out[:expirableBatch]
	}
	return out, nil
}
