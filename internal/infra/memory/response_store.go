package memory

import (
	"context"
	"sync"
	"time"

	"survey-flow-service/internal/domain"
)

// ResponseStore is an in-memory keyed response state store with TTL.
// Entries expire ttl after their last Save; a zero ttl keeps them forever.
type ResponseStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu        sync.RWMutex
	responses map[string]storedResponse
}

type storedResponse struct {
	response  domain.Response
	expiresAt time.Time
}

func NewResponseStore(ttl time.Duration) *ResponseStore {
	return &ResponseStore{
		ttl:       ttl,
		clock:     time.Now,
		responses: make(map[string]storedResponse),
	}
}

func (s *ResponseStore) Load(_ context.Context, responseID string) (domain.Response, error) {
	s.mu.RLock()
	entry, ok := s.responses[responseID]
	s.mu.RUnlock()
	if !ok {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	if s.ttl > 0 && !entry.expiresAt.After(s.clock()) {
		_ = s.Delete(context.Background(), responseID)
		return domain.Response{}, domain.ErrResponseNotFound
	}
	return entry.response.Clone(), nil
}

func (s *ResponseStore) Save(_ context.Context, response domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[response.ID] = storedResponse{
		response:  response.Clone(),
		expiresAt: s.clock().Add(s.ttl),
	}
	return nil
}

func (s *ResponseStore) Delete(_ context.Context, responseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.responses, responseID)
	return nil
}

// Sweep removes expired entries and reports how many were dropped.
func (s *ResponseStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, entry := range s.responses {
		if !entry.expiresAt.After(now) {
			delete(s.responses, id)
			n++
		}
	}
	return n
}
