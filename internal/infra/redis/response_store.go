package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"survey-flow-service/internal/domain"
)

// ResponseStore keeps response state in Redis as one JSON document per
// response. SET replaces the document atomically, so readers never observe
// a partially written state; the TTL is refreshed on every save.
type ResponseStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResponseStore(client *redis.Client, ttl time.Duration) *ResponseStore {
	return &ResponseStore{client: client, ttl: ttl}
}

func (s *ResponseStore) Load(ctx context.Context, responseID string) (domain.Response, error) {
	data, err := s.client.Get(ctx, s.key(responseID)).Bytes()
	if isMiss(err) {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	if err != nil {
		return domain.Response{}, fmt.Errorf("load response %s: %w", responseID, err)
	}
	var r domain.Response
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.Response{}, fmt.Errorf("decode response %s: %w", responseID, err)
	}
	if r.Answers == nil {
		r.Answers = domain.AnswerSet{}
	}
	return r, nil
}

func (s *ResponseStore) Save(ctx context.Context, r domain.Response) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode response %s: %w", r.ID, err)
	}
	return s.client.Set(ctx, s.key(r.ID), data, s.ttl).Err()
}

func (s *ResponseStore) Delete(ctx context.Context, responseID string) error {
	return s.client.Del(ctx, s.key(responseID)).Err()
}

func (s *ResponseStore) key(responseID string) string {
	return "survey:response:" + responseID
}
