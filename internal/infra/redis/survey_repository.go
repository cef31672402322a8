package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"survey-flow-service/internal/domain"
)

// SurveyLoader fetches survey graphs from a backing store (e.g., Postgres).
type SurveyLoader interface {
	LoadSurvey(ctx context.Context, surveyID string) (domain.Survey, error)
}

// SurveyRepository caches survey graphs in Redis and falls back to a loader on cache miss.
// Graphs are stored as JSON under survey:{surveyID}:graph.
type SurveyRepository struct {
	client *redis.Client
	loader SurveyLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewSurveyRepository(client *redis.Client, loader SurveyLoader, ttl time.Duration) *SurveyRepository {
	return &SurveyRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SurveyRepository) GetSurvey(ctx context.Context, surveyID string) (domain.Survey, error) {
	if s, ok := r.cached(ctx, surveyID); ok {
		return s, nil
	}

	result, err, _ := r.sf.Do(surveyID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if s, ok := r.cached(ctx, surveyID); ok {
			return s, nil
		}
		survey, err := r.loader.LoadSurvey(ctx, surveyID)
		if err != nil {
			return domain.Survey{}, err
		}
		data, err := json.Marshal(survey)
		if err != nil {
			return domain.Survey{}, fmt.Errorf("encode survey %s: %w", surveyID, err)
		}
		// best-effort cache fill
		_ = r.client.Set(ctx, r.key(surveyID), data, r.ttlWithJitter()).Err()
		return survey, nil
	})
	if err != nil {
		return domain.Survey{}, err
	}
	return result.(domain.Survey), nil
}

// Invalidate removes the cached graph.
func (r *SurveyRepository) Invalidate(ctx context.Context, surveyID string) error {
	return r.client.Del(ctx, r.key(surveyID)).Err()
}

func (r *SurveyRepository) cached(ctx context.Context, surveyID string) (domain.Survey, bool) {
	data, err := r.client.Get(ctx, r.key(surveyID)).Bytes()
	if err != nil {
		return domain.Survey{}, false
	}
	var survey domain.Survey
	if err := json.Unmarshal(data, &survey); err != nil {
		// a corrupt entry is dropped and reloaded
		_ = r.client.Del(ctx, r.key(surveyID)).Err()
		return domain.Survey{}, false
	}
	return survey, true
}

func (r *SurveyRepository) key(surveyID string) string {
	return "survey:" + surveyID + ":graph"
}

func (r *SurveyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// isMiss reports a missing key.
func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
