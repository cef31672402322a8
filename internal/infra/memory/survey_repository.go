package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"survey-flow-service/internal/domain"
)

// SurveyLoader fetches survey graphs from a backing store (Postgres, Mongo, ...).
type SurveyLoader interface {
	LoadSurvey(ctx context.Context, surveyID string) (domain.Survey, error)
}

// SurveyRepository caches survey graphs with TTL to avoid repeated DB hits.
type SurveyRepository struct {
	loader SurveyLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedSurvey
}

type cachedSurvey struct {
	survey    domain.Survey
	expiresAt time.Time
}

func NewSurveyRepository(loader SurveyLoader, ttl time.Duration) *SurveyRepository {
	return &SurveyRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSurvey),
	}
}

func (r *SurveyRepository) GetSurvey(ctx context.Context, surveyID string) (domain.Survey, error) {
	if s, ok := r.cached(surveyID); ok {
		return s, nil
	}

	result, err, _ := r.sf.Do(surveyID, func() (interface{}, error) {
		if s, ok := r.cached(surveyID); ok {
			return s, nil
		}
		survey, err := r.loader.LoadSurvey(ctx, surveyID)
		if err != nil {
			return domain.Survey{}, err
		}
		r.mu.Lock()
		r.cache[surveyID] = cachedSurvey{
			survey:    survey,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return survey, nil
	})
	if err != nil {
		return domain.Survey{}, err
	}
	return result.(domain.Survey), nil
}

// Invalidate drops the cached copy so the next read hits the loader.
func (r *SurveyRepository) Invalidate(_ context.Context, surveyID string) error {
	r.mu.Lock()
	delete(r.cache, surveyID)
	r.mu.Unlock()
	return nil
}

func (r *SurveyRepository) cached(surveyID string) (domain.Survey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[surveyID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Survey{}, false
	}
	return entry.survey, true
}

func (r *SurveyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
