package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"survey-flow-service/internal/domain"
)

// SurveyStore is an in-process survey backing store (useful for tests/demos).
// Surveys are kept as JSON documents so callers never share slices with it.
type SurveyStore struct {
	mu      sync.RWMutex
	surveys map[string][]byte
}

func NewSurveyStore(seed ...domain.Survey) *SurveyStore {
	s := &SurveyStore{surveys: make(map[string][]byte)}
	for _, survey := range seed {
		_ = s.SaveSurvey(context.Background(), survey)
	}
	return s
}

func (s *SurveyStore) LoadSurvey(_ context.Context, surveyID string) (domain.Survey, error) {
	s.mu.RLock()
	data, ok := s.surveys[surveyID]
	s.mu.RUnlock()
	if !ok {
		return domain.Survey{}, domain.ErrSurveyNotFound
	}
	var survey domain.Survey
	if err := json.Unmarshal(data, &survey); err != nil {
		return domain.Survey{}, fmt.Errorf("decode survey %s: %w", surveyID, err)
	}
	return survey, nil
}

func (s *SurveyStore) SaveSurvey(_ context.Context, survey domain.Survey) error {
	data, err := json.Marshal(survey)
	if err != nil {
		return fmt.Errorf("encode survey %s: %w", survey.ID, err)
	}
	s.mu.Lock()
	s.surveys[survey.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *SurveyStore) SetActive(ctx context.Context, surveyID string, active bool) error {
	survey, err := s.LoadSurvey(ctx, surveyID)
	if err != nil {
		return err
	}
	survey.Active = active
	return s.SaveSurvey(ctx, survey)
}
