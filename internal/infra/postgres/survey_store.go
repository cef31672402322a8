package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"survey-flow-service/internal/domain"
)

// SurveyStore keeps authored surveys as JSONB documents. The active flag
// lives in its own column so activation does not rewrite the graph.
type SurveyStore struct {
	pool *pgxpool.Pool
}

func NewSurveyStore(pool *pgxpool.Pool) *SurveyStore {
	return &SurveyStore{pool: pool}
}

func (s *SurveyStore) LoadSurvey(ctx context.Context, surveyID string) (domain.Survey, error) {
	var (
		raw    []byte
		active bool
	)
	err := s.pool.QueryRow(ctx, `SELECT data, active FROM surveys WHERE id=$1`, surveyID).Scan(&raw, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Survey{}, domain.ErrSurveyNotFound
	}
	if err != nil {
		return domain.Survey{}, fmt.Errorf("load survey: %w", err)
	}
	var survey domain.Survey
	if err := json.Unmarshal(raw, &survey); err != nil {
		return domain.Survey{}, fmt.Errorf("unmarshal survey: %w", err)
	}
	survey.Active = active
	return survey, nil
}

func (s *SurveyStore) SaveSurvey(ctx context.Context, survey domain.Survey) error {
	raw, err := json.Marshal(survey)
	if err != nil {
		return fmt.Errorf("marshal survey: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO surveys (id, title, active, data, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, active = EXCLUDED.active, data = EXCLUDED.data, updated_at = now()`,
		survey.ID, survey.Title, survey.Active, raw)
	if err != nil {
		return fmt.Errorf("save survey: %w", err)
	}
	return nil
}

func (s *SurveyStore) SetActive(ctx context.Context, surveyID string, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE surveys SET active=$2, updated_at=now() WHERE id=$1`, surveyID, active)
	if err != nil {
		return fmt.Errorf("set survey active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSurveyNotFound
	}
	return nil
}
