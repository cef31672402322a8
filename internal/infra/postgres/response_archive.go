package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"survey-flow-service/internal/domain"
)

type archivedResponse struct {
	bun.BaseModel `bun:"table:responses"`

	ID         string           `bun:"id,pk"`
	SurveyID   string           `bun:"survey_id,notnull"`
	Status     string           `bun:"status,notnull"`
	Visited    []string         `bun:"visited,array"`
	Answers    domain.AnswerSet `bun:"answers,type:jsonb"`
	StartedAt  time.Time        `bun:"started_at,notnull"`
	FinishedAt *time.Time       `bun:"finished_at"`
}

// ResponseArchive stores finished responses for reporting.
type ResponseArchive struct {
	db *bun.DB
}

func NewResponseArchive(db *bun.DB) *ResponseArchive {
	return &ResponseArchive{db: db}
}

// Archive upserts a response; archiving the same response twice keeps the latest state.
func (a *ResponseArchive) Archive(ctx context.Context, r domain.Response) error {
	row := archivedResponse{
		ID:         r.ID,
		SurveyID:   r.SurveyID,
		Status:     string(r.Status),
		Visited:    r.Visited,
		Answers:    r.Answers,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if row.Answers == nil {
		row.Answers = domain.AnswerSet{}
	}
	_, err := a.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("visited = EXCLUDED.visited").
		Set("answers = EXCLUDED.answers").
		Set("finished_at = EXCLUDED.finished_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("archive response %s: %w", r.ID, err)
	}
	return nil
}

// Find returns an archived response.
func (a *ResponseArchive) Find(ctx context.Context, responseID string) (domain.Response, error) {
	var row archivedResponse
	err := a.db.NewSelect().Model(&row).Where("id = ?", responseID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	if err != nil {
		return domain.Response{}, fmt.Errorf("find archived response %s: %w", responseID, err)
	}
	return domain.Response{
		ID:         row.ID,
		SurveyID:   row.SurveyID,
		Status:     domain.ResponseStatus(row.Status),
		Visited:    row.Visited,
		Answers:    row.Answers,
		StartedAt:  row.StartedAt,
		UpdatedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
	}, nil
}
