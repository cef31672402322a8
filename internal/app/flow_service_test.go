package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"survey-flow-service/internal/app"
	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/infra/memory"
)

func TestAgeScenarioBranches(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	start, err := service.StartResponse(ctx, "age")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if start.Question == nil || start.Question.ID != "q1" {
		t.Fatalf("expected q1 first, got %+v", start.Question)
	}

	step, err := service.SubmitAnswer(ctx, start.ResponseID, "q1", raw(`"under-18"`))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if step.Question == nil || step.Question.ID != "q3" {
		t.Fatalf("expected minors routed to q3, got %+v", step.Question)
	}

	step, err = service.SubmitAnswer(ctx, start.ResponseID, "q3", raw(`"football"`))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if step.Status != domain.StatusCompleted || step.Question != nil {
		t.Fatalf("expected completion, got %+v", step)
	}

	resp, err := service.GetResponse(ctx, start.ResponseID)
	if err != nil {
		t.Fatalf("get response: %v", err)
	}
	if len(resp.Visited) != 2 || resp.Answers["q1"] == nil || resp.FinishedAt == nil {
		t.Fatalf("unexpected final response %+v", resp)
	}
}

func TestStartRequiresActiveSurvey(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	draft := ageSurvey()
	draft.ID = "draft"
	draft.Active = true // ignored: new surveys start inactive
	if _, err := service.SaveSurvey(ctx, draft); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if _, err := service.StartResponse(ctx, "draft"); !errors.Is(err, domain.ErrSurveyInactive) {
		t.Fatalf("expected inactive error, got %v", err)
	}

	if _, err := service.ActivateSurvey(ctx, "draft"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := service.StartResponse(ctx, "draft"); err != nil {
		t.Fatalf("expected start after activation, got %v", err)
	}
}

func TestActivateRejectsInvalidGraph(t *testing.T) {
	ctx := context.Background()
	service, validations := newTestService()

	loop := domain.Survey{
		ID: "loop",
		Questions: []domain.Question{
			{ID: "a", Text: "A", Type: domain.QuestionText, Order: 1, Default: domain.GoTo("b")},
			{ID: "b", Text: "B", Type: domain.QuestionText, Order: 2, Default: domain.GoTo("a")},
		},
	}
	if _, err := service.SaveSurvey(ctx, loop); err != nil {
		t.Fatalf("drafts with cycles may be saved: %v", err)
	}

	res, err := service.ActivateSurvey(ctx, "loop")
	if !errors.Is(err, domain.ErrSurveyInvalid) {
		t.Fatalf("expected invalid survey, got %v", err)
	}
	if len(res.Cycles) != 1 {
		t.Fatalf("expected one cycle, got %+v", res.Cycles)
	}
	if validations.invalid() != 2 {
		t.Fatalf("expected two failed validations recorded, got %d", validations.invalid())
	}
}

func TestSaveRejectsInapplicableRules(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	s := ageSurvey()
	s.ID = "bad-rule"
	s.Rules = append(s.Rules, domain.Rule{
		ID:               "gt-on-text",
		SourceQuestionID: "q2",
		Condition:        domain.Condition{Operator: domain.OpGreaterThan, Values: []string{"3"}},
		Target:           domain.End(),
	})
	res, err := service.SaveSurvey(ctx, s)
	var ruleErr *domain.RuleError
	if !errors.As(err, &ruleErr) || ruleErr.RuleID != "gt-on-text" {
		t.Fatalf("expected rule error for gt-on-text, got %v", err)
	}
	if len(res.RuleErrors) != 1 {
		t.Fatalf("expected one rule error, got %+v", res.RuleErrors)
	}
	if _, err := service.GetSurvey(ctx, "bad-rule"); !errors.Is(err, domain.ErrSurveyNotFound) {
		t.Fatalf("expected survey not stored, got %v", err)
	}
}

func TestSaveRejectsUnanswerableRating(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	s := domain.Survey{
		ID: "stars",
		Questions: []domain.Question{
			{ID: "q1", Text: "Stars?", Type: domain.QuestionRating, Order: 1, RatingMin: 6},
		},
	}
	res, err := service.SaveSurvey(ctx, s)
	var qErr *domain.QuestionError
	if !errors.As(err, &qErr) || qErr.QuestionID != "q1" {
		t.Fatalf("expected question error for q1, got %v", err)
	}
	if len(res.QuestionErrors) != 1 {
		t.Fatalf("expected one question error, got %+v", res.QuestionErrors)
	}
	if _, err := service.GetSurvey(ctx, "stars"); !errors.Is(err, domain.ErrSurveyNotFound) {
		t.Fatalf("expected survey not stored, got %v", err)
	}
}

func TestActiveSurveyIsLocked(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if _, err := service.SaveSurvey(ctx, ageSurvey()); !errors.Is(err, domain.ErrSurveyLocked) {
		t.Fatalf("expected locked error on save, got %v", err)
	}
	if _, err := service.ValidateGraph(ctx, "age"); !errors.Is(err, domain.ErrSurveyLocked) {
		t.Fatalf("expected locked error on validate, got %v", err)
	}
}

func TestIdleResponseExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := memory.NewSurveyStore(ageSurvey())
	service := app.NewFlowService(
		memory.NewSurveyRepository(store, time.Minute),
		store,
		memory.NewResponseStore(0),
		app.WithLogger(discardLogger()),
		app.WithClock(clock),
		app.WithIdleTimeout(10*time.Minute),
	)

	start, err := service.StartResponse(ctx, "age")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	now = now.Add(11 * time.Minute)
	step, err := service.SubmitAnswer(ctx, start.ResponseID, "q1", raw(`"18-65"`))
	if !errors.Is(err, domain.ErrResponseExpired) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if step.Status != domain.StatusExpired {
		t.Fatalf("expected expired step, got %s", step.Status)
	}

	resp, err := service.GetResponse(ctx, start.ResponseID)
	if err != nil {
		t.Fatalf("get response: %v", err)
	}
	if resp.Status != domain.StatusExpired || resp.Answers["q1"] != nil {
		t.Fatalf("expected expired response without the late answer, got %+v", resp)
	}
}

func TestFinishedResponsesAreArchived(t *testing.T) {
	ctx := context.Background()
	archive := &recordingArchive{}
	store := memory.NewSurveyStore(ageSurvey())
	service := app.NewFlowService(
		memory.NewSurveyRepository(store, time.Minute),
		store,
		memory.NewResponseStore(time.Hour),
		app.WithLogger(discardLogger()),
		app.WithArchive(archive),
	)

	start, _ := service.StartResponse(ctx, "age")
	if _, err := service.Cancel(ctx, start.ResponseID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := archive.statuses(); len(got) != 1 || got[0] != domain.StatusCancelled {
		t.Fatalf("expected one cancelled response archived, got %v", got)
	}

	if _, err := service.Cancel(ctx, start.ResponseID); !errors.Is(err, domain.ErrResponseClosed) {
		t.Fatalf("expected closed response error, got %v", err)
	}
}

func TestResponseClosesAfterSurveyRemoved(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSurveyStore(ageSurvey())
	surveys := &removableSurveys{SurveyRepository: memory.NewSurveyRepository(store, time.Minute)}
	service := app.NewFlowService(surveys, store, memory.NewResponseStore(time.Hour), app.WithLogger(discardLogger()))

	start, err := service.StartResponse(ctx, "age")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, start.ResponseID, "q1", raw(`"18-65"`)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	surveys.remove("age")

	if _, err := service.SubmitAnswer(ctx, start.ResponseID, "q2", raw(`"tennis"`)); !errors.Is(err, domain.ErrSurveyNotFound) {
		t.Fatalf("expected survey not found on answer, got %v", err)
	}
	if _, err := service.Current(ctx, start.ResponseID); !errors.Is(err, domain.ErrSurveyNotFound) {
		t.Fatalf("expected survey not found on current, got %v", err)
	}

	back, err := service.Back(ctx, start.ResponseID)
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if back.Status != domain.StatusInProgress || back.Question != nil {
		t.Fatalf("expected in-progress step without question, got %+v", back)
	}

	cancelled, err := service.Cancel(ctx, start.ResponseID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %+v", cancelled)
	}
}

func TestConcurrentAnswersApplyOnce(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	start, err := service.StartResponse(ctx, "age")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.SubmitAnswer(ctx, start.ResponseID, "q1", raw(`"18-65"`))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrQuestionMismatch) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one answer applied, got %d", succeeded)
	}
	resp, _ := service.GetResponse(ctx, start.ResponseID)
	if resp.CurrentQuestionID != "q2" || len(resp.Visited) != 2 {
		t.Fatalf("unexpected response after concurrent answers %+v", resp)
	}
}

type validationCounter struct {
	mu     sync.Mutex
	failed int
}

func (c *validationCounter) observe(valid bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !valid {
		c.failed++
	}
}

func (c *validationCounter) invalid() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

type recordingArchive struct {
	mu        sync.Mutex
	responses []domain.Response
}

func (a *recordingArchive) Archive(_ context.Context, r domain.Response) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responses = append(a.responses, r)
	return nil
}

func (a *recordingArchive) statuses() []domain.ResponseStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.ResponseStatus, 0, len(a.responses))
	for _, r := range a.responses {
		out = append(out, r.Status)
	}
	return out
}

// removableSurveys hides surveys from the wrapped repository once removed.
type removableSurveys struct {
	app.SurveyRepository
	mu      sync.Mutex
	removed map[string]bool
}

func (r *removableSurveys) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removed == nil {
		r.removed = make(map[string]bool)
	}
	r.removed[id] = true
}

func (r *removableSurveys) GetSurvey(ctx context.Context, id string) (domain.Survey, error) {
	r.mu.Lock()
	gone := r.removed[id]
	r.mu.Unlock()
	if gone {
		return domain.Survey{}, fmt.Errorf("survey %s: %w", id, domain.ErrSurveyNotFound)
	}
	return r.SurveyRepository.GetSurvey(ctx, id)
}

func newTestService() (*app.FlowService, *validationCounter) {
	store := memory.NewSurveyStore(ageSurvey())
	counter := &validationCounter{}
	service := app.NewFlowService(
		memory.NewSurveyRepository(store, time.Minute),
		store,
		memory.NewResponseStore(time.Hour),
		app.WithLogger(discardLogger()),
		app.WithValidationHook(counter.observe),
	)
	return service, counter
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func ageSurvey() domain.Survey {
	return domain.Survey{
		ID:     "age",
		Title:  "About you",
		Active: true,
		Questions: []domain.Question{
			{ID: "q1", Text: "How old are you?", Type: domain.QuestionSingleChoice, Order: 1, Required: true,
				Options: []domain.Option{
					{ID: "under-18", Text: "Under 18"},
					{ID: "18-65", Text: "18 to 65"},
					{ID: "over-65", Text: "Over 65"},
				}},
			{ID: "q2", Text: "What do you do for work?", Type: domain.QuestionText, Order: 2, Default: domain.End()},
			{ID: "q3", Text: "What do you do after school?", Type: domain.QuestionText, Order: 3},
		},
		Rules: []domain.Rule{
			{ID: "minor", SourceQuestionID: "q1",
				Condition: domain.Condition{Operator: domain.OpEquals, Values: []string{"under-18"}},
				Target:    domain.GoTo("q3")},
		},
	}
}
