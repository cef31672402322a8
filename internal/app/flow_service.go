package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
)

// SurveyRepository loads survey graphs (usually through a cache).
type SurveyRepository interface {
	GetSurvey(ctx context.Context, surveyID string) (domain.Survey, error)
	// Invalidate drops any cached copy after the survey changed.
	Invalidate(ctx context.Context, surveyID string) error
}

// SurveyWriter persists authored surveys.
type SurveyWriter interface {
	SaveSurvey(ctx context.Context, survey domain.Survey) error
	SetActive(ctx context.Context, surveyID string, active bool) error
}

// EditPolicy decides whether a survey may still be edited or re-validated.
type EditPolicy interface {
	CanEdit(ctx context.Context, survey domain.Survey) (bool, error)
}

// ResponseStore holds in-progress response state keyed by response id.
// Save replaces the whole document atomically.
type ResponseStore interface {
	Load(ctx context.Context, responseID string) (domain.Response, error)
	Save(ctx context.Context, response domain.Response) error
	Delete(ctx context.Context, responseID string) error
}

// ResponseArchive keeps finished responses after they leave the state store.
type ResponseArchive interface {
	Archive(ctx context.Context, response domain.Response) error
}

// EditableWhileInactive allows edits until a survey is activated.
type EditableWhileInactive struct{}

func (EditableWhileInactive) CanEdit(_ context.Context, s domain.Survey) (bool, error) {
	return !s.Active, nil
}

// StepResult is what respondents' clients receive after each transition.
type StepResult struct {
	ResponseID string                `json:"responseId"`
	Status     domain.ResponseStatus `json:"status"`
	Question   *domain.Question      `json:"question,omitempty"`
	Anomaly    flow.Anomaly          `json:"anomaly,omitempty"`
}

// FlowService exposes the flow engine to transports: authoring validation,
// activation and respondent traversal.
type FlowService struct {
	surveys     SurveyRepository
	writer      SurveyWriter
	responses   ResponseStore
	archive     ResponseArchive
	policy      EditPolicy
	engine      *flow.Engine
	logger      *slog.Logger
	idleTimeout time.Duration
	now         func() time.Time
	newID       func() string
	locks       *keyedMutex
	onValidate  func(valid bool)
}

// ServiceOption configures a FlowService.
type ServiceOption func(*FlowService)

func WithArchive(a ResponseArchive) ServiceOption {
	return func(s *FlowService) { s.archive = a }
}

func WithEditPolicy(p EditPolicy) ServiceOption {
	return func(s *FlowService) { s.policy = p }
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *FlowService) { s.logger = l }
}

func WithEngine(e *flow.Engine) ServiceOption {
	return func(s *FlowService) { s.engine = e }
}

// WithIdleTimeout expires responses untouched for longer than d. Zero disables expiry.
func WithIdleTimeout(d time.Duration) ServiceOption {
	return func(s *FlowService) { s.idleTimeout = d }
}

// WithClock is used by tests for deterministic expiry.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *FlowService) { s.now = now }
}

func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *FlowService) { s.newID = newID }
}

// WithValidationHook is called with the outcome of every validation pass.
func WithValidationHook(fn func(valid bool)) ServiceOption {
	return func(s *FlowService) { s.onValidate = fn }
}

func NewFlowService(surveys SurveyRepository, writer SurveyWriter, responses ResponseStore, opts ...ServiceOption) *FlowService {
	s := &FlowService{
		surveys:   surveys,
		writer:    writer,
		responses: responses,
		policy:    EditableWhileInactive{},
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = flow.NewEngine(s.logger, flow.WithClock(s.now))
	}
	return s
}

// GetSurvey returns the survey graph document.
func (s *FlowService) GetSurvey(ctx context.Context, surveyID string) (domain.Survey, error) {
	return s.surveys.GetSurvey(ctx, surveyID)
}

// ValidateGraph re-runs the static validator on an editable survey.
func (s *FlowService) ValidateGraph(ctx context.Context, surveyID string) (flow.ValidationResult, error) {
	survey, err := s.surveys.GetSurvey(ctx, surveyID)
	if err != nil {
		return flow.ValidationResult{}, err
	}
	if err := s.ensureEditable(ctx, survey); err != nil {
		return flow.ValidationResult{}, err
	}
	return s.validate(survey)
}

// SaveSurvey stores an authored survey. Rules that cannot apply to their
// source question and questions no answer can satisfy are refused; graph errors are returned but a draft with
// them may still be saved, since activation re-checks.
func (s *FlowService) SaveSurvey(ctx context.Context, survey domain.Survey) (flow.ValidationResult, error) {
	if survey.ID == "" {
		return flow.ValidationResult{}, fmt.Errorf("save survey: missing id")
	}
	existing, err := s.surveys.GetSurvey(ctx, survey.ID)
	switch {
	case err == nil:
		if err := s.ensureEditable(ctx, existing); err != nil {
			return flow.ValidationResult{}, err
		}
		survey.Active = existing.Active
	case errors.Is(err, domain.ErrSurveyNotFound):
		survey.Active = false
	default:
		return flow.ValidationResult{}, err
	}

	res, err := s.validate(survey)
	if err != nil {
		return res, err
	}
	if errs := res.Authoring(); len(errs) > 0 {
		return res, fmt.Errorf("save survey %s: %w", survey.ID, errors.Join(errs...))
	}
	if err := s.writer.SaveSurvey(ctx, survey); err != nil {
		return res, fmt.Errorf("save survey %s: %w", survey.ID, err)
	}
	s.invalidate(ctx, survey.ID)
	return res, nil
}

// ActivateSurvey opens a survey to respondents once its graph validates.
func (s *FlowService) ActivateSurvey(ctx context.Context, surveyID string) (flow.ValidationResult, error) {
	survey, err := s.surveys.GetSurvey(ctx, surveyID)
	if err != nil {
		return flow.ValidationResult{}, err
	}
	if survey.Active {
		return flow.ValidationResult{SurveyID: surveyID}, nil
	}
	res, err := s.validate(survey)
	if err != nil {
		return res, err
	}
	if !res.Valid() {
		return res, fmt.Errorf("activate survey %s: %w: %w", surveyID, domain.ErrSurveyInvalid, res.Err())
	}
	if err := s.writer.SetActive(ctx, surveyID, true); err != nil {
		return res, fmt.Errorf("activate survey %s: %w", surveyID, err)
	}
	s.invalidate(ctx, surveyID)
	s.logger.Info("survey activated", slog.String("survey_id", surveyID))
	return res, nil
}

// StartResponse begins a new response at the survey's first question.
func (s *FlowService) StartResponse(ctx context.Context, surveyID string) (StepResult, error) {
	survey, err := s.surveys.GetSurvey(ctx, surveyID)
	if err != nil {
		return StepResult{}, err
	}
	if !survey.Active {
		return StepResult{}, fmt.Errorf("start %s: %w", surveyID, domain.ErrSurveyInactive)
	}
	g, err := flow.NewGraph(survey)
	if err != nil {
		return StepResult{}, err
	}
	r, err := s.engine.Start(g, s.newID())
	if err != nil {
		return StepResult{}, err
	}
	if err := s.responses.Save(ctx, r); err != nil {
		return StepResult{}, fmt.Errorf("save response: %w", err)
	}
	return s.result(g, r, flow.Step{Status: r.Status, NextQuestionID: r.CurrentQuestionID}), nil
}

// GetResponse returns the stored response state.
func (s *FlowService) GetResponse(ctx context.Context, responseID string) (domain.Response, error) {
	return s.responses.Load(ctx, responseID)
}

// Current returns the step a respondent is at, e.g. to resume a conversation.
func (s *FlowService) Current(ctx context.Context, responseID string) (StepResult, error) {
	return s.transition(ctx, responseID, true, func(g *flow.Graph, r domain.Response) (domain.Response, flow.Step, error) {
		return r, flow.Step{Status: r.Status, NextQuestionID: r.CurrentQuestionID}, nil
	})
}

// SubmitAnswer records raw (canonical envelope or legacy bare value) for
// questionID and advances the response.
func (s *FlowService) SubmitAnswer(ctx context.Context, responseID, questionID string, raw json.RawMessage) (StepResult, error) {
	return s.transition(ctx, responseID, true, func(g *flow.Graph, r domain.Response) (domain.Response, flow.Step, error) {
		return s.engine.Answer(g, r, questionID, raw)
	})
}

func (s *FlowService) Back(ctx context.Context, responseID string) (StepResult, error) {
	return s.transition(ctx, responseID, false, func(_ *flow.Graph, r domain.Response) (domain.Response, flow.Step, error) {
		return s.engine.Back(r)
	})
}

func (s *FlowService) Skip(ctx context.Context, responseID string) (StepResult, error) {
	return s.transition(ctx, responseID, true, func(g *flow.Graph, r domain.Response) (domain.Response, flow.Step, error) {
		return s.engine.Skip(g, r)
	})
}

func (s *FlowService) Cancel(ctx context.Context, responseID string) (StepResult, error) {
	return s.transition(ctx, responseID, false, func(_ *flow.Graph, r domain.Response) (domain.Response, flow.Step, error) {
		return s.engine.Cancel(r)
	})
}

// Expire ends a response on behalf of an external inactivity sweep.
func (s *FlowService) Expire(ctx context.Context, responseID string) (StepResult, error) {
	return s.transition(ctx, responseID, false, func(_ *flow.Graph, r domain.Response) (domain.Response, flow.Step, error) {
		return s.engine.Expire(r)
	})
}

type transitionFunc func(g *flow.Graph, r domain.Response) (domain.Response, flow.Step, error)

// transition runs fn under the response's lock: load, idle check, apply, save.
// When needGraph is false the survey is loaded best-effort and fn may receive
// a nil graph, so a response can still be closed after its survey is gone.
func (s *FlowService) transition(ctx context.Context, responseID string, needGraph bool, fn transitionFunc) (StepResult, error) {
	unlock := s.locks.Lock(responseID)
	defer unlock()

	r, err := s.responses.Load(ctx, responseID)
	if err != nil {
		return StepResult{}, err
	}
	g, err := s.graph(ctx, r.SurveyID)
	if err != nil {
		if needGraph {
			return StepResult{}, err
		}
		s.logger.Warn("survey unavailable, continuing without flow graph",
			slog.String("response_id", r.ID), slog.String("survey_id", r.SurveyID), slog.Any("error", err))
		g = nil
	}

	if s.idle(r) {
		expired, step, err := s.engine.Expire(r)
		if err != nil {
			return StepResult{}, err
		}
		if err := s.persist(ctx, expired); err != nil {
			return StepResult{}, err
		}
		s.logger.Info("response expired", slog.String("response_id", r.ID), slog.Time("last_activity", r.UpdatedAt))
		return s.result(g, expired, step), fmt.Errorf("response %s: %w", responseID, domain.ErrResponseExpired)
	}

	next, step, err := fn(g, r)
	if err != nil {
		return s.result(g, r, step), err
	}
	if err := s.persist(ctx, next); err != nil {
		return StepResult{}, err
	}
	return s.result(g, next, step), nil
}

func (s *FlowService) graph(ctx context.Context, surveyID string) (*flow.Graph, error) {
	survey, err := s.surveys.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	return flow.NewGraph(survey)
}

func (s *FlowService) idle(r domain.Response) bool {
	return s.idleTimeout > 0 && r.Status == domain.StatusInProgress && s.now().Sub(r.UpdatedAt) > s.idleTimeout
}

// persist saves r; finished responses are archived first when an archive is configured.
func (s *FlowService) persist(ctx context.Context, r domain.Response) error {
	if r.Status.Terminal() && s.archive != nil {
		if err := s.archive.Archive(ctx, r); err != nil {
			s.logger.Error("archive response failed", slog.String("response_id", r.ID), slog.Any("error", err))
		}
	}
	if err := s.responses.Save(ctx, r); err != nil {
		return fmt.Errorf("save response %s: %w", r.ID, err)
	}
	return nil
}

func (s *FlowService) validate(survey domain.Survey) (flow.ValidationResult, error) {
	g, err := flow.NewGraph(survey)
	if err != nil {
		return flow.ValidationResult{}, err
	}
	res := flow.Validate(g)
	if s.onValidate != nil {
		s.onValidate(res.Valid())
	}
	if !res.Valid() {
		s.logger.Info("survey flow validation failed", slog.String("survey_id", survey.ID), slog.Any("error", res.Err()))
	}
	return res, nil
}

func (s *FlowService) ensureEditable(ctx context.Context, survey domain.Survey) error {
	ok, err := s.policy.CanEdit(ctx, survey)
	if err != nil {
		return fmt.Errorf("edit check for survey %s: %w", survey.ID, err)
	}
	if !ok {
		return fmt.Errorf("survey %s: %w", survey.ID, domain.ErrSurveyLocked)
	}
	return nil
}

func (s *FlowService) invalidate(ctx context.Context, surveyID string) {
	if err := s.surveys.Invalidate(ctx, surveyID); err != nil {
		s.logger.Warn("survey cache invalidation failed", slog.String("survey_id", surveyID), slog.Any("error", err))
	}
}

func (s *FlowService) result(g *flow.Graph, r domain.Response, step flow.Step) StepResult {
	out := StepResult{ResponseID: r.ID, Status: r.Status, Anomaly: step.Anomaly}
	if r.Status == domain.StatusInProgress && g != nil {
		if q, ok := g.Question(r.CurrentQuestionID); ok {
			out.Question = &q
		}
	}
	return out
}
