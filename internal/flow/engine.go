package flow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"survey-flow-service/internal/domain"
)

// Anomaly names a traversal integrity problem that forced completion.
type Anomaly string

const (
	AnomalyNone Anomaly = ""
	// AnomalyCycleGuard: the resolved target was already on the visited path.
	AnomalyCycleGuard Anomaly = "cycle_guard"
	// AnomalyDanglingTarget: the resolved target is not a question of the survey.
	AnomalyDanglingTarget Anomaly = "dangling_target"
)

// Step is the outcome of a transition.
type Step struct {
	Status         domain.ResponseStatus `json:"status"`
	NextQuestionID string                `json:"nextQuestionId,omitempty"`
	Anomaly        Anomaly               `json:"anomaly,omitempty"`
}

// Observer receives engine events. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveTransition(event string, status domain.ResponseStatus)
	ObserveAnomaly(kind Anomaly)
}

type event string

const (
	evStart    event = "start"
	evAnswer   event = "answer"
	evSkip     event = "skip"
	evBack     event = "back"
	evComplete event = "complete"
	evCancel   event = "cancel"
	evExpire   event = "expire"
)

type transitionKey struct {
	src domain.ResponseStatus
	ev  event
}

// transitions is the response lifecycle. Answer and Skip stay InProgress
// unless the resolved determinant completes the response.
var transitions = map[transitionKey]domain.ResponseStatus{
	{domain.StatusNotStarted, evStart}:    domain.StatusInProgress,
	{domain.StatusInProgress, evAnswer}:   domain.StatusInProgress,
	{domain.StatusInProgress, evSkip}:     domain.StatusInProgress,
	{domain.StatusInProgress, evBack}:     domain.StatusInProgress,
	{domain.StatusInProgress, evComplete}: domain.StatusCompleted,
	{domain.StatusInProgress, evCancel}:   domain.StatusCancelled,
	{domain.StatusInProgress, evExpire}:   domain.StatusExpired,
}

// Engine drives responses through a survey graph. It holds no per-response
// state and may be shared across goroutines.
type Engine struct {
	logger   *slog.Logger
	now      func() time.Time
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithObserver reports transitions and anomalies to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// fire moves r along ev, or reports why the transition is not allowed.
func (e *Engine) fire(r *domain.Response, ev event) error {
	dst, ok := transitions[transitionKey{r.Status, ev}]
	if !ok {
		if r.Status.Terminal() {
			return fmt.Errorf("%s: %w (status %s)", ev, domain.ErrResponseClosed, r.Status)
		}
		return fmt.Errorf("%s: transition not allowed from %s", ev, r.Status)
	}
	now := e.now()
	r.Status = dst
	r.UpdatedAt = now
	if dst.Terminal() {
		r.FinishedAt = &now
		r.CurrentQuestionID = ""
	}
	if e.observer != nil {
		e.observer.ObserveTransition(string(ev), dst)
	}
	return nil
}

// allowed reports whether ev is accepted in r's current status without firing it.
func allowed(r domain.Response, ev event) error {
	if _, ok := transitions[transitionKey{r.Status, ev}]; ok {
		return nil
	}
	if r.Status.Terminal() {
		return fmt.Errorf("%s: %w (status %s)", ev, domain.ErrResponseClosed, r.Status)
	}
	return fmt.Errorf("%s: transition not allowed from %s", ev, r.Status)
}

// Start creates a response positioned at the survey's first question.
func (e *Engine) Start(g *Graph, responseID string) (domain.Response, error) {
	first, ok := g.First()
	if !ok {
		return domain.Response{}, fmt.Errorf("start survey %s: %w", g.SurveyID(), domain.ErrSurveyEmpty)
	}
	now := e.now()
	r := domain.Response{
		ID:        responseID,
		SurveyID:  g.SurveyID(),
		Status:    domain.StatusNotStarted,
		Answers:   domain.AnswerSet{},
		StartedAt: now,
	}
	if err := e.fire(&r, evStart); err != nil {
		return domain.Response{}, err
	}
	r.CurrentQuestionID = first.ID
	r.Visited = []string{first.ID}
	return r, nil
}

// Answer records the answer to the current question and moves to the next
// step. On error the returned response is the unchanged input.
func (e *Engine) Answer(g *Graph, r domain.Response, questionID string, raw json.RawMessage) (domain.Response, Step, error) {
	if err := allowed(r, evAnswer); err != nil {
		return r, Step{Status: r.Status}, err
	}
	if questionID != r.CurrentQuestionID {
		return r, Step{Status: r.Status, NextQuestionID: r.CurrentQuestionID},
			fmt.Errorf("answer %s: %w (current %s)", questionID, domain.ErrQuestionMismatch, r.CurrentQuestionID)
	}
	q, ok := g.Question(questionID)
	if !ok {
		return e.forceComplete(g, r, questionID, questionID, AnomalyDanglingTarget)
	}
	answer, err := domain.ParseAnswer(q, raw)
	if err != nil {
		return r, Step{Status: r.Status, NextQuestionID: r.CurrentQuestionID}, err
	}

	next := r.Clone()
	next.Answers[q.ID] = answer
	if err := e.fire(&next, evAnswer); err != nil {
		return r, Step{Status: r.Status}, err
	}
	d, matched := Evaluate(g.Rules(q.ID), answer)
	if !matched {
		d = q.Default
	}
	return e.resolve(g, next, q.ID, d)
}

// Skip leaves the current optional question unanswered and follows its
// default determinant; rules are not evaluated.
func (e *Engine) Skip(g *Graph, r domain.Response) (domain.Response, Step, error) {
	if err := allowed(r, evSkip); err != nil {
		return r, Step{Status: r.Status}, err
	}
	q, ok := g.Question(r.CurrentQuestionID)
	if !ok {
		return e.forceComplete(g, r, r.CurrentQuestionID, r.CurrentQuestionID, AnomalyDanglingTarget)
	}
	if q.Required {
		return r, Step{Status: r.Status, NextQuestionID: q.ID}, fmt.Errorf("skip %s: %w", q.ID, domain.ErrQuestionRequired)
	}
	next := r.Clone()
	delete(next.Answers, q.ID)
	if err := e.fire(&next, evSkip); err != nil {
		return r, Step{Status: r.Status}, err
	}
	d, matched := Evaluate(g.Rules(q.ID), nil)
	if !matched {
		d = q.Default
	}
	return e.resolve(g, next, q.ID, d)
}

// Back returns to the previously visited question. Recorded answers are kept.
func (e *Engine) Back(r domain.Response) (domain.Response, Step, error) {
	if err := allowed(r, evBack); err != nil {
		return r, Step{Status: r.Status}, err
	}
	if len(r.Visited) <= 1 {
		return r, Step{Status: r.Status, NextQuestionID: r.CurrentQuestionID}, domain.ErrBackAtStart
	}
	next := r.Clone()
	next.Visited = next.Visited[:len(next.Visited)-1]
	next.CurrentQuestionID = next.Visited[len(next.Visited)-1]
	if err := e.fire(&next, evBack); err != nil {
		return r, Step{Status: r.Status}, err
	}
	return next, Step{Status: next.Status, NextQuestionID: next.CurrentQuestionID}, nil
}

// Cancel ends the response at the respondent's request.
func (e *Engine) Cancel(r domain.Response) (domain.Response, Step, error) {
	return e.close(r, evCancel)
}

// Expire ends an abandoned response. The caller decides when a response is idle.
func (e *Engine) Expire(r domain.Response) (domain.Response, Step, error) {
	return e.close(r, evExpire)
}

func (e *Engine) close(r domain.Response, ev event) (domain.Response, Step, error) {
	next := r.Clone()
	if err := e.fire(&next, ev); err != nil {
		return r, Step{Status: r.Status}, err
	}
	return next, Step{Status: next.Status}, nil
}

// Resolve applies d to an in-progress response whose current question is
// from. FollowDefaultOrder becomes the next question by ordering index, or
// End when none remains. A GoTo to an unknown or already visited question
// completes the response instead of moving.
func (e *Engine) Resolve(g *Graph, r domain.Response, from string, d domain.Determinant) (domain.Response, Step, error) {
	if err := allowed(r, evComplete); err != nil {
		return r, Step{Status: r.Status}, err
	}
	return e.resolve(g, r.Clone(), from, d)
}

func (e *Engine) resolve(g *Graph, r domain.Response, from string, d domain.Determinant) (domain.Response, Step, error) {
	d = concrete(g, from, d)
	if d.Kind() == domain.EndSurvey {
		if err := e.fire(&r, evComplete); err != nil {
			return r, Step{Status: r.Status}, err
		}
		return r, Step{Status: r.Status}, nil
	}

	target := d.Target()
	if !g.Has(target) {
		return e.forceComplete(g, r, from, target, AnomalyDanglingTarget)
	}
	if r.HasVisited(target) {
		return e.forceComplete(g, r, from, target, AnomalyCycleGuard)
	}
	r.CurrentQuestionID = target
	r.Visited = append(r.Visited, target)
	return r, Step{Status: r.Status, NextQuestionID: target}, nil
}

// concrete reduces FollowDefaultOrder to a GoTo or End relative to from.
func concrete(g *Graph, from string, d domain.Determinant) domain.Determinant {
	return domain.MatchDeterminant(d,
		domain.GoTo,
		domain.End,
		func() domain.Determinant {
			if next, ok := g.Next(from); ok {
				return domain.GoTo(next.ID)
			}
			return domain.End()
		},
	)
}

func (e *Engine) forceComplete(g *Graph, r domain.Response, from, target string, kind Anomaly) (domain.Response, Step, error) {
	e.logger.Warn("traversal integrity anomaly, completing response",
		slog.String("anomaly", string(kind)),
		slog.String("response_id", r.ID),
		slog.String("survey_id", g.SurveyID()),
		slog.String("question_id", from),
		slog.String("target", target),
	)
	if e.observer != nil {
		e.observer.ObserveAnomaly(kind)
	}
	next := r.Clone()
	if err := e.fire(&next, evComplete); err != nil {
		return r, Step{Status: r.Status}, err
	}
	return next, Step{Status: next.Status, Anomaly: kind}, nil
}
