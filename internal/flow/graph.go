// Package flow implements the conditional flow engine: graph indexing,
// static validation, rule evaluation and per-response traversal.
// Everything here is synchronous and free of I/O.
package flow

import (
	"fmt"
	"sort"

	"survey-flow-service/internal/domain"
)

// Graph is an immutable, indexed view of a survey. Questions live in an
// arena sorted by ordering index; rules refer to questions by id only.
type Graph struct {
	surveyID  string
	questions []domain.Question
	index     map[string]int
	rules     []domain.Rule
	bySource  map[string][]int
}

// NewGraph indexes s. Rules whose source question does not exist are kept
// so the validator can report them.
func NewGraph(s domain.Survey) (*Graph, error) {
	g := &Graph{
		surveyID:  s.ID,
		questions: append([]domain.Question(nil), s.Questions...),
		index:     make(map[string]int, len(s.Questions)),
		rules:     append([]domain.Rule(nil), s.Rules...),
		bySource:  make(map[string][]int),
	}
	sort.SliceStable(g.questions, func(i, j int) bool {
		return g.questions[i].Order < g.questions[j].Order
	})
	for i, q := range g.questions {
		if q.ID == "" {
			return nil, fmt.Errorf("survey %s: question at position %d has no id", s.ID, i)
		}
		if _, dup := g.index[q.ID]; dup {
			return nil, fmt.Errorf("survey %s: %w: %s", s.ID, domain.ErrDuplicateQuestion, q.ID)
		}
		g.index[q.ID] = i
	}
	for i, r := range g.rules {
		g.bySource[r.SourceQuestionID] = append(g.bySource[r.SourceQuestionID], i)
	}
	return g, nil
}

func (g *Graph) SurveyID() string { return g.surveyID }

// Len returns the number of questions.
func (g *Graph) Len() int { return len(g.questions) }

// Question looks up a question by id.
func (g *Graph) Question(id string) (domain.Question, bool) {
	i, ok := g.index[id]
	if !ok {
		return domain.Question{}, false
	}
	return g.questions[i], true
}

// Has reports whether id is a question of the survey.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Questions returns the questions sorted by ordering index.
func (g *Graph) Questions() []domain.Question {
	return append([]domain.Question(nil), g.questions...)
}

// First returns the question with the lowest ordering index.
func (g *Graph) First() (domain.Question, bool) {
	if len(g.questions) == 0 {
		return domain.Question{}, false
	}
	return g.questions[0], true
}

// Next returns the question following id in ordering-index order.
func (g *Graph) Next(id string) (domain.Question, bool) {
	i, ok := g.index[id]
	if !ok || i+1 >= len(g.questions) {
		return domain.Question{}, false
	}
	return g.questions[i+1], true
}

// Rules returns the rules of a question in insertion order.
func (g *Graph) Rules(questionID string) []domain.Rule {
	idx := g.bySource[questionID]
	out := make([]domain.Rule, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.rules[i])
	}
	return out
}

// AllRules returns every rule in insertion order, including orphans.
func (g *Graph) AllRules() []domain.Rule {
	return append([]domain.Rule(nil), g.rules...)
}

// edges returns the distinct successors of a question: rule targets in
// rule order, then the default determinant. FollowDefaultOrder contributes
// the next question by ordering index, so a backward GoTo that is walked
// forward again by the sequential step shows up as a cycle.
func (g *Graph) edges(questionID string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(d domain.Determinant) {
		var target string
		switch d.Kind() {
		case domain.GoToQuestion:
			target = d.Target()
		case domain.FollowDefaultOrder:
			next, ok := g.Next(questionID)
			if !ok {
				return
			}
			target = next.ID
		default:
			return
		}
		if _, ok := seen[target]; ok {
			return
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	for _, i := range g.bySource[questionID] {
		add(g.rules[i].Target)
	}
	if q, ok := g.Question(questionID); ok {
		add(q.Default)
	}
	return out
}
