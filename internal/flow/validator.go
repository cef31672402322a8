package flow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"survey-flow-service/internal/domain"
)

// CycleError reports a loop in the authored graph. Path starts at the
// question that was re-entered; the edge from the last element leads back
// to the first. A self-loop has a path of length one.
type CycleError struct {
	Path []string `json:"path"`
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "cycle detected"
	}
	return "cycle detected: " + strings.Join(append(append([]string(nil), e.Path...), e.Path[0]), " -> ")
}

// SortedPath returns the cycle members in lexical order.
func (e *CycleError) SortedPath() []string {
	out := append([]string(nil), e.Path...)
	sort.Strings(out)
	return out
}

// DanglingEdgeError reports a GoTo whose target is not a question of the survey.
// RuleID is empty when the edge is the question's default determinant.
type DanglingEdgeError struct {
	QuestionID string `json:"questionId"`
	RuleID     string `json:"ruleId,omitempty"`
	Target     string `json:"target"`
}

func (e *DanglingEdgeError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("question %s: default points to unknown question %s", e.QuestionID, e.Target)
	}
	return fmt.Sprintf("question %s: rule %s points to unknown question %s", e.QuestionID, e.RuleID, e.Target)
}

// ValidationResult collects every authoring error found in one pass.
type ValidationResult struct {
	SurveyID      string               `json:"surveyId"`
	Cycles        []*CycleError        `json:"cycles,omitempty"`
	DanglingEdges []*DanglingEdgeError `json:"danglingEdges,omitempty"`
	RuleErrors    []*domain.RuleError  `json:"ruleErrors,omitempty"`

	// QuestionErrors are definitions no answer can satisfy, e.g. inverted rating bounds.
	QuestionErrors []*domain.QuestionError `json:"questionErrors,omitempty"`
}

// Valid reports whether the survey may be activated.
func (r ValidationResult) Valid() bool {
	return len(r.Cycles) == 0 && len(r.DanglingEdges) == 0 && len(r.RuleErrors) == 0 && len(r.QuestionErrors) == 0
}

// Authoring reports the findings that make a survey unsavable: rules that
// cannot apply and questions that cannot be answered.
func (r ValidationResult) Authoring() []error {
	var errs []error
	for _, e := range r.RuleErrors {
		errs = append(errs, e)
	}
	for _, e := range r.QuestionErrors {
		errs = append(errs, e)
	}
	return errs
}

// Err joins all findings, or returns nil when the graph is valid.
func (r ValidationResult) Err() error {
	var errs []error
	for _, e := range r.Cycles {
		errs = append(errs, e)
	}
	for _, e := range r.DanglingEdges {
		errs = append(errs, e)
	}
	errs = append(errs, r.Authoring()...)
	return errors.Join(errs...)
}

// Validate checks g for cycles, self-loops, dangling edges and rules that
// cannot apply to their source question. Runs in O(V+E).
func Validate(g *Graph) ValidationResult {
	res := ValidationResult{SurveyID: g.surveyID}

	for _, q := range g.questions {
		if q.Type == domain.QuestionRating {
			if lo, hi := q.RatingBounds(); lo > hi {
				res.QuestionErrors = append(res.QuestionErrors, &domain.QuestionError{
					QuestionID: q.ID,
					Msg:        fmt.Sprintf("rating bounds [%d, %d] are inverted", lo, hi),
				})
			}
		}
		for _, i := range g.bySource[q.ID] {
			r := g.rules[i]
			if r.Target.Kind() == domain.GoToQuestion && !g.Has(r.Target.Target()) {
				res.DanglingEdges = append(res.DanglingEdges, &DanglingEdgeError{QuestionID: q.ID, RuleID: r.ID, Target: r.Target.Target()})
			}
			if err := CheckRule(q, r); err != nil {
				res.RuleErrors = append(res.RuleErrors, err)
			}
		}
		if q.Default.Kind() == domain.GoToQuestion && !g.Has(q.Default.Target()) {
			res.DanglingEdges = append(res.DanglingEdges, &DanglingEdgeError{QuestionID: q.ID, Target: q.Default.Target()})
		}
	}
	for _, r := range g.rules {
		if !g.Has(r.SourceQuestionID) {
			res.RuleErrors = append(res.RuleErrors, &domain.RuleError{RuleID: r.ID, QuestionID: r.SourceQuestionID, Msg: "source question does not exist"})
		}
	}

	res.Cycles = findCycles(g)
	return res
}

const (
	unvisited = iota
	onStack
	explored
)

type dfsFrame struct {
	id    string
	edges []string
	next  int
}

// findCycles runs an iterative depth-first search from every question and
// reports one cycle per back edge.
func findCycles(g *Graph) []*CycleError {
	var cycles []*CycleError
	state := make(map[string]int, len(g.questions))
	seen := make(map[string]struct{})

	for _, root := range g.questions {
		if state[root.ID] != unvisited {
			continue
		}
		stack := []dfsFrame{{id: root.ID, edges: g.edges(root.ID)}}
		depth := map[string]int{root.ID: 0}
		state[root.ID] = onStack

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next >= len(top.edges) {
				state[top.id] = explored
				delete(depth, top.id)
				stack = stack[:len(stack)-1]
				continue
			}
			target := top.edges[top.next]
			top.next++
			if !g.Has(target) {
				continue
			}
			switch state[target] {
			case unvisited:
				state[target] = onStack
				depth[target] = len(stack)
				stack = append(stack, dfsFrame{id: target, edges: g.edges(target)})
			case onStack:
				path := make([]string, 0, len(stack)-depth[target])
				for _, f := range stack[depth[target]:] {
					path = append(path, f.id)
				}
				key := cycleKey(path)
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					cycles = append(cycles, &CycleError{Path: path})
				}
			}
		}
	}
	return cycles
}

// cycleKey identifies a cycle independent of its starting point.
func cycleKey(path []string) string {
	first := 0
	for i := range path {
		if path[i] < path[first] {
			first = i
		}
	}
	rotated := append(append([]string(nil), path[first:]...), path[:first]...)
	return strings.Join(rotated, "\x00")
}
