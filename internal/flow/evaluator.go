package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"survey-flow-service/internal/domain"
)

// operatorTypes lists the question types each operator may be applied to.
var operatorTypes = map[domain.Operator][]domain.QuestionType{
	domain.OpEquals: {
		domain.QuestionText, domain.QuestionSingleChoice, domain.QuestionMultipleChoice,
		domain.QuestionRating, domain.QuestionNumber, domain.QuestionDate,
	},
	domain.OpContains:           {domain.QuestionText, domain.QuestionSingleChoice, domain.QuestionMultipleChoice},
	domain.OpIn:                 {domain.QuestionText, domain.QuestionSingleChoice, domain.QuestionMultipleChoice},
	domain.OpGreaterThan:        {domain.QuestionRating, domain.QuestionNumber, domain.QuestionDate},
	domain.OpGreaterThanOrEqual: {domain.QuestionRating, domain.QuestionNumber, domain.QuestionDate},
	domain.OpLessThan:           {domain.QuestionRating, domain.QuestionNumber, domain.QuestionDate},
	domain.OpLessThanOrEqual:    {domain.QuestionRating, domain.QuestionNumber, domain.QuestionDate},
}

// Compatible reports whether op can be applied to answers of type t.
func Compatible(op domain.Operator, t domain.QuestionType) bool {
	for _, allowed := range operatorTypes[op] {
		if allowed == t {
			return true
		}
	}
	return false
}

// CheckRule verifies at authoring time that r's condition can be evaluated
// against answers to q: operator/type compatibility, value count and value shape.
func CheckRule(q domain.Question, r domain.Rule) *domain.RuleError {
	fail := func(format string, args ...any) *domain.RuleError {
		return &domain.RuleError{RuleID: r.ID, QuestionID: q.ID, Msg: fmt.Sprintf(format, args...)}
	}
	c := r.Condition
	if _, known := operatorTypes[c.Operator]; !known {
		return fail("unknown operator %q", c.Operator)
	}
	if !Compatible(c.Operator, q.Type) {
		return fail("operator %s cannot be applied to %s questions", c.Operator, q.Type)
	}
	if len(c.Values) == 0 {
		return fail("operator %s needs a value", c.Operator)
	}
	multiValue := c.Operator == domain.OpIn ||
		(c.Operator == domain.OpEquals && q.Type == domain.QuestionMultipleChoice)
	if !multiValue && len(c.Values) != 1 {
		return fail("operator %s takes exactly one value, got %d", c.Operator, len(c.Values))
	}
	for _, v := range c.Values {
		if strings.TrimSpace(v) == "" {
			return fail("operator %s has an empty value", c.Operator)
		}
		switch q.Type {
		case domain.QuestionRating:
			if _, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
				return fail("%q is not an integer rating", v)
			}
		case domain.QuestionNumber:
			if _, err := decimal.NewFromString(strings.TrimSpace(v)); err != nil {
				return fail("%q is not a number", v)
			}
		case domain.QuestionDate:
			if _, err := domain.ParseDate(v); err != nil {
				return fail("%s", err)
			}
		case domain.QuestionSingleChoice, domain.QuestionMultipleChoice:
			if len(q.Options) > 0 && !hasOptionID(q, v) {
				return fail("%q is not an option id of question %s", v, q.ID)
			}
		}
	}
	return nil
}

func hasOptionID(q domain.Question, id string) bool {
	for _, opt := range q.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// Evaluate walks rules in order and returns the target of the first rule
// whose condition holds. A nil answer never matches.
func Evaluate(rules []domain.Rule, answer domain.Answer) (domain.Determinant, bool) {
	if answer == nil {
		return domain.Determinant{}, false
	}
	for _, r := range rules {
		if Holds(r.Condition, answer) {
			return r.Target, true
		}
	}
	return domain.Determinant{}, false
}

// Holds evaluates one condition. Incompatible operators and values that do
// not parse for the answer's type evaluate to false.
func Holds(c domain.Condition, answer domain.Answer) bool {
	if answer == nil || len(c.Values) == 0 || !Compatible(c.Operator, answer.Type()) {
		return false
	}
	switch a := answer.(type) {
	case domain.TextAnswer:
		return textHolds(c, a.Value)
	case domain.SingleChoiceAnswer:
		return choiceHolds(c, []string{a.OptionID}, true)
	case domain.MultipleChoiceAnswer:
		return choiceHolds(c, a.OptionIDs(), false)
	case domain.RatingAnswer:
		v, err := strconv.Atoi(strings.TrimSpace(c.Values[0]))
		if err != nil {
			return false
		}
		return ordered(c.Operator, compareInt(a.Value, v))
	case domain.NumberAnswer:
		v, err := decimal.NewFromString(strings.TrimSpace(c.Values[0]))
		if err != nil {
			return false
		}
		return ordered(c.Operator, a.Value.Cmp(v))
	case domain.DateAnswer:
		v, err := domain.ParseDate(c.Values[0])
		if err != nil {
			return false
		}
		return ordered(c.Operator, a.Value.Compare(v.Value))
	case domain.LocationAnswer:
		return false
	}
	return false
}

func textHolds(c domain.Condition, text string) bool {
	switch c.Operator {
	case domain.OpEquals:
		return strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(c.Values[0]))
	case domain.OpContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(c.Values[0]))
	case domain.OpIn:
		for _, v := range c.Values {
			if strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(v)) {
				return true
			}
		}
	}
	return false
}

// choiceHolds compares selected option ids against the condition values.
// Equals on a multiple choice answer compares whole sets; In matches when
// any selected option is in the set.
func choiceHolds(c domain.Condition, selected []string, single bool) bool {
	has := func(id string) bool {
		for _, s := range selected {
			if s == id {
				return true
			}
		}
		return false
	}
	switch c.Operator {
	case domain.OpEquals:
		if single {
			return selected[0] == c.Values[0]
		}
		want := domain.NewMultipleChoiceAnswer(c.Values...)
		return want.Equal(domain.NewMultipleChoiceAnswer(selected...))
	case domain.OpContains:
		return has(c.Values[0])
	case domain.OpIn:
		for _, v := range c.Values {
			if has(v) {
				return true
			}
		}
	}
	return false
}

func ordered(op domain.Operator, cmp int) bool {
	switch op {
	case domain.OpEquals:
		return cmp == 0
	case domain.OpGreaterThan:
		return cmp > 0
	case domain.OpGreaterThanOrEqual:
		return cmp >= 0
	case domain.OpLessThan:
		return cmp < 0
	case domain.OpLessThanOrEqual:
		return cmp <= 0
	}
	return false
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
