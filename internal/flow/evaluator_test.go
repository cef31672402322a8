package flow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"survey-flow-service/internal/domain"
)

func TestEvaluateFirstMatchWins(t *testing.T) {
	rules := []domain.Rule{
		rule("never", "q1", domain.OpLessThan, "2", domain.GoTo("q2")),
		rule("first", "q1", domain.OpGreaterThanOrEqual, "3", domain.GoTo("q3")),
		rule("second", "q1", domain.OpGreaterThan, "3", domain.GoTo("q4")),
		rule("third", "q1", domain.OpEquals, "5", domain.End()),
	}
	d, ok := Evaluate(rules, domain.RatingAnswer{Value: 5})
	if !ok || !d.Equal(domain.GoTo("q3")) {
		t.Fatalf("expected earliest matching rule (q3), got %s matched=%v", d, ok)
	}

	reordered := []domain.Rule{rules[3], rules[1], rules[2]}
	d, ok = Evaluate(reordered, domain.RatingAnswer{Value: 5})
	if !ok || !d.Equal(domain.End()) {
		t.Fatalf("expected order-sensitive result end, got %s", d)
	}
}

func TestEvaluateNoMatchAndNilAnswer(t *testing.T) {
	rules := []domain.Rule{rule("r1", "q1", domain.OpEquals, "yes", domain.End())}
	if _, ok := Evaluate(rules, domain.TextAnswer{Value: "no"}); ok {
		t.Fatalf("expected no match")
	}
	if _, ok := Evaluate(rules, nil); ok {
		t.Fatalf("expected nil answer never to match")
	}
	if _, ok := Evaluate(nil, domain.TextAnswer{Value: "yes"}); ok {
		t.Fatalf("expected empty rule list never to match")
	}
}

func TestHoldsByType(t *testing.T) {
	date, _ := domain.ParseDate("2024-06-01")
	cases := []struct {
		name   string
		cond   domain.Condition
		answer domain.Answer
		want   bool
	}{
		{"text equals ignores case", cond(domain.OpEquals, "Yes"), domain.TextAnswer{Value: "yes"}, true},
		{"text contains", cond(domain.OpContains, "slow"), domain.TextAnswer{Value: "Delivery was Slow"}, true},
		{"text in", cond(domain.OpIn, "a", "b"), domain.TextAnswer{Value: "B"}, true},
		{"single equals", cond(domain.OpEquals, "minor"), domain.SingleChoiceAnswer{OptionID: "minor"}, true},
		{"single in", cond(domain.OpIn, "adult", "senior"), domain.SingleChoiceAnswer{OptionID: "minor"}, false},
		{"multi contains", cond(domain.OpContains, "red"), domain.NewMultipleChoiceAnswer("blue", "red"), true},
		{"multi equals set", cond(domain.OpEquals, "red", "blue"), domain.NewMultipleChoiceAnswer("blue", "red"), true},
		{"multi equals subset", cond(domain.OpEquals, "red"), domain.NewMultipleChoiceAnswer("blue", "red"), false},
		{"multi in any", cond(domain.OpIn, "green", "blue"), domain.NewMultipleChoiceAnswer("blue", "red"), true},
		{"rating lte", cond(domain.OpLessThanOrEqual, "2"), domain.RatingAnswer{Value: 2}, true},
		{"number gt", cond(domain.OpGreaterThan, "10.5"), domain.NumberAnswer{Value: decimal.RequireFromString("10.50")}, false},
		{"number gte", cond(domain.OpGreaterThanOrEqual, "10.5"), domain.NumberAnswer{Value: decimal.RequireFromString("10.50")}, true},
		{"date lt", cond(domain.OpLessThan, "2024-07-01"), date, true},
		{"date equals", cond(domain.OpEquals, "2024-06-01"), domain.NewDateAnswer(time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)), true},
		{"ordering on text never holds", cond(domain.OpGreaterThan, "a"), domain.TextAnswer{Value: "b"}, false},
		{"contains on rating never holds", cond(domain.OpContains, "1"), domain.RatingAnswer{Value: 1}, false},
		{"location never holds", cond(domain.OpEquals, "1,1"), domain.LocationAnswer{Latitude: 1, Longitude: 1}, false},
		{"unparseable value", cond(domain.OpGreaterThan, "abc"), domain.RatingAnswer{Value: 3}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Holds(tc.cond, tc.answer); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestCheckRule(t *testing.T) {
	choice := domain.Question{ID: "age", Type: domain.QuestionSingleChoice, Options: []domain.Option{{ID: "minor"}, {ID: "adult"}}}
	rating := domain.Question{ID: "r", Type: domain.QuestionRating}
	location := domain.Question{ID: "loc", Type: domain.QuestionLocation}
	text := domain.Question{ID: "t", Type: domain.QuestionText}

	cases := []struct {
		name    string
		q       domain.Question
		r       domain.Rule
		wantErr bool
	}{
		{"choice equals option", choice, rule("r1", "age", domain.OpEquals, "minor", domain.End()), false},
		{"choice unknown option", choice, rule("r1", "age", domain.OpEquals, "toddler", domain.End()), true},
		{"choice ordering", choice, rule("r1", "age", domain.OpGreaterThan, "minor", domain.End()), true},
		{"rating gt", rating, rule("r1", "r", domain.OpGreaterThan, "3", domain.End()), false},
		{"rating gt non-integer", rating, rule("r1", "r", domain.OpGreaterThan, "x", domain.End()), true},
		{"rating contains", rating, rule("r1", "r", domain.OpContains, "3", domain.End()), true},
		{"location equals", location, rule("r1", "loc", domain.OpEquals, "1,1", domain.End()), true},
		{"unknown operator", rating, rule("r1", "r", "between", "1", domain.End()), true},
		{"in with set", choice, domain.Rule{ID: "r1", SourceQuestionID: "age", Condition: cond(domain.OpIn, "minor", "adult")}, false},
		{"equals with two values", rating, domain.Rule{ID: "r1", SourceQuestionID: "r", Condition: cond(domain.OpEquals, "1", "2")}, true},
		{"text contains empty", text, rule("r1", "t", domain.OpContains, "", domain.End()), true},
		{"text equals blank", text, rule("r1", "t", domain.OpEquals, "  ", domain.End()), true},
		{"in with blank member", choice, domain.Rule{ID: "r1", SourceQuestionID: "age", Condition: cond(domain.OpIn, "minor", " ")}, true},
		{"text contains", text, rule("r1", "t", domain.OpContains, "bug", domain.End()), false},
		{"no values", rating, domain.Rule{ID: "r1", SourceQuestionID: "r", Condition: domain.Condition{Operator: domain.OpEquals}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckRule(tc.q, tc.r)
			if (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func cond(op domain.Operator, values ...string) domain.Condition {
	return domain.Condition{Operator: op, Values: values}
}
