package cli

import "survey-flow-service/internal/domain"

// sampleSurveys seeds the in-memory backend so the server is usable without a database.
func sampleSurveys() []domain.Survey {
	return []domain.Survey{
		{
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
		},
		{
			ID:     "feedback",
			Title:  "Visit feedback",
			Active: true,
			Questions: []domain.Question{
				{ID: "rating", Text: "How was your visit?", Type: domain.QuestionRating, Order: 1, Required: true},
				{ID: "issues", Text: "What went wrong?", Type: domain.QuestionMultipleChoice, Order: 2,
					Options: []domain.Option{
						{ID: "wait", Text: "Waiting time"},
						{ID: "staff", Text: "Staff"},
						{ID: "price", Text: "Price"},
					}},
				{ID: "spent", Text: "How much did you spend?", Type: domain.QuestionNumber, Order: 3},
				{ID: "visited", Text: "When did you visit?", Type: domain.QuestionDate, Order: 4},
				{ID: "where", Text: "Where were you?", Type: domain.QuestionLocation, Order: 5},
				{ID: "thanks", Text: "Anything else you liked?", Type: domain.QuestionText, Order: 6},
			},
			Rules: []domain.Rule{
				{ID: "happy", SourceQuestionID: "rating",
					Condition: domain.Condition{Operator: domain.OpGreaterThanOrEqual, Values: []string{"4"}},
					Target:    domain.GoTo("thanks")},
				{ID: "big-spender", SourceQuestionID: "spent",
					Condition: domain.Condition{Operator: domain.OpGreaterThan, Values: []string{"100"}},
					Target:    domain.GoTo("where")},
			},
		},
	}
}
