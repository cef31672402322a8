package domain

import "time"

// ResponseStatus is the lifecycle state of a respondent's attempt.
type ResponseStatus string

const (
	StatusNotStarted ResponseStatus = "not_started"
	StatusInProgress ResponseStatus = "in_progress"
	StatusCompleted  ResponseStatus = "completed"
	StatusCancelled  ResponseStatus = "cancelled"
	StatusExpired    ResponseStatus = "expired"
)

// Terminal reports whether no further transitions are accepted.
func (s ResponseStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Response is the conversation state of one respondent walking one survey.
type Response struct {
	ID                string         `json:"id"`
	SurveyID          string         `json:"surveyId"`
	Status            ResponseStatus `json:"status"`
	CurrentQuestionID string         `json:"currentQuestionId,omitempty"`
	// Visited is the ordered path of questions shown, current question last.
	Visited    []string   `json:"visited"`
	Answers    AnswerSet  `json:"answers"`
	StartedAt  time.Time  `json:"startedAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Clone returns a deep copy safe to mutate. Answer values are immutable and shared.
func (r Response) Clone() Response {
	out := r
	out.Visited = append([]string(nil), r.Visited...)
	out.Answers = make(AnswerSet, len(r.Answers))
	for k, v := range r.Answers {
		out.Answers[k] = v
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// HasVisited reports whether questionID is on the visited path.
func (r Response) HasVisited(questionID string) bool {
	for _, id := range r.Visited {
		if id == questionID {
			return true
		}
	}
	return false
}
