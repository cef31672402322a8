package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSurveyNotFound indicates the survey graph could not be loaded.
	ErrSurveyNotFound = errors.New("survey not found")
	// ErrSurveyInactive is returned when a respondent starts a survey that has not been activated.
	ErrSurveyInactive = errors.New("survey is not active")
	// ErrSurveyLocked is returned when an edit or re-validation is attempted on a locked survey.
	ErrSurveyLocked = errors.New("survey can no longer be edited")
	// ErrSurveyInvalid is returned when activation is attempted on a graph that fails validation.
	ErrSurveyInvalid = errors.New("survey flow is invalid")
	// ErrSurveyEmpty indicates a survey without questions.
	ErrSurveyEmpty = errors.New("survey has no questions")
	// ErrDuplicateQuestion indicates two questions share an id.
	ErrDuplicateQuestion = errors.New("duplicate question id")

	// ErrResponseNotFound indicates no response state exists for the id.
	ErrResponseNotFound = errors.New("response not found")
	// ErrResponseClosed is returned for transitions on a completed, cancelled or expired response.
	ErrResponseClosed = errors.New("response is no longer in progress")
	// ErrResponseExpired is returned when a response was abandoned past the inactivity timeout.
	ErrResponseExpired = errors.New("response expired")
	// ErrQuestionNotFound indicates a question id is not part of the survey.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionMismatch is returned when an answer targets a question other than the current one.
	ErrQuestionMismatch = errors.New("question is not the current question")
	// ErrQuestionRequired is returned when skipping a required question.
	ErrQuestionRequired = errors.New("question is required")
	// ErrBackAtStart is returned when Back is requested on the first question.
	ErrBackAtStart = errors.New("already at the first question")
)

// AnswerErrorKind classifies answer parse failures.
type AnswerErrorKind string

const (
	InvalidFormat AnswerErrorKind = "invalid_format"
	OutOfRange    AnswerErrorKind = "out_of_range"
	TypeMismatch  AnswerErrorKind = "type_mismatch"
)

// AnswerError reports a raw answer that could not be turned into a typed value.
type AnswerError struct {
	Kind       AnswerErrorKind `json:"kind"`
	QuestionID string          `json:"questionId"`
	Field      string          `json:"field,omitempty"`
	Msg        string          `json:"message"`
}

func (e *AnswerError) Error() string {
	field := ""
	if e.Field != "" {
		field = " (" + e.Field + ")"
	}
	return fmt.Sprintf("question %s%s: %s: %s", e.QuestionID, field, e.Kind, e.Msg)
}

// RuleError reports a rule whose condition cannot apply to its source question.
type RuleError struct {
	RuleID     string `json:"ruleId"`
	QuestionID string `json:"questionId"`
	Msg        string `json:"message"`
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s on question %s: %s", e.RuleID, e.QuestionID, e.Msg)
}

// QuestionError reports a question definition that no answer could satisfy.
type QuestionError struct {
	QuestionID string `json:"questionId"`
	Msg        string `json:"message"`
}

func (e *QuestionError) Error() string {
	return fmt.Sprintf("question %s: %s", e.QuestionID, e.Msg)
}
