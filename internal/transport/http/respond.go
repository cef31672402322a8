package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
)

type errorBody struct {
	Error      string                 `json:"error"`
	Answer     *domain.AnswerError    `json:"answerError,omitempty"`
	Validation *flow.ValidationResult `json:"validation,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var answerErr *domain.AnswerError
	if errors.As(err, &answerErr) {
		body.Answer = answerErr
	}
	writeJSON(w, statusFor(err), body)
}

// writeValidationError attaches the validator's findings when there are any.
func writeValidationError(w http.ResponseWriter, err error, res flow.ValidationResult) {
	body := errorBody{Error: err.Error()}
	if !res.Valid() {
		body.Validation = &res
	}
	writeJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	var (
		answerErr   *domain.AnswerError
		ruleErr     *domain.RuleError
		questionErr *domain.QuestionError
	)
	switch {
	case errors.Is(err, domain.ErrSurveyNotFound),
		errors.Is(err, domain.ErrResponseNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSurveyInactive),
		errors.Is(err, domain.ErrSurveyLocked),
		errors.Is(err, domain.ErrResponseClosed),
		errors.Is(err, domain.ErrResponseExpired),
		errors.Is(err, domain.ErrQuestionMismatch),
		errors.Is(err, domain.ErrBackAtStart):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSurveyInvalid),
		errors.Is(err, domain.ErrSurveyEmpty),
		errors.Is(err, domain.ErrDuplicateQuestion),
		errors.Is(err, domain.ErrQuestionRequired),
		errors.As(err, &answerErr),
		errors.As(err, &ruleErr),
		errors.As(err, &questionErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
