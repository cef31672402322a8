package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"survey-flow-service/internal/app"
	"survey-flow-service/internal/domain"
)

// Handler serves the REST surface of the flow service.
type Handler struct {
	service *app.FlowService
}

func NewHandler(service *app.FlowService) *Handler {
	return &Handler{service: service}
}

type answerRequest struct {
	QuestionID string          `json:"questionId"`
	Answer     json.RawMessage `json:"answer"`
}

func (h *Handler) SaveSurvey(w http.ResponseWriter, r *http.Request) {
	var survey domain.Survey
	if err := json.NewDecoder(r.Body).Decode(&survey); err != nil {
		writeError(w, http.StatusBadRequest, "invalid survey document: "+err.Error())
		return
	}
	res, err := h.service.SaveSurvey(r.Context(), survey)
	if err != nil {
		writeValidationError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	survey, err := h.service.GetSurvey(r.Context(), mux.Vars(r)["surveyId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, survey)
}

func (h *Handler) ValidateSurvey(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ValidateGraph(r.Context(), mux.Vars(r)["surveyId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ActivateSurvey(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ActivateSurvey(r.Context(), mux.Vars(r)["surveyId"])
	if err != nil {
		writeValidationError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) StartResponse(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.StartResponse(r.Context(), mux.Vars(r)["surveyId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) GetResponse(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetResponse(r.Context(), mux.Vars(r)["responseId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CurrentStep(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.service.Current)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid answer payload")
		return
	}
	res, err := h.service.SubmitAnswer(r.Context(), mux.Vars(r)["responseId"], req.QuestionID, req.Answer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request)   { h.step(w, r, h.service.Back) }
func (h *Handler) Skip(w http.ResponseWriter, r *http.Request)   { h.step(w, r, h.service.Skip) }
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) { h.step(w, r, h.service.Cancel) }

type stepFunc func(ctx context.Context, responseID string) (app.StepResult, error)

func (h *Handler) step(w http.ResponseWriter, r *http.Request, fn stepFunc) {
	res, err := fn(r.Context(), mux.Vars(r)["responseId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
