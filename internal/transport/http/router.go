package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the REST API under /v1, the chat websocket, health and metrics.
// metrics may be nil.
func NewRouter(h *Handler, ws *WSHandler, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/surveys", h.SaveSurvey).Methods("POST")
	v1.HandleFunc("/surveys/{surveyId}", h.GetSurvey).Methods("GET")
	v1.HandleFunc("/surveys/{surveyId}/validate", h.ValidateSurvey).Methods("POST")
	v1.HandleFunc("/surveys/{surveyId}/activate", h.ActivateSurvey).Methods("POST")
	v1.HandleFunc("/surveys/{surveyId}/responses", h.StartResponse).Methods("POST")

	v1.HandleFunc("/responses/{responseId}", h.GetResponse).Methods("GET")
	v1.HandleFunc("/responses/{responseId}/current", h.CurrentStep).Methods("GET")
	v1.HandleFunc("/responses/{responseId}/answers", h.SubmitAnswer).Methods("POST")
	v1.HandleFunc("/responses/{responseId}/back", h.Back).Methods("POST")
	v1.HandleFunc("/responses/{responseId}/skip", h.Skip).Methods("POST")
	v1.HandleFunc("/responses/{responseId}/cancel", h.Cancel).Methods("POST")

	r.HandleFunc("/ws", ws.ServeWS).Methods("GET")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}
	return r
}
