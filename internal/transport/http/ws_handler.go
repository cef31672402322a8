package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"survey-flow-service/internal/app"
	"survey-flow-service/internal/domain"
)

// WSHandler runs a survey as a chat: the server asks, the client answers,
// until the response reaches a terminal status.
type WSHandler struct {
	service  *app.FlowService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.FlowService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string              `json:"message"`
	Answer  *domain.AnswerError `json:"answerError,omitempty"`
}

func newError(err error) outboundMessage[any] {
	p := errorPayload{Message: err.Error()}
	var answerErr *domain.AnswerError
	if errors.As(err, &answerErr) {
		p.Answer = answerErr
	}
	return outboundMessage[any]{Type: "error", Payload: p}
}

// stepMessage names the message after the response status: "question" while
// in progress, otherwise the terminal status.
func stepMessage(res app.StepResult) outboundMessage[any] {
	typ := "question"
	if res.Status != domain.StatusInProgress {
		typ = string(res.Status)
	}
	return outboundMessage[any]{Type: typ, Payload: res}
}

// ServeWS starts a response for ?surveyId= or resumes one with ?responseId=.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	surveyID := r.URL.Query().Get("surveyId")
	responseID := r.URL.Query().Get("responseId")
	if surveyID == "" && responseID == "" {
		http.Error(w, "missing surveyId or responseId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	var first app.StepResult
	if responseID != "" {
		first, err = h.service.Current(ctx, responseID)
	} else {
		first, err = h.service.StartResponse(ctx, surveyID)
	}
	if err != nil {
		_ = conn.WriteJSON(newError(err))
		if first.Status.Terminal() {
			_ = conn.WriteJSON(stepMessage(first))
		}
		return
	}
	responseID = first.ResponseID

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", slog.String("response_id", responseID), slog.Any("error", err))
				return
			}
		}
	}()
	defer func() {
		close(send)
		<-writerDone
	}()

	send <- stepMessage(first)
	if first.Status.Terminal() {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		var (
			res app.StepResult
			err error
		)
		switch inbound.Type {
		case "answer":
			var payload answerRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			res, err = h.service.SubmitAnswer(ctx, responseID, payload.QuestionID, payload.Answer)
		case "back":
			res, err = h.service.Back(ctx, responseID)
		case "skip":
			res, err = h.service.Skip(ctx, responseID)
		case "cancel":
			res, err = h.service.Cancel(ctx, responseID)
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
			continue
		}

		if err != nil {
			send <- newError(err)
			// Re-ask the pending question, or report why the conversation ended.
			if res.Status == "" {
				continue
			}
		}
		send <- stepMessage(res)
		if res.Status.Terminal() {
			return
		}
	}
}
