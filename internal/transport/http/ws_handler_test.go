package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketConversation(t *testing.T) {
	server := httptest.NewServer(newTestRouter(t))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?surveyId=age"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the first question.
	_, payload := readNext(conn, t, "question")
	if questionID(payload) != "q1" {
		t.Fatalf("expected q1, got %v", payload)
	}

	// An unknown option is reported and the question asked again.
	send(t, conn, "answer", map[string]any{"questionId": "q1", "answer": "Over 90"})
	readNext(conn, t, "error")
	_, payload = readNext(conn, t, "question")
	if questionID(payload) != "q1" {
		t.Fatalf("expected q1 re-asked, got %v", payload)
	}

	send(t, conn, "answer", map[string]any{"questionId": "q1", "answer": "18 to 65"})
	_, payload = readNext(conn, t, "question")
	if questionID(payload) != "q2" {
		t.Fatalf("expected q2, got %v", payload)
	}

	send(t, conn, "answer", map[string]any{"questionId": "q2", "answer": "Plumber"})
	_, payload = readNext(conn, t, "completed")
	if payload["status"] != "completed" {
		t.Fatalf("expected completed status, got %v", payload)
	}
}

func TestWebSocketResumeAndCancel(t *testing.T) {
	server := httptest.NewServer(newTestRouter(t))
	defer server.Close()
	base := "ws" + server.URL[len("http"):] + "/ws"

	first, _, err := websocket.DefaultDialer.Dial(base+"?surveyId=age", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_, payload := readNext(first, t, "question")
	responseID, _ := payload["responseId"].(string)
	first.Close()

	conn, _, err := websocket.DefaultDialer.Dial(base+"?responseId="+responseID, nil)
	if err != nil {
		t.Fatalf("dial resume: %v", err)
	}
	defer conn.Close()
	_, payload = readNext(conn, t, "question")
	if questionID(payload) != "q1" {
		t.Fatalf("expected resumed at q1, got %v", payload)
	}

	send(t, conn, "cancel", nil)
	readNext(conn, t, "cancelled")
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func questionID(payload map[string]any) string {
	q, _ := payload["question"].(map[string]any)
	id, _ := q["id"].(string)
	return id
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}
