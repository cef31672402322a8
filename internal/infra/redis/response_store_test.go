package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"survey-flow-service/internal/domain"
)

func TestResponseStoreRoundTripAndTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewResponseStore(newClient(mr), time.Minute)
	r := domain.Response{
		ID:                "resp-1",
		SurveyID:          "survey-1",
		Status:            domain.StatusInProgress,
		CurrentQuestionID: "q2",
		Visited:           []string{"q1", "q2"},
		Answers:           domain.AnswerSet{"q1": domain.RatingAnswer{Value: 2}},
		StartedAt:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, r); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("survey:response:resp-1"); ttl != time.Minute {
		t.Fatalf("expected ttl of one minute, got %s", ttl)
	}

	loaded, err := store.Load(ctx, "resp-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.CurrentQuestionID != "q2" || len(loaded.Visited) != 2 || !loaded.Answers["q1"].Equal(domain.RatingAnswer{Value: 2}) {
		t.Fatalf("unexpected loaded response %+v", loaded)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Load(ctx, "resp-1"); !errors.Is(err, domain.ErrResponseNotFound) {
		t.Fatalf("expected expired response, got %v", err)
	}
}

func TestResponseStoreDelete(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewResponseStore(newClient(mr), time.Minute)
	_ = store.Save(context.Background(), domain.Response{ID: "resp-2", Answers: domain.AnswerSet{}})
	if err := store.Delete(context.Background(), "resp-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("survey:response:resp-2") {
		t.Fatalf("expected key removed")
	}
}
