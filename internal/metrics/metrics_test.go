package metrics

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
)

func TestMetricsObservesEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	engine := flow.NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), flow.WithObserver(m))

	g, err := flow.NewGraph(domain.Survey{
		ID: "loop",
		Questions: []domain.Question{
			{ID: "q1", Type: domain.QuestionText, Order: 1, Default: domain.GoTo("q1")},
		},
	})
	if err != nil {
		t.Fatalf("graph: %v", err)
	}

	r, err := engine.Start(g, "resp-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, step, err := engine.Answer(g, r, "q1", []byte(`"hi"`)); err != nil || step.Anomaly != flow.AnomalyCycleGuard {
		t.Fatalf("expected cycle guard, got %+v err=%v", step, err)
	}

	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("start", string(domain.StatusInProgress))); got != 1 {
		t.Fatalf("expected 1 start transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.Anomalies.WithLabelValues(string(flow.AnomalyCycleGuard))); got != 1 {
		t.Fatalf("expected 1 cycle guard anomaly, got %v", got)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveValidation(false)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `survey_flow_validator_runs_total{result="invalid"} 1`) {
		t.Fatalf("expected validation counter in output:\n%s", rec.Body.String())
	}
}
