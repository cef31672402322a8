package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateFileReportsCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.yaml")
	raw := `
id: loop
title: Loop
questions:
  - id: a
    text: A
    type: text
    order: 1
  - id: b
    text: B
    type: rating
    order: 2
    default: {kind: goto, questionId: a}
rules:
  - id: r1
    sourceQuestionId: a
    condition: {operator: contains, values: ["x"]}
    target: {kind: goto, questionId: b}
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out bytes.Buffer
	ok, err := validateFile(&out, path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ok {
		t.Fatalf("expected cycle to fail validation")
	}
	if !strings.Contains(out.String(), "cycle detected") {
		t.Fatalf("expected cycle in output, got %q", out.String())
	}
}

func TestValidateFileAcceptsSamples(t *testing.T) {
	dir := t.TempDir()
	for _, s := range sampleSurveys() {
		path := filepath.Join(dir, s.ID+".json")
		data := mustJSON(t, s)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		var out bytes.Buffer
		ok, err := validateFile(&out, path)
		if err != nil || !ok {
			t.Fatalf("expected sample %s valid, got ok=%v err=%v output=%q", s.ID, ok, err, out.String())
		}
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
