package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/tanya/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"text": OutputText, "JSON": OutputJSON, "json": OutputJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for yaml")
	}
}

func TestWriteAnswer(t *testing.T) {
	ans := &models.Answer{Text: "Twenty days.", Sources: []string{"hr|handbook", "hr|faq"}}

	var buf bytes.Buffer
	if err := WriteAnswer(&buf, ans, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Twenty days.", "Sources: hr|handbook, hr|faq"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteAnswer(&buf, ans, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.Answer
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Text != ans.Text || len(decoded.Sources) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteAnswer_fallbackHasNoSources(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, &models.Answer{Text: "Maybe try rephrasing?", Fallback: true}, OutputText); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Sources:") {
		t.Errorf("fallback output should not list sources:\n%s", buf.String())
	}
}

func TestWriteIngestResult_text(t *testing.T) {
	res := &models.IngestResult{
		Namespace: "hr",
		Stored:    []models.FileResult{{File: "a.pdf", PDFName: "a", Chunks: 4}},
		Skipped:   []models.FileResult{{File: "b.pdf", Reason: models.ReasonNoText}},
		Duration:  1500 * time.Millisecond,
	}
	var buf bytes.Buffer
	if err := WriteIngestResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Namespace hr: 1 stored, 1 skipped", "+ a.pdf (4 chunks)", "- b.pdf: no extractable text"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteNamespaces(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteNamespaces(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty JSON = %q, want []", buf.String())
	}

	buf.Reset()
	if err := WriteNamespaces(&buf, []string{"a", "b"}, OutputText); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "a\nb\n" {
		t.Errorf("text = %q", buf.String())
	}
}

func TestWriteHistory(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	turns := []models.ConversationTurn{
		{Namespace: "hr", Sender: models.SenderUser, Message: "how many vacation days do I get this year", Timestamp: ts},
		{Namespace: "hr", Sender: models.SenderAssistant, Message: "Twenty.", Sources: []string{"handbook"}, Timestamp: ts},
	}
	var buf bytes.Buffer
	if err := WriteHistory(&buf, "hr", turns, OutputText, 3); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"2024-03-01 09:30:00", "user:", "how many vacation...", "assistant:", "sources: handbook"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteHistory(&buf, "empty", nil, OutputText, 0); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No conversation in empty") {
		t.Errorf("empty history text = %q", buf.String())
	}

	buf.Reset()
	if err := WriteHistory(&buf, "hr", turns, OutputJSON, 3); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Namespace string                    `json:"namespace"`
		History   []models.ConversationTurn `json:"history"`
	}
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Namespace != "hr" || len(decoded.History) != 2 || decoded.History[0].Message != turns[0].Message {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteStatus_text(t *testing.T) {
	status := map[string]any{
		"namespaces":         2,
		"conversation_turns": 10,
		"config":             map[string]any{"vector_store_type": "bolt", "chunk_size": 1000},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"namespaces:", "conversation_turns:", "vector_store_type:", "bolt", "1000"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateWords(tt.s, tt.maxWords); got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
