package indexer

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunker_Split(t *testing.T) {
	c := NewChunker(10, 3)
	text := "abcdefghijklmnopqrstuvwxyz"
	got := c.Split(text)
	want := []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxyz"}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunker_SplitOverlap(t *testing.T) {
	c := NewChunker(1000, 100)
	text := strings.Repeat("x", 2500)
	chunks := c.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if utf8.RuneCountInString(ch) > 1000 {
			t.Errorf("chunk %d longer than window: %d", i, len(ch))
		}
	}
}

func TestChunker_SplitEmpty(t *testing.T) {
	c := NewChunker(5, 1)
	for _, in := range []string{"", "   \n\t  "} {
		chunks := c.Split(in)
		if chunks == nil || len(chunks) != 0 {
			t.Errorf("Split(%q) = %v, want empty slice", in, chunks)
		}
	}
}

func TestChunker_SplitDropsWhitespaceWindows(t *testing.T) {
	c := NewChunker(4, 0)
	chunks := c.Split("abcd          efgh")
	for _, ch := range chunks {
		if strings.TrimSpace(ch) == "" {
			t.Errorf("whitespace-only chunk returned: %q", chunks)
		}
	}
	if len(chunks) != 3 {
		t.Errorf("expected 3 chunks, got %q", chunks)
	}
}

func TestChunker_SplitMultibyte(t *testing.T) {
	c := NewChunker(3, 1)
	text := "日本語のテキストです"
	for i, ch := range c.Split(text) {
		if !utf8.ValidString(ch) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, ch)
		}
		if utf8.RuneCountInString(ch) > 3 {
			t.Errorf("chunk %d exceeds 3 characters: %q", i, ch)
		}
	}
}

func TestChunker_OverlapClamped(t *testing.T) {
	c := NewChunker(5, 5)
	chunks := c.Split("abcdefgh")
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	if c.chunkOverlap != 4 {
		t.Errorf("overlap = %d, want 4", c.chunkOverlap)
	}
}

func TestChunker_Chunk(t *testing.T) {
	c := NewChunker(10, 2)
	chunks := c.Chunk("docs", "manual", strings.Repeat("word ", 10))
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.PDFName != "manual" || ch.Namespace != "docs" {
			t.Errorf("chunk %d has wrong owner: %+v", i, ch)
		}
		if ch.Index != i {
			t.Errorf("chunk %d Index=%d", i, ch.Index)
		}
	}
	again := c.Chunk("docs", "manual", strings.Repeat("word ", 10))
	for i := range chunks {
		if chunks[i].ID != again[i].ID {
			t.Errorf("chunk ids should be deterministic: %q vs %q", chunks[i].ID, again[i].ID)
		}
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a  b  ", "a b"},
		{"line one\r\nline two", "line one\nline two"},
		{"para\n\n\n\nnext", "para\n\nnext"},
		{"tab\tand\x00null", "tab andnull"},
		{"   \n\t ", ""},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
