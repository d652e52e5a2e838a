package fileid

import (
	"testing"

	"github.com/google/uuid"
)

func TestPDFName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report"},
		{"/tmp/inbox/docs/Q3 Report.PDF", "Q3 Report"},
		{"archive.tar.pdf", "archive.tar"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := PDFName(tt.in); got != tt.want {
			t.Errorf("PDFName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChunkID_deterministic(t *testing.T) {
	if ChunkID("doc", 3) != ChunkID("doc", 3) {
		t.Error("same inputs should give same ID")
	}
	if ChunkID("doc", 3) != "doc-chunk-3" {
		t.Errorf("unexpected format: %q", ChunkID("doc", 3))
	}
	if ChunkID("doc", 1) == ChunkID("other", 1) {
		t.Error("different documents must not collide")
	}
}

func TestPointID(t *testing.T) {
	id1 := PointID("A", "doc-chunk-0")
	id2 := PointID("A", "doc-chunk-0")
	if id1 != id2 {
		t.Errorf("point id should be stable: %q vs %q", id1, id2)
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("point id is not a UUID: %v", err)
	}
	if PointID("B", "doc-chunk-0") == id1 {
		t.Error("namespaces must produce distinct point ids")
	}
}
