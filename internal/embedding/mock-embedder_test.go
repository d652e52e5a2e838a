package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedder_deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "hello")
	b, _ := e.Embed(ctx, "hello")
	c, _ := e.Embed(ctx, "world")
	if len(a) != 16 {
		t.Fatalf("len = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should embed identically")
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Error("different texts should embed differently")
	}
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("expected unit norm, got %f", sum)
	}
}

func TestMockEmbedder_batch(t *testing.T) {
	e := NewMockEmbedder(0)
	out, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || len(out[0]) != 384 {
		t.Errorf("unexpected shape: %d x %d", len(out), len(out[0]))
	}
}

func TestMockEmbedder_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockEmbedder(4).Embed(ctx, "x"); err == nil {
		t.Error("expected context error")
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}
