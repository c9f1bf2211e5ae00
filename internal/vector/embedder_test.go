package vector

import (
	"context"
	"math"
	"testing"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(100)

	a, err := e.Embed(ctx, "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(ctx, "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at dim %d: %v != %v", i, a[i], b[i])
		}
	}

	// A fresh embedder with no memoized words must agree too.
	fresh := NewHashEmbedder(100)
	c, _ := fresh.Embed(ctx, "the quick brown fox")
	for i := range a {
		if a[i] != c[i] {
			t.Fatalf("embedding differs across embedder instances at dim %d", i)
		}
	}
}

func TestHashEmbedder_Normalization(t *testing.T) {
	e := NewHashEmbedder(100)

	vec, err := e.Embed(context.Background(), "normalize this sentence please")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 100 {
		t.Fatalf("dimension = %d, want 100", len(vec))
	}

	var magnitude float64
	for _, v := range vec {
		magnitude += v * v
	}
	magnitude = math.Sqrt(magnitude)
	if math.Abs(magnitude-1) > 1e-9 {
		t.Errorf("magnitude = %v, want 1", magnitude)
	}
}

func TestHashEmbedder_EmptyInput(t *testing.T) {
	e := NewHashEmbedder(100)

	tests := []string{"", "   ", "!!! ??? ...", "\t\n"}
	for _, text := range tests {
		vec, err := e.Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("Embed(%q): %v", text, err)
		}
		for i, v := range vec {
			if v != 0 {
				t.Fatalf("Embed(%q)[%d] = %v, want zero vector", text, i, v)
			}
		}
	}
}

func TestHashEmbedder_CaseAndPunctuationInsensitive(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(100)

	a, _ := e.Embed(ctx, "Hello, World!")
	b, _ := e.Embed(ctx, "hello world")

	sim := CosineSimilarity(a, b)
	if math.Abs(sim-1) > 1e-9 {
		t.Errorf("case/punctuation variants should embed identically, similarity = %v", sim)
	}
}

func TestHashEmbedder_DifferentTextsDiffer(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(100)

	a, _ := e.Embed(ctx, "completely unrelated subject")
	b, _ := e.Embed(ctx, "quantum yak farming techniques")

	sim := CosineSimilarity(a, b)
	if sim > 0.999 {
		t.Errorf("distinct texts should not be near-identical, similarity = %v", sim)
	}
}
