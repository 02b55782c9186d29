package embedding

import (
	"context"
	"math"
	"testing"
)

func TestDeterministicEngineSameInputSameOutput(t *testing.T) {
	e := NewDeterministicEngine(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Master portrait photography")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(ctx, "Master portrait photography")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(a) != 64 {
		t.Fatalf("expected dim 64, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same input produced different vectors at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestDeterministicEngineDifferentInputDifferentOutput(t *testing.T) {
	e := NewDeterministicEngine(32)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "Master portrait photography")
	b, _ := e.Embed(ctx, "Learn mobile app development")

	equal := true
	for i := range a {
		if a[i] != b[i] {
			equal = false
			break
		}
	}
	if equal {
		t.Fatalf("distinct inputs produced identical vectors")
	}
}

func TestDeterministicEngineProducesUnitVector(t *testing.T) {
	e := NewDeterministicEngine(128)
	v, err := e.Embed(context.Background(), "Understanding exposure triangle")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 1e-3 {
		t.Fatalf("expected unit-norm vector, got norm=%v", norm)
	}
}

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{1, 0, 0}
	sim, err := CosineSimilarity(v, v)
	if err != nil {
		t.Fatalf("CosineSimilarity: %v", err)
	}
	if math.Abs(sim-1.0) > 1e-9 {
		t.Fatalf("expected similarity 1.0, got %v", sim)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	if err == nil {
		t.Fatalf("expected error on dimension mismatch")
	}
}

func TestNewEngineDefaultsToDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if engine.Name() != "deterministic" {
		t.Fatalf("expected deterministic engine, got %s", engine.Name())
	}
	if engine.Dimensions() != cfg.Dim {
		t.Fatalf("expected dim %d, got %d", cfg.Dim, engine.Dimensions())
	}
}
