package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"forest/internal/logging"
)

// DeterministicEngine embeds text by hash-projecting it onto a fixed number
// of dimensions and normalizing to unit length. It makes no network call and
// is the only engine guaranteed to produce the same vector for the same
// input every time - the property the HTA Store and Strategy Evolver rely
// on when mirroring goals, branches and tasks into the vector index without
// a configured Ollama or GenAI backend.
type DeterministicEngine struct {
	dim int
}

// NewDeterministicEngine creates the default embedding engine.
func NewDeterministicEngine(dim int) *DeterministicEngine {
	if dim <= 0 {
		dim = 256
	}
	return &DeterministicEngine{dim: dim}
}

// Embed hashes the text into a seed stream and fills the vector with
// pseudo-random, but input-derived, components before normalizing.
func (e *DeterministicEngine) Embed(_ context.Context, text string) ([]float32, error) {
	logging.EmbeddingDebug("deterministic embed: text_length=%d dim=%d", len(text), e.dim)

	vec := make([]float32, e.dim)
	seed := sha256.Sum256([]byte(text))

	block := seed
	for i := 0; i < e.dim; i++ {
		if i > 0 && i%len(block) == 0 {
			block = sha256.Sum256(block[:])
		}
		offset := i % (len(block) - 4)
		bits := binary.LittleEndian.Uint32(block[offset : offset+4])
		// Map to [-1, 1).
		vec[i] = float32(bits)/float32(math.MaxUint32)*2 - 1
	}

	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *DeterministicEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the configured vector dimension.
func (e *DeterministicEngine) Dimensions() int { return e.dim }

// Name returns the engine name.
func (e *DeterministicEngine) Name() string { return "deterministic" }

// HealthCheck always succeeds: there is no external dependency to fail.
func (e *DeterministicEngine) HealthCheck(context.Context) error { return nil }

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
