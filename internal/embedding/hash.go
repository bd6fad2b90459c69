package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// =============================================================================
// HASH EMBEDDING ENGINE
// =============================================================================

// HashEngine is a deterministic token-hashing embedder. It has no semantic
// power beyond lexical overlap, but it is dependency-free and stable, which
// keeps indexing, search and the full simulation pipeline runnable with no
// external services. Also the engine the tests use.
type HashEngine struct {
	dims int
}

// NewHashEngine creates a hash engine. dims <= 0 selects the default of 256.
func NewHashEngine(dims int) *HashEngine {
	if dims <= 0 {
		dims = 256
	}
	return &HashEngine{dims: dims}
}

// Embed maps each token into a bucket by FNV hash and L2-normalizes the
// resulting term-frequency vector.
func (e *HashEngine) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]{}")
		if tok == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dims)]++
	}

	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag > 0 {
		norm := float32(math.Sqrt(mag))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// EmbedBatch embeds texts sequentially.
func (e *HashEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured dimensionality.
func (e *HashEngine) Dimensions() int { return e.dims }

// Name returns the engine name.
func (e *HashEngine) Name() string { return "hash" }
