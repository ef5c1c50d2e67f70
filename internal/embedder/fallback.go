package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
)

// FallbackDimension is the fixed vector size produced in fallback mode.
const FallbackDimension = 384

// Fallback is a deterministic, non-semantic embedder used when no primary
// embedding model can be reached. The vector is a pure function of the
// normalized (lowercased, trimmed) input text, so identical text always
// produces the identical vector. Semantic fidelity is materially lower than
// a real model; health reporting must surface that this mode is active.
type Fallback struct {
	// dim is the output vector length.
	dim int
}

// NewFallback constructs a Fallback embedder with the standard dimension.
func NewFallback() *Fallback {
	return &Fallback{dim: FallbackDimension}
}

// ModelName returns the synthetic model label used in health reporting.
func (f *Fallback) ModelName() string { return "deterministic-fallback" }

// Dimension returns the output vector length.
func (f *Fallback) Dimension() int { return f.dim }

// Embed produces one deterministic vector per input text. Empty (after trim)
// texts map to zero vectors; validation of empties is the Generator's job.
// The context is accepted for interface symmetry — no I/O happens here.
func (f *Fallback) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.embedOne(text)
	}
	return out, nil
}

// embedOne maps a single text into the fixed-dimension space.
//
// The construction blends three deterministic signals per component — a
// sha256 hex-pair base value, a character codepoint value, and a log length
// factor — pushes the blend through a sine to spread values, pads remaining
// components with a positional sine, and L2-normalizes the result so cosine
// distances stay in [0, 2].
func (f *Fallback) embedOne(text string) []float32 {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return make([]float32, f.dim)
	}

	chars := []rune(normalized)
	sum := sha256.Sum256([]byte(normalized))
	digest := hex.EncodeToString(sum[:])

	lengthFactor := math.Log(float64(len(chars))+1) / 10.0

	vec := make([]float64, 0, f.dim)
	limit := min(len(digest), f.dim*2)
	for i := 0; i+2 <= limit && len(vec) < f.dim; i += 2 {
		pairVal, _ := hexPairValue(digest[i : i+2])
		base := pairVal / 255.0

		ch := chars[len(vec)%len(chars)]
		charVal := float64(ch) / 255.0

		v := base*0.6 + charVal*0.3 + lengthFactor*0.1
		vec = append(vec, (math.Sin(v*math.Pi*2)+1)/2)
	}

	// Pad remaining components with a position-dependent sine so long and
	// short texts diverge even past the digest-derived prefix.
	for len(vec) < f.dim {
		pos := float64(len(vec))
		vec = append(vec, (math.Sin(pos*float64(len(chars))/100.0)+1)/2)
	}

	var magnitude float64
	for _, v := range vec {
		magnitude += v * v
	}
	magnitude = math.Sqrt(magnitude)

	out := make([]float32, f.dim)
	for i, v := range vec {
		if magnitude > 0 {
			v /= magnitude
		}
		out[i] = float32(v)
	}
	return out
}

// hexPairValue parses a two-character hex string into its numeric value.
func hexPairValue(pair string) (float64, error) {
	b, err := hex.DecodeString(pair)
	if err != nil || len(b) != 1 {
		return 0, err
	}
	return float64(b[0]), nil
}
