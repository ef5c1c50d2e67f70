package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/corpuslabs/ragd/internal/rag"
)

// Mode is the embedding generator's lifecycle state. The state machine is
// Loading → ModelReady | FallbackActive; both post-Loading states are
// terminal for the process lifetime — there is no runtime recovery.
type Mode string

const (
	// ModeLoading is the initial state while the primary backend is probed.
	ModeLoading Mode = "loading"
	// ModeModelReady means the primary embedding model answered the probe.
	ModeModelReady Mode = "model_ready"
	// ModeFallbackActive means the primary model could not be reached and the
	// deterministic fallback serves all embeddings until restart.
	ModeFallbackActive Mode = "fallback_active"
)

// Backend is a primary embedding implementation that can name its model.
// OllamaBackend and OpenAIBackend satisfy it.
type Backend interface {
	rag.Embedder
	// ModelName returns the backend's embedding model identifier.
	ModelName() string
}

// GeneratorConfig holds the tunables for constructing a Generator.
type GeneratorConfig struct {
	// AllowEmpty permits empty (after trim) input texts, which embed to zero
	// vectors. When false, empty inputs fail with a ValidationError.
	AllowEmpty bool
}

// Generator is the embedding generator used by the whole pipeline. It wraps
// an optional primary backend with the deterministic fallback and pins its
// mode at construction time. Safe for concurrent use: all fields are
// immutable after NewGenerator returns.
type Generator struct {
	// primary is the active primary backend; nil in fallback mode.
	primary Backend
	// fallback serves embeddings when primary is nil.
	fallback *Fallback
	// mode is the terminal state reached during construction.
	mode Mode
	// dim is the embedding dimension, probed from the primary backend or
	// fixed by the fallback.
	dim int
	// modelName identifies the active embedding model for health reporting.
	modelName string
	// allowEmpty permits empty input texts.
	allowEmpty bool
}

// NewGenerator probes primary once and returns a Generator pinned to
// ModelReady or FallbackActive. A nil primary, or any probe failure, selects
// the fallback for the process lifetime; the failure is logged but never
// returned — per-request callers see only the resulting mode through health
// status.
func NewGenerator(ctx context.Context, primary Backend, cfg *GeneratorConfig, log *slog.Logger) *Generator {
	if cfg == nil {
		cfg = &GeneratorConfig{}
	}
	g := &Generator{
		fallback:   NewFallback(),
		mode:       ModeLoading,
		allowEmpty: cfg.AllowEmpty,
	}

	if primary != nil {
		vecs, err := primary.Embed(ctx, []string{"embedding readiness probe"})
		if err == nil && len(vecs) == 1 && len(vecs[0]) > 0 {
			g.primary = primary
			g.mode = ModeModelReady
			g.dim = len(vecs[0])
			g.modelName = primary.ModelName()
			log.Info("embedder: primary model ready",
				slog.String("model", g.modelName),
				slog.Int("dimension", g.dim),
			)
			return g
		}
		if err == nil {
			err = fmt.Errorf("probe returned %d vectors", len(vecs))
		}
		log.Warn("embedder: primary model unavailable, using deterministic fallback",
			slog.String("model", primary.ModelName()),
			slog.Any("error", err),
		)
	} else {
		log.Info("embedder: no primary backend configured, using deterministic fallback")
	}

	g.mode = ModeFallbackActive
	g.dim = g.fallback.Dimension()
	g.modelName = g.fallback.ModelName()
	return g
}

// Mode returns the generator's terminal state.
func (g *Generator) Mode() Mode { return g.mode }

// Fallback reports whether the deterministic fallback is active.
func (g *Generator) Fallback() bool { return g.mode == ModeFallbackActive }

// Dimension returns the embedding dimension all produced vectors share.
func (g *Generator) Dimension() int { return g.dim }

// ModelName returns the active embedding model identifier.
func (g *Generator) ModelName() string { return g.modelName }

// Embed converts a batch of texts into their embeddings. The returned slice
// is parallel to the input. Empty (after trim) texts fail with a
// ValidationError unless AllowEmpty was configured, in which case they embed
// to zero vectors regardless of mode.
func (g *Generator) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	empty := make([]bool, len(texts))
	nonEmpty := make([]string, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			if !g.allowEmpty {
				return nil, rag.Validationf("text", "must not be empty (input %d)", i)
			}
			empty[i] = true
			continue
		}
		nonEmpty = append(nonEmpty, t)
	}

	var embedded [][]float32
	if len(nonEmpty) > 0 {
		var err error
		if g.mode == ModeModelReady {
			embedded, err = g.primary.Embed(ctx, nonEmpty)
		} else {
			embedded, err = g.fallback.Embed(ctx, nonEmpty)
		}
		if err != nil {
			return nil, fmt.Errorf("embedder: generation failed: %w", err)
		}
		if len(embedded) != len(nonEmpty) {
			return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(nonEmpty), len(embedded))
		}
	}

	// Re-expand to input order, slotting zero vectors for permitted empties.
	out := make([][]float32, len(texts))
	next := 0
	for i := range texts {
		if empty[i] {
			out[i] = make([]float32, g.dim)
			continue
		}
		out[i] = embedded[next]
		next++
	}
	return out, nil
}

// EmbedOne embeds a single text.
func (g *Generator) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
