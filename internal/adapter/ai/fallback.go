package ai

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mastidea/mastidea-server/internal/port"
)

// maxEmbedChars caps the text submitted to any provider. Longer input is
// truncated before submission; callers must not assume the full text was
// embedded.
const maxEmbedChars = 30000

// FallbackEmbedder tries an ordered list of embedding providers and
// returns the first non-empty result. It never returns an error for
// operational failures (rate limits, outages, malformed responses): the
// sentinel for "embedding unavailable" is an empty vector, so semantic
// search degrades while the rest of the application keeps working.
type FallbackEmbedder struct {
	providers []port.EmbeddingProvider
}

// NewFallbackEmbedder builds the provider chain. Nil entries (unconfigured
// endpoints) are dropped; with no providers at all every call short-circuits
// to empty without touching the network.
func NewFallbackEmbedder(providers ...port.EmbeddingProvider) *FallbackEmbedder {
	f := &FallbackEmbedder{}
	for _, p := range providers {
		if p == nil {
			continue
		}
		f.providers = append(f.providers, p)
	}
	return f
}

// Name identifies the adapter for logging.
func (f *FallbackEmbedder) Name() string {
	return "fallback"
}

// Embed returns a vector for text, or an empty vector when no provider
// can produce one.
func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = truncate(strings.TrimSpace(text))
	if text == "" {
		return nil, nil
	}
	if len(f.providers) == 0 {
		slog.Debug("no embedding provider configured, semantic search disabled")
		return nil, nil
	}

	for _, p := range f.providers {
		vector, err := p.Embed(ctx, text)
		if err != nil {
			slog.Warn("embedding provider failed, trying next", "provider", p.Name(), "error", err)
			continue
		}
		if len(vector) > 0 {
			return vector, nil
		}
	}

	slog.Warn("all embedding providers failed")
	return nil, nil
}

// EmbedBatch applies the same fallback semantics to a batch. A failed batch
// yields an empty result rather than partial vectors, so input and output
// indices never silently misalign.
func (f *FallbackEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 || len(f.providers) == 0 {
		return nil, nil
	}

	trimmed := make([]string, len(texts))
	for i, t := range texts {
		trimmed[i] = truncate(strings.TrimSpace(t))
	}

	for _, p := range f.providers {
		vectors, err := p.EmbedBatch(ctx, trimmed)
		if err != nil {
			slog.Warn("embedding provider batch failed, trying next", "provider", p.Name(), "error", err)
			continue
		}
		if len(vectors) == len(trimmed) {
			return vectors, nil
		}
	}

	slog.Warn("all embedding providers failed for batch", "size", len(texts))
	return nil, nil
}

// truncate caps text at maxEmbedChars bytes, backing off to a rune
// boundary so the provider never receives a split UTF-8 sequence.
func truncate(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := maxEmbedChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
