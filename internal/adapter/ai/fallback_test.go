package ai

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastidea/mastidea-server/internal/port"
)

// stubProvider records what it was asked to embed and replies with a
// canned vector or error.
type stubProvider struct {
	name    string
	vector  []float32
	vectors [][]float32
	err     error

	calls     int
	lastText  string
	lastTexts []string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	s.lastText = text
	return s.vector, s.err
}

func (s *stubProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	s.lastTexts = texts
	return s.vectors, s.err
}

func TestEmbedNoProviders(t *testing.T) {
	f := NewFallbackEmbedder()

	vector, err := f.Embed(context.Background(), "a perfectly good idea")
	require.NoError(t, err)
	assert.Empty(t, vector)
}

func TestEmbedNilProvidersDropped(t *testing.T) {
	primary := &stubProvider{name: "primary", vector: []float32{0.1, 0.2}}
	f := NewFallbackEmbedder(nil, primary, nil)

	vector, err := f.Embed(context.Background(), "idea")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vector)
}

func TestEmbedEmptyTextShortCircuits(t *testing.T) {
	primary := &stubProvider{name: "primary", vector: []float32{0.1}}
	f := NewFallbackEmbedder(primary)

	for _, text := range []string{"", "   ", "\n\t  \n"} {
		vector, err := f.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Empty(t, vector)
	}
	assert.Zero(t, primary.calls, "empty input must never reach a provider")
}

func TestEmbedTruncatesLongText(t *testing.T) {
	primary := &stubProvider{name: "primary", vector: []float32{0.5}}
	f := NewFallbackEmbedder(primary)

	long := strings.Repeat("x", maxEmbedChars+5000)
	_, err := f.Embed(context.Background(), long)
	require.NoError(t, err)

	assert.Len(t, primary.lastText, maxEmbedChars)
}

func TestEmbedTruncationKeepsRunesIntact(t *testing.T) {
	primary := &stubProvider{name: "primary", vector: []float32{0.5}}
	f := NewFallbackEmbedder(primary)

	// Place a multi-byte rune straddling the cap; the cut must back off to
	// the rune boundary instead of submitting a broken trailing byte.
	long := strings.Repeat("x", maxEmbedChars-1) + "éllo wörld"
	_, err := f.Embed(context.Background(), long)
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(primary.lastText))
	assert.LessOrEqual(t, len(primary.lastText), maxEmbedChars)
}

func TestEmbedFallsBackOnError(t *testing.T) {
	primary := &stubProvider{name: "primary", err: port.ErrRateLimited}
	secondary := &stubProvider{name: "secondary", vector: []float32{0.9, 0.8}}
	f := NewFallbackEmbedder(primary, secondary)

	vector, err := f.Embed(context.Background(), "rate limited upstream")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.9, 0.8}, vector)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestEmbedFallsBackOnEmptyVector(t *testing.T) {
	primary := &stubProvider{name: "primary", vector: nil}
	secondary := &stubProvider{name: "secondary", vector: []float32{0.3}}
	f := NewFallbackEmbedder(primary, secondary)

	vector, err := f.Embed(context.Background(), "primary silently produced nothing")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.3}, vector)
}

func TestEmbedAllProvidersFail(t *testing.T) {
	primary := &stubProvider{name: "primary", err: port.ErrRateLimited}
	secondary := &stubProvider{name: "secondary", err: port.ErrRateLimited}
	f := NewFallbackEmbedder(primary, secondary)

	vector, err := f.Embed(context.Background(), "everything is down")
	require.NoError(t, err, "operational failures must not surface as errors")
	assert.Empty(t, vector)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestEmbedBatch(t *testing.T) {
	primary := &stubProvider{name: "primary", vectors: [][]float32{{0.1}, {0.2}}}
	f := NewFallbackEmbedder(primary)

	vectors, err := f.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []string{"one", "two"}, primary.lastTexts)
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	primary := &stubProvider{name: "primary"}
	f := NewFallbackEmbedder(primary)

	vectors, err := f.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, primary.calls)
}

func TestEmbedBatchMisalignedResultFallsBack(t *testing.T) {
	// Two inputs but the primary only returns one vector; the whole batch
	// must move to the next provider rather than misalign indices.
	primary := &stubProvider{name: "primary", vectors: [][]float32{{0.1}}}
	secondary := &stubProvider{name: "secondary", vectors: [][]float32{{0.5}, {0.6}}}
	f := NewFallbackEmbedder(primary, secondary)

	vectors, err := f.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.5}, vectors[0])
	assert.Equal(t, 1, secondary.calls)
}

func TestEmbedBatchTruncatesEachText(t *testing.T) {
	primary := &stubProvider{name: "primary", vectors: [][]float32{{0.1}, {0.2}}}
	f := NewFallbackEmbedder(primary)

	long := strings.Repeat("y", maxEmbedChars*2)
	_, err := f.EmbedBatch(context.Background(), []string{long, "short"})
	require.NoError(t, err)

	require.Len(t, primary.lastTexts, 2)
	assert.Len(t, primary.lastTexts[0], maxEmbedChars)
	assert.Equal(t, "short", primary.lastTexts[1])
}
