package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastidea/mastidea-server/internal/domain"
)

type stubChat struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
}

func (s *stubChat) ModelName() string { return "stub" }

func (s *stubChat) Chat(_ context.Context, system, user string) (string, error) {
	s.lastSystem = system
	s.lastUser = user
	return s.reply, s.err
}

func TestGenerateCoversAllExpandableTypes(t *testing.T) {
	chat := &stubChat{reply: "an expansion"}
	engine := NewExpansionEngine(chat)

	for _, typ := range domain.ExpandableTypes {
		out, err := engine.Generate(context.Background(), typ, "title", "content", nil)
		require.NoError(t, err, "type %s", typ)
		assert.Equal(t, "an expansion", out)
		assert.NotEmpty(t, chat.lastSystem)
		assert.Contains(t, chat.lastUser, "title")
	}
}

func TestGenerateUnknownType(t *testing.T) {
	engine := NewExpansionEngine(&stubChat{})

	_, err := engine.Generate(context.Background(), "PITCH_DECK", "title", "content", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoStrategy))
}

func TestGenerateIncludesPreviousExpansions(t *testing.T) {
	chat := &stubChat{reply: "ok"}
	engine := NewExpansionEngine(chat)

	_, err := engine.Generate(context.Background(), domain.ExpansionSuggestion, "title", "content",
		[]string{"earlier thought one", "earlier thought two"})
	require.NoError(t, err)
	assert.Contains(t, chat.lastUser, "earlier thought one")
	assert.Contains(t, chat.lastUser, "earlier thought two")
}

func TestGeneratePropagatesChatErrors(t *testing.T) {
	chat := &stubChat{err: errors.New("model unavailable")}
	engine := NewExpansionEngine(chat)

	_, err := engine.Generate(context.Background(), domain.ExpansionQuestion, "title", "content", nil)
	assert.Error(t, err)
}
