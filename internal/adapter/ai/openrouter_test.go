package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastidea/mastidea-server/internal/port"
)

// chatServer fakes the chat-completions endpoint, replying with a fixed
// completion and recording the last request payload.
func chatServer(t *testing.T, reply string) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var lastBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastBody))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &lastBody
}

func newChatClient(srv *httptest.Server) *OpenRouterClient {
	return NewOpenRouterClient(OpenRouterConfig{
		APIKey:  "test-key",
		Model:   "test/model",
		BaseURL: srv.URL,
		Referer: "http://localhost:3000",
		AppName: "MastIdea",
	})
}

func TestChatWithoutAPIKey(t *testing.T) {
	client := NewOpenRouterClient(OpenRouterConfig{BaseURL: "http://localhost:1"})

	_, err := client.Chat(context.Background(), "system", "user")
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrNotConfigured))
}

func TestChatSendsSystemAndUserMessages(t *testing.T) {
	srv, lastBody := chatServer(t, "hello")
	client := newChatClient(srv)

	reply, err := client.Chat(context.Background(), "be terse", "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)

	messages := (*lastBody)["messages"].([]interface{})
	require.Len(t, messages, 2)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "be terse", first["content"])
	assert.Equal(t, "test/model", (*lastBody)["model"])
}

func TestGenerateTitleStripsQuotesAndCapsLength(t *testing.T) {
	srv, _ := chatServer(t, `  "The Brilliant Idea"  `)
	client := newChatClient(srv)

	title, err := client.GenerateTitle(context.Background(), "some raw content")
	require.NoError(t, err)
	assert.Equal(t, "The Brilliant Idea", title)
}

func TestGenerateTitleTruncatesLongReplies(t *testing.T) {
	srv, _ := chatServer(t, strings.Repeat("a", 300))
	client := newChatClient(srv)

	title, err := client.GenerateTitle(context.Background(), "content")
	require.NoError(t, err)
	assert.Len(t, title, 100)
}

func TestGenerateTagsNormalizesAndCaps(t *testing.T) {
	srv, _ := chatServer(t, "AI, Education,  , mobile apps, B2C, sustainability, seventh-tag")
	client := newChatClient(srv)

	tags, err := client.GenerateTags(context.Background(), "title", "content", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ai", "education", "mobile apps", "b2c", "sustainability"}, tags)
}

func TestGenerateTagsDropsOverlongNames(t *testing.T) {
	srv, _ := chatServer(t, strings.Repeat("x", 30)+", ok")
	client := newChatClient(srv)

	tags, err := client.GenerateTags(context.Background(), "title", "content", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, tags)
}

func TestGenerateTagsMentionsExistingCatalog(t *testing.T) {
	srv, lastBody := chatServer(t, "fintech")
	client := newChatClient(srv)

	_, err := client.GenerateTags(context.Background(), "title", "content", []string{"fintech", "health"})
	require.NoError(t, err)

	messages := (*lastBody)["messages"].([]interface{})
	user := messages[1].(map[string]interface{})["content"].(string)
	assert.Contains(t, user, "fintech, health")
}

func TestEvaluateSuccessParsesScoreAndRationale(t *testing.T) {
	srv, _ := chatServer(t, "SCORE: 72\nRATIONALE: Strong demand, crowded market.")
	client := newChatClient(srv)

	score, rationale, err := client.EvaluateSuccess(context.Background(), "title", "content")
	require.NoError(t, err)
	assert.Equal(t, 72, score)
	assert.Equal(t, "Strong demand, crowded market.", rationale)
}

func TestEvaluateSuccessRejectsOutOfRangeScore(t *testing.T) {
	for _, reply := range []string{
		"SCORE: 150\nRATIONALE: too optimistic",
		"SCORE: -3\nRATIONALE: negative",
		"no structure at all",
	} {
		srv, _ := chatServer(t, reply)
		client := newChatClient(srv)

		_, _, err := client.EvaluateSuccess(context.Background(), "title", "content")
		assert.Error(t, err, "reply %q should not parse", reply)
	}
}

func TestChatAPIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "model overloaded"}`, http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	client := newChatClient(srv)

	_, err := client.Chat(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
