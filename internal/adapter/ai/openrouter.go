package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mastidea/mastidea-server/internal/port"
)

// chatTimeout bounds chat completions; expansion generations routinely run
// long, so this is wider than the embeddings timeout.
const chatTimeout = 60 * time.Second

// OpenRouterConfig holds the configuration for the OpenRouter chat API.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // e.g. meta-llama/llama-3.1-8b-instruct:free
	BaseURL string // e.g. https://openrouter.ai/api/v1
	Referer string // HTTP-Referer attribution header
	AppName string // X-Title attribution header
}

// OpenRouterClient implements port.ChatProvider against the OpenRouter
// chat-completions API.
type OpenRouterClient struct {
	cfg        OpenRouterConfig
	httpClient *http.Client
}

// NewOpenRouterClient creates a new OpenRouter-backed chat provider.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	return &OpenRouterClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: chatTimeout},
	}
}

// ModelName returns the chat model identifier.
func (o *OpenRouterClient) ModelName() string {
	return o.cfg.Model
}

// Chat sends a system + user prompt pair and returns the completion text.
func (o *OpenRouterClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if o.cfg.APIKey == "" {
		return "", fmt.Errorf("openrouter: %w", port.ErrNotConfigured)
	}

	payload := map[string]interface{}{
		"model": o.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": 0.7,
		"max_tokens":  2000,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("openrouter marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/chat/completions", bytes.NewReader(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("openrouter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("HTTP-Referer", o.cfg.Referer)
	req.Header.Set("X-Title", o.cfg.AppName)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openrouter API error (%d): %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("openrouter decode: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openrouter: empty response")
	}

	return parsed.Choices[0].Message.Content, nil
}

// GenerateTitle produces a short title for raw idea content.
func (o *OpenRouterClient) GenerateTitle(ctx context.Context, content string) (string, error) {
	system := "You create brilliant titles. Create a short title (maximum 8 words), creative and inspiring, that captures the essence of the idea. No quotes, no periods. Just the title, nothing else."
	title, err := o.Chat(ctx, system, "Idea: "+content)
	if err != nil {
		return "", err
	}
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
	if len(title) > 100 {
		title = title[:100]
	}
	return title, nil
}

// GenerateTags suggests 3-5 tags for an idea, reusing existing tag names
// when they fit.
func (o *OpenRouterClient) GenerateTags(ctx context.Context, title, content string, existing []string) ([]string, error) {
	existingList := ""
	if len(existing) > 0 {
		existingList = "\n\nExisting tags you MUST reuse when relevant:\n" + strings.Join(existing, ", ")
	}

	user := fmt.Sprintf(`Analyze this idea and generate 3-5 tags that describe it.

IDEA:
Title: %s
Content: %s%s

RULES:
1. Reuse existing tags when relevant (exact same name)
2. Only create new tags when truly necessary
3. Short tags (1-2 words max), lowercase, no special characters

ANSWER WITH THE TAGS ONLY, SEPARATED BY COMMAS. Example:
artificial intelligence, education, mobile, b2c, sustainability`, title, content, existingList)

	response, err := o.Chat(ctx, "You are an expert at categorization. Generate relevant tags and reuse existing ones when appropriate.", user)
	if err != nil {
		return nil, err
	}

	var tags []string
	for _, tag := range strings.Split(strings.ToLower(response), ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" && len(tag) < 30 {
			tags = append(tags, tag)
		}
		if len(tags) == 5 {
			break
		}
	}
	return tags, nil
}

// GenerateSummary produces an executive summary of an idea and its
// expansions so far.
func (o *OpenRouterClient) GenerateSummary(ctx context.Context, title, content string, expansions []string) (string, error) {
	system := "You write executive summaries. Condense the idea and everything explored so far into a clear summary: the core concept, the strongest opportunities, the main risks, and the recommended next steps. Plain text, short paragraphs, no **, _, or ###."
	user := fmt.Sprintf("Idea: %s\n%s%s\n\nWrite the executive summary.", title, content, joinExpansions(expansions))
	return o.Chat(ctx, system, user)
}

// EvaluateSuccess scores the idea's likelihood of success from 0 to 100
// with a short rationale.
func (o *OpenRouterClient) EvaluateSuccess(ctx context.Context, title, content string) (int, string, error) {
	system := `You evaluate ideas pragmatically. Score the likelihood of success from 0 to 100 considering market, feasibility, competition and timing. Answer in exactly this format:
SCORE: <number>
RATIONALE: <2-3 plain sentences>`
	user := fmt.Sprintf("Idea: %s\n%s", title, content)

	response, err := o.Chat(ctx, system, user)
	if err != nil {
		return 0, "", err
	}

	score := -1
	rationale := ""
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "SCORE:"); ok {
			if n, convErr := strconv.Atoi(strings.TrimSpace(v)); convErr == nil {
				score = n
			}
		} else if v, ok := strings.CutPrefix(line, "RATIONALE:"); ok {
			rationale = strings.TrimSpace(v)
		}
	}
	if score < 0 || score > 100 {
		return 0, "", fmt.Errorf("evaluate: unparseable score in %q", response)
	}
	return score, rationale, nil
}

// ChatAboutIdea answers a free-form question grounded on the idea and its
// prior expansions.
func (o *OpenRouterClient) ChatAboutIdea(ctx context.Context, title, content string, expansions []string, message string) (string, error) {
	system := "You are a sharp, practical thinking partner helping develop an idea. Use the idea and its previous explorations as context. Be direct and concrete, cite real examples when you know them. Plain text, no **, _, or ###."
	user := fmt.Sprintf("Idea: %s\n%s%s\n\nQuestion: %s", title, content, joinExpansions(expansions), message)
	return o.Chat(ctx, system, user)
}

func joinExpansions(expansions []string) string {
	if len(expansions) == 0 {
		return ""
	}
	return "\n\nPrevious explorations:\n" + strings.Join(expansions, "\n\n")
}
