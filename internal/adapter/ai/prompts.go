package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mastidea/mastidea-server/internal/domain"
	"github.com/mastidea/mastidea-server/internal/port"
)

// ErrNoStrategy is returned when an expansion type has no registered prompt.
var ErrNoStrategy = errors.New("expansion strategy not found")

// expansionStrategy is one prompt recipe: a system persona plus a builder
// for the user prompt.
type expansionStrategy struct {
	system string
	user   func(title, content string, previous []string) string
}

// ExpansionEngine maps expansion types to prompt strategies and runs them
// against the chat provider.
type ExpansionEngine struct {
	chat       port.ChatProvider
	strategies map[string]expansionStrategy
}

// NewExpansionEngine registers the built-in strategies.
func NewExpansionEngine(chat port.ChatProvider) *ExpansionEngine {
	e := &ExpansionEngine{chat: chat, strategies: map[string]expansionStrategy{}}

	e.strategies[domain.ExpansionAuto] = expansionStrategy{
		system: `You help develop ideas. Enthusiastic but STRAIGHT TO THE POINT.
1. Quickly note whether something similar already exists (name + URL if you know one)
2. Say CLEARLY what exists and what does NOT
3. Ask 3-4 PRACTICAL questions (execution, costs, market)
4. Suggest 1-2 concrete next steps
No long metaphors, no storytelling. Plain text with numbers or dashes, no **, _, or ###. Maximum 4-5 short paragraphs.`,
		user: func(title, content string, _ []string) string {
			return fmt.Sprintf("I just had this idea:\n\nTitle: %s\nDescription: %s\n\nHelp me explore and expand it. What questions, connections or improvements would you suggest?", title, content)
		},
	}

	e.strategies[domain.ExpansionSuggestion] = expansionStrategy{
		system: "You suggest improvements, executive mode. Find real examples when relevant (name + URL). Give 4-5 PRACTICAL, CONCRETE suggestions to improve the idea. Straight to the point. Plain text, numbered, no **, _, or ###.",
		user: func(title, content string, previous []string) string {
			return fmt.Sprintf("Idea: %s\n%s%s\n\nSuggest 3-5 concrete ways to improve or complement this idea. Be specific and practical.", title, content, joinExpansions(previous))
		},
	}

	e.strategies[domain.ExpansionQuestion] = expansionStrategy{
		system: `You ask probing questions. 4-5 DIRECT, PRACTICAL questions about execution, market, costs, competition. Like "How will you...?", "What happens if...?", "Have you considered...?". Plain text, numbered, no **, _, or ###.`,
		user: func(title, content string, _ []string) string {
			return fmt.Sprintf("Idea: %s\n%s\n\nAsk me deep, provocative questions that make me think about this idea from completely different angles.", title, content)
		},
	}

	e.strategies[domain.ExpansionConnection] = expansionStrategy{
		system: "You find connections. Look for real projects or companies doing similar things (name + URL). Find 3-4 CONCRETE connections with other industries or technologies. No long metaphors. Plain text, no **, _, or ###. Develop each connection.",
		user: func(title, content string, _ []string) string {
			return fmt.Sprintf("Idea: %s\n%s\n\nWhat other fields, concepts, technologies or seemingly unrelated ideas could this connect with? Help me see unusual patterns and synergies.", title, content)
		},
	}

	e.strategies[domain.ExpansionUseCase] = expansionStrategy{
		system: "You list practical applications. Find real companies using similar ideas (name + URL). Give 5 CONCRETE, SPECIFIC use cases, from simple to ambitious. Plain text, numbered, no **, _, or ###.",
		user: func(title, content string, _ []string) string {
			return fmt.Sprintf("Idea: %s\n%s\n\nGive me 5 concrete and diverse use cases for this idea. Think across industries, contexts and scales.", title, content)
		},
	}

	e.strategies[domain.ExpansionChallenge] = expansionStrategy{
		system: "You analyze obstacles. Identify 3-4 REAL challenges (costs, competition, regulation, technical). For each one, suggest a PRACTICAL way to overcome it. Plain text, numbered, no **, _, or ###.",
		user: func(title, content string, _ []string) string {
			return fmt.Sprintf("Idea: %s\n%s\n\nAnalyze the challenges, obstacles or problems this idea could face. Be constructive and suggest how to address each one.", title, content)
		},
	}

	return e
}

// Generate runs the strategy registered for typ.
func (e *ExpansionEngine) Generate(ctx context.Context, typ, title, content string, previous []string) (string, error) {
	strategy, ok := e.strategies[typ]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoStrategy, typ)
	}

	response, err := e.chat.Chat(ctx, strategy.system, strategy.user(title, content, previous))
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", strings.ToLower(typ), err)
	}
	return response, nil
}
