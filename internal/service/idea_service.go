package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/mastidea/mastidea-server/internal/domain"
	"github.com/mastidea/mastidea-server/internal/port"
)

// processingTimeout bounds the whole background enrichment pipeline for
// one idea (title, tags, first expansion, vector indexing).
const processingTimeout = 3 * time.Minute

// tagColors is the fixed palette new tags draw their color from.
var tagColors = []string{
	"#7257ff", "#f06920", "#3b82f6", "#10b981", "#f59e0b",
	"#ef4444", "#8b5cf6", "#ec4899", "#06b6d4", "#84cc16",
}

// ideaLLM is the slice of the chat provider the idea service needs.
type ideaLLM interface {
	ModelName() string
	GenerateTitle(ctx context.Context, content string) (string, error)
	GenerateTags(ctx context.Context, title, content string, existing []string) ([]string, error)
	GenerateSummary(ctx context.Context, title, content string, expansions []string) (string, error)
	EvaluateSuccess(ctx context.Context, title, content string) (int, string, error)
	ChatAboutIdea(ctx context.Context, title, content string, expansions []string, message string) (string, error)
}

// expander generates one expansion of the given type.
type expander interface {
	Generate(ctx context.Context, typ, title, content string, previous []string) (string, error)
}

// ideaStore is the slice of the relational store the idea service needs.
type ideaStore interface {
	CreateIdea(ctx context.Context, i *domain.Idea) (*domain.Idea, error)
	GetIdeaByID(ctx context.Context, id string) (*domain.Idea, error)
	ListIdeas(ctx context.Context, userID, status string, limit, offset int) ([]domain.Idea, int, error)
	ListIdeasByIDs(ctx context.Context, ids []string, userID string) ([]domain.Idea, error)
	UpdateIdeaContent(ctx context.Context, id, title, content string) error
	UpdateIdeaTitle(ctx context.Context, id, title string) error
	UpdateIdeaStatus(ctx context.Context, id, status string) error
	SetProcessingStatus(ctx context.Context, id, status string) error
	SetSuccessScore(ctx context.Context, id string, score int, rationale string) error
	SoftDeleteIdea(ctx context.Context, id string) error
	HasIdeaAccess(ctx context.Context, ideaID, userID string) (bool, error)
	IsIdeaOwner(ctx context.Context, ideaID, userID string) (bool, error)
	CreateExpansion(ctx context.Context, e *domain.Expansion) (*domain.Expansion, error)
	ListExpansions(ctx context.Context, ideaID string) ([]domain.Expansion, error)
	UpsertTag(ctx context.Context, id, name, color string) (*domain.Tag, error)
	ListTagNames(ctx context.Context) ([]string, error)
	AttachTag(ctx context.Context, ideaID, tagID string) error
	ListTagsForIdea(ctx context.Context, ideaID string) ([]domain.IdeaTag, error)
	ListCollaborators(ctx context.Context, ideaID string) ([]domain.Collaborator, error)
}

// IdeaService owns the idea lifecycle: CRUD, AI enrichment, expansions,
// and the hooks into the similarity pipeline (created → indexed, edited →
// re-indexed, deleted → removed).
type IdeaService struct {
	store    ideaStore
	llm      ideaLLM
	engine   expander
	search   *SearchService
	notifier port.UpdatePublisher
}

// NewIdeaService creates the idea service.
func NewIdeaService(st ideaStore, llm ideaLLM, engine expander, search *SearchService, notifier port.UpdatePublisher) *IdeaService {
	return &IdeaService{store: st, llm: llm, engine: engine, search: search, notifier: notifier}
}

// Create inserts the idea immediately and kicks off background AI
// enrichment; the caller gets the record back before any AI work happens.
func (s *IdeaService) Create(ctx context.Context, userID, title, content string) (*domain.Idea, error) {
	generateTitle := title == ""
	if generateTitle {
		title = placeholderTitle(content)
	}

	idea, err := s.store.CreateIdea(ctx, &domain.Idea{
		ID:               uuid.NewString(),
		UserID:           userID,
		Title:            title,
		Content:          content,
		Status:           domain.IdeaStatusActive,
		ProcessingStatus: domain.ProcessingPending,
	})
	if err != nil {
		return nil, err
	}

	go s.processIdea(idea.ID, idea.Title, idea.Content, generateTitle, idea.CreatedAt)

	return idea, nil
}

// processIdea runs the enrichment pipeline for a freshly created idea.
// Every step is best-effort: a failed step is logged and the pipeline
// moves on, so a quota problem at the LLM never loses the idea itself.
func (s *IdeaService) processIdea(id, title, content string, generateTitle bool, createdAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), processingTimeout)
	defer cancel()

	slog.Info("processing idea in background", "id", id)
	failed := false

	if generateTitle {
		if generated, err := s.llm.GenerateTitle(ctx, content); err != nil {
			slog.Error("generate title failed", "id", id, "error", err)
			failed = true
		} else if generated != "" {
			title = generated
			if err := s.store.UpdateIdeaTitle(ctx, id, title); err != nil {
				slog.Error("store generated title failed", "id", id, "error", err)
			} else {
				s.notifier.Publish(domain.UpdateEvent{IdeaID: id, Type: domain.EventTitleUpdated, Payload: title})
			}
		}
	}

	if !s.generateTags(ctx, id, title, content) {
		failed = true
	}

	if expansion, err := s.engine.Generate(ctx, domain.ExpansionAuto, title, content, nil); err != nil {
		slog.Error("auto expansion failed", "id", id, "error", err)
		failed = true
	} else {
		s.saveExpansion(ctx, id, domain.ExpansionAuto, expansion, "")
	}

	// Indexing failures are invisible here on purpose: the search pipeline
	// degrades silently and the idea itself is fine.
	s.search.IndexDocument(ctx, domain.Document{
		ID:        id,
		Title:     title,
		Content:   content,
		CreatedAt: createdAt.Format(time.RFC3339),
	})

	status := domain.ProcessingCompleted
	event := domain.EventProcessingDone
	if failed {
		status = domain.ProcessingFailed
		event = domain.EventProcessingError
	}
	if err := s.store.SetProcessingStatus(ctx, id, status); err != nil {
		slog.Error("update processing status failed", "id", id, "error", err)
	}
	s.notifier.Publish(domain.UpdateEvent{IdeaID: id, Type: event})
	slog.Info("idea processed", "id", id, "status", status)
}

// generateTags asks the LLM for tags and attaches them, reusing catalog
// names where possible. Reports whether the step succeeded.
func (s *IdeaService) generateTags(ctx context.Context, id, title, content string) bool {
	existing, err := s.store.ListTagNames(ctx)
	if err != nil {
		slog.Error("list tag names failed", "id", id, "error", err)
		return false
	}

	names, err := s.llm.GenerateTags(ctx, title, content, existing)
	if err != nil {
		slog.Error("generate tags failed", "id", id, "error", err)
		return false
	}

	for _, name := range names {
		tag, err := s.store.UpsertTag(ctx, uuid.NewString(), name, tagColors[rand.Intn(len(tagColors))])
		if err != nil {
			slog.Error("upsert tag failed", "tag", name, "error", err)
			continue
		}
		if err := s.store.AttachTag(ctx, id, tag.ID); err != nil {
			slog.Error("attach tag failed", "tag", name, "idea", id, "error", err)
		}
	}

	s.notifier.Publish(domain.UpdateEvent{IdeaID: id, Type: domain.EventTagsUpdated, Payload: names})
	return true
}

// Get returns an idea with its relations, enforcing owner-or-collaborator
// access.
func (s *IdeaService) Get(ctx context.Context, ideaID, userID string) (*domain.Idea, error) {
	ok, err := s.store.HasIdeaAccess(ctx, ideaID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, port.ErrForbidden
	}

	idea, err := s.store.GetIdeaByID(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, idea); err != nil {
		return nil, err
	}
	return idea, nil
}

// List returns the ideas visible to the user with their relations.
func (s *IdeaService) List(ctx context.Context, userID, status string, limit, offset int) ([]domain.Idea, int, error) {
	ideas, total, err := s.store.ListIdeas(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range ideas {
		if err := s.hydrate(ctx, &ideas[i]); err != nil {
			return nil, 0, err
		}
	}
	return ideas, total, nil
}

func (s *IdeaService) hydrate(ctx context.Context, idea *domain.Idea) error {
	var err error
	if idea.Expansions, err = s.store.ListExpansions(ctx, idea.ID); err != nil {
		return err
	}
	if idea.Tags, err = s.store.ListTagsForIdea(ctx, idea.ID); err != nil {
		return err
	}
	if idea.Collaborators, err = s.store.ListCollaborators(ctx, idea.ID); err != nil {
		return err
	}
	return nil
}

// Edit replaces title and content and re-indexes the document so search
// reflects the new text. Only the owner may edit; collaborators comment
// through expansions instead.
func (s *IdeaService) Edit(ctx context.Context, ideaID, userID, title, content string) (*domain.Idea, error) {
	if err := s.requireOwner(ctx, ideaID, userID); err != nil {
		return nil, err
	}

	if err := s.store.UpdateIdeaContent(ctx, ideaID, title, content); err != nil {
		return nil, err
	}

	idea, err := s.store.GetIdeaByID(ctx, ideaID)
	if err != nil {
		return nil, err
	}

	s.search.ReindexDocument(ctx, domain.Document{
		ID:        idea.ID,
		Title:     idea.Title,
		Content:   idea.Content,
		CreatedAt: idea.CreatedAt.Format(time.RFC3339),
	})

	return idea, nil
}

// Fork copies an idea into a fresh one owned by the caller, optionally
// carrying over expansions and tags, and indexes the copy. Anyone with
// read access may fork; the fork starts with a clean score and status.
func (s *IdeaService) Fork(ctx context.Context, ideaID, userID string, includeExpansions, includeTags bool) (*domain.Idea, error) {
	source, err := s.Get(ctx, ideaID, userID)
	if err != nil {
		return nil, err
	}

	fork, err := s.store.CreateIdea(ctx, &domain.Idea{
		ID:               uuid.NewString(),
		UserID:           userID,
		Title:            source.Title,
		Content:          source.Content,
		Status:           domain.IdeaStatusActive,
		ProcessingStatus: domain.ProcessingCompleted,
	})
	if err != nil {
		return nil, err
	}

	if includeExpansions {
		for _, e := range source.Expansions {
			if _, err := s.store.CreateExpansion(ctx, &domain.Expansion{
				ID:          uuid.NewString(),
				IdeaID:      fork.ID,
				Type:        e.Type,
				Content:     e.Content,
				UserMessage: e.UserMessage,
				AIModel:     e.AIModel,
			}); err != nil {
				return nil, err
			}
		}
	}

	if includeTags {
		for _, tag := range source.Tags {
			if err := s.store.AttachTag(ctx, fork.ID, tag.TagID); err != nil {
				return nil, err
			}
		}
	}

	s.search.IndexDocument(ctx, domain.Document{
		ID:        fork.ID,
		Title:     fork.Title,
		Content:   fork.Content,
		CreatedAt: fork.CreatedAt.Format(time.RFC3339),
	})

	if err := s.hydrate(ctx, fork); err != nil {
		return nil, err
	}
	return fork, nil
}

// Delete soft-deletes the idea and removes it from the vector index.
func (s *IdeaService) Delete(ctx context.Context, ideaID, userID string) error {
	if err := s.requireOwner(ctx, ideaID, userID); err != nil {
		return err
	}
	if err := s.store.SoftDeleteIdea(ctx, ideaID); err != nil {
		return err
	}
	s.search.RemoveDocument(ctx, ideaID)
	return nil
}

// SetStatus moves an idea between ACTIVE, ARCHIVED and COMPLETED.
func (s *IdeaService) SetStatus(ctx context.Context, ideaID, userID, status string) error {
	if !domain.ValidIdeaStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	if err := s.requireOwner(ctx, ideaID, userID); err != nil {
		return err
	}
	return s.store.UpdateIdeaStatus(ctx, ideaID, status)
}

// Expand generates one expansion of the requested type and persists it.
func (s *IdeaService) Expand(ctx context.Context, ideaID, userID, typ string) (*domain.Expansion, error) {
	if !domain.ValidExpandableType(typ) {
		return nil, fmt.Errorf("invalid expansion type %q", typ)
	}

	idea, previous, err := s.ideaWithExpansionTexts(ctx, ideaID, userID)
	if err != nil {
		return nil, err
	}

	content, err := s.engine.Generate(ctx, typ, idea.Title, idea.Content, previous)
	if err != nil {
		return nil, err
	}

	return s.saveExpansion(ctx, ideaID, typ, content, "")
}

// Summarize produces an executive summary expansion over the idea and
// everything explored so far.
func (s *IdeaService) Summarize(ctx context.Context, ideaID, userID string) (*domain.Expansion, error) {
	idea, previous, err := s.ideaWithExpansionTexts(ctx, ideaID, userID)
	if err != nil {
		return nil, err
	}

	summary, err := s.llm.GenerateSummary(ctx, idea.Title, idea.Content, previous)
	if err != nil {
		return nil, err
	}

	return s.saveExpansion(ctx, ideaID, domain.ExpansionSummary, summary, "")
}

// Evaluate scores the idea's success likelihood and stores it.
func (s *IdeaService) Evaluate(ctx context.Context, ideaID, userID string) (*domain.Idea, error) {
	idea, err := s.Get(ctx, ideaID, userID)
	if err != nil {
		return nil, err
	}

	score, rationale, err := s.llm.EvaluateSuccess(ctx, idea.Title, idea.Content)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetSuccessScore(ctx, ideaID, score, rationale); err != nil {
		return nil, err
	}

	idea.SuccessScore = &score
	idea.ScoreRationale = rationale
	s.notifier.Publish(domain.UpdateEvent{IdeaID: ideaID, Type: domain.EventScoreUpdated, Payload: score})
	return idea, nil
}

// Chat answers a free-form question about the idea and records the
// exchange as an expansion.
func (s *IdeaService) Chat(ctx context.Context, ideaID, userID, message string) (*domain.Expansion, error) {
	idea, previous, err := s.ideaWithExpansionTexts(ctx, ideaID, userID)
	if err != nil {
		return nil, err
	}

	answer, err := s.llm.ChatAboutIdea(ctx, idea.Title, idea.Content, previous, message)
	if err != nil {
		return nil, err
	}

	return s.saveExpansion(ctx, ideaID, domain.ExpansionChat, answer, message)
}

// SimilarIdeas finds ideas semantically close to this one, excluding the
// idea itself, hydrated from the relational store and ranked by score.
func (s *IdeaService) SimilarIdeas(ctx context.Context, ideaID, userID string, limit int) ([]domain.RankedIdea, error) {
	idea, err := s.Get(ctx, ideaID, userID)
	if err != nil {
		return nil, err
	}

	matches := s.search.FindSimilar(ctx, idea.Title+"\n\n"+idea.Content, limit, ideaID)
	return s.hydrateMatches(ctx, matches, userID)
}

// SemanticSearch finds the user's ideas closest to a free-text query.
func (s *IdeaService) SemanticSearch(ctx context.Context, userID, query string, limit int) ([]domain.RankedIdea, error) {
	matches := s.search.FindSimilar(ctx, query, limit, "")
	return s.hydrateMatches(ctx, matches, userID)
}

// hydrateMatches cross-references vector matches against the relational
// store, dropping anything the user may not see, and reorders by score.
func (s *IdeaService) hydrateMatches(ctx context.Context, matches []domain.SimilarIdea, userID string) ([]domain.RankedIdea, error) {
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}

	ideas, err := s.store.ListIdeasByIDs(ctx, ids, userID)
	if err != nil {
		return nil, err
	}
	for i := range ideas {
		if err := s.hydrate(ctx, &ideas[i]); err != nil {
			return nil, err
		}
	}

	return RankIdeas(ideas, matches), nil
}

func (s *IdeaService) ideaWithExpansionTexts(ctx context.Context, ideaID, userID string) (*domain.Idea, []string, error) {
	idea, err := s.Get(ctx, ideaID, userID)
	if err != nil {
		return nil, nil, err
	}

	previous := make([]string, 0, len(idea.Expansions))
	for _, e := range idea.Expansions {
		previous = append(previous, e.Content)
	}
	return idea, previous, nil
}

func (s *IdeaService) saveExpansion(ctx context.Context, ideaID, typ, content, userMessage string) (*domain.Expansion, error) {
	expansion, err := s.store.CreateExpansion(ctx, &domain.Expansion{
		ID:          uuid.NewString(),
		IdeaID:      ideaID,
		Type:        typ,
		Content:     content,
		UserMessage: userMessage,
		AIModel:     s.llm.ModelName(),
	})
	if err != nil {
		slog.Error("save expansion failed", "idea", ideaID, "type", typ, "error", err)
		return nil, err
	}

	s.notifier.Publish(domain.UpdateEvent{IdeaID: ideaID, Type: domain.EventExpansionAdded, Payload: expansion})
	return expansion, nil
}

func (s *IdeaService) requireOwner(ctx context.Context, ideaID, userID string) error {
	ok, err := s.store.IsIdeaOwner(ctx, ideaID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return port.ErrForbidden
	}
	return nil
}

// placeholderTitle derives a temporary title from the first characters of
// the content until the LLM produces a real one.
func placeholderTitle(content string) string {
	if len(content) > 50 {
		return content[:50] + "..."
	}
	return content
}
