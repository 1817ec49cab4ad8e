package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mastidea/mastidea-server/internal/domain"
	"github.com/mastidea/mastidea-server/internal/port"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// --- Ideas ---

// CreateIdea inserts a new idea record.
func (s *PostgresStore) CreateIdea(ctx context.Context, i *domain.Idea) (*domain.Idea, error) {
	query := `INSERT INTO ideas (id, user_id, title, content, status, processing_status)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id, user_id, title, content, status, processing_status, created_at, updated_at`

	var idea domain.Idea
	err := s.db.QueryRowContext(ctx, query,
		i.ID, i.UserID, i.Title, i.Content, i.Status, i.ProcessingStatus,
	).Scan(
		&idea.ID, &idea.UserID, &idea.Title, &idea.Content,
		&idea.Status, &idea.ProcessingStatus, &idea.CreatedAt, &idea.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create idea: %w", err)
	}
	return &idea, nil
}

// GetIdeaByID returns an idea (trash excluded) without its relations.
func (s *PostgresStore) GetIdeaByID(ctx context.Context, id string) (*domain.Idea, error) {
	query := `SELECT id, user_id, title, content, status, processing_status, success_score, score_rationale, created_at, updated_at
	          FROM ideas WHERE id = $1 AND deleted_at IS NULL`

	var idea domain.Idea
	var rationale sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&idea.ID, &idea.UserID, &idea.Title, &idea.Content,
		&idea.Status, &idea.ProcessingStatus, &idea.SuccessScore, &rationale,
		&idea.CreatedAt, &idea.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrIdeaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idea: %w", err)
	}
	idea.ScoreRationale = rationale.String
	return &idea, nil
}

// ListIdeas returns the ideas a user owns or collaborates on, newest
// first, trash excluded, optionally filtered by status.
func (s *PostgresStore) ListIdeas(ctx context.Context, userID, status string, limit, offset int) ([]domain.Idea, int, error) {
	where := `i.deleted_at IS NULL
	          AND (i.user_id = $1 OR EXISTS (
	              SELECT 1 FROM collaborators c WHERE c.idea_id = i.id AND c.user_id = $1))`
	args := []interface{}{userID}
	if status != "" {
		where += ` AND i.status = $2`
		args = append(args, status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ideas i WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ideas: %w", err)
	}

	query := fmt.Sprintf(`SELECT i.id, i.user_id, i.title, i.content, i.status, i.processing_status, i.success_score, i.score_rationale, i.created_at, i.updated_at
	          FROM ideas i WHERE %s
	          ORDER BY i.created_at DESC
	          LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ideas: %w", err)
	}
	defer rows.Close()

	ideas, err := scanIdeas(rows)
	if err != nil {
		return nil, 0, err
	}
	return ideas, total, nil
}

// ListIdeasByIDs returns the subset of the given ideas the user may see.
// Used to hydrate semantic search matches from the relational store.
func (s *PostgresStore) ListIdeasByIDs(ctx context.Context, ids []string, userID string) ([]domain.Idea, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT i.id, i.user_id, i.title, i.content, i.status, i.processing_status, i.success_score, i.score_rationale, i.created_at, i.updated_at
	          FROM ideas i
	          WHERE i.id = ANY($1) AND i.deleted_at IS NULL
	          AND (i.user_id = $2 OR EXISTS (
	              SELECT 1 FROM collaborators c WHERE c.idea_id = i.id AND c.user_id = $2))`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids), userID)
	if err != nil {
		return nil, fmt.Errorf("list ideas by ids: %w", err)
	}
	defer rows.Close()

	return scanIdeas(rows)
}

func scanIdeas(rows *sql.Rows) ([]domain.Idea, error) {
	var ideas []domain.Idea
	for rows.Next() {
		var idea domain.Idea
		var rationale sql.NullString
		if err := rows.Scan(
			&idea.ID, &idea.UserID, &idea.Title, &idea.Content,
			&idea.Status, &idea.ProcessingStatus, &idea.SuccessScore, &rationale,
			&idea.CreatedAt, &idea.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan idea: %w", err)
		}
		idea.ScoreRationale = rationale.String
		ideas = append(ideas, idea)
	}
	return ideas, rows.Err()
}

// UpdateIdeaContent replaces an idea's title and content.
func (s *PostgresStore) UpdateIdeaContent(ctx context.Context, id, title, content string) error {
	query := `UPDATE ideas SET title = $2, content = $3, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	return s.exec(ctx, "update idea", query, id, title, content)
}

// UpdateIdeaTitle replaces only the title (background title generation).
func (s *PostgresStore) UpdateIdeaTitle(ctx context.Context, id, title string) error {
	query := `UPDATE ideas SET title = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	return s.exec(ctx, "update idea title", query, id, title)
}

// UpdateIdeaStatus moves an idea between ACTIVE/ARCHIVED/COMPLETED.
func (s *PostgresStore) UpdateIdeaStatus(ctx context.Context, id, status string) error {
	query := `UPDATE ideas SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	return s.exec(ctx, "update idea status", query, id, status)
}

// SetProcessingStatus updates the background AI pipeline status.
func (s *PostgresStore) SetProcessingStatus(ctx context.Context, id, status string) error {
	query := `UPDATE ideas SET processing_status = $2, updated_at = NOW() WHERE id = $1`
	return s.exec(ctx, "set processing status", query, id, status)
}

// SetSuccessScore stores the evaluated success likelihood.
func (s *PostgresStore) SetSuccessScore(ctx context.Context, id string, score int, rationale string) error {
	query := `UPDATE ideas SET success_score = $2, score_rationale = $3, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	return s.exec(ctx, "set success score", query, id, score, rationale)
}

// SoftDeleteIdea moves an idea to the trash.
func (s *PostgresStore) SoftDeleteIdea(ctx context.Context, id string) error {
	query := `UPDATE ideas SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	return s.exec(ctx, "delete idea", query, id)
}

// HasIdeaAccess reports whether the user owns or collaborates on the idea.
func (s *PostgresStore) HasIdeaAccess(ctx context.Context, ideaID, userID string) (bool, error) {
	query := `SELECT EXISTS (
	              SELECT 1 FROM ideas i
	              WHERE i.id = $1 AND i.deleted_at IS NULL
	              AND (i.user_id = $2 OR EXISTS (
	                  SELECT 1 FROM collaborators c WHERE c.idea_id = i.id AND c.user_id = $2)))`

	var ok bool
	if err := s.db.QueryRowContext(ctx, query, ideaID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("idea access: %w", err)
	}
	return ok, nil
}

// IsIdeaOwner reports whether the user owns the idea.
func (s *PostgresStore) IsIdeaOwner(ctx context.Context, ideaID, userID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM ideas WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL)`

	var ok bool
	if err := s.db.QueryRowContext(ctx, query, ideaID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("idea owner: %w", err)
	}
	return ok, nil
}

// --- Expansions ---

// CreateExpansion appends an AI-generated expansion to an idea.
func (s *PostgresStore) CreateExpansion(ctx context.Context, e *domain.Expansion) (*domain.Expansion, error) {
	query := `INSERT INTO expansions (id, idea_id, type, content, user_message, ai_model)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id, idea_id, type, content, COALESCE(user_message, ''), ai_model, created_at`

	var exp domain.Expansion
	err := s.db.QueryRowContext(ctx, query,
		e.ID, e.IdeaID, e.Type, e.Content, nullable(e.UserMessage), e.AIModel,
	).Scan(&exp.ID, &exp.IdeaID, &exp.Type, &exp.Content, &exp.UserMessage, &exp.AIModel, &exp.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create expansion: %w", err)
	}
	return &exp, nil
}

// ListExpansions returns an idea's expansions oldest first.
func (s *PostgresStore) ListExpansions(ctx context.Context, ideaID string) ([]domain.Expansion, error) {
	query := `SELECT id, idea_id, type, content, COALESCE(user_message, ''), ai_model, created_at
	          FROM expansions WHERE idea_id = $1 ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list expansions: %w", err)
	}
	defer rows.Close()

	var expansions []domain.Expansion
	for rows.Next() {
		var e domain.Expansion
		if err := rows.Scan(&e.ID, &e.IdeaID, &e.Type, &e.Content, &e.UserMessage, &e.AIModel, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expansion: %w", err)
		}
		expansions = append(expansions, e)
	}
	return expansions, rows.Err()
}

// --- Tags ---

// UpsertTag inserts a tag by unique name, keeping the existing color when
// the tag already exists.
func (s *PostgresStore) UpsertTag(ctx context.Context, id, name, color string) (*domain.Tag, error) {
	query := `INSERT INTO tags (id, name, color)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
	          RETURNING id, name, color, created_at`

	var tag domain.Tag
	err := s.db.QueryRowContext(ctx, query, id, name, color).Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert tag: %w", err)
	}
	return &tag, nil
}

// ListTags returns all tags ordered by name.
func (s *PostgresStore) ListTags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color, created_at FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// ListTagNames returns every tag name, for prompt reuse.
func (s *PostgresStore) ListTagNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tag names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AttachTag links a tag to an idea; attaching twice is a no-op.
func (s *PostgresStore) AttachTag(ctx context.Context, ideaID, tagID string) error {
	query := `INSERT INTO idea_tags (idea_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	return s.exec(ctx, "attach tag", query, ideaID, tagID)
}

// DetachTag unlinks a tag from an idea.
func (s *PostgresStore) DetachTag(ctx context.Context, ideaID, tagID string) error {
	query := `DELETE FROM idea_tags WHERE idea_id = $1 AND tag_id = $2`
	return s.exec(ctx, "detach tag", query, ideaID, tagID)
}

// ListTagsForIdea returns the tag links of an idea, with the tag embedded.
func (s *PostgresStore) ListTagsForIdea(ctx context.Context, ideaID string) ([]domain.IdeaTag, error) {
	query := `SELECT it.idea_id, it.tag_id, it.created_at, t.id, t.name, t.color, t.created_at
	          FROM idea_tags it JOIN tags t ON t.id = it.tag_id
	          WHERE it.idea_id = $1 ORDER BY t.name ASC`

	rows, err := s.db.QueryContext(ctx, query, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list idea tags: %w", err)
	}
	defer rows.Close()

	var links []domain.IdeaTag
	for rows.Next() {
		var link domain.IdeaTag
		if err := rows.Scan(
			&link.IdeaID, &link.TagID, &link.CreatedAt,
			&link.Tag.ID, &link.Tag.Name, &link.Tag.Color, &link.Tag.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan idea tag: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// --- Collaborators ---

// AddCollaborator grants a user access to an idea; adding twice is a no-op.
func (s *PostgresStore) AddCollaborator(ctx context.Context, c *domain.Collaborator) error {
	query := `INSERT INTO collaborators (id, idea_id, user_id, email)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (idea_id, user_id) DO NOTHING`
	return s.exec(ctx, "add collaborator", query, c.ID, c.IdeaID, c.UserID, c.Email)
}

// ListCollaborators returns an idea's collaborators.
func (s *PostgresStore) ListCollaborators(ctx context.Context, ideaID string) ([]domain.Collaborator, error) {
	query := `SELECT id, idea_id, user_id, email, created_at
	          FROM collaborators WHERE idea_id = $1 ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	defer rows.Close()

	var collaborators []domain.Collaborator
	for rows.Next() {
		var c domain.Collaborator
		if err := rows.Scan(&c.ID, &c.IdeaID, &c.UserID, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		collaborators = append(collaborators, c)
	}
	return collaborators, rows.Err()
}

// RemoveCollaborator revokes a user's access to an idea.
func (s *PostgresStore) RemoveCollaborator(ctx context.Context, ideaID, userID string) error {
	query := `DELETE FROM collaborators WHERE idea_id = $1 AND user_id = $2`
	return s.exec(ctx, "remove collaborator", query, ideaID, userID)
}

// --- Invitations ---

// CreateInvitation records a pending collaboration invitation.
func (s *PostgresStore) CreateInvitation(ctx context.Context, inv *domain.Invitation) (*domain.Invitation, error) {
	query := `INSERT INTO invitations (id, idea_id, inviter_id, invitee_email, status)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, idea_id, inviter_id, invitee_email, status, created_at`

	var created domain.Invitation
	err := s.db.QueryRowContext(ctx, query,
		inv.ID, inv.IdeaID, inv.InviterID, inv.InviteeMail, inv.Status,
	).Scan(&created.ID, &created.IdeaID, &created.InviterID, &created.InviteeMail, &created.Status, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	return &created, nil
}

// GetInvitationByID returns one invitation.
func (s *PostgresStore) GetInvitationByID(ctx context.Context, id string) (*domain.Invitation, error) {
	query := `SELECT id, idea_id, inviter_id, invitee_email, status, created_at, responded_at
	          FROM invitations WHERE id = $1`

	var inv domain.Invitation
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&inv.ID, &inv.IdeaID, &inv.InviterID, &inv.InviteeMail, &inv.Status, &inv.CreatedAt, &inv.RespondedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return &inv, nil
}

// HasPendingInvitation reports whether the email already has an open
// invitation for the idea.
func (s *PostgresStore) HasPendingInvitation(ctx context.Context, ideaID, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM invitations WHERE idea_id = $1 AND invitee_email = $2 AND status = $3)`

	var ok bool
	if err := s.db.QueryRowContext(ctx, query, ideaID, email, domain.InvitationPending).Scan(&ok); err != nil {
		return false, fmt.Errorf("pending invitation: %w", err)
	}
	return ok, nil
}

// ListInvitationsForEmail returns the pending invitations addressed to an
// email, with the idea title attached for display.
func (s *PostgresStore) ListInvitationsForEmail(ctx context.Context, email string) ([]domain.Invitation, error) {
	query := `SELECT inv.id, inv.idea_id, i.title, inv.inviter_id, inv.invitee_email, inv.status, inv.created_at
	          FROM invitations inv JOIN ideas i ON i.id = inv.idea_id
	          WHERE inv.invitee_email = $1 AND inv.status = $2 AND i.deleted_at IS NULL
	          ORDER BY inv.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, email, domain.InvitationPending)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []domain.Invitation
	for rows.Next() {
		var inv domain.Invitation
		if err := rows.Scan(&inv.ID, &inv.IdeaID, &inv.IdeaTitle, &inv.InviterID, &inv.InviteeMail, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// ListInvitationsForIdea returns every invitation sent for an idea.
func (s *PostgresStore) ListInvitationsForIdea(ctx context.Context, ideaID string) ([]domain.Invitation, error) {
	query := `SELECT id, idea_id, inviter_id, invitee_email, status, created_at, responded_at
	          FROM invitations WHERE idea_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list idea invitations: %w", err)
	}
	defer rows.Close()

	var invitations []domain.Invitation
	for rows.Next() {
		var inv domain.Invitation
		if err := rows.Scan(&inv.ID, &inv.IdeaID, &inv.InviterID, &inv.InviteeMail, &inv.Status, &inv.CreatedAt, &inv.RespondedAt); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// UpdateInvitationStatus marks an invitation accepted/declined/revoked.
func (s *PostgresStore) UpdateInvitationStatus(ctx context.Context, id, status string) error {
	query := `UPDATE invitations SET status = $2, responded_at = NOW() WHERE id = $1`
	return s.exec(ctx, "update invitation", query, id, status)
}

// --- Audit ---

// WriteAudit records one audit entry. Called from a goroutine in the audit
// middleware, hence no context parameter.
func (s *PostgresStore) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	query := `INSERT INTO audit_logs (user_id, action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.db.Exec(query, userID, action, resource, resourceID, details, ip, userAgent); err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}

// ListAuditLogs returns recent audit entries, optionally filtered by action.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, user_id, action, resource, resource_id, details, ip, user_agent, created_at
	          FROM audit_logs`
	args := []interface{}{}
	if action != "" {
		query += ` WHERE action = $1`
		args = append(args, action)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Resource, &l.ResourceID, &l.Details, &l.IP, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// --- helpers ---

func (s *PostgresStore) exec(ctx context.Context, op, query string, args ...interface{}) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
