package content

import (
	"context"
	"errors"
	"strings"

	"communityos/internal/common"
	"communityos/internal/tenant"
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
)

const (
	defaultCommentPageSize = 50
	maxCommentPageSize     = 200
)

// CreateCommentInput is a new comment.
type CreateCommentInput struct {
	Text            string
	ParentCommentID *uuid.UUID
}

// ListComments returns a post's comments oldest first.
func (s *Service) ListComments(ctx context.Context, actor tenant.Actor, postID uuid.UUID, page common.PaginationRequest) (*common.Page[CommentView], error) {
	if err := s.requirePost(ctx, actor, postID); err != nil {
		return nil, err
	}

	size := page.PageSize
	switch {
	case size <= 0:
		size = defaultCommentPageSize
	case size > maxCommentPageSize:
		size = maxCommentPageSize
	}
	pageNo := page.GetPage()

	var rows []Comment
	err := s.comments.Query(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Offset((pageNo - 1) * size).
		Limit(size + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	hasMore := len(rows) > size
	if hasMore {
		rows = rows[:size]
	}
	views, err := s.commentViews(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &common.Page[CommentView]{Items: views, Page: pageNo, PageSize: size, HasMore: hasMore}, nil
}

// CreateComment replies to a post, optionally under another comment of the
// same post.
func (s *Service) CreateComment(ctx context.Context, actor tenant.Actor, postID uuid.UUID, in CreateCommentInput) (*CommentView, error) {
	post, err := s.visiblePost(ctx, actor, postID)
	if errors.Is(err, tenantdb.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	if !post.CommentingEnabled {
		return nil, ErrCommentingDisabled
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrMissingText
	}
	if in.ParentCommentID != nil {
		parent, err := s.comments.Get(ctx, *in.ParentCommentID)
		if errors.Is(err, tenantdb.ErrNotFound) || (err == nil && parent.PostID != postID) {
			return nil, ErrInvalidParentComment
		}
		if err != nil {
			return nil, err
		}
	}
	if err := s.consume(ctx, actor.UserID, ActionCreateComment, s.commentCooldown); err != nil {
		return nil, err
	}

	c := &Comment{PostID: postID, AuthorID: actor.UserID, ParentCommentID: in.ParentCommentID, Text: text}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	s.dispatchMentions(ctx, actor.UserID, "Comment", c.ID, text)

	views, err := s.commentViews(ctx, []Comment{*c})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// UpdateComment edits the actor's own comment.
func (s *Service) UpdateComment(ctx context.Context, actor tenant.Actor, id uuid.UUID, text string) error {
	c, err := s.comments.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.AuthorID != actor.UserID {
		return common.ErrForbidden
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrMissingText
	}
	return s.comments.UpdateFields(ctx, c, map[string]any{"text": text})
}

// DeleteComment soft-deletes a comment. Authors may delete their own
// comments and moderators any comment of the tenant.
func (s *Service) DeleteComment(ctx context.Context, actor tenant.Actor, id uuid.UUID) error {
	c, err := s.comments.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.AuthorID != actor.UserID && !actor.CanModerate() {
		return common.ErrForbidden
	}
	return s.comments.SoftDelete(ctx, c)
}

// RemoveComment soft-deletes a comment on behalf of moderation.
func (s *Service) RemoveComment(ctx context.Context, id uuid.UUID) error {
	c, err := s.comments.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.comments.SoftDelete(ctx, c)
}

func (s *Service) requirePost(ctx context.Context, actor tenant.Actor, postID uuid.UUID) error {
	_, err := s.visiblePost(ctx, actor, postID)
	if errors.Is(err, tenantdb.ErrNotFound) {
		return ErrPostNotFound
	}
	return err
}

func (s *Service) commentViews(ctx context.Context, rows []Comment) ([]CommentView, error) {
	views := make([]CommentView, 0, len(rows))
	if len(rows) == 0 {
		return views, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].AuthorID)
	}
	names, err := s.authorNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		c := &rows[i]
		views = append(views, CommentView{
			ID:              c.ID,
			PostID:          c.PostID,
			AuthorID:        c.AuthorID,
			AuthorName:      nameOr(names, c.AuthorID),
			ParentCommentID: c.ParentCommentID,
			Text:            c.Text,
			CreatedAt:       c.CreatedAt,
		})
	}
	return views, nil
}
