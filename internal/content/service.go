package content

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"communityos/internal/cache"
	"communityos/internal/common"
	"communityos/internal/logger"
	"communityos/internal/notification"
	"communityos/internal/tenant"
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxImagesPerPost = 10
	feedSize         = 50

	ActionCreatePost    = "create_post"
	ActionCreateComment = "create_comment"
)

var (
	ErrMissingBody          = common.NewBusinessError(http.StatusBadRequest, "missing_body", "")
	ErrInvalidImageCount    = common.NewBusinessError(http.StatusBadRequest, "invalid_image_count", "at most 10 images per post")
	ErrMissingImages        = common.NewBusinessError(http.StatusBadRequest, "missing_images", "")
	ErrTooManyImages        = common.NewBusinessError(http.StatusBadRequest, "too_many_images", "at most 10 images per post")
	ErrMissingQuery         = common.NewBusinessError(http.StatusBadRequest, "missing_q", "")
	ErrPostNotFound         = common.NewBusinessError(http.StatusNotFound, "post_not_found", "")
	ErrCommentingDisabled   = common.NewBusinessError(http.StatusBadRequest, "commenting_disabled", "")
	ErrMissingText          = common.NewBusinessError(http.StatusBadRequest, "missing_text", "")
	ErrInvalidParentComment = common.NewBusinessError(http.StatusBadRequest, "invalid_parent_comment", "")
)

// AuthorDirectory resolves display names of members.
type AuthorDirectory interface {
	NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// GroupAccess answers group membership questions for post visibility.
type GroupAccess interface {
	// ReadableGroups reports which of groupIDs viewer may read.
	ReadableGroups(ctx context.Context, viewer uuid.UUID, groupIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	// CheckCanPost fails unless viewer may link a post to groupID.
	CheckCanPost(ctx context.Context, viewer, groupID uuid.UUID) error
}

// Option configures a Service.
type Option func(*Service)

// WithThrottle rate-limits post and comment creation per member.
func WithThrottle(t cache.ActionThrottle, postCooldown, commentCooldown time.Duration) Option {
	return func(s *Service) {
		s.throttle = t
		s.postCooldown = postCooldown
		s.commentCooldown = commentCooldown
	}
}

// WithMentions dispatches @mentions found in posts and comments.
func WithMentions(d notification.MentionDispatcher) Option {
	return func(s *Service) { s.mentions = d }
}

// WithGroupAccess enables private-group visibility checks.
func WithGroupAccess(g GroupAccess) Option {
	return func(s *Service) { s.groups = g }
}

// Service manages posts, comments, reactions and bookmarks of the current
// tenant.
type Service struct {
	db        *gorm.DB
	posts     *tenantdb.Repository[Post]
	images    *tenantdb.Repository[PostImage]
	reactions *tenantdb.Repository[Reaction]
	bookmarks *tenantdb.Repository[Bookmark]
	comments  *tenantdb.Repository[Comment]

	authors         AuthorDirectory
	groups          GroupAccess
	mentions        notification.MentionDispatcher
	throttle        cache.ActionThrottle
	postCooldown    time.Duration
	commentCooldown time.Duration
}

// NewService creates a content service.
func NewService(db *gorm.DB, authors AuthorDirectory, opts ...Option) *Service {
	s := &Service{
		db:        db,
		posts:     tenantdb.NewRepository[Post](db),
		images:    tenantdb.NewRepository[PostImage](db),
		reactions: tenantdb.NewRepository[Reaction](db),
		bookmarks: tenantdb.NewRepository[Bookmark](db),
		comments:  tenantdb.NewRepository[Comment](db),
		authors:   authors,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// Posts
// ============================================================================

// CreatePostInput is a new post.
type CreatePostInput struct {
	BodyText        string
	ImageURLs       []string
	LinkURL         *string
	LinkTitle       *string
	LinkDescription *string
	LinkImageURL    *string
	GroupID         *uuid.UUID
}

// CreatePost publishes a post with its images, optionally into a group, and
// dispatches notifications for any @mentions in the body.
func (s *Service) CreatePost(ctx context.Context, actor tenant.Actor, in CreatePostInput) (*PostView, error) {
	body := strings.TrimSpace(in.BodyText)
	if body == "" {
		return nil, ErrMissingBody
	}
	if len(in.ImageURLs) > maxImagesPerPost {
		return nil, ErrInvalidImageCount
	}
	if in.GroupID != nil {
		if s.groups == nil {
			return nil, common.ErrNotFound
		}
		if err := s.groups.CheckCanPost(ctx, actor.UserID, *in.GroupID); err != nil {
			return nil, err
		}
	}
	if err := s.consume(ctx, actor.UserID, ActionCreatePost, s.postCooldown); err != nil {
		return nil, err
	}

	post := &Post{
		AuthorID:          actor.UserID,
		BodyText:          body,
		LinkURL:           in.LinkURL,
		LinkTitle:         in.LinkTitle,
		LinkDescription:   in.LinkDescription,
		LinkImageURL:      in.LinkImageURL,
		CommentingEnabled: true,
		Status:            PostStatusActive,
	}
	post.ID = uuid.New()

	batch := tenantdb.NewSession(s.db)
	batch.Add(post)
	for i, url := range in.ImageURLs {
		batch.Add(&PostImage{PostID: post.ID, URL: strings.TrimSpace(url), SortOrder: i})
	}
	if in.GroupID != nil {
		batch.Add(&GroupPost{PostID: post.ID, GroupID: *in.GroupID})
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}

	s.dispatchMentions(ctx, actor.UserID, "Post", post.ID, body)
	return s.GetPost(ctx, actor, post.ID)
}

// Feed returns the newest posts visible to actor.
func (s *Service) Feed(ctx context.Context, actor tenant.Actor) ([]PostView, error) {
	var posts []Post
	err := s.visibleQuery(ctx, actor).
		Order("created_at DESC").
		Limit(feedSize).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return s.Views(ctx, actor, posts)
}

// SearchPosts matches q against post text and link metadata.
func (s *Service) SearchPosts(ctx context.Context, actor tenant.Actor, q string, page common.PaginationRequest) (*common.Page[PostView], error) {
	if strings.TrimSpace(q) == "" {
		return nil, ErrMissingQuery
	}
	size := page.GetPageSize()
	var posts []Post
	err := s.visibleQuery(ctx, actor).
		Scopes(common.Search(q, "body_text", "link_title", "link_description")).
		Order("created_at DESC").
		Offset(page.GetOffset()).
		Limit(size + 1).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	hasMore := len(posts) > size
	if hasMore {
		posts = posts[:size]
	}
	views, err := s.Views(ctx, actor, posts)
	if err != nil {
		return nil, err
	}
	return &common.Page[PostView]{Items: views, Page: page.GetPage(), PageSize: size, HasMore: hasMore}, nil
}

// Bookmarked returns the posts actor has bookmarked, newest first.
func (s *Service) Bookmarked(ctx context.Context, actor tenant.Actor) ([]PostView, error) {
	var ids []uuid.UUID
	err := s.bookmarks.Query(ctx).Where("user_id = ?", actor.UserID).Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []PostView{}, nil
	}
	var posts []Post
	err = s.visibleQuery(ctx, actor).Where("id IN ?", ids).Order("created_at DESC").Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return s.Views(ctx, actor, posts)
}

// GroupPosts pages the posts linked to groupID, newest first. Callers check
// group access before.
func (s *Service) GroupPosts(ctx context.Context, actor tenant.Actor, groupID uuid.UUID, page common.PaginationRequest) (*common.Page[PostView], error) {
	size := page.GetPageSize()
	out := &common.Page[PostView]{Items: []PostView{}, Page: page.GetPage(), PageSize: size}

	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&GroupPost{}).Where("group_id = ?", groupID).Distinct().Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	var posts []Post
	err = s.visibleQuery(ctx, actor).
		Where("id IN ?", ids).
		Order("created_at DESC").
		Offset(page.GetOffset()).
		Limit(size + 1).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	out.HasMore = len(posts) > size
	if out.HasMore {
		posts = posts[:size]
	}
	if out.Items, err = s.Views(ctx, actor, posts); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPost returns one post as seen by actor.
func (s *Service) GetPost(ctx context.Context, actor tenant.Actor, id uuid.UUID) (*PostView, error) {
	post, err := s.visiblePost(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	views, err := s.Views(ctx, actor, []Post{*post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// UpdatePostInput edits a post.
type UpdatePostInput struct {
	BodyText          string
	CommentingEnabled *bool
}

// UpdatePost edits the actor's own post.
func (s *Service) UpdatePost(ctx context.Context, actor tenant.Actor, id uuid.UUID, in UpdatePostInput) error {
	post, err := s.visiblePost(ctx, actor, id)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.UserID {
		return common.ErrForbidden
	}
	body := strings.TrimSpace(in.BodyText)
	if body == "" {
		return ErrMissingBody
	}
	fields := map[string]any{"body_text": body}
	if in.CommentingEnabled != nil {
		fields["commenting_enabled"] = *in.CommentingEnabled
	}
	return s.posts.UpdateFields(ctx, post, fields)
}

// DeletePost soft-deletes a post. Authors may delete their own posts and
// moderators any post of the tenant.
func (s *Service) DeletePost(ctx context.Context, actor tenant.Actor, id uuid.UUID) error {
	post, err := s.visiblePost(ctx, actor, id)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.UserID && !actor.CanModerate() {
		return common.ErrForbidden
	}
	return s.posts.SoftDelete(ctx, post)
}

// AddImages appends images to the actor's own post.
func (s *Service) AddImages(ctx context.Context, actor tenant.Actor, id uuid.UUID, urls []string) error {
	post, err := s.visiblePost(ctx, actor, id)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.UserID {
		return common.ErrForbidden
	}
	if len(urls) == 0 {
		return ErrMissingImages
	}
	if len(post.Images)+len(urls) > maxImagesPerPost {
		return ErrTooManyImages
	}
	start := len(post.Images)
	rows := make([]*PostImage, 0, len(urls))
	for i, url := range urls {
		rows = append(rows, &PostImage{PostID: post.ID, URL: strings.TrimSpace(url), SortOrder: start + i})
	}
	return s.images.Create(ctx, rows...)
}

// Like records actor's like. Liking twice is a no-op.
func (s *Service) Like(ctx context.Context, actor tenant.Actor, postID uuid.UUID) error {
	if _, err := s.visiblePost(ctx, actor, postID); err != nil {
		return err
	}
	var n int64
	err := s.reactions.Query(ctx).
		Where("post_id = ? AND user_id = ? AND type = ?", postID, actor.UserID, ReactionLike).
		Count(&n).Error
	if err != nil || n > 0 {
		return err
	}
	err = s.reactions.Create(ctx, &Reaction{PostID: postID, UserID: actor.UserID, Type: ReactionLike})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// Unlike removes actor's like, if any.
func (s *Service) Unlike(ctx context.Context, actor tenant.Actor, postID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ? AND type = ?", postID, actor.UserID, ReactionLike).
		Delete(&Reaction{}).Error
}

// Bookmark saves a post for actor. Bookmarking twice is a no-op.
func (s *Service) Bookmark(ctx context.Context, actor tenant.Actor, postID uuid.UUID) error {
	if _, err := s.visiblePost(ctx, actor, postID); err != nil {
		return err
	}
	var n int64
	err := s.bookmarks.Query(ctx).Where("post_id = ? AND user_id = ?", postID, actor.UserID).Count(&n).Error
	if err != nil || n > 0 {
		return err
	}
	err = s.bookmarks.Create(ctx, &Bookmark{PostID: postID, UserID: actor.UserID})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// Unbookmark removes actor's bookmark, if any.
func (s *Service) Unbookmark(ctx context.Context, actor tenant.Actor, postID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, actor.UserID).
		Delete(&Bookmark{}).Error
}

// FindPost loads a post without visibility checks. Moderation and polls use
// it to address posts by id.
func (s *Service) FindPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	return s.posts.Get(ctx, id)
}

// SetPostStatus changes the moderation state of a post.
func (s *Service) SetPostStatus(ctx context.Context, id uuid.UUID, status PostStatus) (*Post, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.posts.UpdateFields(ctx, post, map[string]any{"status": status}); err != nil {
		return nil, err
	}
	post.Status = status
	return post, nil
}

// CanView reports whether actor may read the post with the given id.
func (s *Service) CanView(ctx context.Context, actor tenant.Actor, id uuid.UUID) error {
	_, err := s.visiblePost(ctx, actor, id)
	return err
}

// Views decorates posts with author names, counts and the viewer's own
// reactions. Posts hidden from actor by group privacy are dropped.
func (s *Service) Views(ctx context.Context, actor tenant.Actor, posts []Post) ([]PostView, error) {
	posts, err := s.filterGroupPrivate(ctx, actor, posts)
	if err != nil {
		return nil, err
	}
	views := make([]PostView, 0, len(posts))
	if len(posts) == 0 {
		return views, nil
	}

	ids := make([]uuid.UUID, 0, len(posts))
	authorIDs := make([]uuid.UUID, 0, len(posts))
	for i := range posts {
		ids = append(ids, posts[i].ID)
		authorIDs = append(authorIDs, posts[i].AuthorID)
	}

	likes, err := s.countBy(ctx, &Reaction{}, ids, "type = ?", ReactionLike)
	if err != nil {
		return nil, err
	}
	comments, err := s.countBy(ctx, &Comment{}, ids, "")
	if err != nil {
		return nil, err
	}
	liked, err := s.postIDSet(ctx, &Reaction{}, ids, actor.UserID, "type = ?", ReactionLike)
	if err != nil {
		return nil, err
	}
	bookmarked, err := s.postIDSet(ctx, &Bookmark{}, ids, actor.UserID, "")
	if err != nil {
		return nil, err
	}
	names, err := s.authorNames(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	for i := range posts {
		p := &posts[i]
		images := make([]ImageView, 0, len(p.Images))
		for _, img := range p.Images {
			images = append(images, ImageView{ID: img.ID, URL: img.URL, SortOrder: img.SortOrder})
		}
		views = append(views, PostView{
			ID:                p.ID,
			AuthorID:          p.AuthorID,
			AuthorName:        nameOr(names, p.AuthorID),
			BodyText:          p.BodyText,
			LinkURL:           p.LinkURL,
			LinkTitle:         p.LinkTitle,
			LinkDescription:   p.LinkDescription,
			LinkImageURL:      p.LinkImageURL,
			CommentingEnabled: p.CommentingEnabled,
			Status:            p.Status,
			CreatedAt:         p.CreatedAt,
			Images:            images,
			LikeCount:         likes[p.ID],
			CommentCount:      comments[p.ID],
			LikedByMe:         liked[p.ID],
			BookmarkedByMe:    bookmarked[p.ID],
		})
	}
	return views, nil
}

// visibleQuery selects posts with their images, hiding moderated posts from
// everyone but their author and moderators.
func (s *Service) visibleQuery(ctx context.Context, actor tenant.Actor) *gorm.DB {
	q := s.posts.Query(ctx).Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order")
	})
	if !actor.CanModerate() {
		q = q.Where("status = ? OR author_id = ?", PostStatusActive, actor.UserID)
	}
	return q
}

func (s *Service) visiblePost(ctx context.Context, actor tenant.Actor, id uuid.UUID) (*Post, error) {
	var post Post
	err := s.visibleQuery(ctx, actor).Where("id = ?", id).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, tenantdb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	visible, err := s.filterGroupPrivate(ctx, actor, []Post{post})
	if err != nil {
		return nil, err
	}
	if len(visible) == 0 {
		return nil, tenantdb.ErrNotFound
	}
	return &post, nil
}

// filterGroupPrivate drops posts whose every group link is a group actor may
// not read. Posts without links are public within the tenant.
func (s *Service) filterGroupPrivate(ctx context.Context, actor tenant.Actor, posts []Post) ([]Post, error) {
	if s.groups == nil || len(posts) == 0 {
		return posts, nil
	}
	ids := make([]uuid.UUID, 0, len(posts))
	for i := range posts {
		ids = append(ids, posts[i].ID)
	}
	var links []GroupPost
	if err := s.db.WithContext(ctx).Where("post_id IN ?", ids).Find(&links).Error; err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return posts, nil
	}
	groupIDs := make([]uuid.UUID, 0, len(links))
	byPost := make(map[uuid.UUID][]uuid.UUID)
	for _, l := range links {
		groupIDs = append(groupIDs, l.GroupID)
		byPost[l.PostID] = append(byPost[l.PostID], l.GroupID)
	}
	readable, err := s.groups.ReadableGroups(ctx, actor.UserID, groupIDs)
	if err != nil {
		return nil, err
	}
	out := posts[:0:0]
	for _, p := range posts {
		groups, linked := byPost[p.ID]
		if !linked {
			out = append(out, p)
			continue
		}
		for _, g := range groups {
			if readable[g] {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

type postCount struct {
	PostID uuid.UUID
	N      int
}

func (s *Service) countBy(ctx context.Context, model any, postIDs []uuid.UUID, cond string, args ...any) (map[uuid.UUID]int, error) {
	q := s.db.WithContext(ctx).Model(model).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", postIDs)
	if cond != "" {
		q = q.Where(cond, args...)
	}
	var rows []postCount
	if err := q.Group("post_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		out[r.PostID] = r.N
	}
	return out, nil
}

func (s *Service) postIDSet(ctx context.Context, model any, postIDs []uuid.UUID, user uuid.UUID, cond string, args ...any) (map[uuid.UUID]bool, error) {
	q := s.db.WithContext(ctx).Model(model).Where("post_id IN ? AND user_id = ?", postIDs, user)
	if cond != "" {
		q = q.Where(cond, args...)
	}
	var ids []uuid.UUID
	if err := q.Pluck("post_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (s *Service) authorNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if s.authors == nil {
		return map[uuid.UUID]string{}, nil
	}
	return s.authors.NamesByID(ctx, ids)
}

func nameOr(names map[uuid.UUID]string, id uuid.UUID) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return "Unknown"
}

func (s *Service) consume(ctx context.Context, user uuid.UUID, action string, window time.Duration) error {
	if s.throttle == nil || window <= 0 {
		return nil
	}
	ok, wait, err := s.throttle.Allow(ctx, user, action, window)
	if err != nil {
		// throttle backend down: let the action through
		logger.WithContext(ctx).Warn("action throttle unavailable", zap.String("action", action), zap.Error(err))
		return nil
	}
	if !ok {
		return &common.RateLimitedError{Action: action, RetryAfter: int(math.Ceil(wait.Seconds()))}
	}
	return nil
}

func (s *Service) dispatchMentions(ctx context.Context, actor uuid.UUID, targetType string, targetID uuid.UUID, text string) {
	if s.mentions == nil {
		return
	}
	handles := notification.ParseMentions(text)
	if len(handles) == 0 {
		return
	}
	ev := notification.MentionEvent{ActorID: actor, TargetType: targetType, TargetID: targetID, Handles: handles}
	if err := s.mentions.DispatchMentions(ctx, ev); err != nil {
		logger.WithContext(ctx).Warn("mention dispatch failed",
			zap.String("target_type", targetType),
			zap.String("target_id", targetID.String()),
			zap.Error(err))
	}
}
