package content

import (
	"time"

	"communityos/internal/tenantdb"

	"github.com/google/uuid"
)

// ============================================================================
// Posts
// ============================================================================

// PostStatus is the moderation state of a post.
type PostStatus string

const (
	PostStatusActive  PostStatus = "Active"
	PostStatusHidden  PostStatus = "Hidden"
	PostStatusRemoved PostStatus = "Removed"
)

// Post is a feed entry.
type Post struct {
	tenantdb.Model
	tenantdb.SoftDeleteModel
	AuthorID          uuid.UUID   `json:"authorId" gorm:"type:uuid;not null;index"`
	BodyText          string      `json:"bodyText" gorm:"type:text;not null"`
	LinkURL           *string     `json:"linkUrl,omitempty" gorm:"size:2048"`
	LinkTitle         *string     `json:"linkTitle,omitempty" gorm:"size:300"`
	LinkDescription   *string     `json:"linkDescription,omitempty" gorm:"size:1000"`
	LinkImageURL      *string     `json:"linkImageUrl,omitempty" gorm:"size:2048"`
	CommentingEnabled bool        `json:"commentingEnabled" gorm:"not null"`
	Status            PostStatus  `json:"status" gorm:"size:16;not null;index"`
	Images            []PostImage `json:"images" gorm:"foreignKey:PostID"`
}

func (Post) TableName() string {
	return "posts"
}

// PostImage is an image URL attached to a post.
type PostImage struct {
	tenantdb.Model
	PostID    uuid.UUID `json:"postId" gorm:"type:uuid;not null;index"`
	URL       string    `json:"url" gorm:"size:2048;not null"`
	SortOrder int       `json:"sortOrder" gorm:"not null"`
}

func (PostImage) TableName() string {
	return "post_images"
}

// ReactionType is the kind of a reaction.
type ReactionType string

const (
	ReactionLike ReactionType = "Like"
)

// Reaction is one member's reaction to a post.
type Reaction struct {
	tenantdb.Model
	PostID uuid.UUID    `json:"postId" gorm:"type:uuid;not null;index"`
	UserID uuid.UUID    `json:"userId" gorm:"type:uuid;not null;index"`
	Type   ReactionType `json:"type" gorm:"size:16;not null"`
}

func (Reaction) TableName() string {
	return "reactions"
}

// Bookmark is a post saved by a member.
type Bookmark struct {
	tenantdb.Model
	PostID uuid.UUID `json:"postId" gorm:"type:uuid;not null;index"`
	UserID uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
}

func (Bookmark) TableName() string {
	return "bookmarks"
}

// GroupPost links a post to a group. Posts linked to a private group are
// readable by its members only.
type GroupPost struct {
	tenantdb.Model
	PostID  uuid.UUID `json:"postId" gorm:"type:uuid;not null;index"`
	GroupID uuid.UUID `json:"groupId" gorm:"type:uuid;not null;index"`
}

func (GroupPost) TableName() string {
	return "group_posts"
}

// ============================================================================
// Comments
// ============================================================================

// Comment is a reply to a post, optionally threaded under another comment of
// the same post.
type Comment struct {
	tenantdb.Model
	tenantdb.SoftDeleteModel
	PostID          uuid.UUID  `json:"postId" gorm:"type:uuid;not null;index"`
	AuthorID        uuid.UUID  `json:"authorId" gorm:"type:uuid;not null;index"`
	ParentCommentID *uuid.UUID `json:"parentCommentId,omitempty" gorm:"type:uuid;index"`
	Text            string     `json:"text" gorm:"type:text;not null"`
}

func (Comment) TableName() string {
	return "comments"
}

// ============================================================================
// Views
// ============================================================================

// ImageView is an image in a PostView.
type ImageView struct {
	ID        uuid.UUID `json:"postImageId"`
	URL       string    `json:"url"`
	SortOrder int       `json:"sortOrder"`
}

// PostView is a post as shown to one viewer.
type PostView struct {
	ID                uuid.UUID   `json:"postId"`
	AuthorID          uuid.UUID   `json:"authorId"`
	AuthorName        string      `json:"authorName"`
	BodyText          string      `json:"bodyText"`
	LinkURL           *string     `json:"linkUrl"`
	LinkTitle         *string     `json:"linkTitle"`
	LinkDescription   *string     `json:"linkDescription"`
	LinkImageURL      *string     `json:"linkImageUrl"`
	CommentingEnabled bool        `json:"commentingEnabled"`
	Status            PostStatus  `json:"status"`
	CreatedAt         time.Time   `json:"createdAt"`
	Images            []ImageView `json:"images"`
	LikeCount         int         `json:"likeCount"`
	CommentCount      int         `json:"commentCount"`
	LikedByMe         bool        `json:"likedByMe"`
	BookmarkedByMe    bool        `json:"bookmarkedByMe"`
}

// CommentView is a comment as listed under a post.
type CommentView struct {
	ID              uuid.UUID  `json:"commentId"`
	PostID          uuid.UUID  `json:"postId"`
	AuthorID        uuid.UUID  `json:"authorId"`
	AuthorName      string     `json:"authorName"`
	ParentCommentID *uuid.UUID `json:"parentCommentId"`
	Text            string     `json:"text"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Models lists the tables of this package for migration.
func Models() []any {
	return []any{&Post{}, &PostImage{}, &Reaction{}, &Bookmark{}, &GroupPost{}, &Comment{}}
}
