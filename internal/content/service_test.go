package content

import (
	"context"
	"sync"
	"testing"
	"time"

	"communityos/internal/cache"
	"communityos/internal/common"
	"communityos/internal/notification"
	"communityos/internal/tenant"
	"communityos/internal/tenantdb"
	"communityos/internal/testutil"
	"communityos/internal/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notification.MentionEvent
}

func (d *recordingDispatcher) DispatchMentions(_ context.Context, ev notification.MentionEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return nil
}

// privateGroups treats every group in the set as private and readable only
// by its listed members.
type privateGroups struct {
	members map[uuid.UUID]map[uuid.UUID]bool
}

func (g privateGroups) ReadableGroups(_ context.Context, viewer uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := map[uuid.UUID]bool{}
	for _, id := range ids {
		out[id] = g.members[id][viewer]
	}
	return out, nil
}

func (g privateGroups) CheckCanPost(_ context.Context, viewer, groupID uuid.UUID) error {
	if !g.members[groupID][viewer] {
		return common.ErrForbidden
	}
	return nil
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	users    *user.Service
	mentions *recordingDispatcher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := testutil.OpenDB(t, append(Models(), &user.User{})...)
	users := user.NewService(db, bcrypt.MinCost)
	d := &recordingDispatcher{}
	opts = append([]Option{WithMentions(d)}, opts...)
	return &fixture{db: db, svc: NewService(db, users, opts...), users: users, mentions: d}
}

func (f *fixture) member(t *testing.T, ctx context.Context, email string, role tenant.Role) tenant.Actor {
	t.Helper()
	u, err := f.users.Register(ctx, user.RegisterInput{Email: email, Password: "pw", FirstName: "F", LastName: "L", Role: role})
	require.NoError(t, err)
	return u.Actor()
}

func TestCreatePostWithImages(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.SE()
	anna := f.member(t, ctx, "anna@se.local", tenant.RoleMember)

	view, err := f.svc.CreatePost(ctx, anna, CreatePostInput{
		BodyText:  "  hello @bo  ",
		ImageURLs: []string{"https://img/1.png", "https://img/2.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello @bo", view.BodyText)
	assert.Equal(t, "F L", view.AuthorName)
	assert.True(t, view.CommentingEnabled)
	assert.Equal(t, PostStatusActive, view.Status)
	require.Len(t, view.Images, 2)
	assert.Equal(t, 0, view.Images[0].SortOrder)
	assert.Equal(t, "https://img/2.png", view.Images[1].URL)

	var stored Post
	require.NoError(t, f.db.WithContext(ctx).Take(&stored, "id = ?", view.ID).Error)
	assert.Equal(t, testutil.TenantSE, stored.TenantID)

	require.Len(t, f.mentions.events, 1)
	assert.Equal(t, []string{"bo"}, f.mentions.events[0].Handles)
	assert.Equal(t, "Post", f.mentions.events[0].TargetType)
}

func TestCreatePostValidation(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.SE()
	anna := f.member(t, ctx, "anna@se.local", tenant.RoleMember)

	_, err := f.svc.CreatePost(ctx, anna, CreatePostInput{BodyText: "   "})
	assert.ErrorIs(t, err, ErrMissingBody)

	urls := make([]string, 11)
	for i := range urls {
		urls[i] = "https://img/x.png"
	}
	_, err = f.svc.CreatePost(ctx, anna, CreatePostInput{BodyText: "x", ImageURLs: urls})
	assert.ErrorIs(t, err, ErrInvalidImageCount)
}

func TestCreatePostThrottled(t *testing.T) {
	f := newFixture(t, WithThrottle(cache.NewMemoryThrottle(), 30*time.Second, 10*time.Second))
	ctx := testutil.SE()
	anna := f.member(t, ctx, "anna@se.local", tenant.RoleMember)

	_, err := f.svc.CreatePost(ctx, anna, CreatePostInput{BodyText: "first"})
	require.NoError(t, err)

	_, err = f.svc.CreatePost(ctx, anna, CreatePostInput{BodyText: "second"})
	var limited *common.RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, ActionCreatePost, limited.Action)
	assert.Greater(t, limited.RetryAfter, 0)
}

func TestFeedIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	se, it := testutil.SE(), testutil.IT()
	anna := f.member(t, se, "anna@se.local", tenant.RoleMember)
	ivo := f.member(t, it, "ivo@it.local", tenant.RoleMember)

	_, err := f.svc.CreatePost(se, anna, CreatePostInput{BodyText: "se post"})
	require.NoError(t, err)
	itPost, err := f.svc.CreatePost(it, ivo, CreatePostInput{BodyText: "it post"})
	require.NoError(t, err)

	feed, err := f.svc.Feed(se, anna)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "se post", feed[0].BodyText)

	_, err = f.svc.GetPost(se, anna, itPost.ID)
	assert.ErrorIs(t, err, tenantdb.ErrNotFound)

	err = f.svc.Like(se, anna, itPost.ID)
	assert.ErrorIs(t, err, tenantdb.ErrNotFound)
}

func TestHiddenPostsVisibleToAuthorAndModerators(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.SE()
	anna := f.member(t, ctx, "anna@se.local", tenant.RoleMember)
	bo := f.member(t, ctx, "bo@se.local", tenant.RoleMember)
	mod := f.member(t, ctx, "mod@se.local", tenant.RoleModerator)

	p, err := f.svc.CreatePost(ctx, anna, CreatePostInput{BodyText: "soon hidden"})
	require.NoError(t, err)
	_, err = f.svc.SetPostStatus(ctx, p.ID, PostStatusHidden)
	require.NoError(t, err)

	_, err = f.svc.GetPost(ctx, bo, p.ID)
	assert.ErrorIs(t, err, tenantdb.ErrNotFound)

	got, err := f.svc.GetPost(ctx, anna, p.ID)
	require.NoError(t, err)
	assert.Equal(t, PostStatusHidden, got.Status)

	feed, err := f.svc.Feed(ctx, mod)
	require.NoError(t, err)
	assert.Len(t, feed, 1)
}

func TestUpdateAndDeletePostPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.SE()
	anna := f.member(t, ctx, "anna@se.local", tenant.RoleMember)
	bo := f.member(t, ctx, "bo@se.local", tenant.RoleMember)
	mod := f.member(t, ctx, "mod@se.local", tenant.RoleModerator)

	p, err := f.svc.CreatePost(ctx, anna, CreatePostInput{BodyText: "v1"})
	require.NoError(t, err)

	err = f.svc.UpdatePost(ctx, bo, p.ID, UpdatePostInput{BodyText: "hijack"})
	assert.ErrorIs(t, err, common.ErrForbidden)

	off := false
	require.NoError(t, f.svc.UpdatePost(ctx, anna, p.ID, UpdatePostInput{BodyText: "v2", CommentingEnabled: &off}))
	got, err := f.svc.GetPost(ctx, anna, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.BodyText)
	assert.False(t, got.CommentingEnabled)

	assert.ErrorIs(t, f.svc.DeletePost(ctx, bo, p.ID), common.ErrForbidden)
	require.NoError(t, f.svc.DeletePost(ctx, mod, p.ID))

	_, err = f.svc.GetPost(ctx, anna, p.ID)
	assert.ErrorIs(t, err, tenantdb.ErrNotFound)
}

func TestAddImagesLimit(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.SE()
	anna := f.member(t, ctx, "anna@se.local", tenant.RoleMember)

	p, err := f.svc.CreatePost(ctx, anna, CreatePostInput{BodyText: "pics", ImageURLs: []string{"a", "b", "c"}})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.AddImages(ctx, anna, p.ID, nil), ErrMissingImages)
	assert.ErrorIs(t, f.svc.AddImages(ctx, anna, p.ID, make([]string, 8)), ErrTooManyImages)

	require.NoError(t, f.svc.AddImages(ctx, anna, p.ID, []string{"d", "e"}))
	got, err := f.svc.GetPost(ctx, anna, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 5)
	assert.Equal(t, "e", got.Images[4].URL)
	assert.Equal(t, 4, got.Images[4].SortOrder)
}

func TestLikeAndBookmarkAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.SE()
	anna := f.member(t, ctx, "anna@se.local", tenant.RoleMember)
	bo := f.member(t, ctx, "bo@se.local", tenant.RoleMember)

	p, err := f.svc.CreatePost(ctx, anna, CreatePostInput{BodyText: "like me"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Like(ctx, bo, p.ID))
	require.NoError(t, f.svc.Like(ctx, bo, p.ID))
	require.NoError(t, f.svc.Bookmark(ctx, bo, p.ID))
	require.NoError(t, f.svc.Bookmark(ctx, bo, p.ID))

	got, err := f.svc.GetPost(ctx, bo, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikeCount)
	assert.True(t, got.LikedByMe)
	assert.True(t, got.BookmarkedByMe)

	saved, err := f.svc.Bookmarked(ctx, bo)
	require.NoError(t, err)
	require.Len(t, saved, 1)

	require.NoError(t, f.svc.Unlike(ctx, bo, p.ID))
	require.NoError(t, f.svc.Unlike(ctx, bo, p.ID))
	require.NoError(t, f.svc.Unbookmark(ctx, bo, p.ID))

	got, err = f.svc.GetPost(ctx, anna, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LikeCount)

	saved, err = f.svc.Bookmarked(ctx, bo)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestSearchPosts(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.SE()
	anna := f.member(t, ctx, "anna@se.local", tenant.RoleMember)

	for _, body := range []string{"Garden party", "garden tools", "bike repair"} {
		_, err := f.svc.CreatePost(ctx, anna, CreatePostInput{BodyText: body})
		require.NoError(t, err)
	}

	_, err := f.svc.SearchPosts(ctx, anna, " ", common.PaginationRequest{})
	assert.ErrorIs(t, err, ErrMissingQuery)

	page, err := f.svc.SearchPosts(ctx, anna, "GARDEN", common.PaginationRequest{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.True(t, page.HasMore)

	page, err = f.svc.SearchPosts(ctx, anna, "garden", common.PaginationRequest{Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
}

func TestPrivateGroupPostsHiddenFromOutsiders(t *testing.T) {
	groupID := uuid.New()
	access := privateGroups{members: map[uuid.UUID]map[uuid.UUID]bool{groupID: {}}}
	f := newFixture(t, WithGroupAccess(access))
	ctx := testutil.SE()
	anna := f.member(t, ctx, "anna@se.local", tenant.RoleMember)
	bo := f.member(t, ctx, "bo@se.local", tenant.RoleMember)
	access.members[groupID][anna.UserID] = true

	_, err := f.svc.CreatePost(ctx, bo, CreatePostInput{BodyText: "sneaky", GroupID: &groupID})
	assert.ErrorIs(t, err, common.ErrForbidden)

	p, err := f.svc.CreatePost(ctx, anna, CreatePostInput{BodyText: "members only", GroupID: &groupID})
	require.NoError(t, err)

	_, err = f.svc.GetPost(ctx, bo, p.ID)
	assert.ErrorIs(t, err, tenantdb.ErrNotFound)
	feed, err := f.svc.Feed(ctx, bo)
	require.NoError(t, err)
	assert.Empty(t, feed)

	feed, err = f.svc.Feed(ctx, anna)
	require.NoError(t, err)
	assert.Len(t, feed, 1)
}
