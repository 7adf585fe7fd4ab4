package group

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"communityos/internal/common"
	"communityos/internal/content"
	"communityos/internal/tenant"
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const listLimit = 100

var ErrMissingName = common.NewBusinessError(http.StatusBadRequest, "missing_name", "")

// PostLister pages the posts linked to a group.
type PostLister interface {
	GroupPosts(ctx context.Context, actor tenant.Actor, groupID uuid.UUID, page common.PaginationRequest) (*common.Page[content.PostView], error)
}

// CreateInput is a new group.
type CreateInput struct {
	Name        string
	Description *string
	Visibility  string
}

// Service manages groups and memberships of the current tenant.
type Service struct {
	db      *gorm.DB
	groups  *tenantdb.Repository[Group]
	members *tenantdb.Repository[Member]
	access  *Access
	posts   PostLister
	now     func() time.Time
}

// NewService creates a group service. posts may be nil when group feeds are
// not served.
func NewService(db *gorm.DB, access *Access, posts PostLister) *Service {
	return &Service{
		db:      db,
		groups:  tenantdb.NewRepository[Group](db),
		members: tenantdb.NewRepository[Member](db),
		access:  access,
		posts:   posts,
		now:     time.Now,
	}
}

// Create makes a group. The creator joins it as a moderator.
func (s *Service) Create(ctx context.Context, actor tenant.Actor, in CreateInput) (*View, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrMissingName
	}
	var desc *string
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		desc = &d
	}
	g := &Group{
		Name:        name,
		Description: desc,
		Visibility:  ParseVisibility(in.Visibility),
		CreatedByID: actor.UserID,
	}
	g.ID = uuid.New()

	batch := tenantdb.NewSession(s.db)
	batch.Add(g, &Member{GroupID: g.ID, UserID: actor.UserID, Role: MemberRoleModerator, JoinedAt: s.now().UTC()})
	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}
	return &View{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Visibility:  g.Visibility,
		CreatedByID: g.CreatedByID,
		CreatedAt:   g.CreatedAt,
		MemberCount: 1,
		IsMember:    true,
	}, nil
}

// List returns up to 100 groups ordered by name. Private groups are listed
// too; their posts stay hidden from non-members.
func (s *Service) List(ctx context.Context, actor tenant.Actor) ([]View, error) {
	var rows []Group
	if err := s.groups.Query(ctx).Order("name").Limit(listLimit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return s.views(ctx, actor, rows)
}

// Search matches q against group names and descriptions.
func (s *Service) Search(ctx context.Context, actor tenant.Actor, q string, page common.PaginationRequest) (*common.Page[View], error) {
	if strings.TrimSpace(q) == "" {
		return nil, content.ErrMissingQuery
	}
	size := page.GetPageSize()
	var rows []Group
	err := s.groups.Query(ctx).
		Scopes(common.Search(q, "name", "description")).
		Order("name").
		Offset(page.GetOffset()).
		Limit(size + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	hasMore := len(rows) > size
	if hasMore {
		rows = rows[:size]
	}
	views, err := s.views(ctx, actor, rows)
	if err != nil {
		return nil, err
	}
	return &common.Page[View]{Items: views, Page: page.GetPage(), PageSize: size, HasMore: hasMore}, nil
}

// Get returns one group with its member count.
func (s *Service) Get(ctx context.Context, actor tenant.Actor, id uuid.UUID) (*View, error) {
	g, err := s.groups.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, actor, []Group{*g})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Posts pages a group's posts. Private groups are not found for non-members.
func (s *Service) Posts(ctx context.Context, actor tenant.Actor, id uuid.UUID, page common.PaginationRequest) (*common.Page[content.PostView], error) {
	if _, err := s.access.readable(ctx, actor.UserID, id); err != nil {
		return nil, err
	}
	if s.posts == nil {
		return &common.Page[content.PostView]{Items: []content.PostView{}, Page: page.GetPage(), PageSize: page.GetPageSize()}, nil
	}
	return s.posts.GroupPosts(ctx, actor, id, page)
}

// Join adds actor to a public group. Joining twice is a no-op; private
// groups cannot be joined.
func (s *Service) Join(ctx context.Context, actor tenant.Actor, id uuid.UUID) error {
	g, err := s.groups.Get(ctx, id)
	if err != nil {
		return err
	}
	if g.Visibility == VisibilityPrivate {
		return common.ErrForbidden
	}
	ok, err := s.access.IsMember(ctx, id, actor.UserID)
	if err != nil || ok {
		return err
	}
	err = s.members.Create(ctx, &Member{GroupID: id, UserID: actor.UserID, Role: MemberRoleMember, JoinedAt: s.now().UTC()})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// Leave removes actor from a group. Leaving a group one is not in is a no-op.
func (s *Service) Leave(ctx context.Context, actor tenant.Actor, id uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", id, actor.UserID).
		Delete(&Member{}).Error
}

type groupCount struct {
	GroupID uuid.UUID
	N       int
}

func (s *Service) views(ctx context.Context, actor tenant.Actor, rows []Group) ([]View, error) {
	views := make([]View, 0, len(rows))
	if len(rows) == 0 {
		return views, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID)
	}

	var counts []groupCount
	err := s.members.Query(ctx).
		Select("group_id, COUNT(*) AS n").
		Where("group_id IN ?", ids).
		Group("group_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	countMap := make(map[uuid.UUID]int, len(counts))
	for _, c := range counts {
		countMap[c.GroupID] = c.N
	}

	var mine []uuid.UUID
	err = s.members.Query(ctx).Where("group_id IN ? AND user_id = ?", ids, actor.UserID).Pluck("group_id", &mine).Error
	if err != nil {
		return nil, err
	}
	memberOf := make(map[uuid.UUID]bool, len(mine))
	for _, id := range mine {
		memberOf[id] = true
	}

	for i := range rows {
		g := &rows[i]
		views = append(views, View{
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
			Visibility:  g.Visibility,
			CreatedByID: g.CreatedByID,
			CreatedAt:   g.CreatedAt,
			MemberCount: countMap[g.ID],
			IsMember:    memberOf[g.ID],
		})
	}
	return views, nil
}
