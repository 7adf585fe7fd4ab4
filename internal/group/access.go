package group

import (
	"context"

	"communityos/internal/common"
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Access answers membership and privacy questions about groups. It
// satisfies content.GroupAccess.
type Access struct {
	groups  *tenantdb.Repository[Group]
	members *tenantdb.Repository[Member]
}

// NewAccess creates an Access over db.
func NewAccess(db *gorm.DB) *Access {
	return &Access{
		groups:  tenantdb.NewRepository[Group](db),
		members: tenantdb.NewRepository[Member](db),
	}
}

// IsMember reports whether userID belongs to groupID.
func (a *Access) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var n int64
	err := a.members.Query(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).Count(&n).Error
	return n > 0, err
}

// ReadableGroups reports for each of groupIDs whether viewer may read it:
// public groups are readable by everyone, private ones by members only.
// Unknown ids map to false.
func (a *Access) ReadableGroups(ctx context.Context, viewer uuid.UUID, groupIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(groupIDs))
	if len(groupIDs) == 0 {
		return out, nil
	}
	var groups []Group
	if err := a.groups.Query(ctx).Where("id IN ?", groupIDs).Find(&groups).Error; err != nil {
		return nil, err
	}
	var private []uuid.UUID
	for _, g := range groups {
		if g.Visibility == VisibilityPrivate {
			private = append(private, g.ID)
			continue
		}
		out[g.ID] = true
	}
	if len(private) == 0 {
		return out, nil
	}
	var mine []uuid.UUID
	err := a.members.Query(ctx).
		Where("group_id IN ? AND user_id = ?", private, viewer).
		Pluck("group_id", &mine).Error
	if err != nil {
		return nil, err
	}
	for _, id := range mine {
		out[id] = true
	}
	return out, nil
}

// CheckCanPost fails with tenantdb.ErrNotFound for unknown groups and with
// common.ErrForbidden when viewer is not a member of a private group.
func (a *Access) CheckCanPost(ctx context.Context, viewer, groupID uuid.UUID) error {
	g, err := a.groups.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if g.Visibility == VisibilityPublic {
		return nil
	}
	ok, err := a.IsMember(ctx, groupID, viewer)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrForbidden
	}
	return nil
}

// readable loads a group and hides private groups from non-members.
func (a *Access) readable(ctx context.Context, viewer, groupID uuid.UUID) (*Group, error) {
	g, err := a.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.Visibility == VisibilityPrivate {
		ok, err := a.IsMember(ctx, groupID, viewer)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, tenantdb.ErrNotFound
		}
	}
	return g, nil
}
