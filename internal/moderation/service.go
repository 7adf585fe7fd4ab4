package moderation

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"communityos/internal/audit"
	"communityos/internal/common"
	"communityos/internal/content"
	"communityos/internal/tenant"
	"communityos/internal/tenantdb"
	"communityos/internal/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const reportListLimit = 200

var (
	ErrMissingFields     = common.NewBusinessError(http.StatusBadRequest, "missing_fields", "targetType, targetId and reason are required")
	ErrInvalidTargetType = common.NewBusinessError(http.StatusBadRequest, "invalid_target_type", "")
)

// Content is the part of the content service moderation acts on.
type Content interface {
	SetPostStatus(ctx context.Context, id uuid.UUID, status content.PostStatus) (*content.Post, error)
	RemoveComment(ctx context.Context, id uuid.UUID) error
}

// Accounts changes member account states.
type Accounts interface {
	SetStatus(ctx context.Context, id uuid.UUID, status user.Status) (*user.User, error)
}

// ReportInput is a new report.
type ReportInput struct {
	TargetType string
	TargetID   uuid.UUID
	Reason     string
	Notes      *string
}

// ActionInput resolves a report and optionally acts on content.
//
// ActionType "Reviewed" closes the report without action; anything else marks
// it actioned. When TargetType names a post, "Hide" and "Remove" change the
// post's status; when it names a comment, the comment is soft-deleted.
type ActionInput struct {
	ActionType string
	TargetType string
	TargetID   uuid.UUID
	Notes      *string
}

// Service handles reports and moderator actions in the current tenant.
type Service struct {
	reports  *tenantdb.Repository[Report]
	content  Content
	accounts Accounts
	audit    *audit.Logger
}

// NewService creates a moderation service.
func NewService(db *gorm.DB, c Content, accounts Accounts, auditLog *audit.Logger) *Service {
	return &Service{
		reports:  tenantdb.NewRepository[Report](db),
		content:  c,
		accounts: accounts,
		audit:    auditLog,
	}
}

// CreateReport files a report on behalf of any member.
func (s *Service) CreateReport(ctx context.Context, actor tenant.Actor, in ReportInput) (*Report, error) {
	reason := strings.TrimSpace(in.Reason)
	if strings.TrimSpace(in.TargetType) == "" || in.TargetID == uuid.Nil || reason == "" {
		return nil, ErrMissingFields
	}
	target, ok := ParseTargetType(in.TargetType)
	if !ok {
		return nil, ErrInvalidTargetType
	}
	var notes *string
	if in.Notes != nil {
		n := strings.TrimSpace(*in.Notes)
		notes = &n
	}
	r := &Report{
		ReporterID: actor.UserID,
		TargetType: target,
		TargetID:   in.TargetID,
		Reason:     reason,
		Notes:      notes,
		Status:     ReportOpen,
	}
	if err := s.reports.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListReports returns the newest reports of the tenant.
func (s *Service) ListReports(ctx context.Context, actor tenant.Actor) ([]Report, error) {
	if !actor.CanModerate() {
		return nil, common.ErrForbidden
	}
	return s.reports.List(ctx, tenantdb.ListOptions{Order: "created_at DESC", Limit: reportListLimit})
}

// ActOnReport resolves a report and applies the requested content action.
// Content that no longer exists is skipped.
func (s *Service) ActOnReport(ctx context.Context, actor tenant.Actor, reportID uuid.UUID, in ActionInput) error {
	if !actor.CanModerate() {
		return common.ErrForbidden
	}
	r, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return err
	}
	status := ReportActioned
	if strings.EqualFold(in.ActionType, string(ReportReviewed)) {
		status = ReportReviewed
	}
	if err := s.reports.UpdateFields(ctx, r, map[string]any{"status": status}); err != nil {
		return err
	}
	s.record(ctx, actor, audit.ActionReport, audit.TargetReport, r.ID, map[string]any{
		"actionType": in.ActionType,
		"notes":      in.Notes,
		"targetType": r.TargetType,
		"targetId":   r.TargetID,
	})

	meta := map[string]any{"actionType": in.ActionType, "notes": in.Notes}
	target, _ := ParseTargetType(in.TargetType)
	switch target {
	case TargetPost:
		var err error
		switch {
		case strings.EqualFold(in.ActionType, "Hide"):
			_, err = s.content.SetPostStatus(ctx, in.TargetID, content.PostStatusHidden)
		case strings.EqualFold(in.ActionType, "Remove"):
			_, err = s.content.SetPostStatus(ctx, in.TargetID, content.PostStatusRemoved)
		default:
			return nil
		}
		if errors.Is(err, tenantdb.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		s.record(ctx, actor, audit.ActionContent, audit.TargetPost, in.TargetID, meta)
	case TargetComment:
		err := s.content.RemoveComment(ctx, in.TargetID)
		if errors.Is(err, tenantdb.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		s.record(ctx, actor, audit.ActionContent, audit.TargetComment, in.TargetID, meta)
	}
	return nil
}

// SuspendUser suspends a member of the tenant.
func (s *Service) SuspendUser(ctx context.Context, actor tenant.Actor, userID uuid.UUID) error {
	return s.setAccountStatus(ctx, actor, userID, user.StatusSuspended, audit.ActionUserSuspend)
}

// BanUser bans a member of the tenant.
func (s *Service) BanUser(ctx context.Context, actor tenant.Actor, userID uuid.UUID) error {
	return s.setAccountStatus(ctx, actor, userID, user.StatusBanned, audit.ActionUserBan)
}

func (s *Service) setAccountStatus(ctx context.Context, actor tenant.Actor, userID uuid.UUID, status user.Status, action audit.Action) error {
	if !actor.CanModerate() {
		return common.ErrForbidden
	}
	if _, err := s.accounts.SetStatus(ctx, userID, status); err != nil {
		return err
	}
	s.record(ctx, actor, action, audit.TargetUser, userID, nil)
	return nil
}

// record writes an audit entry. The logger reports its own failures; a
// failed audit write does not undo the moderation action.
func (s *Service) record(ctx context.Context, actor tenant.Actor, action audit.Action, targetType string, targetID uuid.UUID, meta any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Log(ctx, actor.UserID, action, targetType, targetID, meta)
}
