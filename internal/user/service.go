package user

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"communityos/internal/common"
	"communityos/internal/tenant"
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrMissingFields      = common.NewBusinessError(http.StatusBadRequest, "missing_fields", "email and password are required")
	ErrEmailTaken         = common.NewBusinessError(http.StatusConflict, "email_already_exists", "")
	ErrInvalidCredentials = common.NewBusinessError(http.StatusUnauthorized, "invalid_credentials", "")
	ErrAccountBlocked     = common.NewBusinessError(http.StatusForbidden, "account_blocked", "account is suspended or banned")
	ErrUserNotFound       = common.NewBusinessError(http.StatusNotFound, "user_not_found", "")
	ErrInvalidStatus      = common.NewBusinessError(http.StatusBadRequest, "invalid_status", "")
)

// RegisterInput is a new account in the current tenant.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	City      *string
	Role      tenant.Role
}

// ProfileUpdate carries the editable profile fields. Nil names are left
// unchanged; City, Bio and AvatarURL are replaced as given.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	City      *string
	Bio       *string
	AvatarURL *string
}

// ListFilter pages and searches members.
type ListFilter struct {
	Query string
	common.PaginationRequest
}

// Service manages members of the current tenant. Every method reads the
// tenant from ctx; none takes one as an argument.
type Service struct {
	users      *tenantdb.Repository[User]
	bcryptCost int
}

// NewService creates a user service. cost <= 0 selects bcrypt.DefaultCost.
func NewService(db *gorm.DB, cost int) *Service {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: tenantdb.NewRepository[User](db), bcryptCost: cost}
}

// Register creates an active account. The role defaults to Member.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if _, err := s.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, tenantdb.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = tenant.RoleMember
	}
	u := &User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		City:         trimmed(in.City),
		Role:         role,
		Status:       StatusActive,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// Authenticate checks credentials in the current tenant. Blocked accounts
// are refused before the password is compared.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.FindByEmail(ctx, email)
	if errors.Is(err, tenantdb.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.Blocked() {
		return nil, ErrAccountBlocked
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// FindByEmail looks up a member by normalised email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.users.Query(ctx).Where("email = ?", NormalizeEmail(email)).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, tenantdb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Get returns a member by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.Get(ctx, id)
}

// List returns members ordered by name, optionally matching f.Query against
// name and email.
func (s *Service) List(ctx context.Context, f ListFilter) ([]User, int64, error) {
	query := func() *gorm.DB {
		return s.users.Query(ctx).Scopes(common.Search(f.Query, "first_name || ' ' || last_name", "email"))
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []User
	err := query().Scopes(common.Paginate(f.PaginationRequest)).
		Order("first_name").Order("last_name").
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// NamesByID maps user ids to display names. Unknown ids are absent.
func (s *Service) NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var rows []User
	if err := s.users.Query(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		names[rows[i].ID] = rows[i].DisplayName()
	}
	return names, nil
}

// UpdateProfile edits the member's own profile.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileUpdate) (*User, error) {
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, tenantdb.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	u.City = trimmed(in.City)
	u.Bio = trimmed(in.Bio)
	u.AvatarURL = trimmed(in.AvatarURL)
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetStatus changes the account state of a member.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*User, error) {
	switch status {
	case StatusActive, StatusSuspended, StatusBanned:
	default:
		return nil, ErrInvalidStatus
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateFields(ctx, u, map[string]any{"status": status}); err != nil {
		return nil, err
	}
	u.Status = status
	return u, nil
}

// FindByHandles resolves @handles to members whose email local part matches,
// case-insensitively.
func (s *Service) FindByHandles(ctx context.Context, handles []string) ([]User, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(handles))
	args := make([]any, 0, len(handles))
	for _, h := range handles {
		conds = append(conds, "LOWER(email) LIKE ? ESCAPE '\\'")
		args = append(args, common.EscapeLike(strings.ToLower(h))+"@%")
	}
	var rows []User
	err := s.users.Query(ctx).Where("("+strings.Join(conds, " OR ")+")", args...).Find(&rows).Error
	return rows, err
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
