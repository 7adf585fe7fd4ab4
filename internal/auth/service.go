package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"communityos/internal/common"
	"communityos/internal/tenant"
	"communityos/internal/user"
)

var (
	ErrMissingFields = common.NewBusinessError(http.StatusBadRequest, "missing_fields", "email, password and tenantCode are required")
	ErrInvalidTenant = common.NewBusinessError(http.StatusBadRequest, "invalid_tenant", "")
)

// RegisterInput is a self-registration in the tenant named by TenantCode.
type RegisterInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	City       *string
	TenantCode string
}

// Result is a signed token and the account it was issued for.
type Result struct {
	IssuedToken
	User *user.User `json:"-"`
}

// Service registers and signs in members. Callers are anonymous, so each
// call resolves the tenant from its code and starts its own unit of work
// bound to it.
type Service struct {
	tenants tenant.Repository
	users   *user.Service
	jwt     *JWTService
}

func NewService(tenants tenant.Repository, users *user.Service, jwt *JWTService) *Service {
	return &Service{tenants: tenants, users: users, jwt: jwt}
}

// Register creates a Member account and signs a token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" || strings.TrimSpace(in.TenantCode) == "" {
		return nil, ErrMissingFields
	}
	ctx, err := s.enter(ctx, in.TenantCode)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Register(ctx, user.RegisterInput{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		City:      in.City,
		Role:      tenant.RoleMember,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Login checks credentials in the tenant named by tenantCode.
func (s *Service) Login(ctx context.Context, email, password, tenantCode string) (*Result, error) {
	if strings.TrimSpace(email) == "" || password == "" || strings.TrimSpace(tenantCode) == "" {
		return nil, ErrMissingFields
	}
	ctx, err := s.enter(ctx, tenantCode)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Logout revokes the token described by claims.
func (s *Service) Logout(ctx context.Context, claims *TokenClaims) error {
	return s.jwt.Revoke(ctx, claims)
}

func (s *Service) enter(ctx context.Context, code string) (context.Context, error) {
	t, err := s.tenants.FindByCode(ctx, code)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		return nil, ErrInvalidTenant
	}
	if err != nil {
		return nil, err
	}
	return tenant.ForTenant(ctx, t.TenantID, false), nil
}

func (s *Service) issue(u *user.User) (*Result, error) {
	tok, err := s.jwt.Issue(Subject{UserID: u.ID, TenantID: u.TenantID, Email: u.Email, Role: u.Role})
	if err != nil {
		return nil, err
	}
	return &Result{IssuedToken: *tok, User: u}, nil
}
