package auth

import (
	"context"
	"testing"

	"communityos/internal/common"
	"communityos/internal/tenant"
	"communityos/internal/testutil"
	"communityos/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *user.Service) {
	t.Helper()
	db := testutil.OpenDB(t, &tenant.Tenant{}, &user.User{})
	tenants := tenant.NewRepository(db)
	require.NoError(t, tenants.Create(context.Background(),
		&tenant.Tenant{TenantID: testutil.TenantSE, Code: "SE", Name: "Sweden"},
		&tenant.Tenant{TenantID: testutil.TenantIT, Code: "IT", Name: "Italy"},
	))
	users := user.NewService(db, 4)
	return NewService(tenants, users, newJWT(JWTConfig{})), users
}

func TestRegisterBindsTenantFromCode(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Email: " Anna@SE.local ", Password: "pw", FirstName: "Anna", LastName: "A", TenantCode: "se"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, testutil.TenantSE, res.User.TenantID)
	assert.Equal(t, "anna@se.local", res.User.Email)
	assert.Equal(t, tenant.RoleMember, res.User.Role)

	claims, err := svc.jwt.Validate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, testutil.TenantSE.String(), claims.TenantID)

	_, err = svc.Register(ctx, RegisterInput{Email: "anna@se.local", Password: "pw", TenantCode: "SE"})
	assert.ErrorIs(t, err, user.ErrEmailTaken)

	// the same email is free in another tenant
	_, err = svc.Register(ctx, RegisterInput{Email: "anna@se.local", Password: "pw", TenantCode: "IT"})
	require.NoError(t, err)
	_, err = users.FindByEmail(testutil.IT(), "anna@se.local")
	assert.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b", TenantCode: "SE"})
	assert.ErrorIs(t, err, ErrMissingFields)
	_, err = svc.Register(ctx, RegisterInput{Email: "a@b", Password: "pw", TenantCode: "XX"})
	assert.ErrorIs(t, err, ErrInvalidTenant)
}

func TestLogin(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()
	res, err := svc.Register(ctx, RegisterInput{Email: "bo@se.local", Password: "pw", TenantCode: "SE"})
	require.NoError(t, err)

	got, err := svc.Login(ctx, "BO@se.local", "pw", "SE")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, got.User.ID)

	_, err = svc.Login(ctx, "bo@se.local", "wrong", "SE")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "bo@se.local", "pw", "IT")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "bo@se.local", "pw", "NOPE")
	assert.ErrorIs(t, err, ErrInvalidTenant)

	_, err = users.SetStatus(testutil.SE(), res.User.ID, user.StatusSuspended)
	require.NoError(t, err)
	_, err = svc.Login(ctx, "bo@se.local", "pw", "SE")
	assert.ErrorIs(t, err, user.ErrAccountBlocked)

	status, _ := common.StatusFromError(err)
	assert.Equal(t, 403, status)
}
