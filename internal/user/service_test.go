package user

import (
	"context"
	"testing"

	"communityos/internal/common"
	"communityos/internal/tenant"
	"communityos/internal/tenantdb"
	"communityos/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.OpenDB(t, &User{})
	return NewService(db, bcrypt.MinCost)
}

func register(t *testing.T, s *Service, ctx context.Context, email, first string) *User {
	t.Helper()
	u, err := s.Register(ctx, RegisterInput{Email: email, Password: "Passw0rd!", FirstName: first, LastName: "Test"})
	require.NoError(t, err)
	return u
}

func TestRegisterNormalisesAndStamps(t *testing.T) {
	s := newTestService(t)

	u, err := s.Register(testutil.SE(), RegisterInput{
		Email:     "  Anna@SE.local ",
		Password:  "Passw0rd!",
		FirstName: " Anna ",
		LastName:  "Svensson",
	})
	require.NoError(t, err)
	assert.Equal(t, "anna@se.local", u.Email)
	assert.Equal(t, "Anna", u.FirstName)
	assert.Equal(t, testutil.TenantSE, u.TenantID)
	assert.Equal(t, tenant.RoleMember, u.Role)
	assert.Equal(t, StatusActive, u.Status)
	assert.NotEqual(t, "Passw0rd!", u.PasswordHash)
}

func TestRegisterEmailUniquePerTenant(t *testing.T) {
	s := newTestService(t)
	register(t, s, testutil.SE(), "same@x.local", "A")

	_, err := s.Register(testutil.SE(), RegisterInput{Email: "SAME@x.local", Password: "p"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	// Another tenant cannot see the SE row, so the address is free there.
	u := register(t, s, testutil.IT(), "same@x.local", "B")
	assert.Equal(t, testutil.TenantIT, u.TenantID)
}

func TestRegisterMissingFields(t *testing.T) {
	s := newTestService(t)
	_, err := s.Register(testutil.SE(), RegisterInput{Email: " ", Password: "x"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestAuthenticate(t *testing.T) {
	s := newTestService(t)
	u := register(t, s, testutil.SE(), "login@se.local", "Lo")

	got, err := s.Authenticate(testutil.SE(), "LOGIN@se.local", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate(testutil.SE(), "login@se.local", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Authenticate(testutil.IT(), "login@se.local", "Passw0rd!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.SetStatus(testutil.SE(), u.ID, StatusSuspended)
	require.NoError(t, err)
	_, err = s.Authenticate(testutil.SE(), "login@se.local", "Passw0rd!")
	assert.ErrorIs(t, err, ErrAccountBlocked)
}

func TestListSearchAndPaging(t *testing.T) {
	s := newTestService(t)
	register(t, s, testutil.SE(), "b@se.local", "Bertil")
	register(t, s, testutil.SE(), "a@se.local", "Anna")
	register(t, s, testutil.SE(), "c@se.local", "Cecilia")
	register(t, s, testutil.IT(), "x@it.local", "Anna")

	rows, total, err := s.List(testutil.SE(), ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, rows, 3)
	assert.Equal(t, "Anna", rows[0].FirstName)

	rows, total, err = s.List(testutil.SE(), ListFilter{Query: "ANNA"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, testutil.TenantSE, rows[0].TenantID)

	rows, _, err = s.List(testutil.SE(), ListFilter{PaginationRequest: common.PaginationRequest{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Cecilia", rows[0].FirstName)
}

func TestGetAcrossTenantsIsNotFound(t *testing.T) {
	s := newTestService(t)
	u := register(t, s, testutil.IT(), "it@it.local", "Ivo")

	_, err := s.Get(testutil.SE(), u.ID)
	assert.ErrorIs(t, err, tenantdb.ErrNotFound)

	_, err = s.SetStatus(testutil.SE(), u.ID, StatusBanned)
	assert.ErrorIs(t, err, tenantdb.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	s := newTestService(t)
	u := register(t, s, testutil.SE(), "p@se.local", "Per")

	city, bio, empty := " Malmö ", "hello", ""
	first := "Pelle"
	got, err := s.UpdateProfile(testutil.SE(), u.ID, ProfileUpdate{FirstName: &first, City: &city, Bio: &bio, AvatarURL: &empty})
	require.NoError(t, err)
	assert.Equal(t, "Pelle", got.FirstName)
	assert.Equal(t, "Test", got.LastName)
	require.NotNil(t, got.City)
	assert.Equal(t, "Malmö", *got.City)
	assert.Nil(t, got.AvatarURL)

	reloaded, err := s.Get(testutil.SE(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", *reloaded.Bio)

	_, err = s.UpdateProfile(testutil.IT(), u.ID, ProfileUpdate{FirstName: &first})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSetStatusRejectsUnknown(t *testing.T) {
	s := newTestService(t)
	u := register(t, s, testutil.SE(), "s@se.local", "S")
	_, err := s.SetStatus(testutil.SE(), u.ID, Status("Frozen"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestFindByHandles(t *testing.T) {
	s := newTestService(t)
	register(t, s, testutil.SE(), "anna.s@se.local", "Anna")
	register(t, s, testutil.SE(), "bo@se.local", "Bo")
	register(t, s, testutil.SE(), "annas@se.local", "Other")
	register(t, s, testutil.IT(), "bo@it.local", "Bo IT")

	rows, err := s.FindByHandles(testutil.SE(), []string{"Anna.S", "bo"})
	require.NoError(t, err)
	var emails []string
	for _, r := range rows {
		emails = append(emails, r.Email)
	}
	assert.ElementsMatch(t, []string{"anna.s@se.local", "bo@se.local"}, emails)

	none, err := s.FindByHandles(testutil.SE(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNamesByID(t *testing.T) {
	s := newTestService(t)
	a := register(t, s, testutil.SE(), "a@se.local", "Anna")
	b := register(t, s, testutil.IT(), "b@it.local", "Bo")

	names, err := s.NamesByID(testutil.SE(), []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{a.ID: "Anna Test"}, names)
}
