package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"communityos/internal/config"
	"communityos/internal/seed"
	"communityos/internal/tenant"
	"communityos/internal/testutil"
	"communityos/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type testApp struct {
	db     *gorm.DB
	router *gin.Engine
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, plugin := testutil.OpenDBWithPlugin(t)
	require.NoError(t, seed.MigrateAndSeed(context.Background(), db, plugin, seed.Options{Migrate: true, Seed: true, BcryptCost: 4}))

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		Auth: config.AuthConfig{
			JWTSecret:  "test-secret",
			JWTIssuer:  "communityos",
			AccessTTL:  time.Hour,
			BcryptCost: 4,
		},
		Tenancy: config.TenancyConfig{
			ExemptPaths:       []string{"/", "/api/health*"},
			PlatformOwnerRole: "PlatformOwner",
		},
		RateLimit: config.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			PostCooldown:      30 * time.Second,
			CommentCooldown:   10 * time.Second,
		},
	}
	container := InitContainer(db, cfg, Deps{Logger: zaptest.NewLogger(t)})
	t.Cleanup(container.Close)
	return &testApp{db: db, router: SetupRouter(container)}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type authBody struct {
	Token string       `json:"token"`
	User  user.Profile `json:"user"`
}

func (a *testApp) register(t *testing.T, code, email string) authBody {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "Passw0rd!", "firstName": "Test", "lastName": "User", "tenantCode": code,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body authBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error
}

func TestPublicRoutes(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = app.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/v1/posts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", errorCode(t, w))

	w = app.do(t, http.MethodGet, "/api/v1/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name string
		body map[string]string
		code string
	}{
		{"missing email", map[string]string{"password": "x", "tenantCode": "SE"}, "missing_fields"},
		{"missing tenant", map[string]string{"email": "a@se.local", "password": "x"}, "missing_fields"},
		{"malformed tenant", map[string]string{"email": "a@se.local", "password": "x", "tenantCode": "NOT-A-CODE"}, "invalid_tenant"},
		{"unknown tenant", map[string]string{"email": "a@se.local", "password": "x", "tenantCode": "DE"}, "invalid_tenant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, http.MethodPost, "/api/v1/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}

	app.register(t, "se", "dup@se.local")
	w := app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "DUP@se.local", "password": "x", "tenantCode": "SE",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "email_already_exists", errorCode(t, w))
}

func TestLoginIsScopedToTenant(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "SE", "anna@se.local")

	w := app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "anna@se.local", "password": "Passw0rd!", "tenantCode": "SE",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "anna@se.local", "password": "Passw0rd!", "tenantCode": "IT",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", errorCode(t, w))
}

func TestMeAndDebugTenant(t *testing.T) {
	app := newTestApp(t)
	se := app.register(t, "SE", "anna@se.local")
	assert.Equal(t, testutil.TenantSE, se.User.TenantID)

	w := app.do(t, http.MethodGet, "/api/v1/me", se.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me user.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, se.User.UserID, me.UserID)
	assert.Equal(t, tenant.RoleMember, me.Role)

	w = app.do(t, http.MethodGet, "/api/v1/debug/tenant", se.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info tenant.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, tenant.Info{TenantID: testutil.TenantSE, HasTenant: true}, info)

	w = app.do(t, http.MethodPut, "/api/v1/me/profile", se.Token, map[string]string{"city": "Uppsala"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	require.NotNil(t, me.City)
	assert.Equal(t, "Uppsala", *me.City)
}

func TestPostsAreIsolatedBetweenTenants(t *testing.T) {
	app := newTestApp(t)
	se := app.register(t, "SE", "anna@se.local")
	it := app.register(t, "IT", "marco@it.local")

	w := app.do(t, http.MethodPost, "/api/v1/posts", se.Token, map[string]any{"bodyText": "Hej från Stockholm"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var post struct {
		ID string `json:"postId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))

	w = app.do(t, http.MethodGet, "/api/v1/posts/"+post.ID, se.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/posts/"+post.ID, it.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/posts", it.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/like", it.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID, it.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/search/posts?q=Stockholm", it.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)
}

func TestPostThrottleAndComments(t *testing.T) {
	app := newTestApp(t)
	se := app.register(t, "SE", "anna@se.local")

	w := app.do(t, http.MethodPost, "/api/v1/posts", se.Token, map[string]any{"bodyText": "first"})
	require.Equal(t, http.StatusCreated, w.Code)
	var post struct {
		ID string `json:"postId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))

	w = app.do(t, http.MethodPost, "/api/v1/posts", se.Token, map[string]any{"bodyText": "second"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", errorCode(t, w))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = app.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", se.Token, map[string]any{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_text", errorCode(t, w))

	w = app.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", se.Token, map[string]any{"text": "nice"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/posts/"+post.ID+"/comments", se.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"text":"nice"`)
}

func TestMentionCreatesNotification(t *testing.T) {
	app := newTestApp(t)
	anna := app.register(t, "SE", "anna@se.local")
	bob := app.register(t, "SE", "bob@se.local")

	w := app.do(t, http.MethodPost, "/api/v1/posts", anna.Token, map[string]any{"bodyText": "hello @Bob"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/notifications/unread-count", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unread":1}`, w.Body.String())
}

func TestSearchNeedsQuery(t *testing.T) {
	app := newTestApp(t)
	se := app.register(t, "SE", "anna@se.local")

	for _, path := range []string{"/api/v1/search/posts", "/api/v1/search/members?q=%20", "/api/v1/search/groups"} {
		w := app.do(t, http.MethodGet, path, se.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "missing_q", errorCode(t, w), path)
	}

	w := app.do(t, http.MethodGet, "/api/v1/search/members?q=anna", se.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anna@se.local")
}

func TestModeratorRoutes(t *testing.T) {
	app := newTestApp(t)
	member := app.register(t, "SE", "anna@se.local")
	mod := app.register(t, "SE", "mod@se.local")

	w := app.do(t, http.MethodGet, "/api/v1/mod/reports", member.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", errorCode(t, w))

	err := app.db.WithContext(testutil.SE()).Model(&user.User{}).
		Where("id = ?", mod.User.UserID).
		Update("role", tenant.RoleModerator).Error
	require.NoError(t, err)
	w = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "mod@se.local", "password": "Passw0rd!", "tenantCode": "SE",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var relogged authBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &relogged))

	w = app.do(t, http.MethodPost, "/api/v1/reports", member.Token, map[string]any{
		"targetType": "User", "targetId": mod.User.UserID, "reason": "spam",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/mod/reports", relogged.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "spam")

	w = app.do(t, http.MethodPost, "/api/v1/mod/users/"+member.User.UserID.String()+"/suspend", relogged.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "anna@se.local", "password": "Passw0rd!", "tenantCode": "SE",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "account_blocked", errorCode(t, w))

	w = app.do(t, http.MethodGet, "/api/v1/mod/audit", relogged.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "USER_SUSPEND")
}

func TestMalformedIDIsNotFound(t *testing.T) {
	app := newTestApp(t)
	se := app.register(t, "SE", "anna@se.local")

	w := app.do(t, http.MethodGet, "/api/v1/members/not-a-uuid", se.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCode(t, w))
}

func decodeID(t *testing.T, w *httptest.ResponseRecorder, field string) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	id, ok := body[field].(string)
	require.True(t, ok, "missing %s in %s", field, w.Body.String())
	return id
}

func TestGroupRoutes(t *testing.T) {
	app := newTestApp(t)
	owner := app.register(t, "SE", "anna@se.local")
	other := app.register(t, "SE", "bob@se.local")
	foreign := app.register(t, "IT", "marco@it.local")

	w := app.do(t, http.MethodPost, "/api/v1/groups", owner.Token, map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_name", errorCode(t, w))

	w = app.do(t, http.MethodPost, "/api/v1/groups", owner.Token, map[string]any{"name": "Runners", "visibility": "Secret"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", errorCode(t, w))

	w = app.do(t, http.MethodPost, "/api/v1/groups", owner.Token, map[string]any{"name": "Runners"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	public := decodeID(t, w, "groupId")

	w = app.do(t, http.MethodPost, "/api/v1/groups", owner.Token, map[string]any{"name": "Board", "visibility": "private"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	private := decodeID(t, w, "groupId")

	w = app.do(t, http.MethodPost, "/api/v1/groups/"+public+"/join", other.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = app.do(t, http.MethodPost, "/api/v1/groups/"+public+"/join", other.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/groups/"+public, other.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"memberCount":2`)
	assert.Contains(t, w.Body.String(), `"isMember":true`)

	w = app.do(t, http.MethodPost, "/api/v1/groups/"+private+"/join", other.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", errorCode(t, w))

	w = app.do(t, http.MethodGet, "/api/v1/groups/"+private+"/posts", other.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/groups/"+public, foreign.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/groups/"+public+"/leave", other.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestConversationRoutes(t *testing.T) {
	app := newTestApp(t)
	anna := app.register(t, "SE", "anna@se.local")
	bob := app.register(t, "SE", "bob@se.local")
	carl := app.register(t, "SE", "carl@se.local")
	marco := app.register(t, "IT", "marco@it.local")

	w := app.do(t, http.MethodPost, "/api/v1/conversations", anna.Token, map[string]any{"otherUserId": anna.User.UserID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_other_user", errorCode(t, w))

	w = app.do(t, http.MethodPost, "/api/v1/conversations", anna.Token, map[string]any{"otherUserId": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_other_user", errorCode(t, w))

	w = app.do(t, http.MethodPost, "/api/v1/conversations", anna.Token, map[string]any{"otherUserId": marco.User.UserID})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "user_not_found", errorCode(t, w))

	w = app.do(t, http.MethodPost, "/api/v1/conversations", anna.Token, map[string]any{"otherUserId": bob.User.UserID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	conv := decodeID(t, w, "conversationId")

	w = app.do(t, http.MethodPost, "/api/v1/conversations/"+conv+"/messages", anna.Token, map[string]any{"bodyText": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_body", errorCode(t, w))

	w = app.do(t, http.MethodPost, "/api/v1/conversations/"+conv+"/messages", anna.Token, map[string]any{"bodyText": "hej Bob"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/conversations", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unreadCount":1`)

	w = app.do(t, http.MethodPost, "/api/v1/conversations/"+conv+"/read", bob.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/conversations/"+conv+"/messages", carl.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/conversations/"+conv, marco.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPollRoutes(t *testing.T) {
	app := newTestApp(t)
	author := app.register(t, "SE", "anna@se.local")
	voter := app.register(t, "SE", "bob@se.local")

	w := app.do(t, http.MethodPost, "/api/v1/posts", author.Token, map[string]any{"bodyText": "Where do we meet?"})
	require.Equal(t, http.StatusCreated, w.Code)
	postID := decodeID(t, w, "postId")

	w = app.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/poll", author.Token, map[string]any{"question": "Where?", "options": []string{"Park"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_poll", errorCode(t, w))

	w = app.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/poll", voter.Token, map[string]any{"question": "Where?", "options": []string{"Park", "Cafe"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/poll", author.Token, map[string]any{"question": "Where?", "options": []string{"Park", "Cafe"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID      string `json:"pollId"`
		Options []struct {
			ID string `json:"pollOptionId"`
		} `json:"options"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created.Options, 2)

	w = app.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/poll", author.Token, map[string]any{"question": "Again?", "options": []string{"Yes", "No"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "poll_already_exists", errorCode(t, w))

	w = app.do(t, http.MethodPost, "/api/v1/polls/"+created.ID+"/vote", voter.Token, map[string]any{"optionId": created.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_option", errorCode(t, w))

	w = app.do(t, http.MethodPost, "/api/v1/polls/"+created.ID+"/vote", voter.Token, map[string]any{"optionId": created.Options[1].ID})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/polls/"+created.ID+"/vote", voter.Token, map[string]any{"optionId": created.Options[0].ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_voted", errorCode(t, w))

	w = app.do(t, http.MethodGet, "/api/v1/posts/"+postID+"/poll", voter.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalVotes":1`)
	assert.Contains(t, w.Body.String(), `"myVoteOptionId":"`+created.Options[1].ID+`"`)
}
