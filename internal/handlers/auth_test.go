package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usergate/api/internal/config"
	"usergate/api/internal/models"
	"usergate/api/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			SessionTTL:  24 * time.Hour,
			HashTime:    1,
			HashMemory:  16,
			HashThreads: 1,
		},
	}
}

func newTestAPI(t *testing.T) (*gin.Engine, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	store.SeedRole(models.RoleUser)

	handlerSet := newHandlerSet(zerolog.Nop(), store, nil, nil, testConfig())
	engine := gin.New()
	handlerSet.Register(engine.Group("/api"))
	return engine, store
}

func call(router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func registerAndLogin(t *testing.T, router *gin.Engine, email, password string) (string, string) {
	t.Helper()
	rec := call(router, http.MethodPost, "/api/auth/register", gin.H{"email": email, "password": password}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	userID := decode(t, rec)["user"].(map[string]any)["id"].(string)

	rec = call(router, http.MethodPost, "/api/auth/login", gin.H{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode(t, rec)["token"].(string)
	return userID, token
}

func TestRegisterLoginFlow(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := call(router, http.MethodPost, "/api/auth/register", gin.H{"email": "a@x.com", "password": "pw123"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.NotContains(t, rec.Body.String(), "pw123")

	// Duplicate email conflicts.
	rec = call(router, http.MethodPost, "/api/auth/register", gin.H{"email": "a@x.com", "password": "other"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Missing fields never open a transaction.
	rec = call(router, http.MethodPost, "/api/auth/register", gin.H{"email": "b@x.com"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown email and wrong password are indistinguishable.
	recUnknown := call(router, http.MethodPost, "/api/auth/login", gin.H{"email": "nobody@x.com", "password": "pw123"}, "")
	recWrongPw := call(router, http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	assert.Equal(t, http.StatusUnauthorized, recWrongPw.Code)
	assert.Equal(t, recUnknown.Body.String(), recWrongPw.Body.String())

	rec = call(router, http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": "pw123"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decode(t, rec)
	token := payload["token"].(string)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, payload["expiresAt"])

	// The token authenticates and resolves the registered identity.
	rec = call(router, http.MethodGet, "/api/auth/profile", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "a@x.com", profile["email"])
	assert.Contains(t, rec.Body.String(), `"roles":["user"]`)

	// Audit shows the failed and the successful attempt for this account.
	rec = call(router, http.MethodGet, "/api/auth/logs", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode(t, rec)["logs"].([]any)
	require.Len(t, logs, 2)
	assert.Equal(t, true, logs[0].(map[string]any)["success"])
	assert.Equal(t, false, logs[1].(map[string]any)["success"])
}

func TestLoginInactiveAccount(t *testing.T) {
	router, store := newTestAPI(t)
	userID, _ := registerAndLogin(t, router, "a@x.com", "pw123")

	inactive := false
	_, err := store.UpdateUser(context.Background(), userID, models.UserUpdate{Active: &inactive})
	require.NoError(t, err)

	// Correct credentials, withdrawn access: distinguishable from 401.
	rec := call(router, http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": "pw123"}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "account_inactive")
}

func TestLogoutFlow(t *testing.T) {
	router, store := newTestAPI(t)
	_, token := registerAndLogin(t, router, "a@x.com", "pw123")

	rec := call(router, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	// The session row survives revocation, expired.
	session, err := store.SessionByToken(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, session.Expired(time.Now()))

	// A second logout dies at the auth guard, before the logout handler.
	rec = call(router, http.MethodPost, "/api/auth/logout", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "session_expired")
}

func grantAdmin(t *testing.T, store *repository.MemoryStore, userID string) {
	t.Helper()
	store.SeedRole("admin")
	store.SeedPermission("users:read", "users", "read")
	store.SeedPermission("users:write", "users", "write")
	store.SeedPermission("users:delete", "users", "delete")
	store.LinkRolePermission("admin", "users:read")
	store.LinkRolePermission("admin", "users:write")
	store.LinkRolePermission("admin", "users:delete")
	require.NoError(t, store.AssignRole(context.Background(), userID, "admin"))
}

func TestUserRegistryFlow(t *testing.T) {
	router, store := newTestAPI(t)

	adminID, adminToken := registerAndLogin(t, router, "admin@x.com", "pw123")
	memberID, memberToken := registerAndLogin(t, router, "member@x.com", "pw123")
	grantAdmin(t, store, adminID)

	// No users permission, no registry access.
	rec := call(router, http.MethodGet, "/api/users", nil, memberToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(router, http.MethodGet, "/api/users?page=1&limit=10", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decode(t, rec)
	assert.Len(t, payload["users"].([]any), 2)
	pagination := payload["pagination"].(map[string]any)
	assert.Equal(t, float64(2), pagination["total"])
	assert.Equal(t, float64(1), pagination["totalPages"])

	// Page beyond range: empty list, totalPages untouched.
	rec = call(router, http.MethodGet, "/api/users?page=99&limit=10", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	payload = decode(t, rec)
	assert.Empty(t, payload["users"])
	assert.Equal(t, float64(1), payload["pagination"].(map[string]any)["totalPages"])

	// Partial update.
	rec = call(router, http.MethodPut, "/api/users/"+memberID, gin.H{"givenName": "Mem"}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mem", decode(t, rec)["user"].(map[string]any)["givenName"])

	rec = call(router, http.MethodPut, "/api/users/missing", gin.H{"givenName": "X"}, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Permission inspection is open to any authenticated caller.
	rec = call(router, http.MethodGet, "/api/users/"+adminID+"/permissions", nil, memberToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["permissions"].([]any), 3)

	// Self-deletion always refused, permissions notwithstanding.
	rec = call(router, http.MethodDelete, "/api/users/"+adminID, nil, adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(router, http.MethodDelete, "/api/users/"+memberID, nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(router, http.MethodDelete, "/api/users/"+memberID, nil, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPermissionRevocationImmediate(t *testing.T) {
	router, store := newTestAPI(t)
	adminID, adminToken := registerAndLogin(t, router, "admin@x.com", "pw123")
	grantAdmin(t, store, adminID)

	require.Equal(t, http.StatusOK, call(router, http.MethodGet, "/api/users", nil, adminToken).Code)

	// Same token, next request: the revoked role is already gone.
	store.RevokeRoles(adminID)
	assert.Equal(t, http.StatusForbidden, call(router, http.MethodGet, "/api/users", nil, adminToken).Code)
}
