package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usergate/api/internal/ids"
	"usergate/api/internal/models"
	"usergate/api/internal/repository"
)

func newUserFixture(t *testing.T, seeded int) (*UserService, *repository.MemoryStore, []models.User) {
	t.Helper()
	store := repository.NewMemoryStore()
	users := make([]models.User, 0, seeded)
	for i := 0; i < seeded; i++ {
		user, err := store.InsertUser(context.Background(), models.User{
			ID:     ids.New(),
			Email:  fmt.Sprintf("user%02d@x.com", i),
			Active: true,
		})
		require.NoError(t, err)
		users = append(users, user)
	}
	return NewUserService(store, zerolog.Nop()), store, users
}

func TestListPagination(t *testing.T) {
	svc, _, _ := newUserFixture(t, 25)

	page, err := svc.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Users, 10)
	assert.Equal(t, 25, page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.TotalPages)

	last, err := svc.List(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.Len(t, last.Users, 5)
}

func TestListPageBeyondRange(t *testing.T) {
	svc, _, _ := newUserFixture(t, 5)

	page, err := svc.List(context.Background(), 99, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Users)
	assert.Equal(t, 1, page.Pagination.TotalPages)
	assert.Equal(t, 99, page.Pagination.Page)
}

func TestListEmptyRegistry(t *testing.T) {
	svc, _, _ := newUserFixture(t, 0)

	page, err := svc.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Users)
	// Never zero or negative, even with no rows.
	assert.Equal(t, 1, page.Pagination.TotalPages)
}

func TestListNormalizesArguments(t *testing.T) {
	svc, _, _ := newUserFixture(t, 3)

	page, err := svc.List(context.Background(), -1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 10, page.Pagination.Limit)
}

func TestUpdatePartial(t *testing.T) {
	svc, _, users := newUserFixture(t, 1)

	given := "Ada"
	updated, err := svc.Update(context.Background(), users[0].ID, models.UserUpdate{GivenName: &given})
	require.NoError(t, err)
	require.NotNil(t, updated.GivenName)
	assert.Equal(t, "Ada", *updated.GivenName)
	assert.Nil(t, updated.FamilyName) // untouched
	assert.True(t, updated.Active)
}

func TestUpdateNotFound(t *testing.T) {
	svc, _, _ := newUserFixture(t, 1)

	_, err := svc.Update(context.Background(), "missing", models.UserUpdate{})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestDeleteRefusesSelf(t *testing.T) {
	svc, store, users := newUserFixture(t, 2)

	actor := models.Identity{ID: users[0].ID, Email: users[0].Email}
	_, err := svc.Delete(context.Background(), actor, users[0].ID)
	assert.ErrorIs(t, err, ErrSelfDelete)

	total, err := store.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	deleted, err := svc.Delete(context.Background(), actor, users[1].ID)
	require.NoError(t, err)
	assert.Equal(t, users[1].ID, deleted.ID)
}

func TestDeleteNotFound(t *testing.T) {
	svc, _, users := newUserFixture(t, 1)

	actor := models.Identity{ID: users[0].ID}
	_, err := svc.Delete(context.Background(), actor, "missing")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestPermissionsUnionAcrossRoles(t *testing.T) {
	svc, store, users := newUserFixture(t, 1)
	userID := users[0].ID

	store.SeedRole("editor")
	store.SeedRole("viewer")
	store.SeedPermission("users:read", "users", "read")
	store.SeedPermission("users:write", "users", "write")
	store.LinkRolePermission("viewer", "users:read")
	store.LinkRolePermission("editor", "users:read")
	store.LinkRolePermission("editor", "users:write")
	require.NoError(t, store.AssignRole(context.Background(), userID, "viewer"))
	require.NoError(t, store.AssignRole(context.Background(), userID, "editor"))

	perms, err := svc.Permissions(context.Background(), userID)
	require.NoError(t, err)
	// Union, deduplicated across roles.
	require.Len(t, perms, 2)

	store.RevokeRoles(userID)
	perms, err = svc.Permissions(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, perms)
}
