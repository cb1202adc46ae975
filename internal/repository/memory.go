package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"usergate/api/internal/ids"
	"usergate/api/internal/models"
)

// MemoryStore is an in-memory Store used as a test double for services,
// guards and handlers. InTx snapshots state before running fn and restores
// it on error, mirroring transactional rollback closely enough for the
// contracts under test. Not safe for production use.
type MemoryStore struct {
	mu sync.Mutex

	users     map[string]models.User              // by id
	roles     map[string]models.Role              // by name
	perms     map[string]models.Permission        // by name
	userRoles map[string]map[string]struct{}      // user id -> role ids
	rolePerms map[string]map[string]struct{}      // role id -> permission ids
	sessions  map[string]models.Session           // by token
	audit     []models.AuditEntry

	// PermissionFunc, when set, emulates the stored-function strategy of
	// CheckPermission. A DecisionUnavailable result falls through to the
	// role-graph walk.
	PermissionFunc func(userID, resource, action string) (Decision, error)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]models.User),
		roles:     make(map[string]models.Role),
		perms:     make(map[string]models.Permission),
		userRoles: make(map[string]map[string]struct{}),
		rolePerms: make(map[string]map[string]struct{}),
		sessions:  make(map[string]models.Session),
	}
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	snap := m.snapshot()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.restore(snap)
		m.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	users     map[string]models.User
	roles     map[string]models.Role
	perms     map[string]models.Permission
	userRoles map[string]map[string]struct{}
	rolePerms map[string]map[string]struct{}
	sessions  map[string]models.Session
	audit     []models.AuditEntry
}

func (m *MemoryStore) snapshot() memSnapshot {
	return memSnapshot{
		users:     copyMap(m.users),
		roles:     copyMap(m.roles),
		perms:     copyMap(m.perms),
		userRoles: copySetMap(m.userRoles),
		rolePerms: copySetMap(m.rolePerms),
		sessions:  copyMap(m.sessions),
		audit:     append([]models.AuditEntry(nil), m.audit...),
	}
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.users = s.users
	m.roles = s.roles
	m.perms = s.perms
	m.userRoles = s.userRoles
	m.rolePerms = s.rolePerms
	m.sessions = s.sessions
	m.audit = s.audit
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copySetMap(src map[string]map[string]struct{}) map[string]map[string]struct{} {
	dst := make(map[string]map[string]struct{}, len(src))
	for k, set := range src {
		inner := make(map[string]struct{}, len(set))
		for id := range set {
			inner[id] = struct{}{}
		}
		dst[k] = inner
	}
	return dst
}

func (m *MemoryStore) InsertUser(ctx context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == user.Email {
			return models.User{}, ErrEmailTaken
		}
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *MemoryStore) UserByEmail(ctx context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (m *MemoryStore) UserByID(ctx context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func (m *MemoryStore) UserWithRoles(ctx context.Context, id string) (models.UserWithRoles, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return models.UserWithRoles{}, ErrUserNotFound
	}
	return models.UserWithRoles{User: user, Roles: m.roleNames(id)}, nil
}

func (m *MemoryStore) roleNames(userID string) []string {
	names := []string{}
	for roleID := range m.userRoles[userID] {
		for _, role := range m.roles {
			if role.ID == roleID {
				names = append(names, role.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (m *MemoryStore) AssignRole(ctx context.Context, userID, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[roleName]
	if !ok {
		return ErrRoleNotFound
	}
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = make(map[string]struct{})
	}
	m.userRoles[userID][role.ID] = struct{}{}
	return nil
}

func (m *MemoryStore) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	if upd.GivenName != nil {
		user.GivenName = upd.GivenName
	}
	if upd.FamilyName != nil {
		user.FamilyName = upd.FamilyName
	}
	if upd.Active != nil {
		user.Active = *upd.Active
	}
	user.UpdatedAt = time.Now()
	m.users[id] = user
	return user, nil
}

func (m *MemoryStore) DeleteUser(ctx context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	delete(m.users, id)
	delete(m.userRoles, id)
	return user, nil
}

func (m *MemoryStore) CountUsers(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *MemoryStore) ListUsers(ctx context.Context, limit, offset int) ([]models.UserWithRoles, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idList := make([]string, 0, len(m.users))
	for id := range m.users {
		idList = append(idList, id)
	}
	sort.Strings(idList)

	var users []models.UserWithRoles
	for i := offset; i < len(idList) && len(users) < limit; i++ {
		user := m.users[idList[i]]
		users = append(users, models.UserWithRoles{User: user, Roles: m.roleNames(user.ID)})
	}
	return users, nil
}

func (m *MemoryStore) InsertSession(ctx context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	m.sessions[session.Token] = session
	return nil
}

func (m *MemoryStore) SessionByToken(ctx context.Context, token string) (models.SessionUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[token]
	if !ok {
		return models.SessionUser{}, ErrSessionNotFound
	}
	user, ok := m.users[session.UserID]
	if !ok {
		return models.SessionUser{}, ErrSessionNotFound
	}
	return models.SessionUser{
		UserID:     user.ID,
		Email:      user.Email,
		GivenName:  user.GivenName,
		FamilyName: user.FamilyName,
		Active:     user.Active,
		ExpiresAt:  session.ExpiresAt,
	}, nil
}

func (m *MemoryStore) ExpireSession(ctx context.Context, token string, at time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	session.ExpiresAt = at
	m.sessions[token] = session
	return session.UserID, nil
}

func (m *MemoryStore) DeleteSessionsExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for token, session := range m.sessions {
		if session.ExpiresAt.Before(cutoff) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) InsertAudit(ctx context.Context, entry models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.audit = append(m.audit, entry)
	return nil
}

func (m *MemoryStore) AuditByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []models.AuditEntry
	for i := len(m.audit) - 1; i >= 0 && len(entries) < limit; i-- {
		entry := m.audit[i]
		if entry.UserID != nil && *entry.UserID == userID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (m *MemoryStore) PermissionsForUser(ctx context.Context, userID string) ([]models.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{})
	var perms []models.Permission
	for roleID := range m.userRoles[userID] {
		for permID := range m.rolePerms[roleID] {
			if _, ok := seen[permID]; ok {
				continue
			}
			seen[permID] = struct{}{}
			for _, p := range m.perms {
				if p.ID == permID {
					perms = append(perms, p)
				}
			}
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].ID < perms[j].ID })
	return perms, nil
}

func (m *MemoryStore) CheckPermission(ctx context.Context, userID, resource, action string) (Decision, error) {
	if m.PermissionFunc != nil {
		decision, err := m.PermissionFunc(userID, resource, action)
		if err != nil {
			return DecisionDenied, err
		}
		if decision != DecisionUnavailable {
			return decision, nil
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for roleID := range m.userRoles[userID] {
		for permID := range m.rolePerms[roleID] {
			for _, p := range m.perms {
				if p.ID == permID && p.Resource == resource && p.Action == action {
					return DecisionAllowed, nil
				}
			}
		}
	}
	return DecisionDenied, nil
}

// SeedRole registers a role by name.
func (m *MemoryStore) SeedRole(name string) models.Role {
	m.mu.Lock()
	defer m.mu.Unlock()

	if role, ok := m.roles[name]; ok {
		return role
	}
	role := models.Role{ID: ids.New(), Name: name}
	m.roles[name] = role
	return role
}

// SeedPermission registers a permission and returns it.
func (m *MemoryStore) SeedPermission(name, resource, action string) models.Permission {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.perms[name]; ok {
		return p
	}
	p := models.Permission{ID: ids.New(), Name: name, Resource: resource, Action: action}
	m.perms[name] = p
	return p
}

// LinkRolePermission grants a seeded permission to a seeded role.
func (m *MemoryStore) LinkRolePermission(roleName, permName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[roleName]
	if !ok {
		return
	}
	perm, ok := m.perms[permName]
	if !ok {
		return
	}
	if m.rolePerms[role.ID] == nil {
		m.rolePerms[role.ID] = make(map[string]struct{})
	}
	m.rolePerms[role.ID][perm.ID] = struct{}{}
}

// AuditEntries returns every recorded entry in insertion order.
func (m *MemoryStore) AuditEntries() []models.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditEntry(nil), m.audit...)
}

// RevokeRoles removes every role assignment from a user.
func (m *MemoryStore) RevokeRoles(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userRoles, userID)
}
