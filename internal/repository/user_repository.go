package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"usergate/api/internal/models"
)

func (q queries) InsertUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (id, email, password_hash, given_name, family_name, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	row := q.db.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.GivenName,
		user.FamilyName,
		user.Active,
	)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}
	return user, nil
}

func (q queries) UserByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT id, email, password_hash, given_name, family_name, active, created_at, updated_at
		FROM users WHERE email = $1
	`
	return q.scanUser(q.db.QueryRow(ctx, query, email))
}

func (q queries) UserByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT id, email, password_hash, given_name, family_name, active, created_at, updated_at
		FROM users WHERE id = $1
	`
	return q.scanUser(q.db.QueryRow(ctx, query, id))
}

func (q queries) scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.GivenName,
		&user.FamilyName,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (q queries) UserWithRoles(ctx context.Context, id string) (models.UserWithRoles, error) {
	const query = `
		SELECT u.id, u.email, u.given_name, u.family_name, u.active, u.created_at, u.updated_at,
		       COALESCE(array_agg(r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN roles r ON r.id = ur.role_id
		WHERE u.id = $1
		GROUP BY u.id, u.email, u.given_name, u.family_name, u.active, u.created_at, u.updated_at
	`

	row := q.db.QueryRow(ctx, query, id)
	var user models.UserWithRoles
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.GivenName,
		&user.FamilyName,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Roles,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserWithRoles{}, ErrUserNotFound
		}
		return models.UserWithRoles{}, err
	}
	return user, nil
}

// AssignRole links the user to an existing role by name. The role is never
// created implicitly; a missing role fails the enclosing transaction.
func (q queries) AssignRole(ctx context.Context, userID, roleName string) error {
	const query = `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
	`
	cmd, err := q.db.Exec(ctx, query, userID, roleName)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (q queries) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	const query = `
		UPDATE users
		SET given_name = COALESCE($2, given_name),
		    family_name = COALESCE($3, family_name),
		    active = COALESCE($4, active),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, email, password_hash, given_name, family_name, active, created_at, updated_at
	`
	return q.scanUser(q.db.QueryRow(ctx, query, id, upd.GivenName, upd.FamilyName, upd.Active))
}

func (q queries) DeleteUser(ctx context.Context, id string) (models.User, error) {
	const query = `
		DELETE FROM users WHERE id = $1
		RETURNING id, email, password_hash, given_name, family_name, active, created_at, updated_at
	`
	return q.scanUser(q.db.QueryRow(ctx, query, id))
}

func (q queries) CountUsers(ctx context.Context) (int, error) {
	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (q queries) ListUsers(ctx context.Context, limit, offset int) ([]models.UserWithRoles, error) {
	const query = `
		SELECT u.id, u.email, u.given_name, u.family_name, u.active, u.created_at, u.updated_at,
		       COALESCE(array_agg(r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN roles r ON r.id = ur.role_id
		GROUP BY u.id, u.email, u.given_name, u.family_name, u.active, u.created_at, u.updated_at
		ORDER BY u.id
		LIMIT $1 OFFSET $2
	`

	rows, err := q.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.UserWithRoles
	for rows.Next() {
		var user models.UserWithRoles
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.GivenName,
			&user.FamilyName,
			&user.Active,
			&user.CreatedAt,
			&user.UpdatedAt,
			&user.Roles,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
