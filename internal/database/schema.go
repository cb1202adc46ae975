package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"usergate/api/internal/ids"
)

//go:embed schema.sql
var schemaDDL string

// EnsureSchema applies the embedded DDL and seeds the base role and
// permission rows. Idempotent; safe to run at every process start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if err := seed(ctx, pool); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}

type seedPermission struct {
	name        string
	resource    string
	action      string
	description string
}

var seedPermissions = []seedPermission{
	{"users:read", "users", "read", "List and inspect user accounts"},
	{"users:write", "users", "write", "Update user accounts"},
	{"users:delete", "users", "delete", "Delete user accounts"},
}

func seed(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, name := range []string{"user", "admin"} {
		if _, err := tx.Exec(ctx,
			`INSERT INTO roles (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			ids.New(), name,
		); err != nil {
			return err
		}
	}

	for _, p := range seedPermissions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO permissions (id, name, resource, action, description)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (name) DO NOTHING`,
			ids.New(), p.name, p.resource, p.action, p.description,
		); err != nil {
			return err
		}
		// The admin role carries the whole users permission set.
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_permissions (role_id, permission_id)
			 SELECT r.id, p.id FROM roles r, permissions p
			 WHERE r.name = 'admin' AND p.name = $1
			 ON CONFLICT DO NOTHING`,
			p.name,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
