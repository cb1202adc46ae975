package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"usergate/api/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrRoleNotFound    = errors.New("role not found")
)

// Decision is the typed outcome of one permission-check strategy.
// Unavailable means the strategy could not run at all and is distinct from a
// denial; callers of CheckPermission never observe it because the manual
// query is the authoritative fallback.
type Decision int

const (
	DecisionDenied Decision = iota
	DecisionAllowed
	DecisionUnavailable
)

// Store is the persistence contract services and guards depend on.
//
// InTx runs fn against a Store scoped to a single transaction. A non-nil
// error from fn rolls the transaction back; otherwise it commits. The
// connection is released on every exit path.
type Store interface {
	InTx(ctx context.Context, fn func(tx Store) error) error

	InsertUser(ctx context.Context, user models.User) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
	UserWithRoles(ctx context.Context, id string) (models.UserWithRoles, error)
	AssignRole(ctx context.Context, userID, roleName string) error
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (models.User, error)
	DeleteUser(ctx context.Context, id string) (models.User, error)
	CountUsers(ctx context.Context) (int, error)
	ListUsers(ctx context.Context, limit, offset int) ([]models.UserWithRoles, error)

	InsertSession(ctx context.Context, session models.Session) error
	SessionByToken(ctx context.Context, token string) (models.SessionUser, error)
	ExpireSession(ctx context.Context, token string, at time.Time) (string, error)
	DeleteSessionsExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)

	InsertAudit(ctx context.Context, entry models.AuditEntry) error
	AuditByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error)

	PermissionsForUser(ctx context.Context, userID string) ([]models.Permission, error)
	CheckPermission(ctx context.Context, userID, resource, action string) (Decision, error)
}

// Querier is the query surface shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	queries
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{queries: queries{db: pool}, pool: pool}
}

func (p *Postgres) InTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&txStore{queries{db: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txStore struct {
	queries
}

// InTx on a transaction-scoped store runs fn in the same transaction.
func (t *txStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

type queries struct {
	db Querier
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedFunction(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42883"
}
