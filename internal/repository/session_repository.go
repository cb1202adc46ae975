package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"usergate/api/internal/models"
)

func (q queries) InsertSession(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := q.db.Exec(ctx, query, session.Token, session.UserID, session.ExpiresAt)
	return err
}

func (q queries) SessionByToken(ctx context.Context, token string) (models.SessionUser, error) {
	const query = `
		SELECT s.user_id, u.email, u.given_name, u.family_name, u.active, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1
	`

	row := q.db.QueryRow(ctx, query, token)
	var su models.SessionUser
	if err := row.Scan(
		&su.UserID,
		&su.Email,
		&su.GivenName,
		&su.FamilyName,
		&su.Active,
		&su.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SessionUser{}, ErrSessionNotFound
		}
		return models.SessionUser{}, err
	}
	return su, nil
}

// ExpireSession revokes a session by moving its expiry to the given instant.
// The row is kept so revoked sessions stay visible for audit.
func (q queries) ExpireSession(ctx context.Context, token string, at time.Time) (string, error) {
	const query = `
		UPDATE sessions SET expires_at = $2 WHERE token = $1
		RETURNING user_id
	`
	var userID string
	if err := q.db.QueryRow(ctx, query, token, at).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return userID, nil
}

func (q queries) DeleteSessionsExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at < $1`
	cmd, err := q.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
