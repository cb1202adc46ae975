package repository

import (
	"context"

	"usergate/api/internal/models"
)

func (q queries) InsertAudit(ctx context.Context, entry models.AuditEntry) error {
	const query = `
		INSERT INTO login_audit (id, user_id, email, success, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := q.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Email,
		entry.Success,
		entry.IPAddress,
	)
	return err
}

func (q queries) AuditByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	const query = `
		SELECT id, user_id, email, success, ip, created_at
		FROM login_audit
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := q.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Email,
			&entry.Success,
			&entry.IPAddress,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
