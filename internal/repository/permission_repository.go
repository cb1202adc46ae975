package repository

import (
	"context"

	"usergate/api/internal/models"
)

func (q queries) PermissionsForUser(ctx context.Context, userID string) ([]models.Permission, error) {
	const query = `
		SELECT DISTINCT p.id, p.name, p.resource, p.action, p.description
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY p.id
	`

	rows, err := q.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CheckPermission probes the user_has_permission SQL function first and falls
// back to the manual role-graph query when the function is absent. The manual
// query is the authoritative contract; the function is an optimization only.
func (q queries) CheckPermission(ctx context.Context, userID, resource, action string) (Decision, error) {
	decision, err := q.checkViaFunction(ctx, userID, resource, action)
	if err != nil {
		return DecisionDenied, err
	}
	if decision != DecisionUnavailable {
		return decision, nil
	}
	return q.checkViaRoleGraph(ctx, userID, resource, action)
}

func (q queries) checkViaFunction(ctx context.Context, userID, resource, action string) (Decision, error) {
	var allowed bool
	err := q.db.QueryRow(ctx,
		`SELECT user_has_permission($1, $2, $3)`,
		userID, resource, action,
	).Scan(&allowed)
	if err != nil {
		if isUndefinedFunction(err) {
			return DecisionUnavailable, nil
		}
		return DecisionDenied, err
	}
	if allowed {
		return DecisionAllowed, nil
	}
	return DecisionDenied, nil
}

func (q queries) checkViaRoleGraph(ctx context.Context, userID, resource, action string) (Decision, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM permissions p
			JOIN role_permissions rp ON rp.permission_id = p.id
			JOIN user_roles ur ON ur.role_id = rp.role_id
			WHERE ur.user_id = $1 AND p.resource = $2 AND p.action = $3
		)
	`
	var allowed bool
	if err := q.db.QueryRow(ctx, query, userID, resource, action).Scan(&allowed); err != nil {
		return DecisionDenied, err
	}
	if allowed {
		return DecisionAllowed, nil
	}
	return DecisionDenied, nil
}
