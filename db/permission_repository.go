package db

import (
	"context"
	"fmt"

	"gatecheck/entities"
)

type PermissionRepository struct {
	db *DB
}

func NewPermissionRepository(db *DB) PermissionRepository {
	if db == nil {
		panic("db is nil")
	}
	return PermissionRepository{
		db: db,
	}
}

func (pr PermissionRepository) Create(ctx context.Context, permission entities.ScanPermission) error {
	_, err := pr.db.Conn.NamedExecContext(ctx, `
		INSERT INTO scan_permissions
			(permission_id, actor_id, organizer_id, event_ids, can_scan, can_validate,
			 valid_from, valid_until)
		VALUES
			(:permission_id, :actor_id, :organizer_id, :event_ids, :can_scan, :can_validate,
			 :valid_from, :valid_until) ON CONFLICT DO NOTHING`,
		permission)
	if err != nil {
		return fmt.Errorf("could not save scan permission: %w", err)
	}
	return nil
}

func (pr PermissionRepository) Revoke(ctx context.Context, permissionID string) error {
	_, err := pr.db.Conn.ExecContext(ctx, `
		UPDATE scan_permissions SET revoked_at = now()
		WHERE permission_id = $1 AND revoked_at IS NULL`, permissionID)
	if err != nil {
		return fmt.Errorf("could not revoke scan permission %s: %w", permissionID, err)
	}
	return nil
}

// ActiveForActor returns unrevoked grants of the actor for the organizer.
// Window checks happen in the gate so "now" is evaluated exactly once per
// decision.
func (pr PermissionRepository) ActiveForActor(ctx context.Context, actorID, organizerID string) ([]entities.ScanPermission, error) {
	var permissions []entities.ScanPermission
	err := pr.db.Conn.SelectContext(ctx, &permissions, `
		SELECT permission_id, actor_id, organizer_id, event_ids, can_scan, can_validate,
			valid_from, valid_until, revoked_at
		FROM scan_permissions
		WHERE actor_id = $1 AND organizer_id = $2 AND revoked_at IS NULL`,
		actorID, organizerID)
	if err != nil {
		return nil, fmt.Errorf("could not list scan permissions for actor %s: %w", actorID, err)
	}

	return permissions, nil
}
