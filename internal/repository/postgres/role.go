package postgres

import (
	"context"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type roleRepository struct {
	BaseRepository
}

func NewRoleRepository(base BaseRepository) repository.RoleRepository {
	return &roleRepository{base}
}

func (r *roleRepository) Get(ctx context.Context, id int64) (*model.Role, error) {
	var role model.Role
	if err := r.q(ctx).GetContext(ctx, &role, `SELECT id, name FROM roles WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "failed to get role")
	}
	return &role, nil
}

func (r *roleRepository) GetByName(ctx context.Context, name model.RoleName) (*model.Role, error) {
	var role model.Role
	if err := r.q(ctx).GetContext(ctx, &role, `SELECT id, name FROM roles WHERE name = $1`, name); err != nil {
		return nil, mapError(err, "failed to get role by name")
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context) ([]*model.Role, error) {
	var roles []*model.Role
	if err := r.q(ctx).SelectContext(ctx, &roles, `SELECT id, name FROM roles ORDER BY id`); err != nil {
		return nil, mapError(err, "failed to list roles")
	}
	return roles, nil
}

// AssignToUser grants a role. Granting a role the user already holds is a no-op.
func (r *roleRepository) AssignToUser(ctx context.Context, userID, roleID int64) error {
	query := `
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT ON CONSTRAINT unique_user_role DO NOTHING
	`
	_, err := r.q(ctx).ExecContext(ctx, query, userID, roleID)
	return mapError(err, "failed to assign role")
}

func (r *roleRepository) ListUserRoles(ctx context.Context, userID int64) ([]model.RoleName, error) {
	query := `
		SELECT r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.id
	`
	roles := []model.RoleName{}
	if err := r.q(ctx).SelectContext(ctx, &roles, query, userID); err != nil {
		return nil, mapError(err, "failed to list user roles")
	}
	return roles, nil
}
