package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

// userRow carries the aggregated roles and supervised VHT ids alongside the user columns.
type userRow struct {
	model.User
	RoleNames pq.StringArray `db:"roles"`
	VHTIDs    pq.Int64Array  `db:"vht_ids"`
}

func (row *userRow) toModel() *model.User {
	u := row.User
	u.Roles = make([]model.RoleName, 0, len(row.RoleNames))
	for _, name := range row.RoleNames {
		u.Roles = append(u.Roles, model.RoleName(name))
	}
	u.Supervises = make([]*model.User, 0, len(row.VHTIDs))
	for _, id := range row.VHTIDs {
		u.Supervises = append(u.Supervises, &model.User{ID: id})
	}
	return &u
}

const selectUser = `
	SELECT u.id, u.username, u.email, u.first_name, u.password,
		u.health_facility_name, u.created_at, u.updated_at,
		COALESCE((
			SELECT array_agg(r.name ORDER BY r.id)
			FROM user_roles ur JOIN roles r ON r.id = ur.role_id
			WHERE ur.user_id = u.id
		), '{}') AS roles,
		COALESCE((
			SELECT array_agg(s.vht_id ORDER BY s.vht_id)
			FROM supervises s
			WHERE s.cho_id = u.id
		), '{}') AS vht_ids
	FROM users u
`

// updatableUserColumns is the set of columns Update may write.
var updatableUserColumns = func() map[string]bool {
	cols := make(map[string]bool, len(model.UserColumns))
	for _, col := range model.UserColumns {
		cols[col] = true
	}
	return cols
}()

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			username, email, first_name, password, health_facility_name, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := r.q(ctx).QueryRowxContext(ctx, query,
		user.Username,
		user.Email,
		user.FirstName,
		user.PasswordHash,
		user.HealthFacilityName,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	return mapError(err, "failed to create user")
}

func (r *userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	var row userRow
	if err := r.q(ctx).GetContext(ctx, &row, selectUser+` WHERE u.id = $1`, id); err != nil {
		return nil, mapError(err, "failed to get user")
	}
	return row.toModel(), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var row userRow
	if err := r.q(ctx).GetContext(ctx, &row, selectUser+` WHERE u.email = $1`, email); err != nil {
		return nil, mapError(err, "failed to get user by email")
	}
	return row.toModel(), nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.q(ctx).GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
	return exists, mapError(err, "failed to check email")
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	var rows []userRow
	if err := r.q(ctx).SelectContext(ctx, &rows, selectUser+` ORDER BY u.id`); err != nil {
		return nil, mapError(err, "failed to list users")
	}

	users := make([]*model.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].toModel())
	}
	return users, nil
}

func (r *userRepository) ListIDsByRole(ctx context.Context, role model.RoleName) ([]int64, error) {
	query := `
		SELECT ur.user_id
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE r.name = $1
		ORDER BY ur.user_id
	`
	ids := []int64{}
	if err := r.q(ctx).SelectContext(ctx, &ids, query, role); err != nil {
		return nil, mapError(err, "failed to list users by role")
	}
	return ids, nil
}

// Update writes only the given columns. Keys must be column names, not JSON keys.
func (r *userRepository) Update(ctx context.Context, id int64, fields map[string]interface{}) error {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !updatableUserColumns[col] {
			return fmt.Errorf("failed to update user: column %q is not updatable", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]interface{}, 0, len(cols)+2)
	for _, col := range cols {
		args = append(args, fields[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := r.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err, "failed to update user")
	}
	return requireAffected(res, "failed to update user")
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "failed to delete user")
	}
	return requireAffected(res, "failed to delete user")
}

// AddSupervision links a VHT to a CHO. Adding an existing link is a no-op.
func (r *userRepository) AddSupervision(ctx context.Context, choID, vhtID int64) error {
	query := `
		INSERT INTO supervises (cho_id, vht_id) VALUES ($1, $2)
		ON CONFLICT ON CONSTRAINT unique_supervise DO NOTHING
	`
	_, err := r.q(ctx).ExecContext(ctx, query, choID, vhtID)
	return mapError(err, "failed to add supervision")
}

func (r *userRepository) ListSupervised(ctx context.Context, choID int64) ([]*model.User, error) {
	query := selectUser + `
		JOIN supervises sv ON sv.vht_id = u.id
		WHERE sv.cho_id = $1
		ORDER BY u.id
	`
	var rows []userRow
	if err := r.q(ctx).SelectContext(ctx, &rows, query, choID); err != nil {
		return nil, mapError(err, "failed to list supervised users")
	}

	users := make([]*model.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].toModel())
	}
	return users, nil
}
