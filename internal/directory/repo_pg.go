package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbus-hr/nimbus/internal/authz"
	"github.com/nimbus-hr/nimbus/internal/platform/db"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

func (r *PGRepository) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

// mapPGError translates constraint violations into domain errors.
func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%v: %w", pgErr.ConstraintName, ErrDuplicate)
		case "23503":
			return fmt.Errorf("%v: %w", pgErr.ConstraintName, authz.ErrNotFound)
		}
	}
	return err
}

// CreatePermission inserts a system permission.
func (r *PGRepository) CreatePermission(ctx context.Context, perm authz.SystemPermission) (authz.SystemPermission, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO system_permissions (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, name, description, created_at, updated_at`,
		perm.ID, perm.Name, perm.Description)
	out, err := scanPermission(row)
	if err != nil {
		return authz.SystemPermission{}, mapPGError(err)
	}
	return out, nil
}

// UpdatePermission updates name and description.
func (r *PGRepository) UpdatePermission(ctx context.Context, perm authz.SystemPermission) (authz.SystemPermission, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE system_permissions SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, created_at, updated_at`,
		perm.ID, perm.Name, perm.Description)
	out, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.SystemPermission{}, authz.ErrNotFound
		}
		return authz.SystemPermission{}, mapPGError(err)
	}
	return out, nil
}

// DeletePermission detaches the permission from every profile and
// permission set, then deletes it. A dangling reference is never left
// behind.
func (r *PGRepository) DeletePermission(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM profile_permissions WHERE permission_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM permission_set_permissions WHERE permission_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM system_permissions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return authz.ErrNotFound
		}
		return nil
	})
}

// GetPermission fetches a system permission.
func (r *PGRepository) GetPermission(ctx context.Context, id string) (authz.SystemPermission, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM system_permissions WHERE id = $1`, id)
	out, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.SystemPermission{}, authz.ErrNotFound
		}
		return authz.SystemPermission{}, err
	}
	return out, nil
}

// ListPermissions returns all system permissions ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]authz.SystemPermission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM system_permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []authz.SystemPermission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, perm)
	}
	return out, rows.Err()
}

// CreateProfile inserts a profile and attaches its initial permissions.
func (r *PGRepository) CreateProfile(ctx context.Context, profile authz.Profile, permissionIDs []string) (authz.Profile, error) {
	var out authz.Profile
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO profiles (id, name, description, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			RETURNING id, name, description, created_at, updated_at`,
			profile.ID, profile.Name, profile.Description)
		if err := row.Scan(&out.ID, &out.Name, &out.Description, &out.CreatedAt, &out.UpdatedAt); err != nil {
			return mapPGError(err)
		}
		return attachLinks(ctx, tx, `INSERT INTO profile_permissions (profile_id, permission_id) VALUES ($1, $2)`, out.ID, permissionIDs)
	})
	if err != nil {
		return authz.Profile{}, err
	}
	return out, nil
}

// UpdateProfile updates name and description.
func (r *PGRepository) UpdateProfile(ctx context.Context, profile authz.Profile) (authz.Profile, error) {
	var out authz.Profile
	row := r.pool.QueryRow(ctx, `
		UPDATE profiles SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, created_at, updated_at`,
		profile.ID, profile.Name, profile.Description)
	if err := row.Scan(&out.ID, &out.Name, &out.Description, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Profile{}, authz.ErrNotFound
		}
		return authz.Profile{}, mapPGError(err)
	}
	return out, nil
}

// DeleteProfile removes a profile. Rejected while users still reference it.
func (r *PGRepository) DeleteProfile(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		var count int64
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE profile_id = $1`, id).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%d users assigned: %w", count, ErrProfileInUse)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM profile_permissions WHERE profile_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return authz.ErrNotFound
		}
		return nil
	})
}

// GetProfile fetches a profile with its permissions and user count.
func (r *PGRepository) GetProfile(ctx context.Context, id string) (ProfileDetail, error) {
	batch := &pgx.Batch{}
	batch.Queue(`SELECT id, name, description, created_at, updated_at FROM profiles WHERE id = $1`, id)
	batch.Queue(`
		SELECT sp.id, sp.name, sp.description, sp.created_at, sp.updated_at
		FROM system_permissions sp
		JOIN profile_permissions pp ON pp.permission_id = sp.id
		WHERE pp.profile_id = $1
		ORDER BY sp.name`, id)
	batch.Queue(`SELECT COUNT(*) FROM users WHERE profile_id = $1`, id)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var detail ProfileDetail
	row := results.QueryRow()
	if err := row.Scan(&detail.Profile.ID, &detail.Profile.Name, &detail.Profile.Description, &detail.Profile.CreatedAt, &detail.Profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileDetail{}, authz.ErrNotFound
		}
		return ProfileDetail{}, err
	}
	perms, err := collectPermissions(results.Query())
	if err != nil {
		return ProfileDetail{}, err
	}
	detail.Permissions = perms
	if err := results.QueryRow().Scan(&detail.UserCount); err != nil {
		return ProfileDetail{}, err
	}
	return detail, nil
}

// ListProfiles returns all profiles ordered by name.
func (r *PGRepository) ListProfiles(ctx context.Context) ([]authz.Profile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at, updated_at FROM profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []authz.Profile
	for rows.Next() {
		var p authz.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetProfilePermissions replaces a profile's permission grants.
func (r *PGRepository) SetProfilePermissions(ctx context.Context, profileID string, permissionIDs []string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM profile_permissions WHERE profile_id = $1`, profileID); err != nil {
			return err
		}
		return attachLinks(ctx, tx, `INSERT INTO profile_permissions (profile_id, permission_id) VALUES ($1, $2)`, profileID, permissionIDs)
	})
}

// CreatePermissionSet inserts a permission set and its initial grants.
func (r *PGRepository) CreatePermissionSet(ctx context.Context, set authz.PermissionSet, permissionIDs []string) (authz.PermissionSet, error) {
	var out authz.PermissionSet
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO permission_sets (id, name, description, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			RETURNING id, name, description, created_at, updated_at`,
			set.ID, set.Name, set.Description)
		if err := row.Scan(&out.ID, &out.Name, &out.Description, &out.CreatedAt, &out.UpdatedAt); err != nil {
			return mapPGError(err)
		}
		return attachLinks(ctx, tx, `INSERT INTO permission_set_permissions (permission_set_id, permission_id) VALUES ($1, $2)`, out.ID, permissionIDs)
	})
	if err != nil {
		return authz.PermissionSet{}, err
	}
	return out, nil
}

// UpdatePermissionSet updates name and description.
func (r *PGRepository) UpdatePermissionSet(ctx context.Context, set authz.PermissionSet) (authz.PermissionSet, error) {
	var out authz.PermissionSet
	row := r.pool.QueryRow(ctx, `
		UPDATE permission_sets SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, created_at, updated_at`,
		set.ID, set.Name, set.Description)
	if err := row.Scan(&out.ID, &out.Name, &out.Description, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.PermissionSet{}, authz.ErrNotFound
		}
		return authz.PermissionSet{}, mapPGError(err)
	}
	return out, nil
}

// DeletePermissionSet detaches every user assignment and permission link,
// then deletes the set. Existing user references never block the deletion.
func (r *PGRepository) DeletePermissionSet(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_permission_sets WHERE permission_set_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM permission_set_permissions WHERE permission_set_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM permission_sets WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return authz.ErrNotFound
		}
		return nil
	})
}

// GetPermissionSet fetches a set with its permissions and user count.
func (r *PGRepository) GetPermissionSet(ctx context.Context, id string) (PermissionSetDetail, error) {
	batch := &pgx.Batch{}
	batch.Queue(`SELECT id, name, description, created_at, updated_at FROM permission_sets WHERE id = $1`, id)
	batch.Queue(`
		SELECT sp.id, sp.name, sp.description, sp.created_at, sp.updated_at
		FROM system_permissions sp
		JOIN permission_set_permissions psp ON psp.permission_id = sp.id
		WHERE psp.permission_set_id = $1
		ORDER BY sp.name`, id)
	batch.Queue(`SELECT COUNT(*) FROM user_permission_sets WHERE permission_set_id = $1`, id)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var detail PermissionSetDetail
	row := results.QueryRow()
	if err := row.Scan(&detail.PermissionSet.ID, &detail.PermissionSet.Name, &detail.PermissionSet.Description, &detail.PermissionSet.CreatedAt, &detail.PermissionSet.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PermissionSetDetail{}, authz.ErrNotFound
		}
		return PermissionSetDetail{}, err
	}
	perms, err := collectPermissions(results.Query())
	if err != nil {
		return PermissionSetDetail{}, err
	}
	detail.Permissions = perms
	if err := results.QueryRow().Scan(&detail.UserCount); err != nil {
		return PermissionSetDetail{}, err
	}
	return detail, nil
}

// ListPermissionSets returns all permission sets ordered by name.
func (r *PGRepository) ListPermissionSets(ctx context.Context) ([]authz.PermissionSet, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at, updated_at FROM permission_sets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []authz.PermissionSet
	for rows.Next() {
		var s authz.PermissionSet
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetPermissionSetPermissions replaces a set's permission grants.
func (r *PGRepository) SetPermissionSetPermissions(ctx context.Context, setID string, permissionIDs []string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM permission_set_permissions WHERE permission_set_id = $1`, setID); err != nil {
			return err
		}
		return attachLinks(ctx, tx, `INSERT INTO permission_set_permissions (permission_set_id, permission_id) VALUES ($1, $2)`, setID, permissionIDs)
	})
}

// AssignPermissionSet links a set to a user. Assigning twice is a no-op.
func (r *PGRepository) AssignPermissionSet(ctx context.Context, userID, setID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_permission_sets (user_id, permission_set_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, setID)
	return mapPGError(err)
}

// RemovePermissionSet unlinks a set from a user.
func (r *PGRepository) RemovePermissionSet(ctx context.Context, userID, setID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM user_permission_sets WHERE user_id = $1 AND permission_set_id = $2`, userID, setID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// SetUserProfile reassigns a user's profile.
func (r *PGRepository) SetUserProfile(ctx context.Context, userID, profileID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET profile_id = $2, updated_at = NOW() WHERE id = $1`, userID, profileID)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// SetUserActive toggles a user's active flag.
func (r *PGRepository) SetUserActive(ctx context.Context, userID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// ListUsers returns all users ordered by email.
func (r *PGRepository) ListUsers(ctx context.Context) ([]authz.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, profile_id, employee_number, is_active, created_at, updated_at
		FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []authz.User
	for rows.Next() {
		var u authz.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.ProfileID, &u.EmployeeNumber, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func attachLinks(ctx context.Context, tx pgx.Tx, query, ownerID string, ids []string) error {
	for _, id := range ids {
		if _, err := tx.Exec(ctx, query, ownerID, id); err != nil {
			return mapPGError(err)
		}
	}
	return nil
}

func scanPermission(row pgx.Row) (authz.SystemPermission, error) {
	var perm authz.SystemPermission
	err := row.Scan(&perm.ID, &perm.Name, &perm.Description, &perm.CreatedAt, &perm.UpdatedAt)
	return perm, err
}

func collectPermissions(rows pgx.Rows, queryErr error) ([]authz.SystemPermission, error) {
	if queryErr != nil {
		return nil, queryErr
	}
	defer rows.Close()
	var out []authz.SystemPermission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, perm)
	}
	return out, rows.Err()
}
