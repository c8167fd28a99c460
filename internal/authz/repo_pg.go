package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
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

const userColumns = `id, name, email, profile_id, employee_number, is_active, created_at, updated_at`

// FindUserByID fetches a user record by ID.
func (r *PGRepository) FindUserByID(ctx context.Context, id string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// FindUserWithGrants fetches the user, its profile permissions, its
// permission set memberships, and the permissions those sets grant, as a
// single batch on one connection. Composition runs on every authentication
// and every impersonation start, so this path avoids N+1 round-trips.
func (r *PGRepository) FindUserWithGrants(ctx context.Context, id string) (*UserGrants, error) {
	batch := &pgx.Batch{}
	batch.Queue(`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	batch.Queue(`
		SELECT sp.name
		FROM system_permissions sp
		JOIN profile_permissions pp ON pp.permission_id = sp.id
		JOIN users u ON u.profile_id = pp.profile_id
		WHERE u.id = $1
		ORDER BY sp.name`, id)
	batch.Queue(`
		SELECT ups.permission_set_id
		FROM user_permission_sets ups
		WHERE ups.user_id = $1
		ORDER BY ups.permission_set_id`, id)
	batch.Queue(`
		SELECT DISTINCT sp.name
		FROM system_permissions sp
		JOIN permission_set_permissions psp ON psp.permission_id = sp.id
		JOIN user_permission_sets ups ON ups.permission_set_id = psp.permission_set_id
		WHERE ups.user_id = $1
		ORDER BY sp.name`, id)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	user, err := scanUser(results.QueryRow())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("authz: load user: %w", err)
	}

	profilePerms, err := collectStrings(results.Query())
	if err != nil {
		return nil, fmt.Errorf("authz: load profile permissions: %w", err)
	}
	setIDs, err := collectStrings(results.Query())
	if err != nil {
		return nil, fmt.Errorf("authz: load permission set memberships: %w", err)
	}
	setPerms, err := collectStrings(results.Query())
	if err != nil {
		return nil, fmt.Errorf("authz: load permission set permissions: %w", err)
	}

	return &UserGrants{
		User:               *user,
		ProfilePermissions: profilePerms,
		PermissionSetIDs:   setIDs,
		SetPermissions:     setPerms,
	}, nil
}

// ListPermissionsForProfile returns permission names granted by a profile.
func (r *PGRepository) ListPermissionsForProfile(ctx context.Context, profileID string) ([]string, error) {
	return collectStrings(r.pool.Query(ctx, `
		SELECT sp.name
		FROM system_permissions sp
		JOIN profile_permissions pp ON pp.permission_id = sp.id
		WHERE pp.profile_id = $1
		ORDER BY sp.name`, profileID))
}

// ListPermissionsForPermissionSets returns the union of permission names
// granted by the given permission sets.
func (r *PGRepository) ListPermissionsForPermissionSets(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return collectStrings(r.pool.Query(ctx, `
		SELECT DISTINCT sp.name
		FROM system_permissions sp
		JOIN permission_set_permissions psp ON psp.permission_id = sp.id
		WHERE psp.permission_set_id = ANY($1)
		ORDER BY sp.name`, ids))
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.ProfileID,
		&user.EmployeeNumber,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func collectStrings(rows pgx.Rows, queryErr error) ([]string, error) {
	if queryErr != nil {
		return nil, queryErr
	}
	var out []string
	defer rows.Close()
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
