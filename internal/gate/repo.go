package gate

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbus-hr/nimbus/internal/authz"
)

// Account is a user record with its credential hash, only ever read on the
// authentication path.
type Account struct {
	User         authz.User
	PasswordHash string
}

// AccountRepository defines persistence for the authentication path and the
// login session registry.
type AccountRepository interface {
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	RegisterSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error
	RemoveSession(ctx context.Context, id string) error
}

// PGAccountRepository implements AccountRepository using PostgreSQL.
type PGAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPGAccountRepository constructs a PostgreSQL account repository.
func NewPGAccountRepository(pool *pgxpool.Pool) *PGAccountRepository {
	return &PGAccountRepository{pool: pool}
}

var _ AccountRepository = (*PGAccountRepository)(nil)

// FindAccountByEmail fetches a user and its password hash by email.
func (r *PGAccountRepository) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, profile_id, employee_number, is_active, created_at, updated_at, password_hash
		FROM users WHERE email = $1`, email)
	var acct Account
	err := row.Scan(
		&acct.User.ID,
		&acct.User.Name,
		&acct.User.Email,
		&acct.User.ProfileID,
		&acct.User.EmployeeNumber,
		&acct.User.IsActive,
		&acct.User.CreatedAt,
		&acct.User.UpdatedAt,
		&acct.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}
	return &acct, nil
}

// RegisterSession records a login session for auditing.
func (r *PGAccountRepository) RegisterSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at, ip, user_agent)
		VALUES ($1, $2, NOW(), $3, $4, $5)`,
		id, userID,
		pgtype.Timestamptz{Time: expiresAt.UTC(), Valid: true},
		pgtype.Text{String: ip, Valid: ip != ""},
		pgtype.Text{String: ua, Valid: ua != ""},
	)
	return err
}

// RemoveSession deletes a session record.
func (r *PGAccountRepository) RemoveSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}
