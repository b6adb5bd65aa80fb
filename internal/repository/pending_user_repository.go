package repository

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PendingUserRepository stores unverified registrations and promotes them
// into users.
type PendingUserRepository interface {
	// Upsert creates the pending row for p.Email or replaces its name, hash,
	// token and expiry. It returns domain.ErrEmailInUse when an active user
	// already owns the email. created is false when an existing row was updated.
	Upsert(ctx context.Context, p *domain.PendingUser) (created bool, err error)
	FindByEmail(ctx context.Context, email string) (*domain.PendingUser, error)
	FindByToken(ctx context.Context, token string) (*domain.PendingUser, error)
	// Promote atomically turns the pending row holding token into an active
	// user and deletes the pending row. Expired rows are deleted and
	// domain.ErrTokenExpired is returned; unknown tokens give
	// domain.ErrInvalidToken.
	Promote(ctx context.Context, token string, now time.Time) (*domain.User, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pendingUserRepository struct {
	pool *pgxpool.Pool
}

func NewPendingUserRepository(pool *pgxpool.Pool) PendingUserRepository {
	return &pendingUserRepository{pool: pool}
}

const pendingCols = `id, email, name, hashed_password, verification_token, verification_token_expires, created_at, updated_at`

func scanPending(row rowScanner) (*domain.PendingUser, error) {
	var p domain.PendingUser
	err := row.Scan(&p.ID, &p.Email, &p.Name, &p.HashedPassword, &p.VerificationToken, &p.VerificationTokenExpires, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// lockEmail serializes Upsert and Promote for one address until the
// transaction ends. Both take it before any row lock.
func lockEmail(ctx context.Context, tx pgx.Tx, email string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, email)
	return err
}

func (r *pendingUserRepository) Upsert(ctx context.Context, p *domain.PendingUser) (bool, error) {
	const q = `
		INSERT INTO pending_users (email, name, hashed_password, verification_token, verification_token_expires)
		SELECT $1::text, $2::text, $3::text, $4::text, $5::timestamptz
		WHERE NOT EXISTS (SELECT 1 FROM users WHERE email = $1::text)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			hashed_password = EXCLUDED.hashed_password,
			verification_token = EXCLUDED.verification_token,
			verification_token_expires = EXCLUDED.verification_token_expires,
			updated_at = now()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := lockEmail(ctx, tx, p.Email); err != nil {
		return false, err
	}

	// The statement starts after the lock, so a promote that held it has
	// committed its user row and NOT EXISTS sees it.
	var inserted bool
	err = tx.QueryRow(ctx, q, p.Email, p.Name, p.HashedPassword, p.VerificationToken, p.VerificationTokenExpires).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, domain.ErrEmailInUse
	}
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *pendingUserRepository) FindByEmail(ctx context.Context, email string) (*domain.PendingUser, error) {
	const q = `SELECT ` + pendingCols + ` FROM pending_users WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p, err := scanPending(r.pool.QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *pendingUserRepository) FindByToken(ctx context.Context, token string) (*domain.PendingUser, error) {
	const q = `SELECT ` + pendingCols + ` FROM pending_users WHERE verification_token = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p, err := scanPending(r.pool.QueryRow(ctx, q, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *pendingUserRepository) Promote(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var email string
	err = tx.QueryRow(ctx, `SELECT email FROM pending_users WHERE verification_token = $1`, token).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if err := lockEmail(ctx, tx, email); err != nil {
		return nil, err
	}

	// Re-read under the row lock: a concurrent verification or re-issue may
	// have consumed or replaced the token while we waited.
	p, err := scanPending(tx.QueryRow(ctx,
		`SELECT `+pendingCols+` FROM pending_users WHERE verification_token = $1 FOR UPDATE`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if p.Expired(now) {
		if _, err := tx.Exec(ctx, `DELETE FROM pending_users WHERE id = $1`, p.ID); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return nil, domain.ErrTokenExpired
	}

	u, err := scanUser(tx.QueryRow(ctx, `
		INSERT INTO users (email, name, hashed_password, status, email_verified_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
		RETURNING `+userCols,
		p.Email, p.Name, p.HashedPassword, domain.StatusActive, now))
	conflict := errors.Is(err, pgx.ErrNoRows)
	if err != nil && !conflict {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM pending_users WHERE id = $1`, p.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	if conflict {
		return nil, domain.ErrEmailInUse
	}
	return u, nil
}

func (r *pendingUserRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM pending_users WHERE verification_token_expires < $1`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
