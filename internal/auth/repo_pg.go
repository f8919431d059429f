package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PGRepo struct {
	DB *sql.DB
}

const uniqueViolation = "23505"

func (r *PGRepo) CreateAccount(ctx context.Context, a Account) error {
	const query = `
INSERT INTO accounts (id, email, password_hash, name, provider, created_at, updated_at)
VALUES ($1, lower($2), $3, $4, $5, now(), now())`
	_, err := r.DB.ExecContext(ctx, query, a.ID, a.Email, nullableString(a.PasswordHash), a.Name, a.Provider)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *PGRepo) GetAccountByID(ctx context.Context, id string) (Account, error) {
	const query = `
SELECT id, email, password_hash, name, provider, created_at, updated_at
FROM accounts
WHERE id = $1
LIMIT 1`
	return scanAccount(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGRepo) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	const query = `
SELECT id, email, password_hash, name, provider, created_at, updated_at
FROM accounts
WHERE email = lower($1)
LIMIT 1`
	return scanAccount(r.DB.QueryRowContext(ctx, query, email))
}

func (r *PGRepo) UpsertOAuthAccount(ctx context.Context, a Account) (Account, error) {
	const query = `
INSERT INTO accounts (id, email, name, provider, created_at, updated_at)
VALUES ($1, lower($2), $3, $4, now(), now())
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  updated_at = now()
RETURNING id, email, password_hash, name, provider, created_at, updated_at`
	acct, err := scanAccount(r.DB.QueryRowContext(ctx, query, a.ID, a.Email, a.Name, a.Provider))
	if isUniqueViolation(err) {
		return Account{}, ErrEmailTaken
	}
	return acct, err
}

func (r *PGRepo) CreateSession(ctx context.Context, s Session) error {
	const query = `
INSERT INTO sessions (id, account_id, user_agent, client_ip, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query,
		s.ID,
		s.AccountID,
		nullableString(s.UserAgent),
		nullableString(s.ClientIP),
		s.CreatedAt,
		s.ExpiresAt,
	)
	return err
}

func (r *PGRepo) GetSession(ctx context.Context, id string) (Session, error) {
	const query = `
SELECT id, account_id, user_agent, client_ip, created_at, expires_at, revoked_at
FROM sessions
WHERE id = $1
LIMIT 1`
	var (
		s         Session
		userAgent sql.NullString
		clientIP  sql.NullString
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.AccountID,
		&userAgent,
		&clientIP,
		&s.CreatedAt,
		&s.ExpiresAt,
		&revokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	s.UserAgent = userAgent.String
	s.ClientIP = clientIP.String
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	return s, nil
}

func (r *PGRepo) RevokeSession(ctx context.Context, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PGRepo) PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanAccount(row interface{ Scan(...any) error }) (Account, error) {
	var (
		a            Account
		passwordHash sql.NullString
	)
	err := row.Scan(&a.ID, &a.Email, &passwordHash, &a.Name, &a.Provider, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	a.PasswordHash = passwordHash.String
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
