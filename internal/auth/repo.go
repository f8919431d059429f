package auth

import (
	"context"
	"time"
)

type Repo interface {
	CreateAccount(ctx context.Context, a Account) error
	GetAccountByID(ctx context.Context, id string) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	// UpsertOAuthAccount creates the account or refreshes its name, keyed by id.
	UpsertOAuthAccount(ctx context.Context, a Account) (Account, error)

	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error
	// PurgeSessions deletes sessions that expired or were revoked before cutoff.
	PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error)
}
