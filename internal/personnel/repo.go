package personnel

import "context"

type Repo interface {
	// Create inserts p unless the account already has a profile, in which case
	// the existing profile is returned.
	Create(ctx context.Context, p Personnel) (Personnel, error)
	GetByID(ctx context.Context, id string) (Personnel, error)
	GetByAccountID(ctx context.Context, accountID string) (Personnel, error)
	ListActive(ctx context.Context) ([]Personnel, error)
	CountActive(ctx context.Context) (int, error)
	UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (Personnel, error)
}
