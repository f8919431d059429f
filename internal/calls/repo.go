package calls

import (
	"context"
	"time"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
	RecentLimit      = 5
)

// ListFilter narrows List results. Empty fields do not filter.
type ListFilter struct {
	PersonnelID string
	Status      Status
	Limit       int
	Offset      int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Repo persists call records.
type Repo interface {
	// Create inserts c. A second record for the same RequestID fails with ErrDuplicateRequestID.
	Create(ctx context.Context, c Call) (Call, error)
	GetByID(ctx context.Context, id string) (Call, error)
	GetByRequestID(ctx context.Context, requestID string) (Call, error)
	// List returns calls newest first by CalledAt.
	List(ctx context.Context, f ListFilter) ([]Call, error)
	Delete(ctx context.Context, id string) error
	// Stats aggregates calls for personnelID, or all calls when it is empty.
	// AvgScore is unrounded and ignores calls without a score.
	Stats(ctx context.Context, personnelID string, since time.Time) (Stats, error)
}
