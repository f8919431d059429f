package health

import (
	"context"
	"time"
)

const checkTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB Pinger
}

// NewService constructs a new health service. A nil db reports the
// in-memory store.
func NewService(db Pinger) *Service {
	return &Service{DB: db}
}

// Status is the health payload.
type Status struct {
	OK       bool              `json:"ok"`
	Database string            `json:"database"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// Check pings dependencies. OK is false when any of them fails.
func (s *Service) Check(ctx context.Context) Status {
	st := Status{OK: true, Database: "memory"}
	if s == nil || s.DB == nil {
		return st
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		st.OK = false
		st.Database = "error"
		st.Errors = map[string]string{"database": err.Error()}
		return st
	}
	st.Database = "ok"
	return st
}
