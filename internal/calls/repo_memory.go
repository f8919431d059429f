package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for dev and tests.
type MemoryRepo struct {
	mu        sync.RWMutex
	byID      map[string]Call
	byRequest map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:      make(map[string]Call),
		byRequest: make(map[string]string),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.RequestID != "" {
		if _, ok := r.byRequest[c.RequestID]; ok {
			return Call{}, ErrDuplicateRequestID
		}
		r.byRequest[c.RequestID] = c.ID
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.byID[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetByRequestID(ctx context.Context, requestID string) (Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRequest[requestID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepo) List(ctx context.Context, f ListFilter) ([]Call, error) {
	f = f.normalized()
	r.mu.RLock()
	out := make([]Call, 0, len(r.byID))
	for _, c := range r.byID {
		if f.PersonnelID != "" && c.PersonnelID != f.PersonnelID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CalledAt.Equal(out[j].CalledAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CalledAt.After(out[j].CalledAt)
	})
	if f.Offset >= len(out) {
		return []Call{}, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	if c.RequestID != "" {
		delete(r.byRequest, c.RequestID)
	}
	return nil
}

func (r *MemoryRepo) Stats(ctx context.Context, personnelID string, since time.Time) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		st  Stats
		sum float64
	)
	for _, c := range r.byID {
		if personnelID != "" && c.PersonnelID != personnelID {
			continue
		}
		st.TotalCalls++
		if c.Status == StatusCompleted {
			st.CompletedCalls++
		}
		if c.Score != nil {
			sum += *c.Score
		}
		if !c.CalledAt.Before(since) {
			st.TodayCalls++
		}
	}
	// Unscored calls count as zero.
	if st.TotalCalls > 0 {
		st.AvgScore = sum / float64(st.TotalCalls)
	}
	return st, nil
}

var _ Repo = (*MemoryRepo)(nil)
