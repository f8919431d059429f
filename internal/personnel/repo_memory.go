package personnel

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu        sync.RWMutex
	byID      map[string]Personnel
	byAccount map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:      make(map[string]Personnel),
		byAccount: make(map[string]string),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, p Personnel) (Personnel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byAccount[p.AccountID]; ok {
		return r.byID[id], nil
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.byID[p.ID] = p
	r.byAccount[p.AccountID] = p.ID
	return p, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Personnel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return Personnel{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) GetByAccountID(ctx context.Context, accountID string) (Personnel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAccount[accountID]
	if !ok {
		return Personnel{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]Personnel, error) {
	r.mu.RLock()
	out := make([]Personnel, 0, len(r.byID))
	for _, p := range r.byID {
		if p.Active {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstName == out[j].FirstName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

func (r *MemoryRepo) CountActive(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.byID {
		if p.Active {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (Personnel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return Personnel{}, ErrNotFound
	}
	p.FirstName = u.FirstName
	p.LastName = u.LastName
	p.Position = u.Position
	p.UpdatedAt = time.Now().UTC()
	r.byID[id] = p
	return p, nil
}

// SetManager flags a profile as a manager. Used by seeding and tests.
func (r *MemoryRepo) SetManager(id string, manager bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.Manager = manager
		r.byID[id] = p
	}
}

var _ Repo = (*MemoryRepo)(nil)
