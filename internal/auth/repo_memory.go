package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu       sync.RWMutex
	accounts map[string]Account
	byEmail  map[string]string
	sessions map[string]Session
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		accounts: make(map[string]Account),
		byEmail:  make(map[string]string),
		sessions: make(map[string]Session),
	}
}

func (r *MemoryRepo) CreateAccount(ctx context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(a.Email)
	if _, ok := r.byEmail[email]; ok {
		return ErrEmailTaken
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.accounts[a.ID] = a
	r.byEmail[email] = a.ID
	return nil
}

func (r *MemoryRepo) GetAccountByID(ctx context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (r *MemoryRepo) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return r.accounts[id], nil
}

func (r *MemoryRepo) UpsertOAuthAccount(ctx context.Context, a Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.accounts[a.ID]; ok {
		existing.Name = a.Name
		existing.UpdatedAt = now
		r.accounts[a.ID] = existing
		return existing, nil
	}
	email := strings.ToLower(a.Email)
	if _, ok := r.byEmail[email]; ok {
		return Account{}, ErrEmailTaken
	}
	a.CreatedAt, a.UpdatedAt = now, now
	r.accounts[a.ID] = a
	r.byEmail[email] = a.ID
	return a, nil
}

func (r *MemoryRepo) CreateSession(ctx context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *MemoryRepo) GetSession(ctx context.Context, id string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (r *MemoryRepo) RevokeSession(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.RevokedAt == nil {
		s.RevokedAt = &at
		r.sessions[id] = s
	}
	return nil
}

func (r *MemoryRepo) PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(cutoff) || (s.RevokedAt != nil && s.RevokedAt.Before(cutoff)) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

var _ Repo = (*MemoryRepo)(nil)
