package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"callcenter-backend/internal/personnel"
	sharedauth "callcenter-backend/internal/shared/auth"
	"callcenter-backend/internal/shared/server/middleware"
	"callcenter-backend/internal/shared/telemetry"
)

const (
	minPasswordLength = 6
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordLength = 72
	defaultSessionTTL = 7 * 24 * time.Hour
)

// Directory resolves the personnel profile behind an account.
type Directory interface {
	Provision(ctx context.Context, accountID, fullName string) (personnel.Personnel, error)
	GetByAccountID(ctx context.Context, accountID string) (personnel.Personnel, error)
}

// Service signs accounts in and out and verifies sessions server-side.
type Service struct {
	Repo       Repo
	Signer     *sharedauth.Signer
	Personnel  Directory
	SessionTTL time.Duration
	BcryptCost int

	bus *eventBus
	now func() time.Time
}

func NewService(repo Repo, signer *sharedauth.Signer, dir Directory, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &Service{
		Repo:       repo,
		Signer:     signer,
		Personnel:  dir,
		SessionTTL: sessionTTL,
		BcryptCost: bcrypt.DefaultCost,
		bus:        newEventBus(),
		now:        time.Now,
	}
}

// Result is returned by every successful sign-in path.
type Result struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
	Account   Account              `json:"account"`
	Personnel *personnel.Personnel `json:"personnel,omitempty"`
}

// SignUpInput is the payload for password sign-up.
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SignUp creates a password account, provisions its personnel profile and
// signs it in.
func (s *Service) SignUp(ctx context.Context, in SignUpInput, meta ClientMeta) (Result, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return Result{}, err
	}
	if len(in.Password) < minPasswordLength {
		return Result{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if len(in.Password) > maxPasswordLength {
		return Result{}, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordLength)
	}
	name := strings.TrimSpace(in.Name)

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost())
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}
	acct := Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Provider:     ProviderPassword,
	}
	if err := s.Repo.CreateAccount(ctx, acct); err != nil {
		return Result{}, err
	}
	if s.Personnel != nil {
		if _, err := s.Personnel.Provision(ctx, acct.ID, name); err != nil {
			return Result{}, fmt.Errorf("provision personnel: %w", err)
		}
	}
	s.bus.publish(Event{Type: EventSignedUp, AccountID: acct.ID, At: s.clock()})

	return s.startSession(ctx, acct, meta)
}

// SignIn checks a password and opens a new session.
func (s *Service) SignIn(ctx context.Context, email, password string, meta ClientMeta) (Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Result{}, ErrInvalidCredentials
	}
	acct, err := s.Repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Result{}, ErrInvalidCredentials
		}
		return Result{}, err
	}
	if acct.PasswordHash == "" {
		return Result{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return Result{}, ErrInvalidCredentials
	}
	return s.startSession(ctx, acct, meta)
}

// SignInOAuth signs in an identity confirmed by an external provider,
// creating the account and personnel profile on first use.
func (s *Service) SignInOAuth(ctx context.Context, provider, subject, email, name string, meta ClientMeta) (Result, error) {
	if strings.TrimSpace(subject) == "" {
		return Result{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return Result{}, err
	}
	acct, err := s.Repo.UpsertOAuthAccount(ctx, Account{
		ID:       provider + ":" + subject,
		Email:    email,
		Name:     strings.TrimSpace(name),
		Provider: provider,
	})
	if err != nil {
		return Result{}, err
	}
	if s.Personnel != nil {
		if _, err := s.Personnel.Provision(ctx, acct.ID, acct.Name); err != nil {
			return Result{}, fmt.Errorf("provision personnel: %w", err)
		}
	}
	return s.startSession(ctx, acct, meta)
}

// SignOut revokes the session. Revoking twice is not an error.
func (s *Service) SignOut(ctx context.Context, sess middleware.Session) error {
	if sess.SessionID == "" {
		return ErrSessionNotFound
	}
	if err := s.Repo.RevokeSession(ctx, sess.SessionID, s.clock()); err != nil {
		return err
	}
	s.bus.publish(Event{Type: EventSignedOut, AccountID: sess.AccountID, SessionID: sess.SessionID, At: s.clock()})
	telemetry.Info("auth.signout", map[string]any{"account_id": sess.AccountID, "session_id": sess.SessionID})
	return nil
}

// VerifySession resolves a bearer token against the session store. A valid
// signature alone is not enough: the session must exist, belong to the token
// subject and be neither revoked nor expired.
func (s *Service) VerifySession(ctx context.Context, token string) (middleware.Session, error) {
	claims, err := s.Signer.Verify(token)
	if err != nil {
		return middleware.Session{}, fmt.Errorf("%w: %v", middleware.ErrNoSession, err)
	}
	stored, err := s.Repo.GetSession(ctx, claims.Sid)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return middleware.Session{}, fmt.Errorf("%w: %v", middleware.ErrNoSession, err)
		}
		return middleware.Session{}, err
	}
	if stored.AccountID != claims.Sub || !stored.Active(s.clock()) {
		return middleware.Session{}, middleware.ErrNoSession
	}

	sess := middleware.Session{
		AccountID: claims.Sub,
		SessionID: claims.Sid,
		Email:     claims.Email,
		Name:      claims.Name,
	}
	if s.Personnel != nil {
		p, err := s.Personnel.GetByAccountID(ctx, claims.Sub)
		switch {
		case err == nil:
			sess.PersonnelID = p.ID
			sess.Manager = p.Manager && p.Active
		case errors.Is(err, personnel.ErrNotFound):
		default:
			return middleware.Session{}, err
		}
	}
	return sess, nil
}

// Subscribe returns a stream of auth state changes. buffer <= 0 uses a default.
func (s *Service) Subscribe(buffer int) Subscription {
	return s.bus.subscribe(buffer)
}

// PurgeExpired removes sessions that ended before now.
func (s *Service) PurgeExpired(ctx context.Context) error {
	n, err := s.Repo.PurgeSessions(ctx, s.clock())
	if err != nil {
		return err
	}
	telemetry.Info("auth.sessions.purged", map[string]any{"count": n})
	return nil
}

func (s *Service) startSession(ctx context.Context, acct Account, meta ClientMeta) (Result, error) {
	now := s.clock()
	sess := Session{
		ID:        uuid.NewString(),
		AccountID: acct.ID,
		UserAgent: meta.UserAgent,
		ClientIP:  meta.ClientIP,
		CreatedAt: now,
		ExpiresAt: now.Add(s.SessionTTL),
	}
	if err := s.Repo.CreateSession(ctx, sess); err != nil {
		return Result{}, fmt.Errorf("create session: %w", err)
	}
	token, err := s.Signer.Sign(sharedauth.Claims{
		Sub:   acct.ID,
		Sid:   sess.ID,
		Email: acct.Email,
		Name:  acct.Name,
		Iat:   now.Unix(),
		Exp:   sess.ExpiresAt.Unix(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("sign token: %w", err)
	}

	res := Result{Token: token, ExpiresAt: sess.ExpiresAt, Account: acct}
	if s.Personnel != nil {
		if p, err := s.Personnel.GetByAccountID(ctx, acct.ID); err == nil {
			res.Personnel = &p
		}
	}
	s.bus.publish(Event{Type: EventSignedIn, AccountID: acct.ID, SessionID: sess.ID, At: now})
	telemetry.Info("auth.signin", map[string]any{
		"account_id": acct.ID,
		"session_id": sess.ID,
		"provider":   acct.Provider,
	})
	return res, nil
}

func (s *Service) cost() int {
	if s.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}
	return s.BcryptCost
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return email, nil
}
