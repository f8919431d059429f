package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"callcenter-backend/internal/personnel"
	sharedauth "callcenter-backend/internal/shared/auth"
	"callcenter-backend/internal/shared/server/middleware"
)

type testEnv struct {
	svc       *Service
	repo      *MemoryRepo
	personnel *personnel.MemoryRepo
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	signer, err := sharedauth.NewSigner("test-secret", "test", time.Hour)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	env := &testEnv{
		repo:      NewMemoryRepo(),
		personnel: personnel.NewMemoryRepo(),
		now:       time.Now().UTC(),
	}
	env.svc = NewService(env.repo, signer, personnel.NewService(env.personnel), time.Hour)
	env.svc.BcryptCost = bcrypt.MinCost
	env.svc.now = func() time.Time { return env.now }
	return env
}

func TestSignUpProvisionsPersonnelAndVerifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.SignUp(ctx, SignUpInput{Email: " Ayse@Example.com ", Password: "secret1", Name: "Ayşe Yılmaz"}, ClientMeta{UserAgent: "test"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.Token == "" || res.Account.Email != "ayse@example.com" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Personnel == nil || res.Personnel.FirstName != "Ayşe" {
		t.Fatalf("expected provisioned personnel, got %+v", res.Personnel)
	}

	sess, err := env.svc.VerifySession(ctx, res.Token)
	if err != nil {
		t.Fatalf("VerifySession: %v", err)
	}
	if sess.AccountID != res.Account.ID || sess.PersonnelID != res.Personnel.ID || sess.Manager {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestSignUpValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []SignUpInput{
		{Email: "", Password: "secret1"},
		{Email: "not-an-email", Password: "secret1"},
		{Email: "a@b.co", Password: "12345"},
	}
	for _, in := range cases {
		if _, err := env.svc.SignUp(ctx, in, ClientMeta{}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", in, err)
		}
	}

	if _, err := env.svc.SignUp(ctx, SignUpInput{Email: "a@b.co", Password: "secret1"}, ClientMeta{}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := env.svc.SignUp(ctx, SignUpInput{Email: "A@B.co", Password: "secret1"}, ClientMeta{}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignInChecksPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.SignUp(ctx, SignUpInput{Email: "a@b.co", Password: "secret1"}, ClientMeta{}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if _, err := env.svc.SignIn(ctx, "a@b.co", "wrong-pass", ClientMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.svc.SignIn(ctx, "nobody@b.co", "secret1", ClientMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if _, err := env.svc.SignIn(ctx, "A@B.CO", "secret1", ClientMeta{}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
}

func TestSignOutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.SignUp(ctx, SignUpInput{Email: "a@b.co", Password: "secret1"}, ClientMeta{})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	sess, err := env.svc.VerifySession(ctx, res.Token)
	if err != nil {
		t.Fatalf("VerifySession: %v", err)
	}

	if err := env.svc.SignOut(ctx, sess); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := env.svc.VerifySession(ctx, res.Token); !errors.Is(err, middleware.ErrNoSession) {
		t.Fatalf("expected ErrNoSession after sign-out, got %v", err)
	}
	if err := env.svc.SignOut(ctx, middleware.Session{}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestVerifySessionRejectsExpiredAndForeignTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.SignUp(ctx, SignUpInput{Email: "a@b.co", Password: "secret1"}, ClientMeta{})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	other, _ := sharedauth.NewSigner("other-secret", "test", time.Hour)
	forged, err := other.Sign(sharedauth.Claims{Sub: res.Account.ID, Sid: "whatever"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := env.svc.VerifySession(ctx, forged); !errors.Is(err, middleware.ErrNoSession) {
		t.Fatalf("expected ErrNoSession for forged token, got %v", err)
	}

	unknown, _ := env.svc.Signer.Sign(sharedauth.Claims{Sub: res.Account.ID, Sid: "missing-session"})
	if _, err := env.svc.VerifySession(ctx, unknown); !errors.Is(err, middleware.ErrNoSession) {
		t.Fatalf("expected ErrNoSession for unknown session, got %v", err)
	}

	env.now = env.now.Add(2 * time.Hour)
	if _, err := env.svc.VerifySession(ctx, res.Token); !errors.Is(err, middleware.ErrNoSession) {
		t.Fatalf("expected ErrNoSession for expired session, got %v", err)
	}
}

func TestManagerFlagComesFromPersonnel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.SignUp(ctx, SignUpInput{Email: "boss@b.co", Password: "secret1", Name: "Boss"}, ClientMeta{})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	env.personnel.SetManager(res.Personnel.ID, true)

	sess, err := env.svc.VerifySession(ctx, res.Token)
	if err != nil {
		t.Fatalf("VerifySession: %v", err)
	}
	if !sess.Manager {
		t.Fatalf("expected manager session")
	}
}

func TestSubscribeReceivesAuthEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sub := env.svc.Subscribe(8)
	defer sub.Close()

	res, err := env.svc.SignUp(ctx, SignUpInput{Email: "a@b.co", Password: "secret1"}, ClientMeta{})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	sess, _ := env.svc.VerifySession(ctx, res.Token)
	if err := env.svc.SignOut(ctx, sess); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	want := []EventType{EventSignedUp, EventSignedIn, EventSignedOut}
	for _, typ := range want {
		select {
		case ev := <-sub.Events:
			if ev.Type != typ || ev.AccountID != res.Account.ID {
				t.Fatalf("expected %s for %s, got %+v", typ, res.Account.ID, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", typ)
		}
	}

	sub.Close()
	if _, ok := <-sub.Events; ok {
		t.Fatalf("expected closed channel after Close")
	}
}

func TestPurgeExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.SignUp(ctx, SignUpInput{Email: "a@b.co", Password: "secret1"}, ClientMeta{})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	sess, _ := env.svc.VerifySession(ctx, res.Token)

	if err := env.svc.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if _, err := env.repo.GetSession(ctx, sess.SessionID); err != nil {
		t.Fatalf("live session should survive purge: %v", err)
	}

	env.now = env.now.Add(2 * time.Hour)
	if err := env.svc.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if _, err := env.repo.GetSession(ctx, sess.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session to be purged, got %v", err)
	}
}
