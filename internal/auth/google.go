package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"callcenter-backend/internal/shared/cache"
	"callcenter-backend/internal/shared/server/respond"
	"callcenter-backend/internal/shared/telemetry"
)

const (
	oauthStateTTL    = 5 * time.Minute
	oauthStatePrefix = "oauth:state:"
)

// GoogleConfig holds the OAuth client and where to send the browser after
// sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	UIRedirect   string
}

// GoogleService runs the Google OAuth code flow and opens a session through
// Service. Pending states live in the shared cache so the callback may land
// on any instance.
type GoogleService struct {
	svc         *Service
	states      cache.Cache
	oauthConfig *oauth2.Config
	uiRedirect  string
	userInfoURL string
}

func NewGoogleService(svc *Service, states cache.Cache, cfg GoogleConfig) *GoogleService {
	if states == nil {
		states = cache.NewMemory(oauthStateTTL, time.Minute)
	}
	return &GoogleService{
		svc:    svc,
		states: states,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		uiRedirect:  cfg.UIRedirect,
		userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

// Configured reports whether client credentials and a redirect are set.
func (s *GoogleService) Configured() bool {
	return s.oauthConfig.ClientID != "" && s.oauthConfig.ClientSecret != "" && s.oauthConfig.RedirectURL != ""
}

func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
}

func (s *GoogleService) start(c *gin.Context) {
	if !s.Configured() {
		respond.Error(c, http.StatusServiceUnavailable, "auth_not_configured", "Google auth not configured", nil)
		return
	}
	state := uuid.NewString()
	if err := s.states.Set(c.Request.Context(), oauthStatePrefix+state, []byte("1"), oauthStateTTL); err != nil {
		telemetry.Error("auth.google.state_store_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusServiceUnavailable, "auth_unavailable", "sign-in is temporarily unavailable", nil)
		return
	}
	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

func (s *GoogleService) callback(c *gin.Context) {
	ctx := c.Request.Context()
	if msg := c.Query("error"); msg != "" {
		telemetry.Warn("auth.google.denied", map[string]any{"error": msg})
		respond.Error(c, http.StatusUnauthorized, "auth_denied", "google sign-in was cancelled", nil)
		return
	}
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}
	if !s.consumeState(ctx, state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}
	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		telemetry.Warn("auth.google.profile_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusBadGateway, "auth_failed", err.Error(), nil)
		return
	}

	res, err := s.svc.SignInOAuth(ctx, ProviderGoogle, profile.Sub, profile.Email, profile.Name, clientMeta(c))
	if err != nil {
		telemetry.Warn("auth.google.signin_failed", map[string]any{"error": err.Error()})
		writeError(c, err)
		return
	}

	target, err := withToken(s.uiRedirect, res.Token)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// consumeState accepts each state once.
func (s *GoogleService) consumeState(ctx context.Context, state string) bool {
	key := oauthStatePrefix + state
	if _, err := s.states.Get(ctx, key); err != nil {
		return false
	}
	_ = s.states.Delete(ctx, key)
	return true
}

type googleProfile struct {
	Sub           string `json:"sub"`
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail *bool  `json:"verified_email"`
	Name          string `json:"name"`
}

func (s *GoogleService) fetchProfile(ctx context.Context, token *oauth2.Token) (googleProfile, error) {
	resp, err := s.oauthConfig.Client(ctx, token).Get(s.userInfoURL)
	if err != nil {
		return googleProfile{}, fmt.Errorf("fetch google profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return googleProfile{}, fmt.Errorf("google profile returned %d", resp.StatusCode)
	}

	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return googleProfile{}, fmt.Errorf("decode google profile: %w", err)
	}
	// The v2 endpoint names the subject "id".
	if p.Sub == "" {
		p.Sub = p.ID
	}
	switch {
	case p.Sub == "":
		return googleProfile{}, errors.New("google profile has no subject")
	case p.Email == "":
		return googleProfile{}, errors.New("google profile has no email")
	case p.VerifiedEmail != nil && !*p.VerifiedEmail:
		return googleProfile{}, errors.New("google email is not verified")
	}
	return p, nil
}

func withToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
