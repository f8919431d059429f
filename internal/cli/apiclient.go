package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"callcenter-backend/internal/auth"
	"callcenter-backend/internal/calls"
)

const defaultAPITimeout = 15 * time.Second

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// APIClient talks to the backend's /api/v1 surface with a bearer token.
type APIClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: defaultAPITimeout},
	}
}

// SessionInfo mirrors GET /auth/session.
type SessionInfo struct {
	Authenticated bool   `json:"authenticated"`
	AccountID     string `json:"accountId,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	PersonnelID   string `json:"personnelId,omitempty"`
	Manager       bool   `json:"manager,omitempty"`
}

// CallPage mirrors the paged list envelope.
type CallPage struct {
	Items  []calls.Call `json:"items"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
	Count  int          `json:"count"`
}

func (c *APIClient) SignIn(ctx context.Context, email, password string) (auth.Result, error) {
	var res auth.Result
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", body, &res); err != nil {
		return auth.Result{}, err
	}
	return res, nil
}

func (c *APIClient) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/signout", nil, nil)
}

func (c *APIClient) Session(ctx context.Context) (SessionInfo, error) {
	var info SessionInfo
	err := c.do(ctx, http.MethodGet, "/auth/session", nil, &info)
	return info, err
}

// FindByRequestID returns (nil, nil) when the record does not exist yet, so
// it can serve as a reconciler.Finder.
func (c *APIClient) FindByRequestID(ctx context.Context, requestID string) (*calls.Call, error) {
	var call calls.Call
	err := c.do(ctx, http.MethodGet, "/calls/by-request/"+url.PathEscape(requestID), nil, &call)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &call, nil
}

func (c *APIClient) ListCalls(ctx context.Context, status calls.Status, limit, offset int) (CallPage, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprint(offset))
	}
	path := "/calls"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page CallPage
	err := c.do(ctx, http.MethodGet, path, nil, &page)
	return page, err
}

func (c *APIClient) Stats(ctx context.Context) (calls.Stats, error) {
	var st calls.Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, &st)
	return st, err
}

func (c *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
