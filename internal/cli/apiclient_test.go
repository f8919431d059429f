package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callcenter-backend/internal/calls"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAPIClientFindByRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"code": "unauthorized", "message": "sign in"}})
			return
		}
		switch r.URL.Path {
		case "/api/v1/calls/by-request/req-1":
			writeJSON(w, http.StatusOK, calls.Call{ID: "call-1", RequestID: "req-1", Language: "tr", Status: calls.StatusCompleted})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]string{"code": "not_found", "message": "call not found"}})
		}
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL+"/api/v1/", "tok")
	ctx := context.Background()

	got, err := client.FindByRequestID(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "call-1", got.ID)

	missing, err := client.FindByRequestID(ctx, "req-2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	client.Token = "wrong"
	_, err = client.FindByRequestID(ctx, "req-1")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "sign in")
}

func TestAPIClientSignInAndSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/signin":
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["password"] != "secret" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"code": "invalid_credentials", "message": "invalid email or password"}})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"token":     "new-token",
				"account":   map[string]string{"id": "acct-1", "email": body["email"]},
				"personnel": map[string]any{"id": "p-1"},
			})
		case "/auth/session":
			writeJSON(w, http.StatusOK, SessionInfo{Authenticated: true, AccountID: "acct-1", PersonnelID: "p-1"})
		case "/auth/signout":
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "")
	ctx := context.Background()

	_, err := client.SignIn(ctx, "a@example.com", "bad")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	res, err := client.SignIn(ctx, "a@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "new-token", res.Token)
	require.NotNil(t, res.Personnel)
	assert.Equal(t, "p-1", res.Personnel.ID)

	info, err := client.Session(ctx)
	require.NoError(t, err)
	assert.True(t, info.Authenticated)

	assert.NoError(t, client.SignOut(ctx))
}

func TestAPIClientListCallsAndStats(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/calls":
			gotQuery = r.URL.RawQuery
			writeJSON(w, http.StatusOK, CallPage{Items: []calls.Call{{ID: "c1"}}, Limit: 20, Count: 1})
		case "/stats":
			writeJSON(w, http.StatusOK, calls.Stats{TotalCalls: 3, AvgScore: 7.5})
		}
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "tok")
	page, err := client.ListCalls(context.Background(), calls.StatusCompleted, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, "limit=20&status=completed", gotQuery)
	assert.Len(t, page.Items, 1)

	st, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalCalls)
}

func TestAPIErrorFallsBackToRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewAPIClient(srv.URL, "").Stats(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "gateway down", apiErr.Message)
}
