package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHubAuthURL(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost:8000/auth/github/callback")

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
	assert.Contains(t, u.Query().Get("scope"), "user:email")
}

func TestGitHubFetchUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 42, "login": "octocat", "name": "Mona", "email": "public@example.com"}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "Mona@Example.com", "primary": true, "verified": true}
		]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGitHubProvider("id", "secret", "cb")
	p.apiBase = srv.URL

	u, err := p.fetchUser(context.Background(), srv.Client())
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "octocat", u.Login)
	assert.Equal(t, "mona@example.com", u.Email, "primary verified address wins over the public one")
}

func TestGitHubFetchUser_NoVerifiedEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 7, "login": "ghost", "email": "unverified@example.com"}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGitHubProvider("id", "secret", "cb")
	p.apiBase = srv.URL

	u, err := p.fetchUser(context.Background(), srv.Client())
	require.NoError(t, err)
	assert.Empty(t, u.Email)
}

func TestGitHubFetchUser_BadProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 0}`))
	}))
	defer srv.Close()

	p := NewGitHubProvider("id", "secret", "cb")
	p.apiBase = srv.URL

	_, err := p.fetchUser(context.Background(), srv.Client())
	assert.Error(t, err)
}
