package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/service"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"validation", apperror.ValidationFailed("title", "too long"), http.StatusBadRequest, "validation_error"},
		{"not found", apperror.NotFound("snippet", "abc"), http.StatusNotFound, "not_found"},
		{"wrapped not found", fmt.Errorf("loading: %w", apperror.NotFound("snippet", "abc")), http.StatusNotFound, "not_found"},
		{"unauthorized", apperror.Unauthorized("Invalid credentials"), http.StatusUnauthorized, "unauthorized"},
		{"forbidden", apperror.Forbidden("User account is disabled."), http.StatusForbidden, "forbidden"},
		{"conflict", apperror.Conflict("user", "alice"), http.StatusConflict, "conflict"},
		{"unknown", errors.New("database is locked"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body.Error)
			assert.NotContains(t, body.Message, "database is locked", "internal details must not leak")
		})
	}
}

func TestWriteError_DetailAndCode(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperror.Unauthorized("Token is invalid or expired").WithCode("token_not_valid"))

	assert.Equal(t, `Bearer realm="api"`, rec.Header().Get("WWW-Authenticate"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "token_not_valid", body.Code)

	rec = httptest.NewRecorder()
	writeError(rec, apperror.ValidationFields(map[string][]string{"email": {"Enter a valid email address."}}))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Enter a valid email address."}, body.Detail["email"])
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, decodeJSON(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "x", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	assert.NoError(t, decodeJSON(httptest.NewRecorder(), req, &dst), "an empty body is allowed")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	err := decodeJSON(httptest.NewRecorder(), req, &dst)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	big := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	err = decodeJSON(httptest.NewRecorder(), req, &dst)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestAbsoluteURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/snippets", nil)
	req.Host = "api.test"
	assert.Equal(t, "http://api.test/snippets/1", absoluteURL(req, "/snippets/1"))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://api.test/snippets/1", absoluteURL(req, "/snippets/1"))
}

func TestPageRequest(t *testing.T) {
	parse := func(query string) (service.PageRequest, error) {
		return pageRequest(httptest.NewRequest(http.MethodGet, "/snippets?"+query, nil))
	}

	pr, err := parse("")
	require.NoError(t, err)
	assert.Equal(t, service.PageRequest{Page: 1}, pr)

	pr, err = parse("page=3&page_size=25")
	require.NoError(t, err)
	assert.Equal(t, service.PageRequest{Page: 3, PageSize: 25}, pr)

	pr, err = parse("page_size=lots")
	require.NoError(t, err)
	assert.Zero(t, pr.PageSize, "a bad page_size falls back to the default")

	for _, bad := range []string{"page=0", "page=-1", "page=last", "page=9223372036854775807", "page=99999999999999999999"} {
		_, err := parse(bad)
		assert.ErrorIs(t, err, apperror.ErrNotFound, bad)
	}
}

func TestPageLink(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/snippets?page=2&language=go", nil)

	assert.Equal(t, "http://example.com/snippets?language=go&page=3", pageLink(req, 3))
	assert.Equal(t, "http://example.com/snippets?language=go", pageLink(req, 1))
}

func TestParseFilterTime(t *testing.T) {
	got, ok := parseFilterTime("2025-01-31", true)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 31, 23, 59, 59, 999999999, time.UTC), got)

	got, ok = parseFilterTime("2025-01-31", false)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), got)

	got, ok = parseFilterTime("2025-01-31T10:00:00+02:00", false)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC), got)

	_, ok = parseFilterTime("yesterday", false)
	assert.False(t, ok)
}

func TestHealth(t *testing.T) {
	healthy := NewHealthHandler(map[string]Check{
		"database": func(_ context.Context) error { return nil },
	}, discardLogger())
	rec := httptest.NewRecorder()
	healthy.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	broken := NewHealthHandler(map[string]Check{
		"database": func(_ context.Context) error { return nil },
		"redis":    func(_ context.Context) error { return errors.New("connection refused") },
	}, discardLogger())
	rec = httptest.NewRecorder()
	broken.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, map[string]string{"database": "ok", "redis": "unavailable"}, body.Checks)
}
