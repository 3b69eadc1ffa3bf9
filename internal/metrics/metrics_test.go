package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveHTTP("GET", "/snippets/{id}", 200, 10*time.Millisecond)
	m.ObserveHTTP("GET", "/snippets/{id}", 200, 10*time.Millisecond)
	m.Registration("password")
	m.Login("success")
	m.Login("invalid_credentials")
	m.PasswordReset("requested")
	m.SnippetCreated()
	m.Email("sent")
	m.SetMailQueueLength(3)
	m.Purged("revoked_tokens", 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/snippets/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues("password")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PasswordResetsTotal.WithLabelValues("requested")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnippetsCreatedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmailsTotal.WithLabelValues("sent")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.MailQueueLength))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.PurgedRowsTotal.WithLabelValues("revoked_tokens")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.Registration("github")
		m.Login("success")
		m.PasswordReset("completed")
		m.SnippetCreated()
		m.ObserveHighlight(time.Millisecond)
		m.Email("failed")
		m.SetMailQueueLength(1)
		m.Purged("password_reset_tokens", 1)
	})
}

func TestHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)
	m.SnippetCreated()

	srv := httptest.NewServer(Handler(registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "snippetshare_snippets_created_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
