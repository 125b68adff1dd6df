package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sammcj/pdfmaster/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec, _ := serve(t, s, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))

	rec, _ = serve(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.AuthToken = "s3cret" })

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing token", "/api/status", "", http.StatusUnauthorized},
		{"wrong token", "/api/status", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "/api/status", "Basic s3cret", http.StatusUnauthorized},
		{"valid token", "/api/status", "Bearer s3cret", http.StatusOK},
		{"health is public", "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec, env := serve(t, s, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "Authentication required", env.Message)
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.RateLimit = 1
		c.RateBurst = 1
	})

	rec, _ := serve(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := serve(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", env.Message)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestClientLimitersEvictIdleClients(t *testing.T) {
	l := newClientLimiters(1, 1)
	now := time.Now()

	assert.True(t, l.allow("a", now))
	assert.False(t, l.allow("a", now))
	assert.True(t, l.allow("b", now))

	later := now.Add(limiterIdle + time.Minute)
	assert.True(t, l.allow("c", later))
	assert.NotContains(t, l.clients, "a")
	assert.NotContains(t, l.clients, "b")
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.MaxFileSizeMB = 1 })

	body := bytes.Repeat([]byte("x"), int(s.cfg.MaxRequestSize())+1)
	req := httptest.NewRequest(http.MethodPost, "/api/pdf/merge", bytes.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")

	rec, env := serve(t, s, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, tooLargeMessage, env.Message)
}

func TestRecoveryMasksPanics(t *testing.T) {
	s := newTestServer(t)
	s.engine.GET("/boom", func(*gin.Context) { panic("secret detail") })

	rec, env := serve(t, s, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Internal server error", *env.Error)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.CORSOrigins = []string{"http://localhost:3000"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/pdf/merge", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec, _ := serve(t, s, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
