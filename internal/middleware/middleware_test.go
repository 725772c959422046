package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestTokenBucketRefillsEachSecond(t *testing.T) {
	now := time.Unix(100, 0)
	tb := NewTokenBucket(2)
	tb.now = func() time.Time { return now }
	tb.lastSec = now.Unix()

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	now = now.Add(time.Second)
	assert.True(t, tb.Allow())
}

func TestRateLimitAnswers429(t *testing.T) {
	tb := NewTokenBucket(1)
	fixed := time.Unix(5, 0)
	tb.now = func() time.Time { return fixed }
	tb.lastSec = fixed.Unix()
	h := RateLimit(tb)(ok)

	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("retry-after"))
}

func TestCORS(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		rec := serve(CORS("*")(ok), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "*", rec.Header().Get("access-control-allow-origin"))
	})

	t.Run("list", func(t *testing.T) {
		h := CORS("https://a.example, https://b.example")(ok)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("origin", "https://b.example")
		assert.Equal(t, "https://b.example", serve(h, req).Header().Get("access-control-allow-origin"))

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("origin", "https://evil.example")
		assert.Empty(t, serve(h, req).Header().Get("access-control-allow-origin"))
	})

	t.Run("preflight bypasses rate limit", func(t *testing.T) {
		h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("preflight reached handler")
		}), Options{RateLimit: true, QPS: 1, CORSOrigin: "*"})
		req := httptest.NewRequest(http.MethodOptions, "/ventas/mapa", nil)
		req.Header.Set("access-control-request-method", "GET")
		rec := serve(h, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("access-control-allow-headers"), "x-admin-token")
	})
}

func TestAllowList(t *testing.T) {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := NewAllowList(l, []string{"10.0.0.0/8", "192.168.1.7", "local"}, "X-Forwarded-For")
	require.NoError(t, err)
	h := a.Wrap(ok)

	cases := []struct {
		remote, xff string
		want        int
	}{
		{"10.1.2.3:5000", "", http.StatusOK},
		{"192.168.1.7:80", "", http.StatusOK},
		{"[::1]:9000", "", http.StatusOK},
		{"8.8.8.8:1", "", http.StatusForbidden},
		{"8.8.8.8:1", "10.9.9.9, 8.8.8.8", http.StatusOK},
		{"10.1.2.3:5000", "8.8.4.4", http.StatusForbidden},
		{"garbage", "", http.StatusForbidden},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/reload", nil)
		req.RemoteAddr = c.remote
		if c.xff != "" {
			req.Header.Set("X-Forwarded-For", c.xff)
		}
		assert.Equal(t, c.want, serve(h, req).Code, "%s / %s", c.remote, c.xff)
	}

	_, err = NewAllowList(l, []string{"10.0.0.0/33"}, "")
	assert.Error(t, err)
	_, err = NewAllowList(l, []string{"not-an-ip"}, "")
	assert.Error(t, err)

	empty, err := NewAllowList(l, nil, "")
	require.NoError(t, err)
	assert.True(t, empty.Empty())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "8.8.8.8:1"
	assert.Equal(t, http.StatusOK, serve(empty.Wrap(ok), req).Code)
}
