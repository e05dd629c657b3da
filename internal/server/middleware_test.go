package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/keygate/internal/ratelimit"
	"github.com/stretchr/testify/require"
)

func TestClientIPPrecedence(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "forwarded-for wins",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1", "X-Real-IP": "198.51.100.2"},
			want:    "203.0.113.7",
		},
		{
			name:    "forwarded-for single entry",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:    "203.0.113.7",
		},
		{
			name:    "real-ip fallback",
			headers: map[string]string{"X-Real-IP": "198.51.100.2"},
			want:    "198.51.100.2",
		},
		{
			name:    "empty forwarded-for falls through",
			headers: map[string]string{"X-Forwarded-For": " ", "X-Real-IP": "198.51.100.2"},
			want:    "198.51.100.2",
		},
		{
			name: "no headers",
			want: "unknown",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/licenses/activate", nil)
			for k, v := range tc.headers {
				c.Request.Header.Set(k, v)
			}
			require.Equal(t, tc.want, clientIP(c))
		})
	}
}

func TestTooManyRequestsEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/licenses/activate", nil)

	tooManyRequests(c, &ratelimit.Result{
		Allowed:    false,
		RetryAfter: 42 * time.Second,
	})

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "42", w.Header().Get("Retry-After"))

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, CodeRateLimited, body.Error.Code)
}

func TestTooManyRequestsMinimumRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/licenses/status", nil)

	tooManyRequests(c, &ratelimit.Result{Allowed: false})

	require.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimitedPassesWhenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := &Server{limiter: &ratelimit.Limiter{}}
	r := gin.New()
	r.POST("/licenses/status", srv.RateLimited(ratelimit.ClassGeneral), func(c *gin.Context) {
		respondOK(c, gin.H{})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/licenses/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}
