package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/keygate/internal/adminauth"
	"github.com/smallbiznis/keygate/internal/ratelimit"
)

const (
	contextAdminSubjectKey = "admin_subject"
	contextAdminRoleKey    = "admin_role"
)

// clientIP resolves the caller identity used for rate limiting. The service
// runs behind a trusted proxy, so X-Forwarded-For takes precedence; the
// first entry is the original client.
func clientIP(c *gin.Context) string {
	if fwd := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		if ip := strings.TrimSpace(fwd); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	return "unknown"
}

// RateLimited enforces the per-IP request budget for the given class.
// Budget headers go out on every response so well-behaved clients can pace
// themselves before hitting the limit.
func (s *Server) RateLimited(class ratelimit.Class) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := s.limiter.AllowRequest(c.Request.Context(), clientIP(c), class)
		if res == nil {
			c.Next()
			return
		}

		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(maxInt(res.Remaining, 0)))
			if !res.ResetAt.IsZero() {
				c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			}
		}

		if !res.Allowed {
			tooManyRequests(c, res)
			return
		}

		c.Next()
	}
}

func tooManyRequests(c *gin.Context, res *ratelimit.Result) {
	retryAfter := int(res.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
		Success: false,
		Error: errorPayload{
			Code:    CodeRateLimited,
			Message: "too many requests, slow down",
		},
	})
}

// AdminRequired authenticates the admin key from the Authorization header
// and authorizes the resolved role against the requested object/action.
func (s *Server) AdminRequired(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, adminauth.ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, adminauth.ErrUnauthorized)
			return
		}

		identity, err := s.adminAuth.Verify(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		if err := s.authzSvc.Authorize(c.Request.Context(), identity.Subject, identity.Role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextAdminSubjectKey, identity.Subject)
		c.Set(contextAdminRoleKey, identity.Role)
		c.Next()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
