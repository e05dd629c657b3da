package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
)

// ActivateLicense is the hot path: bind the license key to the caller's
// domain. Failures that reveal key validity feed the brute-force tracker;
// a successful activation clears it.
func (s *Server) ActivateLicense(c *gin.Context) {
	var req licensedomain.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}
	req.LicenseKey = strings.TrimSpace(req.LicenseKey)
	req.ProductSlug = strings.TrimSpace(req.ProductSlug)
	req.Domain = strings.TrimSpace(req.Domain)
	req.ClientIP = clientIP(c)

	// The tracker keys on the canonical key form so casing variants of the
	// same key share one counter and one lockout. Keys that do not even
	// normalize are not probing signals and are never tracked.
	trackKey, normErr := licensedomain.NormalizeLicenseKey(req.LicenseKey)
	if normErr != nil {
		trackKey = ""
	}

	ctx := c.Request.Context()
	if trackKey != "" {
		if lock := s.limiter.KeyLocked(ctx, trackKey); !lock.Allowed {
			tooManyRequests(c, lock)
			return
		}
	}

	resp, err := s.licenseSvc.Activate(ctx, req)
	if err != nil {
		s.recordActivationFailure(c, trackKey, err)
		AbortWithError(c, err)
		return
	}

	if trackKey != "" {
		s.limiter.ResetAttempts(ctx, trackKey)
	}
	respondOKWithMessage(c, "License activated successfully", resp)
}

func (s *Server) LicenseStatus(c *gin.Context) {
	var req licensedomain.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}
	req.LicenseKey = strings.TrimSpace(req.LicenseKey)
	req.ProductSlug = strings.TrimSpace(req.ProductSlug)

	resp, err := s.licenseSvc.Status(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) DeactivateLicense(c *gin.Context) {
	var req licensedomain.DeactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}
	req.LicenseKey = strings.TrimSpace(req.LicenseKey)
	req.ProductSlug = strings.TrimSpace(req.ProductSlug)
	req.Domain = strings.TrimSpace(req.Domain)

	resp, err := s.licenseSvc.Deactivate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOKWithMessage(c, "License deactivated successfully", resp)
}

// recordActivationFailure counts only the failures a key-guessing attacker
// would produce. Format errors and limit exhaustion are not probing signals.
func (s *Server) recordActivationFailure(c *gin.Context, licenseKey string, err error) {
	if licenseKey == "" {
		return
	}
	switch {
	case errors.Is(err, licensedomain.ErrLicenseNotFound):
		s.limiter.RecordFailedAttempt(c.Request.Context(), licenseKey, CodeLicenseNotFound)
	case errors.Is(err, licensedomain.ErrProductNotFound):
		s.limiter.RecordFailedAttempt(c.Request.Context(), licenseKey, CodeProductNotFound)
	case errors.Is(err, licensedomain.ErrLicenseRevoked):
		s.limiter.RecordFailedAttempt(c.Request.Context(), licenseKey, CodeLicenseRevoked)
	}
}
