package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/keygate/internal/config"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
	productdomain "github.com/smallbiznis/keygate/internal/product/domain"
	"github.com/smallbiznis/keygate/internal/ratelimit"
	"github.com/stretchr/testify/require"
)

type fakeLicenseService struct {
	licensedomain.Service

	activateReq  *licensedomain.ActivateRequest
	activateResp *licensedomain.ActivateResponse
	activateErr  error

	statusResp *licensedomain.StatusResponse
	statusErr  error
}

func (f *fakeLicenseService) Activate(ctx context.Context, req licensedomain.ActivateRequest) (*licensedomain.ActivateResponse, error) {
	f.activateReq = &req
	return f.activateResp, f.activateErr
}

func (f *fakeLicenseService) Status(ctx context.Context, req licensedomain.StatusRequest) (*licensedomain.StatusResponse, error) {
	return f.statusResp, f.statusErr
}

func (f *fakeLicenseService) Deactivate(ctx context.Context, req licensedomain.DeactivateRequest) (*licensedomain.DeactivateResponse, error) {
	return &licensedomain.DeactivateResponse{
		LicenseKey:    req.LicenseKey,
		Domain:        req.Domain,
		DeactivatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func newLicenseTestServer(svc licensedomain.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		licenseSvc: svc,
		limiter:    &ratelimit.Limiter{},
	}

	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.POST("/licenses/activate", srv.ActivateLicense)
	r.POST("/licenses/status", srv.LicenseStatus)
	r.POST("/licenses/deactivate", srv.DeactivateLicense)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestActivateLicenseSuccessEnvelope(t *testing.T) {
	activatedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expiresAt := activatedAt.AddDate(0, 0, 365)

	svc := &fakeLicenseService{
		activateResp: &licensedomain.ActivateResponse{
			LicenseKey:             "ABCD-EFGH-1234-5678",
			Domain:                 "example.com",
			ActivatedAt:            &activatedAt,
			ExpiresAt:              &expiresAt,
			DaysRemaining:          365,
			IsNewActivation:        true,
			DomainChangesRemaining: 3,
			Product:                licensedomain.ProductInfo{Name: "Pro Theme", Slug: "pro-theme", Type: string(productdomain.TypeOneTime)},
			Customer:               licensedomain.CustomerInfo{Name: "Jo Diaz", MaskedEmail: "jo***@example.com"},
		},
	}

	r := newLicenseTestServer(svc)
	w := postJSON(t, r, "/licenses/activate", gin.H{
		"license_key":  " ABCD-EFGH-1234-5678 ",
		"product_slug": "pro-theme",
		"domain":       "example.com",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                           `json:"success"`
		Message string                         `json:"message"`
		Data    licensedomain.ActivateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, "License activated successfully", body.Message)
	require.Equal(t, "example.com", body.Data.Domain)
	require.Equal(t, "jo***@example.com", body.Data.Customer.MaskedEmail)

	// The handler trims input and stamps the client IP before the service
	// sees the request.
	require.Equal(t, "ABCD-EFGH-1234-5678", svc.activateReq.LicenseKey)
	require.Equal(t, "203.0.113.7", svc.activateReq.ClientIP)
}

func TestActivateLicenseMalformedBody(t *testing.T) {
	r := newLicenseTestServer(&fakeLicenseService{})

	req := httptest.NewRequest(http.MethodPost, "/licenses/activate", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, CodeInvalidFormat, body.Error.Code)
}

func TestActivateLicenseServiceError(t *testing.T) {
	r := newLicenseTestServer(&fakeLicenseService{
		activateErr: licensedomain.ErrDomainChangeLimitReached,
	})

	w := postJSON(t, r, "/licenses/activate", gin.H{
		"license_key":  "ABCD-EFGH-1234-5678",
		"product_slug": "pro-theme",
		"domain":       "another.com",
	})

	require.Equal(t, http.StatusForbidden, w.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, CodeDomainChangeLimitExceeded, body.Error.Code)
}

func TestActivateLockoutSharedAcrossKeyCasings(t *testing.T) {
	gin.SetMode(gin.TestMode)

	redisSrv := miniredis.RunT(t)
	cfg := config.Config{}
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RedisAddr = redisSrv.Addr()

	holder, err := config.NewRateLimitPolicyHolder()
	require.NoError(t, err)
	limiter, err := ratelimit.NewLimiter(cfg, holder, nil)
	require.NoError(t, err)

	svc := &fakeLicenseService{activateErr: licensedomain.ErrLicenseNotFound}
	srv := &Server{licenseSvc: svc, limiter: limiter}
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.POST("/licenses/activate", srv.ActivateLicense)

	activate := func(key string) *httptest.ResponseRecorder {
		return postJSON(t, r, "/licenses/activate", gin.H{
			"license_key":  key,
			"product_slug": "pro-theme",
			"domain":       "example.com",
		})
	}

	// Casing variants of one key must feed a single failure counter, so
	// alternating them still trips the lockout at the threshold.
	casings := []string{
		"abcd-efgh-1234-5678",
		"ABCD-EFGH-1234-5678",
		"Abcd-Efgh-1234-5678",
		"abcd-EFGH-1234-5678",
	}
	threshold := holder.Get().Attempts.Threshold
	for i := 0; i < threshold; i++ {
		w := activate(casings[i%len(casings)])
		require.Equal(t, http.StatusNotFound, w.Code, "attempt %d", i+1)
	}

	// Locked out now, under every casing.
	for _, key := range casings {
		w := activate(key)
		require.Equal(t, http.StatusTooManyRequests, w.Code, "key %q", key)
		require.NotEmpty(t, w.Header().Get("Retry-After"))

		var body errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, CodeRateLimited, body.Error.Code)
	}
}

func TestLicenseStatusReturnsSnapshot(t *testing.T) {
	domain := "example.com"
	svc := &fakeLicenseService{
		statusResp: &licensedomain.StatusResponse{
			LicenseKey:   "ABCD-EFGH-1234-5678",
			Status:       licensedomain.StatusActive,
			ActiveDomain: &domain,
		},
	}

	r := newLicenseTestServer(svc)
	w := postJSON(t, r, "/licenses/status", gin.H{
		"license_key":  "ABCD-EFGH-1234-5678",
		"product_slug": "pro-theme",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                         `json:"success"`
		Data    licensedomain.StatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, licensedomain.StatusActive, body.Data.Status)
	require.Equal(t, "example.com", *body.Data.ActiveDomain)
}

func TestDeactivateLicense(t *testing.T) {
	r := newLicenseTestServer(&fakeLicenseService{})
	w := postJSON(t, r, "/licenses/deactivate", gin.H{
		"license_key":  "ABCD-EFGH-1234-5678",
		"product_slug": "pro-theme",
		"domain":       "example.com",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                             `json:"success"`
		Data    licensedomain.DeactivateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, "example.com", body.Data.Domain)
}
