// Package e2e drives the assembled HTTP surface against an in-memory
// database: real services, real repositories, real middleware, no fakes
// apart from the clock and the disabled redis limiter.
package e2e

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/keygate/internal/adminauth"
	"github.com/smallbiznis/keygate/internal/authorization"
	"github.com/smallbiznis/keygate/internal/clock"
	"github.com/smallbiznis/keygate/internal/config"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
	licenserepo "github.com/smallbiznis/keygate/internal/license/repository"
	licenseservice "github.com/smallbiznis/keygate/internal/license/service"
	"github.com/smallbiznis/keygate/internal/payment/adapters"
	"github.com/smallbiznis/keygate/internal/payment/adapters/stripe"
	paymentrepo "github.com/smallbiznis/keygate/internal/payment/repository"
	paymentservice "github.com/smallbiznis/keygate/internal/payment/service"
	productrepo "github.com/smallbiznis/keygate/internal/product/repository"
	productservice "github.com/smallbiznis/keygate/internal/product/service"
	"github.com/smallbiznis/keygate/internal/ratelimit"
	"github.com/smallbiznis/keygate/internal/server"
	subscriptiondomain "github.com/smallbiznis/keygate/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/keygate/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/keygate/internal/subscription/service"
	uploadrepo "github.com/smallbiznis/keygate/internal/upload/repository"
	uploadservice "github.com/smallbiznis/keygate/internal/upload/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	adminKey      = "e2e-admin-key"
	webhookSecret = "whsec_e2e"
)

type stack struct {
	engine *gin.Engine
	db     *gorm.DB
	clock  *clock.FakeClock
	subs   subscriptiondomain.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := newTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Config{
		AdminKeyHash:        string(hash),
		StripeWebhookSecret: webhookSecret,
	}

	prodRepo := productrepo.Provide()
	licRepo := licenserepo.Provide()

	licenseSvc := licenseservice.New(licenseservice.Params{
		DB:          conn,
		Log:         log,
		GenID:       node,
		Clock:       fakeClock,
		Repo:        licRepo,
		ProductRepo: prodRepo,
	})

	productSvc := productservice.New(productservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
		Repo:  prodRepo,
	})

	uploadSvc := uploadservice.New(uploadservice.Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Clock:    fakeClock,
		Repo:     uploadrepo.Provide(conn),
		Licenses: licenseSvc,
	})

	subscriptionSvc := subscriptionservice.New(subscriptionservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
		Repo:  subscriptionrepo.Provide(),
	})

	paymentSvc := paymentservice.New(paymentservice.Params{
		DB:            conn,
		Log:           log,
		Config:        cfg,
		GenID:         node,
		Clock:         fakeClock,
		Registry:      adapters.NewRegistry(stripe.NewFactory()),
		Repo:          paymentrepo.Provide(),
		Subscriptions: subscriptionSvc,
		Licenses:      licenseSvc,
	})

	adminAuth := adminauth.New(adminauth.Params{
		DB:     conn,
		Log:    log,
		Config: cfg,
		GenID:  node,
		Clock:  fakeClock,
	})

	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authzSvc := authorization.NewService(authorization.Params{
		Log:      log,
		Enforcer: enforcer,
	})

	engine := gin.New()
	engine.Use(server.ErrorHandlingMiddleware())

	server.NewServer(server.ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		DB:         conn,
		GenID:      node,
		LicenseSvc: licenseSvc,
		ProductSvc: productSvc,
		UploadSvc:  uploadSvc,
		PaymentSvc: paymentSvc,
		AdminAuth:  adminAuth,
		AuthzSvc:   authzSvc,
		Limiter:    &ratelimit.Limiter{},
	})

	return &stack{engine: engine, db: conn, clock: fakeClock, subs: subscriptionSvc}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	// SQLite support hack: remove FOR UPDATE clauses
	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	conn.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate)
	conn.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ddl := []string{
		`CREATE TABLE products (
			id INTEGER PRIMARY KEY,
			slug TEXT UNIQUE,
			name TEXT,
			description TEXT,
			type TEXT,
			active BOOLEAN,
			metadata TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE licenses (
			id INTEGER PRIMARY KEY,
			key TEXT UNIQUE,
			product_id INTEGER,
			subscription_id INTEGER,
			customer_name TEXT,
			customer_email TEXT,
			status TEXT,
			validity_days INTEGER,
			activated_at DATETIME,
			expires_at DATETIME,
			max_domain_changes INTEGER,
			domain_changes_used INTEGER,
			notes TEXT,
			metadata TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE activations (
			id INTEGER PRIMARY KEY,
			license_id INTEGER,
			domain TEXT,
			ip_address TEXT,
			is_active BOOLEAN,
			activated_at DATETIME,
			deactivated_at DATETIME,
			deactivation_reason TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE UNIQUE INDEX ux_activations_one_active
			ON activations (license_id) WHERE is_active`,
		`CREATE TABLE subscriptions (
			id INTEGER PRIMARY KEY,
			provider TEXT,
			provider_subscription_id TEXT,
			customer_email TEXT,
			status TEXT,
			current_period_end DATETIME,
			canceled_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME,
			UNIQUE (provider, provider_subscription_id)
		)`,
		`CREATE TABLE payment_events (
			id INTEGER PRIMARY KEY,
			provider TEXT,
			provider_event_id TEXT,
			event_type TEXT,
			payload TEXT,
			received_at DATETIME,
			processed_at DATETIME,
			UNIQUE (provider, provider_event_id)
		)`,
		`CREATE TABLE csv_uploads (
			id INTEGER PRIMARY KEY,
			license_id INTEGER,
			domain TEXT,
			file_name TEXT,
			status TEXT,
			credential TEXT UNIQUE,
			credential_expires_at DATETIME,
			row_count INTEGER,
			error_message TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE admin_keys (
			id INTEGER PRIMARY KEY,
			name TEXT,
			key_id TEXT UNIQUE,
			key_hash TEXT,
			role TEXT,
			active BOOLEAN,
			last_used_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, conn.Exec(stmt).Error)
	}

	return conn
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *stack) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if len(w.Body.Bytes()) > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, &env
}

func (s *stack) asAdmin(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, *envelope) {
	return s.do(t, method, path, body, map[string]string{
		"Authorization": "Bearer " + adminKey,
	})
}

func decodeData(t *testing.T, env *envelope, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func (s *stack) createProduct(t *testing.T, name string) string {
	t.Helper()
	w, env := s.asAdmin(t, http.MethodPost, "/admin/products", gin.H{
		"name": name,
		"type": "one_time",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var product struct {
		Slug string `json:"slug"`
	}
	decodeData(t, env, &product)
	return product.Slug
}

func (s *stack) createLicense(t *testing.T, productSlug string, maxChanges int, extra gin.H) licensedomain.AdminLicense {
	t.Helper()
	body := gin.H{
		"product_slug":       productSlug,
		"customer_name":      "Jo Diaz",
		"customer_email":     "jo@example.com",
		"validity_days":      365,
		"max_domain_changes": maxChanges,
	}
	for k, v := range extra {
		body[k] = v
	}
	w, env := s.asAdmin(t, http.MethodPost, "/admin/licenses", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var license licensedomain.AdminLicense
	decodeData(t, env, &license)
	require.NotEmpty(t, license.Key)
	return license
}

func TestLicenseLifecycleOverHTTP(t *testing.T) {
	s := newStack(t)

	slug := s.createProduct(t, "Pro Theme")
	require.Equal(t, "pro-theme", slug)
	license := s.createLicense(t, slug, 1, nil)

	// First activation binds the domain without consuming a change credit.
	w, env := s.do(t, http.MethodPost, "/licenses/activate", gin.H{
		"license_key":  license.Key,
		"product_slug": slug,
		"domain":       "example.com",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, env.Success)

	var activation struct {
		Domain                 string `json:"domain"`
		IsNewActivation        bool   `json:"is_new_activation"`
		DomainChangesRemaining int    `json:"domain_changes_remaining"`
		Customer               struct {
			MaskedEmail string `json:"masked_email"`
		} `json:"customer"`
	}
	decodeData(t, env, &activation)
	require.True(t, activation.IsNewActivation)
	require.Equal(t, 1, activation.DomainChangesRemaining)
	require.Equal(t, "jo***@example.com", activation.Customer.MaskedEmail)

	// Same domain again is idempotent.
	w, env = s.do(t, http.MethodPost, "/licenses/activate", gin.H{
		"license_key":  license.Key,
		"product_slug": slug,
		"domain":       "example.com",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, env, &activation)
	require.False(t, activation.IsNewActivation)
	require.Equal(t, 1, activation.DomainChangesRemaining)

	// Moving to a new domain consumes the single credit.
	w, env = s.do(t, http.MethodPost, "/licenses/activate", gin.H{
		"license_key":  license.Key,
		"product_slug": slug,
		"domain":       "another.com",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, env, &activation)
	require.Equal(t, "another.com", activation.Domain)
	require.Equal(t, 0, activation.DomainChangesRemaining)

	// A third domain is out of budget.
	w, env = s.do(t, http.MethodPost, "/licenses/activate", gin.H{
		"license_key":  license.Key,
		"product_slug": slug,
		"domain":       "third.com",
	}, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "DOMAIN_CHANGE_LIMIT_EXCEEDED", env.Error.Code)

	// Status reflects the current binding.
	w, env = s.do(t, http.MethodPost, "/licenses/status", gin.H{
		"license_key":  license.Key,
		"product_slug": slug,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status struct {
		Status            string  `json:"status"`
		ActiveDomain      *string `json:"active_domain"`
		DomainChangesUsed int     `json:"domain_changes_used"`
	}
	decodeData(t, env, &status)
	require.Equal(t, "active", status.Status)
	require.NotNil(t, status.ActiveDomain)
	require.Equal(t, "another.com", *status.ActiveDomain)
	require.Equal(t, 1, status.DomainChangesUsed)

	// Upload credentials require the live binding.
	w, env = s.do(t, http.MethodPost, "/csv-upload/issue", gin.H{
		"license_key":  license.Key,
		"product_slug": slug,
		"domain":       "another.com",
		"file_name":    "contacts.csv",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var credential struct {
		Credential string `json:"credential"`
	}
	decodeData(t, env, &credential)
	require.NotEmpty(t, credential.Credential)

	w, env = s.do(t, http.MethodGet,
		fmt.Sprintf("/csv-upload/list?license_key=%s&product_slug=%s&domain=another.com", license.Key, slug),
		nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var uploads struct {
		Items      []json.RawMessage `json:"items"`
		TotalItems int64             `json:"total_items"`
	}
	decodeData(t, env, &uploads)
	require.Len(t, uploads.Items, 1)

	// Release the binding, then resume on the same domain without spending
	// another credit.
	w, _ = s.do(t, http.MethodPost, "/licenses/deactivate", gin.H{
		"license_key":  license.Key,
		"product_slug": slug,
		"domain":       "another.com",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodPost, "/licenses/activate", gin.H{
		"license_key":  license.Key,
		"product_slug": slug,
		"domain":       "another.com",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, env, &activation)
	require.True(t, activation.IsNewActivation)
	require.Equal(t, 0, activation.DomainChangesRemaining)

	// Revocation is terminal for the public surface.
	w, _ = s.asAdmin(t, http.MethodPost, "/admin/licenses/"+license.ID+"/revoke", gin.H{
		"reason": "refund issued",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(t, http.MethodPost, "/licenses/activate", gin.H{
		"license_key":  license.Key,
		"product_slug": slug,
		"domain":       "another.com",
	}, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "LICENSE_REVOKED", env.Error.Code)
}

func TestAdminSurfaceRequiresAuth(t *testing.T) {
	s := newStack(t)

	w, env := s.do(t, http.MethodGet, "/admin/licenses", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, env = s.do(t, http.MethodGet, "/admin/licenses", nil, map[string]string{
		"Authorization": "Bearer wrong-key",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, _ = s.asAdmin(t, http.MethodGet, "/admin/licenses", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func signStripePayload(payload []byte) string {
	ts := "1767225600"
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func (s *stack) postWebhook(t *testing.T, payload []byte, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if sign {
		req.Header.Set("Stripe-Signature", signStripePayload(payload))
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestStripeWebhookDrivesLicenseLifecycle(t *testing.T) {
	s := newStack(t)
	ctx := t.Context()

	slug := s.createProduct(t, "Pro Theme")

	started := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.created",
		"created": 1767225600,
		"data": {"object": {"id": "sub_123", "status": "active", "customer_email": "jo@example.com"}}
	}`)

	// Unsigned deliveries are rejected outright.
	w := s.postWebhook(t, started, false)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.postWebhook(t, started, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sub, err := s.subs.FindByProviderRef(ctx, "stripe", "sub_123")
	require.NoError(t, err)
	require.Equal(t, subscriptiondomain.StatusActive, sub.Status)

	license := s.createLicense(t, slug, 3, gin.H{"subscription_id": sub.ID.String()})

	// A successful renewal invoice pushes expiry to the new period end.
	periodEnd := s.clock.Now().AddDate(0, 1, 0).Unix()
	renewal := []byte(fmt.Sprintf(`{
		"id": "evt_2",
		"type": "invoice.payment_succeeded",
		"created": 1767225600,
		"data": {"object": {"id": "in_1", "subscription": "sub_123", "customer_email": "jo@example.com", "period_end": %d}}
	}`, periodEnd))

	w = s.postWebhook(t, renewal, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated, env := s.asAdmin(t, http.MethodGet, "/admin/licenses/"+license.ID, nil)
	require.Equal(t, http.StatusOK, updated.Code)
	var adminView licensedomain.AdminLicense
	decodeData(t, env, &adminView)
	require.NotNil(t, adminView.ExpiresAt)
	require.Equal(t, time.Unix(periodEnd, 0).UTC(), adminView.ExpiresAt.UTC())

	// Redelivery of the same event id is acked and applied once.
	w = s.postWebhook(t, renewal, true)
	require.Equal(t, http.StatusOK, w.Code)

	// Cancellation revokes the linked license.
	canceled := []byte(`{
		"id": "evt_3",
		"type": "customer.subscription.deleted",
		"created": 1767225600,
		"data": {"object": {"id": "sub_123", "status": "canceled", "customer_email": "jo@example.com"}}
	}`)
	w = s.postWebhook(t, canceled, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	revoked, env := s.asAdmin(t, http.MethodGet, "/admin/licenses/"+license.ID, nil)
	require.Equal(t, http.StatusOK, revoked.Code)
	decodeData(t, env, &adminView)
	require.Equal(t, licensedomain.StatusRevoked, adminView.Status)
}
