package domain

import (
	"context"
	"time"

	productdomain "github.com/smallbiznis/keygate/internal/product/domain"
	"github.com/smallbiznis/keygate/pkg/db/pagination"
)

// Service is the activation state machine plus the admin license surface.
type Service interface {
	// Activate binds the license to a domain, creating the first activation,
	// confirming an existing one idempotently, or performing a domain change
	// that consumes one credit. The whole transition is one transaction.
	Activate(ctx context.Context, req ActivateRequest) (*ActivateResponse, error)
	// Status returns the current snapshot. A read may lazily flip a
	// time-expired license from active to expired and persists that flip.
	Status(ctx context.Context, req StatusRequest) (*StatusResponse, error)
	// Deactivate soft-releases the active binding for the given domain. It
	// does not refund a domain-change credit.
	Deactivate(ctx context.Context, req DeactivateRequest) (*DeactivateResponse, error)

	// ValidatePrerequisites runs the shared existence/ownership/usability
	// check without side effects; callers decide whether a failure counts as
	// a brute-force attempt.
	ValidatePrerequisites(ctx context.Context, licenseKey, productSlug string) (*License, *productdomain.Product, error)

	Create(ctx context.Context, req CreateRequest) (*AdminLicense, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, id string) (*AdminLicense, error)
	Update(ctx context.Context, req UpdateRequest) (*AdminLicense, error)
	Revoke(ctx context.Context, id string, reason string) (*AdminLicense, error)

	// ExtendBySubscription pushes expiry forward on renewal;
	// RevokeBySubscription is the cancellation path. Both are driven by the
	// payment webhook boundary.
	ExtendBySubscription(ctx context.Context, subscriptionID string, periodEnd time.Time) error
	RevokeBySubscription(ctx context.Context, subscriptionID string, reason string) error
}

type ActivateRequest struct {
	LicenseKey  string `json:"license_key"`
	ProductSlug string `json:"product_slug"`
	Domain      string `json:"domain"`
	ClientIP    string `json:"-"`
}

type ProductInfo struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Type string `json:"type"`
}

type CustomerInfo struct {
	Name        string `json:"name"`
	MaskedEmail string `json:"masked_email"`
}

type ActivateResponse struct {
	LicenseKey             string      `json:"license_key"`
	Domain                 string      `json:"domain"`
	ActivatedAt            *time.Time  `json:"activated_at"`
	ExpiresAt              *time.Time  `json:"expires_at"`
	DaysRemaining          int         `json:"days_remaining"`
	IsNewActivation        bool        `json:"is_new_activation"`
	DomainChangesRemaining int         `json:"domain_changes_remaining"`
	Product                ProductInfo `json:"product"`
	Customer               CustomerInfo `json:"customer"`
}

type StatusRequest struct {
	LicenseKey  string `json:"license_key"`
	ProductSlug string `json:"product_slug"`
}

type StatusResponse struct {
	LicenseKey             string       `json:"license_key"`
	Status                 Status       `json:"status"`
	ActiveDomain           *string      `json:"active_domain"`
	ActivatedAt            *time.Time   `json:"activated_at"`
	ExpiresAt              *time.Time   `json:"expires_at"`
	DaysRemaining          int          `json:"days_remaining"`
	ValidityDays           int          `json:"validity_days"`
	MaxDomainChanges       int          `json:"max_domain_changes"`
	DomainChangesUsed      int          `json:"domain_changes_used"`
	DomainChangesRemaining int          `json:"domain_changes_remaining"`
	Product                ProductInfo  `json:"product"`
	Customer               CustomerInfo `json:"customer"`
}

type DeactivateRequest struct {
	LicenseKey  string  `json:"license_key"`
	ProductSlug string  `json:"product_slug"`
	Domain      string  `json:"domain"`
	Reason      *string `json:"reason"`
}

type DeactivateResponse struct {
	LicenseKey    string    `json:"license_key"`
	Domain        string    `json:"domain"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}

type CreateRequest struct {
	ProductSlug      string         `json:"product_slug"`
	CustomerName     string         `json:"customer_name"`
	CustomerEmail    string         `json:"customer_email"`
	ValidityDays     int            `json:"validity_days"`
	MaxDomainChanges int            `json:"max_domain_changes"`
	Notes            *string        `json:"notes"`
	Metadata         map[string]any `json:"metadata"`
	SubscriptionID   *string        `json:"subscription_id"`
}

// AdminLicense is the admin-surface view; unlike the public responses it
// carries the raw customer email.
type AdminLicense struct {
	ID                string         `json:"id"`
	Key               string         `json:"key"`
	ProductSlug       string         `json:"product_slug"`
	CustomerName      string         `json:"customer_name"`
	CustomerEmail     string         `json:"customer_email"`
	Status            Status         `json:"status"`
	ValidityDays      int            `json:"validity_days"`
	ActivatedAt       *time.Time     `json:"activated_at"`
	ExpiresAt         *time.Time     `json:"expires_at"`
	MaxDomainChanges  int            `json:"max_domain_changes"`
	DomainChangesUsed int            `json:"domain_changes_used"`
	Notes             *string        `json:"notes,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	Activations       []ActivationView `json:"activations,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type ActivationView struct {
	ID                 string     `json:"id"`
	Domain             string     `json:"domain"`
	IPAddress          string     `json:"ip_address"`
	IsActive           bool       `json:"is_active"`
	ActivatedAt        time.Time  `json:"activated_at"`
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty"`
	DeactivationReason *string    `json:"deactivation_reason,omitempty"`
}

type ListRequest struct {
	pagination.Pagination
	Status      string
	ProductSlug string
}

type ListResponse struct {
	Items    []AdminLicense       `json:"items"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

type UpdateRequest struct {
	ID               string         `json:"-"`
	Notes            *string        `json:"notes"`
	MaxDomainChanges *int           `json:"max_domain_changes"`
	Metadata         map[string]any `json:"metadata"`
}
