package domain

import "errors"

// Sentinel errors mirror the public error-code taxonomy so handlers can map
// them one-to-one onto response codes.
var (
	ErrInvalidFormat            = errors.New("invalid_format")
	ErrLicenseNotFound          = errors.New("license_not_found")
	ErrProductNotFound          = errors.New("product_not_found")
	ErrLicenseRevoked           = errors.New("license_revoked")
	ErrLicenseExpired           = errors.New("license_expired")
	ErrDomainChangeLimitReached = errors.New("domain_change_limit_exceeded")
	ErrNotActivated             = errors.New("not_activated")

	ErrInvalidID = errors.New("invalid_id")
)
