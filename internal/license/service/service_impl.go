package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/keygate/internal/clock"
	"github.com/smallbiznis/keygate/internal/license/domain"
	"github.com/smallbiznis/keygate/internal/observability/logger"
	"github.com/smallbiznis/keygate/internal/observability/metrics"
	productdomain "github.com/smallbiznis/keygate/internal/product/domain"
	"github.com/smallbiznis/keygate/pkg/db"
	"github.com/smallbiznis/keygate/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// txMaxAttempts bounds retries on serialization conflicts. Anything beyond a
// conflict surfaces to the caller unchanged.
const txMaxAttempts = 3

const (
	defaultValidityDays     = 365
	defaultMaxDomainChanges = 3
	keyGenMaxAttempts       = 5
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ProductRepo productdomain.Repository
	Metrics     *metrics.Metrics
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	productRepo productdomain.Repository
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("license.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
		metrics:     p.Metrics,
	}
}

// inTx runs fn inside a transaction and retries a bounded number of times
// when the store reports a serialization conflict.
func (s *Service) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(fn)
		if err == nil || !db.IsSerializationErr(err) {
			return err
		}
		logger.FromContext(ctx).Warn("transaction serialization conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return err
}

// ValidatePrerequisites checks existence, product ownership and revocation.
// It never writes; callers decide whether a failure counts toward
// brute-force tracking.
func (s *Service) ValidatePrerequisites(ctx context.Context, licenseKey, productSlug string) (*domain.License, *productdomain.Product, error) {
	key, err := domain.NormalizeLicenseKey(licenseKey)
	if err != nil {
		return nil, nil, err
	}
	productSlug = strings.ToLower(strings.TrimSpace(productSlug))
	if productSlug == "" {
		return nil, nil, domain.ErrInvalidFormat
	}

	license, err := s.repo.FindByKey(ctx, s.db, key)
	if err != nil {
		return nil, nil, err
	}
	if license == nil {
		return nil, nil, domain.ErrLicenseNotFound
	}

	product, err := s.productRepo.FindByID(ctx, s.db, license.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil || product.Slug != productSlug {
		return nil, nil, domain.ErrProductNotFound
	}

	if license.Status == domain.StatusRevoked {
		return nil, nil, domain.ErrLicenseRevoked
	}
	return license, product, nil
}

func (s *Service) Activate(ctx context.Context, req domain.ActivateRequest) (*domain.ActivateResponse, error) {
	log := logger.FromContext(ctx).Named("license.activate")

	key, err := domain.NormalizeLicenseKey(req.LicenseKey)
	if err != nil {
		return nil, err
	}
	reqDomain, err := domain.NormalizeDomain(req.Domain)
	if err != nil {
		return nil, err
	}
	productSlug := strings.ToLower(strings.TrimSpace(req.ProductSlug))
	if productSlug == "" {
		return nil, domain.ErrInvalidFormat
	}

	var resp *domain.ActivateResponse
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		license, err := s.repo.FindByKeyForUpdate(ctx, tx, key)
		if err != nil {
			return err
		}
		if license == nil {
			return domain.ErrLicenseNotFound
		}

		product, err := s.productRepo.FindByID(ctx, tx, license.ProductID)
		if err != nil {
			return err
		}
		if product == nil || product.Slug != productSlug {
			return domain.ErrProductNotFound
		}

		if license.Status == domain.StatusRevoked {
			return domain.ErrLicenseRevoked
		}

		now := s.clock.Now()
		if license.Status == domain.StatusExpired || domain.IsExpired(now, license.ExpiresAt) {
			return domain.ErrLicenseExpired
		}

		active, err := s.repo.FindActiveActivation(ctx, tx, license.ID)
		if err != nil {
			return err
		}

		switch {
		case active == nil && license.ActivatedAt == nil:
			// First activation. Starts the validity clock, costs nothing.
			expiresAt := now.AddDate(0, 0, license.ValidityDays)
			if err := s.insertActiveBinding(ctx, tx, license.ID, reqDomain, req.ClientIP, now); err != nil {
				return err
			}
			license.ActivatedAt = &now
			license.ExpiresAt = &expiresAt
			license.UpdatedAt = now
			if err := s.repo.UpdateActivationState(ctx, tx, license); err != nil {
				return err
			}
			resp = s.activateResponse(license, product, reqDomain, now, true)

		case active == nil:
			// Fully deactivated earlier. Rebinding the last domain is a
			// plain resume; any other domain is a domain change and
			// consumes a credit.
			last, err := s.lastActivation(ctx, tx, license.ID)
			if err != nil {
				return err
			}
			if last == nil {
				// ActivatedAt was set by a subscription webhook before any
				// domain was ever bound. The first binding is still free
				// and keeps the expiry the webhook established.
				if err := s.insertActiveBinding(ctx, tx, license.ID, reqDomain, req.ClientIP, now); err != nil {
					return err
				}
				license.UpdatedAt = now
				if err := s.repo.UpdateActivationState(ctx, tx, license); err != nil {
					return err
				}
				resp = s.activateResponse(license, product, reqDomain, now, true)
				return nil
			}
			sameAsLast := last.Domain == reqDomain
			if !sameAsLast {
				if license.DomainChangesUsed >= license.MaxDomainChanges {
					return domain.ErrDomainChangeLimitReached
				}
				license.DomainChangesUsed++
			}
			if err := s.insertActiveBinding(ctx, tx, license.ID, reqDomain, req.ClientIP, now); err != nil {
				return err
			}
			license.UpdatedAt = now
			if err := s.repo.UpdateActivationState(ctx, tx, license); err != nil {
				return err
			}
			resp = s.activateResponse(license, product, reqDomain, now, sameAsLast)

		case active.Domain == reqDomain:
			// Idempotent re-activation, no writes.
			resp = s.activateResponse(license, product, reqDomain, now, false)

		default:
			// Bound elsewhere: domain change. Release the old binding,
			// create the new one and burn a credit as one unit.
			if license.DomainChangesUsed >= license.MaxDomainChanges {
				return domain.ErrDomainChangeLimitReached
			}
			reason := fmt.Sprintf("Domain changed to %s", reqDomain)
			if err := s.repo.DeactivateActivation(ctx, tx, active.ID, now, reason); err != nil {
				return err
			}
			if err := s.insertActiveBinding(ctx, tx, license.ID, reqDomain, req.ClientIP, now); err != nil {
				return err
			}
			license.DomainChangesUsed++
			license.UpdatedAt = now
			if err := s.repo.UpdateActivationState(ctx, tx, license); err != nil {
				return err
			}
			resp = s.activateResponse(license, product, reqDomain, now, false)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrLicenseExpired) {
			s.flipExpired(ctx, key)
		}
		s.metrics.RecordActivation(ctx, "failure")
		return nil, err
	}

	s.metrics.RecordActivation(ctx, "success")
	log.Info("license activated",
		zap.String("license_key", key),
		zap.String("domain", reqDomain),
		zap.Bool("is_new_activation", resp.IsNewActivation),
		zap.Int("domain_changes_remaining", resp.DomainChangesRemaining),
	)
	return resp, nil
}

// flipExpired persists the active -> expired correction outside the aborted
// activation transaction. Best effort: a failure here only delays the flip
// until the next read.
func (s *Service) flipExpired(ctx context.Context, key string) {
	license, err := s.repo.FindByKey(ctx, s.db, key)
	if err != nil || license == nil || license.Status != domain.StatusActive {
		return
	}
	now := s.clock.Now()
	license.Status = domain.StatusExpired
	license.UpdatedAt = now
	if err := s.repo.UpdateActivationState(ctx, s.db, license); err != nil {
		logger.FromContext(ctx).Warn("failed to persist lazy expiry flip",
			zap.String("license_key", key),
			zap.Error(err),
		)
		return
	}
	logger.FromContext(ctx).Info("license lazily expired on activation attempt",
		zap.String("license_key", key),
	)
}

func (s *Service) insertActiveBinding(ctx context.Context, tx *gorm.DB, licenseID snowflake.ID, bindDomain, clientIP string, now time.Time) error {
	return s.repo.InsertActivation(ctx, tx, &domain.Activation{
		ID:          s.genID.Generate(),
		LicenseID:   licenseID,
		Domain:      bindDomain,
		IPAddress:   clientIP,
		IsActive:    true,
		ActivatedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *Service) lastActivation(ctx context.Context, tx *gorm.DB, licenseID snowflake.ID) (*domain.Activation, error) {
	items, err := s.repo.ListActivations(ctx, tx, licenseID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (s *Service) activateResponse(license *domain.License, product *productdomain.Product, boundDomain string, now time.Time, isNew bool) *domain.ActivateResponse {
	return &domain.ActivateResponse{
		LicenseKey:             license.Key,
		Domain:                 boundDomain,
		ActivatedAt:            license.ActivatedAt,
		ExpiresAt:              license.ExpiresAt,
		DaysRemaining:          domain.DaysRemaining(now, license.ExpiresAt),
		IsNewActivation:        isNew,
		DomainChangesRemaining: license.MaxDomainChanges - license.DomainChangesUsed,
		Product:                toProductInfo(product),
		Customer: domain.CustomerInfo{
			Name:        license.CustomerName,
			MaskedEmail: domain.MaskEmail(license.CustomerEmail),
		},
	}
}

// Status reports the full snapshot. A read against a time-expired license
// persists the active -> expired flip before responding; the correction is
// idempotent and logged.
func (s *Service) Status(ctx context.Context, req domain.StatusRequest) (*domain.StatusResponse, error) {
	license, product, err := s.ValidatePrerequisites(ctx, req.LicenseKey, req.ProductSlug)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if license.Status == domain.StatusActive && domain.IsExpired(now, license.ExpiresAt) {
		license.Status = domain.StatusExpired
		license.UpdatedAt = now
		if err := s.repo.UpdateActivationState(ctx, s.db, license); err != nil {
			return nil, err
		}
		logger.FromContext(ctx).Info("license lazily expired on status read",
			zap.String("license_key", license.Key),
		)
	}

	active, err := s.repo.FindActiveActivation(ctx, s.db, license.ID)
	if err != nil {
		return nil, err
	}

	resp := &domain.StatusResponse{
		LicenseKey:             license.Key,
		Status:                 license.Status,
		ActivatedAt:            license.ActivatedAt,
		ExpiresAt:              license.ExpiresAt,
		DaysRemaining:          domain.DaysRemaining(now, license.ExpiresAt),
		ValidityDays:           license.ValidityDays,
		MaxDomainChanges:       license.MaxDomainChanges,
		DomainChangesUsed:      license.DomainChangesUsed,
		DomainChangesRemaining: license.MaxDomainChanges - license.DomainChangesUsed,
		Product:                toProductInfo(product),
		Customer: domain.CustomerInfo{
			Name:        license.CustomerName,
			MaskedEmail: domain.MaskEmail(license.CustomerEmail),
		},
	}
	if active != nil {
		resp.ActiveDomain = &active.Domain
	}
	return resp, nil
}

// Deactivate releases the binding for the given domain. It never refunds a
// domain-change credit.
func (s *Service) Deactivate(ctx context.Context, req domain.DeactivateRequest) (*domain.DeactivateResponse, error) {
	key, err := domain.NormalizeLicenseKey(req.LicenseKey)
	if err != nil {
		return nil, err
	}
	reqDomain, err := domain.NormalizeDomain(req.Domain)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.ValidatePrerequisites(ctx, key, req.ProductSlug); err != nil {
		return nil, err
	}

	var resp *domain.DeactivateResponse
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		license, err := s.repo.FindByKeyForUpdate(ctx, tx, key)
		if err != nil {
			return err
		}
		if license == nil {
			return domain.ErrLicenseNotFound
		}

		active, err := s.repo.FindActiveActivation(ctx, tx, license.ID)
		if err != nil {
			return err
		}
		if active == nil || active.Domain != reqDomain {
			return domain.ErrNotActivated
		}

		now := s.clock.Now()
		reason := "Deactivated by customer"
		if req.Reason != nil && strings.TrimSpace(*req.Reason) != "" {
			reason = strings.TrimSpace(*req.Reason)
		}
		if err := s.repo.DeactivateActivation(ctx, tx, active.ID, now, reason); err != nil {
			return err
		}

		resp = &domain.DeactivateResponse{
			LicenseKey:    license.Key,
			Domain:        reqDomain,
			DeactivatedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("license deactivated",
		zap.String("license_key", key),
		zap.String("domain", reqDomain),
	)
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.AdminLicense, error) {
	productSlug := strings.ToLower(strings.TrimSpace(req.ProductSlug))
	product, err := s.productRepo.FindBySlug(ctx, s.db, productSlug)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	name := strings.TrimSpace(req.CustomerName)
	email := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	if name == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidFormat
	}

	validityDays := req.ValidityDays
	if validityDays <= 0 {
		validityDays = defaultValidityDays
	}
	maxChanges := req.MaxDomainChanges
	if maxChanges <= 0 {
		maxChanges = defaultMaxDomainChanges
	}

	var subscriptionID *snowflake.ID
	if req.SubscriptionID != nil && *req.SubscriptionID != "" {
		id, err := snowflake.ParseString(*req.SubscriptionID)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		subscriptionID = &id
	}

	now := s.clock.Now()
	license := &domain.License{
		ID:               s.genID.Generate(),
		ProductID:        product.ID,
		SubscriptionID:   subscriptionID,
		CustomerName:     name,
		CustomerEmail:    email,
		Status:           domain.StatusActive,
		ValidityDays:     validityDays,
		MaxDomainChanges: maxChanges,
		Notes:            req.Notes,
		Metadata:         datatypes.JSONMap(req.Metadata),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// Retry on the one-in-a-billion key collision instead of pre-checking.
	for attempt := 1; ; attempt++ {
		key, err := domain.GenerateKey()
		if err != nil {
			return nil, err
		}
		license.Key = key
		err = s.repo.Create(ctx, s.db, license)
		if err == nil {
			break
		}
		if db.IsDuplicateKeyErr(err) && attempt < keyGenMaxAttempts {
			continue
		}
		return nil, err
	}

	s.log.Info("license created",
		zap.String("license_id", license.ID.String()),
		zap.String("product_slug", product.Slug),
	)
	return s.toAdminLicense(license, product, nil), nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	filter := domain.ListFilter{
		Limit: req.PageSize,
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}

	if req.Status != "" {
		filter.Status = domain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	}

	var productsByID map[snowflake.ID]*productdomain.Product
	if req.ProductSlug != "" {
		product, err := s.productRepo.FindBySlug(ctx, s.db, strings.ToLower(strings.TrimSpace(req.ProductSlug)))
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, domain.ErrProductNotFound
		}
		filter.ProductID = product.ID
		productsByID = map[snowflake.ID]*productdomain.Product{product.ID: product}
	}

	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidFormat
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, domain.ErrInvalidFormat
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, domain.ErrInvalidFormat
		}
		filter.AfterID = id
		filter.AfterTime = &createdAt
	}

	licenses, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	if productsByID == nil {
		productsByID = make(map[snowflake.ID]*productdomain.Product)
		for i := range licenses {
			if _, ok := productsByID[licenses[i].ProductID]; ok {
				continue
			}
			product, err := s.productRepo.FindByID(ctx, s.db, licenses[i].ProductID)
			if err != nil {
				return nil, err
			}
			productsByID[licenses[i].ProductID] = product
		}
	}

	items := make([]*domain.AdminLicense, 0, len(licenses))
	for i := range licenses {
		items = append(items, s.toAdminLicense(&licenses[i], productsByID[licenses[i].ProductID], nil))
	}

	trimmed, pageInfo := pagination.BuildCursorPageInfo(items, filter.Limit, func(item *domain.AdminLicense) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID,
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	out := make([]domain.AdminLicense, 0, len(trimmed))
	for _, item := range trimmed {
		out = append(out, *item)
	}
	return &domain.ListResponse{Items: out, PageInfo: pageInfo}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.AdminLicense, error) {
	licenseID, err := snowflake.ParseString(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	license, err := s.repo.FindByID(ctx, s.db, licenseID)
	if err != nil {
		return nil, err
	}
	if license == nil {
		return nil, domain.ErrLicenseNotFound
	}

	product, err := s.productRepo.FindByID(ctx, s.db, license.ProductID)
	if err != nil {
		return nil, err
	}
	activations, err := s.repo.ListActivations(ctx, s.db, license.ID)
	if err != nil {
		return nil, err
	}
	return s.toAdminLicense(license, product, activations), nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.AdminLicense, error) {
	licenseID, err := snowflake.ParseString(req.ID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var updated *domain.License
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		license, err := s.repo.FindByID(ctx, tx, licenseID)
		if err != nil {
			return err
		}
		if license == nil {
			return domain.ErrLicenseNotFound
		}

		if req.Notes != nil {
			license.Notes = req.Notes
		}
		if req.MaxDomainChanges != nil {
			if *req.MaxDomainChanges < license.DomainChangesUsed {
				return domain.ErrInvalidFormat
			}
			license.MaxDomainChanges = *req.MaxDomainChanges
		}
		if req.Metadata != nil {
			license.Metadata = datatypes.JSONMap(req.Metadata)
		}
		license.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, license); err != nil {
			return err
		}
		updated = license
		return nil
	})
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, s.db, updated.ProductID)
	if err != nil {
		return nil, err
	}
	return s.toAdminLicense(updated, product, nil), nil
}

func (s *Service) Revoke(ctx context.Context, id string, reason string) (*domain.AdminLicense, error) {
	licenseID, err := snowflake.ParseString(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var revoked *domain.License
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		license, err := s.repo.FindByID(ctx, tx, licenseID)
		if err != nil {
			return err
		}
		if license == nil {
			return domain.ErrLicenseNotFound
		}

		now := s.clock.Now()
		license.Status = domain.StatusRevoked
		license.UpdatedAt = now
		if err := s.repo.UpdateActivationState(ctx, tx, license); err != nil {
			return err
		}

		active, err := s.repo.FindActiveActivation(ctx, tx, license.ID)
		if err != nil {
			return err
		}
		if active != nil {
			deactivationReason := "License revoked"
			if strings.TrimSpace(reason) != "" {
				deactivationReason = fmt.Sprintf("License revoked: %s", strings.TrimSpace(reason))
			}
			if err := s.repo.DeactivateActivation(ctx, tx, active.ID, now, deactivationReason); err != nil {
				return err
			}
		}
		revoked = license
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Warn("license revoked",
		zap.String("license_id", revoked.ID.String()),
		zap.String("reason", reason),
	)
	product, err := s.productRepo.FindByID(ctx, s.db, revoked.ProductID)
	if err != nil {
		return nil, err
	}
	return s.toAdminLicense(revoked, product, nil), nil
}

// ExtendBySubscription moves expiry to the renewed period end and clears a
// lazy expiry flip if one happened between renewal and webhook delivery.
func (s *Service) ExtendBySubscription(ctx context.Context, subscriptionID string, periodEnd time.Time) error {
	subID, err := snowflake.ParseString(subscriptionID)
	if err != nil {
		return domain.ErrInvalidID
	}

	return s.inTx(ctx, func(tx *gorm.DB) error {
		license, err := s.repo.FindBySubscriptionID(ctx, tx, subID)
		if err != nil {
			return err
		}
		if license == nil {
			return domain.ErrLicenseNotFound
		}
		if license.Status == domain.StatusRevoked {
			return domain.ErrLicenseRevoked
		}

		now := s.clock.Now()
		periodEnd = periodEnd.UTC()
		license.ExpiresAt = &periodEnd
		if license.ActivatedAt == nil {
			license.ActivatedAt = &now
		}
		license.Status = domain.StatusActive
		license.UpdatedAt = now
		return s.repo.UpdateActivationState(ctx, tx, license)
	})
}

func (s *Service) RevokeBySubscription(ctx context.Context, subscriptionID string, reason string) error {
	subID, err := snowflake.ParseString(subscriptionID)
	if err != nil {
		return domain.ErrInvalidID
	}

	return s.inTx(ctx, func(tx *gorm.DB) error {
		license, err := s.repo.FindBySubscriptionID(ctx, tx, subID)
		if err != nil {
			return err
		}
		if license == nil {
			return domain.ErrLicenseNotFound
		}

		now := s.clock.Now()
		license.Status = domain.StatusRevoked
		license.UpdatedAt = now
		if err := s.repo.UpdateActivationState(ctx, tx, license); err != nil {
			return err
		}

		active, err := s.repo.FindActiveActivation(ctx, tx, license.ID)
		if err != nil {
			return err
		}
		if active != nil {
			deactivationReason := "Subscription canceled"
			if strings.TrimSpace(reason) != "" {
				deactivationReason = fmt.Sprintf("Subscription canceled: %s", strings.TrimSpace(reason))
			}
			return s.repo.DeactivateActivation(ctx, tx, active.ID, now, deactivationReason)
		}
		return nil
	})
}

func (s *Service) toAdminLicense(license *domain.License, product *productdomain.Product, activations []domain.Activation) *domain.AdminLicense {
	out := &domain.AdminLicense{
		ID:                license.ID.String(),
		Key:               license.Key,
		CustomerName:      license.CustomerName,
		CustomerEmail:     license.CustomerEmail,
		Status:            license.Status,
		ValidityDays:      license.ValidityDays,
		ActivatedAt:       license.ActivatedAt,
		ExpiresAt:         license.ExpiresAt,
		MaxDomainChanges:  license.MaxDomainChanges,
		DomainChangesUsed: license.DomainChangesUsed,
		Notes:             license.Notes,
		Metadata:          license.Metadata,
		CreatedAt:         license.CreatedAt,
		UpdatedAt:         license.UpdatedAt,
	}
	if product != nil {
		out.ProductSlug = product.Slug
	}
	for i := range activations {
		a := activations[i]
		out.Activations = append(out.Activations, domain.ActivationView{
			ID:                 a.ID.String(),
			Domain:             a.Domain,
			IPAddress:          a.IPAddress,
			IsActive:           a.IsActive,
			ActivatedAt:        a.ActivatedAt,
			DeactivatedAt:      a.DeactivatedAt,
			DeactivationReason: a.DeactivationReason,
		})
	}
	return out
}

func toProductInfo(product *productdomain.Product) domain.ProductInfo {
	if product == nil {
		return domain.ProductInfo{}
	}
	return domain.ProductInfo{
		Name: product.Name,
		Slug: product.Slug,
		Type: string(product.Type),
	}
}
