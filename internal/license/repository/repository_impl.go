package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/keygate/internal/license/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const licenseColumns = `id, key, product_id, subscription_id, customer_name, customer_email,
	status, validity_days, activated_at, expires_at, max_domain_changes,
	domain_changes_used, notes, metadata, created_at, updated_at`

func (r *repo) Create(ctx context.Context, db *gorm.DB, license *domain.License) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO licenses (`+licenseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		license.ID,
		license.Key,
		license.ProductID,
		license.SubscriptionID,
		license.CustomerName,
		license.CustomerEmail,
		license.Status,
		license.ValidityDays,
		license.ActivatedAt,
		license.ExpiresAt,
		license.MaxDomainChanges,
		license.DomainChangesUsed,
		license.Notes,
		license.Metadata,
		license.CreatedAt,
		license.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.License, error) {
	var l domain.License
	err := db.WithContext(ctx).Raw(
		`SELECT `+licenseColumns+` FROM licenses WHERE id = ?`,
		id,
	).Scan(&l).Error
	if err != nil {
		return nil, err
	}
	if l.ID == 0 {
		return nil, nil
	}
	return &l, nil
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, key string) (*domain.License, error) {
	var l domain.License
	err := db.WithContext(ctx).Raw(
		`SELECT `+licenseColumns+` FROM licenses WHERE key = ?`,
		key,
	).Scan(&l).Error
	if err != nil {
		return nil, err
	}
	if l.ID == 0 {
		return nil, nil
	}
	return &l, nil
}

func (r *repo) FindByKeyForUpdate(ctx context.Context, db *gorm.DB, key string) (*domain.License, error) {
	var l domain.License
	err := db.WithContext(ctx).Raw(
		`SELECT `+licenseColumns+` FROM licenses WHERE key = ? FOR UPDATE`,
		key,
	).Scan(&l).Error
	if err != nil {
		return nil, err
	}
	if l.ID == 0 {
		return nil, nil
	}
	return &l, nil
}

func (r *repo) FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*domain.License, error) {
	var l domain.License
	err := db.WithContext(ctx).Raw(
		`SELECT `+licenseColumns+` FROM licenses WHERE subscription_id = ?`,
		subscriptionID,
	).Scan(&l).Error
	if err != nil {
		return nil, err
	}
	if l.ID == 0 {
		return nil, nil
	}
	return &l, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.License, error) {
	var items []domain.License
	stmt := db.WithContext(ctx).Model(&domain.License{})

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.ProductID != 0 {
		stmt = stmt.Where("product_id = ?", filter.ProductID)
	}
	if filter.CustomerQ != "" {
		q := "%" + filter.CustomerQ + "%"
		stmt = stmt.Where("customer_name LIKE ? OR customer_email LIKE ?", q, q)
	}
	if filter.AfterTime != nil {
		stmt = stmt.Where("(created_at, id) > (?, ?)", *filter.AfterTime, filter.AfterID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	err := stmt.Order("created_at ASC, id ASC").Limit(limit + 1).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, license *domain.License) error {
	return db.WithContext(ctx).Exec(
		`UPDATE licenses
		 SET customer_name = ?, customer_email = ?, status = ?, validity_days = ?,
		     max_domain_changes = ?, notes = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		license.CustomerName,
		license.CustomerEmail,
		license.Status,
		license.ValidityDays,
		license.MaxDomainChanges,
		license.Notes,
		license.Metadata,
		license.UpdatedAt,
		license.ID,
	).Error
}

func (r *repo) UpdateActivationState(ctx context.Context, db *gorm.DB, license *domain.License) error {
	return db.WithContext(ctx).Exec(
		`UPDATE licenses
		 SET status = ?, activated_at = ?, expires_at = ?, domain_changes_used = ?, updated_at = ?
		 WHERE id = ?`,
		license.Status,
		license.ActivatedAt,
		license.ExpiresAt,
		license.DomainChangesUsed,
		license.UpdatedAt,
		license.ID,
	).Error
}

func (r *repo) FindActiveActivation(ctx context.Context, db *gorm.DB, licenseID snowflake.ID) (*domain.Activation, error) {
	var a domain.Activation
	err := db.WithContext(ctx).Raw(
		`SELECT id, license_id, domain, ip_address, is_active, activated_at,
		        deactivated_at, deactivation_reason, created_at, updated_at
		 FROM activations WHERE license_id = ? AND is_active = ?`,
		licenseID,
		true,
	).Scan(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, nil
	}
	return &a, nil
}

func (r *repo) InsertActivation(ctx context.Context, db *gorm.DB, activation *domain.Activation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO activations (id, license_id, domain, ip_address, is_active, activated_at,
		                          deactivated_at, deactivation_reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		activation.ID,
		activation.LicenseID,
		activation.Domain,
		activation.IPAddress,
		activation.IsActive,
		activation.ActivatedAt,
		activation.DeactivatedAt,
		activation.DeactivationReason,
		activation.CreatedAt,
		activation.UpdatedAt,
	).Error
}

func (r *repo) DeactivateActivation(ctx context.Context, db *gorm.DB, activationID snowflake.ID, at time.Time, reason string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE activations
		 SET is_active = ?, deactivated_at = ?, deactivation_reason = ?, updated_at = ?
		 WHERE id = ?`,
		false,
		at,
		reason,
		at,
		activationID,
	).Error
}

func (r *repo) ListActivations(ctx context.Context, db *gorm.DB, licenseID snowflake.ID) ([]domain.Activation, error) {
	var items []domain.Activation
	err := db.WithContext(ctx).Raw(
		`SELECT id, license_id, domain, ip_address, is_active, activated_at,
		        deactivated_at, deactivation_reason, created_at, updated_at
		 FROM activations WHERE license_id = ? ORDER BY activated_at DESC, id DESC`,
		licenseID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
