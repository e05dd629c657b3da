package repository

import (
	"context"

	"github.com/smallbiznis/keygate/internal/upload/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, upload *domain.Upload) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO csv_uploads (id, license_id, domain, file_name, status, credential,
		                          credential_expires_at, row_count, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		upload.ID,
		upload.LicenseID,
		upload.Domain,
		upload.FileName,
		upload.Status,
		upload.Credential,
		upload.CredentialExpiresAt,
		upload.RowCount,
		upload.ErrorMessage,
		upload.CreatedAt,
		upload.UpdatedAt,
	).Error
}

func (r *repo) FindByCredential(ctx context.Context, credential string) (*domain.Upload, error) {
	var u domain.Upload
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, license_id, domain, file_name, status, credential, credential_expires_at,
		        row_count, error_message, created_at, updated_at
		 FROM csv_uploads WHERE credential = ?`,
		credential,
	).Scan(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return &u, nil
}

func (r *repo) List(ctx context.Context, filter domain.ListFilter) ([]domain.Upload, int64, error) {
	stmt := r.db.WithContext(ctx).
		Model(&domain.Upload{}).
		Where("license_id = ? AND domain = ?", filter.LicenseID, filter.Domain)

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Upload
	err := stmt.
		Order("created_at DESC, id DESC").
		Offset(filter.Page.Offset()).
		Limit(filter.Page.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) Update(ctx context.Context, upload *domain.Upload) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE csv_uploads
		 SET status = ?, row_count = ?, error_message = ?, updated_at = ?
		 WHERE id = ?`,
		upload.Status,
		upload.RowCount,
		upload.ErrorMessage,
		upload.UpdatedAt,
		upload.ID,
	).Error
}
