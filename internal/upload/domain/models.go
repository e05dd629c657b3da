// Package domain models CSV upload jobs tied to a validated license/domain
// pair. Upload credentials are short-lived ULIDs the importer presents when
// pushing file contents.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/keygate/pkg/db/pagination"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	ErrUploadNotFound      = errors.New("upload_not_found")
	ErrCredentialExpired   = errors.New("upload_credential_expired")
	ErrInvalidUploadStatus = errors.New("invalid_upload_status")
)

// Upload is one CSV import job. Credential is the ULID handed to the client
// when the job is registered; CredentialExpiresAt bounds its use.
type Upload struct {
	ID                  snowflake.ID `gorm:"primaryKey"`
	LicenseID           snowflake.ID `gorm:"not null;index"`
	Domain              string       `gorm:"type:text;not null;index"`
	FileName            string       `gorm:"type:text;not null"`
	Status              Status       `gorm:"type:text;not null"`
	Credential          string       `gorm:"type:text;not null;uniqueIndex:ux_uploads_credential"`
	CredentialExpiresAt time.Time    `gorm:"not null"`
	RowCount            int          `gorm:"not null;default:0"`
	ErrorMessage        *string      `gorm:"type:text"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Upload) TableName() string { return "csv_uploads" }

type ListFilter struct {
	LicenseID snowflake.ID
	Domain    string
	Status    Status
	Page      pagination.Page
}

type Repository interface {
	Create(ctx context.Context, upload *Upload) error
	FindByCredential(ctx context.Context, credential string) (*Upload, error)
	List(ctx context.Context, filter ListFilter) ([]Upload, int64, error)
	Update(ctx context.Context, upload *Upload) error
}

type IssueRequest struct {
	LicenseKey  string `json:"license_key"`
	ProductSlug string `json:"product_slug"`
	Domain      string `json:"domain"`
	FileName    string `json:"file_name"`
}

type IssueResponse struct {
	Credential string    `json:"credential"`
	ExpiresAt  time.Time `json:"expires_at"`
	UploadID   string    `json:"upload_id"`
}

type ListRequest struct {
	LicenseKey  string
	ProductSlug string
	Domain      string
	Status      string
	Page        pagination.Page
}

type View struct {
	ID           string     `json:"id"`
	FileName     string     `json:"file_name"`
	Domain       string     `json:"domain"`
	Status       Status     `json:"status"`
	RowCount     int        `json:"row_count"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type ListResponse struct {
	Items      []View `json:"items"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalItems int64  `json:"total_items"`
}

type CompleteRequest struct {
	Credential   string  `json:"credential"`
	Status       Status  `json:"status"`
	RowCount     int     `json:"row_count"`
	ErrorMessage *string `json:"error_message"`
}

// Service issues upload credentials against a live activation and lists
// upload history for a validated license/domain pair. History listing
// deliberately skips the active-binding requirement so customers can review
// imports after moving domains.
type Service interface {
	Issue(ctx context.Context, req IssueRequest) (*IssueResponse, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Complete(ctx context.Context, req CompleteRequest) (*View, error)
}
