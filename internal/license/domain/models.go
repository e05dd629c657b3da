// Package domain holds the license and activation models plus the pure
// validation rules shared by every subsystem that checks a license.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the administrative lifecycle of a license. Expired and revoked
// are terminal for automatic transitions; only explicit admin action moves a
// license out of them, and expiry detection never downgrades a revoked one.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// License is a customer-facing key scoped to exactly one product.
// ExpiresAt is null until first activation; DomainChangesUsed never exceeds
// MaxDomainChanges.
type License struct {
	ID                snowflake.ID      `gorm:"primaryKey"`
	Key               string            `gorm:"type:text;not null;uniqueIndex:ux_licenses_key"`
	ProductID         snowflake.ID      `gorm:"not null;index"`
	SubscriptionID    *snowflake.ID     `gorm:"index"`
	CustomerName      string            `gorm:"type:text;not null"`
	CustomerEmail     string            `gorm:"type:text;not null"`
	Status            Status            `gorm:"type:text;not null"`
	ValidityDays      int               `gorm:"not null"`
	ActivatedAt       *time.Time        `gorm:""`
	ExpiresAt         *time.Time        `gorm:""`
	MaxDomainChanges  int               `gorm:"not null"`
	DomainChangesUsed int               `gorm:"not null;default:0"`
	Notes             *string           `gorm:"type:text"`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (License) TableName() string { return "licenses" }

// Activation binds a license to one domain. Rows are never deleted;
// deactivation is a soft state change preserving audit history. At most one
// row per license has IsActive=true, enforced transactionally and by a
// partial unique index as defense in depth.
type Activation struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	LicenseID          snowflake.ID `gorm:"not null;index"`
	Domain             string       `gorm:"type:text;not null"`
	IPAddress          string       `gorm:"type:text;not null"`
	IsActive           bool         `gorm:"not null;default:false"`
	ActivatedAt        time.Time    `gorm:"not null"`
	DeactivatedAt      *time.Time   `gorm:""`
	DeactivationReason *string      `gorm:"type:text"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Activation) TableName() string { return "activations" }
