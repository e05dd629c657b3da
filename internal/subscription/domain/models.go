// Package domain models the billing subscriptions that back auto-renewing
// licenses. Rows are fed exclusively by the payment webhook boundary.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

type Subscription struct {
	ID                     snowflake.ID `gorm:"primaryKey"`
	Provider               string       `gorm:"type:text;not null;uniqueIndex:ux_subscriptions_provider_ref,priority:1"`
	ProviderSubscriptionID string       `gorm:"type:text;not null;uniqueIndex:ux_subscriptions_provider_ref,priority:2"`
	CustomerEmail          string       `gorm:"type:text;not null"`
	Status                 Status       `gorm:"type:text;not null"`
	CurrentPeriodEnd       *time.Time   `gorm:""`
	CanceledAt             *time.Time   `gorm:""`
	CreatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Subscription) TableName() string { return "subscriptions" }

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByProviderRef(ctx context.Context, db *gorm.DB, provider, providerSubscriptionID string) (*Subscription, error)
	Update(ctx context.Context, db *gorm.DB, sub *Subscription) error
}

// Service keeps subscription rows in sync with provider webhook events.
type Service interface {
	// Upsert records the provider's view; returns the internal row.
	Upsert(ctx context.Context, provider, providerSubscriptionID, customerEmail string, status Status, periodEnd *time.Time) (*Subscription, error)
	MarkCanceled(ctx context.Context, provider, providerSubscriptionID string) (*Subscription, error)
	FindByProviderRef(ctx context.Context, provider, providerSubscriptionID string) (*Subscription, error)
}
