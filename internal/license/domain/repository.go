package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence surface for licenses and activations.
// Methods take the handle explicitly so the state machine can run them
// against a transaction.
type Repository interface {
	Create(ctx context.Context, db *gorm.DB, license *License) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*License, error)
	FindByKey(ctx context.Context, db *gorm.DB, key string) (*License, error)
	// FindByKeyForUpdate locks the license row for the duration of the
	// enclosing transaction; concurrent activations serialize on it.
	FindByKeyForUpdate(ctx context.Context, db *gorm.DB, key string) (*License, error)
	FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*License, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]License, error)
	Update(ctx context.Context, db *gorm.DB, license *License) error
	// UpdateActivationState persists the activation-derived license fields:
	// activated_at, expires_at, domain_changes_used and status.
	UpdateActivationState(ctx context.Context, db *gorm.DB, license *License) error

	FindActiveActivation(ctx context.Context, db *gorm.DB, licenseID snowflake.ID) (*Activation, error)
	InsertActivation(ctx context.Context, db *gorm.DB, activation *Activation) error
	DeactivateActivation(ctx context.Context, db *gorm.DB, activationID snowflake.ID, at time.Time, reason string) error
	ListActivations(ctx context.Context, db *gorm.DB, licenseID snowflake.ID) ([]Activation, error)
}

// ListFilter narrows admin license listings; cursor fields follow the
// created_at/id ordering used everywhere else.
type ListFilter struct {
	Status      Status
	ProductID   snowflake.ID
	AfterID     snowflake.ID
	AfterTime   *time.Time
	Limit       int
	CustomerQ   string
	OnlyExpired bool
}
