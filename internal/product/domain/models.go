package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Type describes a billing shape for the licensed product.
type Type string

const (
	TypeOneTime      Type = "one_time"
	TypeSubscription Type = "subscription"
)

// Product is a sellable software product that licenses are issued for.
// Slug is the stable public identifier used by the client-facing API.
type Product struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Slug        string            `gorm:"uniqueIndex:ux_products_slug" json:"slug"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Type        Type              `json:"type"`
	Active      bool              `json:"active"`
	Metadata    datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
