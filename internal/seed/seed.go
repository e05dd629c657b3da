// Package seed provisions demo data for local development. It never runs in
// production; the migration module gates it on SeedDemoData.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
	productdomain "github.com/smallbiznis/keygate/internal/product/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	demoProductSlug = "pro-theme"
	demoProductName = "Pro Theme"
	// Fixed key so local clients can activate without a lookup step.
	demoLicenseKey = "DEMO-KEYG-ATE1-2345"
)

// EnsureDemoData seeds one product and one license for local development.
// Reruns are no-ops.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := ensureDemoProduct(ctx, tx, node)
		if err != nil {
			return err
		}
		return ensureDemoLicense(ctx, tx, node, product.ID)
	})
}

func ensureDemoProduct(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (*productdomain.Product, error) {
	var product productdomain.Product
	err := tx.WithContext(ctx).
		Where("slug = ?", demoProductSlug).
		First(&product).Error
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	product = productdomain.Product{
		ID:          node.Generate(),
		Slug:        demoProductSlug,
		Name:        demoProductName,
		Description: "Demo product for local development",
		Type:        productdomain.TypeOneTime,
		Active:      true,
		Metadata:    datatypes.JSONMap{"seeded": true},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func ensureDemoLicense(ctx context.Context, tx *gorm.DB, node *snowflake.Node, productID snowflake.ID) error {
	var license licensedomain.License
	err := tx.WithContext(ctx).
		Where("key = ?", demoLicenseKey).
		First(&license).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	license = licensedomain.License{
		ID:               node.Generate(),
		Key:              demoLicenseKey,
		ProductID:        productID,
		CustomerName:     "Demo Customer",
		CustomerEmail:    "demo@example.com",
		Status:           licensedomain.StatusActive,
		ValidityDays:     365,
		MaxDomainChanges: 3,
		Metadata:         datatypes.JSONMap{"seeded": true},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return tx.WithContext(ctx).Create(&license).Error
}
