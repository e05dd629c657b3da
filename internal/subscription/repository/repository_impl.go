package repository

import (
	"context"

	"github.com/smallbiznis/keygate/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (id, provider, provider_subscription_id, customer_email,
		                            status, current_period_end, canceled_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.Provider,
		sub.ProviderSubscriptionID,
		sub.CustomerEmail,
		sub.Status,
		sub.CurrentPeriodEnd,
		sub.CanceledAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) FindByProviderRef(ctx context.Context, db *gorm.DB, provider, providerSubscriptionID string) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_subscription_id, customer_email, status,
		        current_period_end, canceled_at, created_at, updated_at
		 FROM subscriptions WHERE provider = ? AND provider_subscription_id = ?`,
		provider,
		providerSubscriptionID,
	).Scan(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET customer_email = ?, status = ?, current_period_end = ?, canceled_at = ?, updated_at = ?
		 WHERE id = ?`,
		sub.CustomerEmail,
		sub.Status,
		sub.CurrentPeriodEnd,
		sub.CanceledAt,
		sub.UpdatedAt,
		sub.ID,
	).Error
}
