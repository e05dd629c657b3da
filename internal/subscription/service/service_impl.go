package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/keygate/internal/clock"
	"github.com/smallbiznis/keygate/internal/subscription/domain"
	"github.com/smallbiznis/keygate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Upsert(ctx context.Context, provider, providerSubscriptionID, customerEmail string, status domain.Status, periodEnd *time.Time) (*domain.Subscription, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	providerSubscriptionID = strings.TrimSpace(providerSubscriptionID)

	now := s.clock.Now()
	existing, err := s.repo.FindByProviderRef(ctx, s.db, provider, providerSubscriptionID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if customerEmail != "" {
			existing.CustomerEmail = strings.ToLower(strings.TrimSpace(customerEmail))
		}
		existing.Status = status
		if periodEnd != nil {
			existing.CurrentPeriodEnd = periodEnd
		}
		existing.UpdatedAt = now
		if err := s.repo.Update(ctx, s.db, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	sub := &domain.Subscription{
		ID:                     s.genID.Generate(),
		Provider:               provider,
		ProviderSubscriptionID: providerSubscriptionID,
		CustomerEmail:          strings.ToLower(strings.TrimSpace(customerEmail)),
		Status:                 status,
		CurrentPeriodEnd:       periodEnd,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.repo.Create(ctx, s.db, sub); err != nil {
		// Concurrent webhook delivery of the same subscription.
		if db.IsDuplicateKeyErr(err) {
			return s.repo.FindByProviderRef(ctx, s.db, provider, providerSubscriptionID)
		}
		return nil, err
	}

	s.log.Info("subscription recorded",
		zap.String("provider", provider),
		zap.String("provider_subscription_id", providerSubscriptionID),
		zap.String("status", string(status)),
	)
	return sub, nil
}

func (s *Service) MarkCanceled(ctx context.Context, provider, providerSubscriptionID string) (*domain.Subscription, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	providerSubscriptionID = strings.TrimSpace(providerSubscriptionID)

	sub, err := s.repo.FindByProviderRef(ctx, s.db, provider, providerSubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, nil
	}

	now := s.clock.Now()
	sub.Status = domain.StatusCanceled
	sub.CanceledAt = &now
	sub.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) FindByProviderRef(ctx context.Context, provider, providerSubscriptionID string) (*domain.Subscription, error) {
	return s.repo.FindByProviderRef(ctx, s.db,
		strings.ToLower(strings.TrimSpace(provider)),
		strings.TrimSpace(providerSubscriptionID),
	)
}
