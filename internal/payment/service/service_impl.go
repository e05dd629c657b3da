package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/keygate/internal/clock"
	"github.com/smallbiznis/keygate/internal/config"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
	"github.com/smallbiznis/keygate/internal/observability/logger"
	"github.com/smallbiznis/keygate/internal/observability/metrics"
	"github.com/smallbiznis/keygate/internal/payment/adapters"
	"github.com/smallbiznis/keygate/internal/payment/domain"
	"github.com/smallbiznis/keygate/internal/payment/repository"
	subscriptiondomain "github.com/smallbiznis/keygate/internal/subscription/domain"
	"github.com/smallbiznis/keygate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Config        config.Config
	GenID         *snowflake.Node
	Clock         clock.Clock
	Registry      *adapters.Registry
	Repo          repository.Repository
	Subscriptions subscriptiondomain.Service
	Licenses      licensedomain.Service
	Metrics       *metrics.Metrics
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           config.Config
	genID         *snowflake.Node
	clock         clock.Clock
	registry      *adapters.Registry
	repo          repository.Repository
	subscriptions subscriptiondomain.Service
	licenses      licensedomain.Service
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.webhook"),
		cfg:           p.Config,
		genID:         p.GenID,
		clock:         p.Clock,
		registry:      p.Registry,
		repo:          p.Repo,
		subscriptions: p.Subscriptions,
		licenses:      p.Licenses,
		metrics:       p.Metrics,
	}
}

func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !s.registry.ProviderExists(provider) {
		return domain.ErrProviderNotFound
	}

	adapter, err := s.registry.NewAdapter(provider, s.adapterConfig(provider))
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		logger.FromContext(ctx).Warn("webhook signature rejected",
			zap.String("provider", provider),
		)
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			return nil
		}
		return err
	}

	s.metrics.RecordWebhookEvent(ctx, provider, event.Type)

	// Dedupe on (provider, event id): providers redeliver aggressively.
	record := &domain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      s.clock.Now(),
	}
	if err := s.repo.InsertEvent(ctx, s.db, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			logger.FromContext(ctx).Info("duplicate webhook delivery ignored",
				zap.String("provider", provider),
				zap.String("provider_event_id", event.ProviderEventID),
			)
			return nil
		}
		return err
	}

	if err := s.apply(ctx, event); err != nil {
		return err
	}

	now := s.clock.Now()
	if err := s.repo.MarkProcessed(ctx, s.db, record.ID, now); err != nil {
		logger.FromContext(ctx).Warn("failed to mark webhook event processed",
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) apply(ctx context.Context, event *domain.SubscriptionEvent) error {
	log := logger.FromContext(ctx).With(
		zap.String("provider", event.Provider),
		zap.String("provider_subscription_id", event.ProviderSubscriptionID),
		zap.String("event_type", event.Type),
	)

	switch event.Type {
	case domain.EventTypeSubscriptionStarted:
		_, err := s.subscriptions.Upsert(ctx,
			event.Provider, event.ProviderSubscriptionID, event.CustomerEmail,
			subscriptiondomain.StatusActive, event.PeriodEnd)
		return err

	case domain.EventTypeSubscriptionRenewed:
		sub, err := s.subscriptions.Upsert(ctx,
			event.Provider, event.ProviderSubscriptionID, event.CustomerEmail,
			subscriptiondomain.StatusActive, event.PeriodEnd)
		if err != nil {
			return err
		}
		if event.PeriodEnd == nil {
			return nil
		}
		err = s.licenses.ExtendBySubscription(ctx, sub.ID.String(), *event.PeriodEnd)
		if errors.Is(err, licensedomain.ErrLicenseNotFound) {
			// Subscription exists but no license is linked yet; nothing
			// to extend.
			log.Info("renewal with no linked license")
			return nil
		}
		return err

	case domain.EventTypeSubscriptionCanceled:
		sub, err := s.subscriptions.MarkCanceled(ctx, event.Provider, event.ProviderSubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			log.Info("cancellation for unknown subscription")
			return nil
		}
		err = s.licenses.RevokeBySubscription(ctx, sub.ID.String(), "subscription canceled")
		if errors.Is(err, licensedomain.ErrLicenseNotFound) {
			return nil
		}
		return err

	case domain.EventTypePaymentFailed:
		_, err := s.subscriptions.Upsert(ctx,
			event.Provider, event.ProviderSubscriptionID, event.CustomerEmail,
			subscriptiondomain.StatusPastDue, nil)
		if err != nil {
			return err
		}
		log.Warn("subscription payment failed")
		return nil

	default:
		return nil
	}
}

func (s *Service) adapterConfig(provider string) domain.AdapterConfig {
	switch provider {
	case "stripe":
		return domain.AdapterConfig{WebhookSecret: s.cfg.StripeWebhookSecret}
	default:
		return domain.AdapterConfig{}
	}
}
