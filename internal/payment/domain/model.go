// Package domain defines the provider-neutral webhook event model. Provider
// SDK payloads stop at the adapter boundary; everything past it speaks
// SubscriptionEvent.
package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the dedupe ledger: one row per provider event ever
// accepted, keyed by (provider, provider_event_id).
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_ref,priority:1"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_ref,priority:2"`
	EventType       string         `gorm:"type:text;not null"`
	Payload         datatypes.JSON `gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `gorm:"not null"`
	ProcessedAt     *time.Time     `gorm:""`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeSubscriptionStarted  = "subscription_started"
	EventTypeSubscriptionRenewed  = "subscription_renewed"
	EventTypeSubscriptionCanceled = "subscription_canceled"
	EventTypePaymentFailed        = "payment_failed"
)

// SubscriptionEvent is the canonical subscription lifecycle event parsed by
// adapters.
type SubscriptionEvent struct {
	Provider               string
	ProviderEventID        string
	ProviderSubscriptionID string
	Type                   string
	CustomerEmail          string
	PeriodEnd              *time.Time
	OccurredAt             time.Time
	RawPayload             []byte
}

// PaymentAdapter verifies and parses one provider's webhook payloads.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*SubscriptionEvent, error)
}

// AdapterConfig carries provider credentials.
type AdapterConfig struct {
	WebhookSecret string
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

// Service is the webhook boundary consumed by the HTTP layer.
type Service interface {
	// HandleWebhook verifies, dedupes and applies one delivery. Ignored
	// event types return nil so providers stop retrying.
	HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}
