package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/keygate/internal/payment/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "stripe"
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	return &Adapter{webhookSecret: secret}, nil
}

type Adapter struct {
	webhookSecret string
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestampPart, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestampPart, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.SubscriptionEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "customer.subscription.created":
		return a.parseSubscription(event, payload, paymentdomain.EventTypeSubscriptionStarted)
	case "customer.subscription.updated":
		return a.parseSubscription(event, payload, paymentdomain.EventTypeSubscriptionRenewed)
	case "customer.subscription.deleted":
		return a.parseSubscription(event, payload, paymentdomain.EventTypeSubscriptionCanceled)
	case "invoice.payment_succeeded":
		return a.parseInvoice(event, payload, paymentdomain.EventTypeSubscriptionRenewed)
	case "invoice.payment_failed":
		return a.parseInvoice(event, payload, paymentdomain.EventTypePaymentFailed)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeSubscription struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	CustomerEmail    string `json:"customer_email"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Created          int64  `json:"created"`
}

type stripeInvoice struct {
	ID            string `json:"id"`
	Subscription  string `json:"subscription"`
	CustomerEmail string `json:"customer_email"`
	PeriodEnd     int64  `json:"period_end"`
	Created       int64  `json:"created"`
}

func (a *Adapter) parseSubscription(event stripeEvent, payload []byte, eventType string) (*paymentdomain.SubscriptionEvent, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	out := &paymentdomain.SubscriptionEvent{
		Provider:               "stripe",
		ProviderEventID:        event.ID,
		ProviderSubscriptionID: sub.ID,
		Type:                   eventType,
		CustomerEmail:          strings.ToLower(strings.TrimSpace(sub.CustomerEmail)),
		OccurredAt:             timestamp(sub.Created, event.Created),
		RawPayload:             payload,
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.PeriodEnd = &end
	}
	return out, nil
}

func (a *Adapter) parseInvoice(event stripeEvent, payload []byte, eventType string) (*paymentdomain.SubscriptionEvent, error) {
	var inv stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &inv); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(inv.Subscription) == "" {
		// One-off invoices carry no subscription; nothing to apply.
		return nil, paymentdomain.ErrEventIgnored
	}

	out := &paymentdomain.SubscriptionEvent{
		Provider:               "stripe",
		ProviderEventID:        event.ID,
		ProviderSubscriptionID: inv.Subscription,
		Type:                   eventType,
		CustomerEmail:          strings.ToLower(strings.TrimSpace(inv.CustomerEmail)),
		OccurredAt:             timestamp(inv.Created, event.Created),
		RawPayload:             payload,
	}
	if inv.PeriodEnd > 0 {
		end := time.Unix(inv.PeriodEnd, 0).UTC()
		out.PeriodEnd = &end
	}
	return out, nil
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestampPart string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestampPart = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestampPart == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestampPart, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
