package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	paymentdomain "github.com/smallbiznis/keygate/internal/payment/domain"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"customer.subscription.updated","data":{"object":{}}}`)
	now := time.Now().Unix()

	adapter := &Adapter{webhookSecret: secret}

	reqHeader := http.Header{}
	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader(secret, payload, now))
	require.NoError(t, adapter.Verify(context.Background(), payload, reqHeader))

	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("wrong", payload, now))
	require.ErrorIs(t, adapter.Verify(context.Background(), payload, reqHeader),
		paymentdomain.ErrInvalidSignature)

	reqHeader.Del("Stripe-Signature")
	require.ErrorIs(t, adapter.Verify(context.Background(), payload, reqHeader),
		paymentdomain.ErrInvalidSignature)
}

func TestParseSubscriptionEvents(t *testing.T) {
	created := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).Unix()
	periodEnd := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).Unix()

	tests := []struct {
		name       string
		stripeType string
		object     map[string]any
		wantType   string
		wantSubID  string
	}{
		{
			name:       "subscription created",
			stripeType: "customer.subscription.created",
			object: map[string]any{
				"id":                 "sub_1",
				"status":             "active",
				"customer_email":     "Jordan@Example.com",
				"current_period_end": periodEnd,
				"created":            created,
			},
			wantType:  paymentdomain.EventTypeSubscriptionStarted,
			wantSubID: "sub_1",
		},
		{
			name:       "subscription deleted",
			stripeType: "customer.subscription.deleted",
			object: map[string]any{
				"id":      "sub_1",
				"status":  "canceled",
				"created": created,
			},
			wantType:  paymentdomain.EventTypeSubscriptionCanceled,
			wantSubID: "sub_1",
		},
		{
			name:       "invoice payment succeeded",
			stripeType: "invoice.payment_succeeded",
			object: map[string]any{
				"id":           "in_1",
				"subscription": "sub_1",
				"period_end":   periodEnd,
				"created":      created,
			},
			wantType:  paymentdomain.EventTypeSubscriptionRenewed,
			wantSubID: "sub_1",
		},
	}

	adapter := &Adapter{webhookSecret: "whsec_test"}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := json.Marshal(map[string]any{
				"id":      "evt_1",
				"type":    tc.stripeType,
				"created": created,
				"data":    map[string]any{"object": tc.object},
			})
			require.NoError(t, err)

			event, err := adapter.Parse(context.Background(), payload)
			require.NoError(t, err)
			require.Equal(t, tc.wantType, event.Type)
			require.Equal(t, tc.wantSubID, event.ProviderSubscriptionID)
			require.Equal(t, "stripe", event.Provider)
			require.Equal(t, "evt_1", event.ProviderEventID)
		})
	}
}

func TestParseIgnoresUnrelatedEvents(t *testing.T) {
	adapter := &Adapter{webhookSecret: "whsec_test"}

	payload := []byte(`{"id":"evt_1","type":"charge.succeeded","data":{"object":{"id":"ch_1"}}}`)
	_, err := adapter.Parse(context.Background(), payload)
	require.ErrorIs(t, err, paymentdomain.ErrEventIgnored)

	// Invoices with no subscription have nothing to apply.
	payload = []byte(`{"id":"evt_2","type":"invoice.payment_succeeded","data":{"object":{"id":"in_1"}}}`)
	_, err = adapter.Parse(context.Background(), payload)
	require.ErrorIs(t, err, paymentdomain.ErrEventIgnored)
}

func TestParseEmailAndPeriodEnd(t *testing.T) {
	periodEnd := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	payload := []byte(fmt.Sprintf(
		`{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","customer_email":"Jordan@Example.com","current_period_end":%d}}}`,
		periodEnd.Unix(),
	))

	adapter := &Adapter{webhookSecret: "whsec_test"}
	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, "jordan@example.com", event.CustomerEmail)
	require.NotNil(t, event.PeriodEnd)
	require.Equal(t, periodEnd, *event.PeriodEnd)
}

func buildStripeSignatureHeader(secret string, payload []byte, ts int64) string {
	signed := fmt.Sprintf("%d.%s", ts, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
