package services

import (
	"context"
	"testing"
	"time"

	"ferrybook/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWithDefaults(t *testing.T) {
	tests := []struct {
		name        string
		in          Config
		paymentRate float64
		notifyRate  float64
		window      time.Duration
	}{
		{name: "zero config", in: Config{}, paymentRate: 0.90, notifyRate: 0.95, window: 30 * time.Minute},
		{name: "zero rates kept", in: Config{ReviewWindow: time.Minute}, paymentRate: 0, notifyRate: 0, window: time.Minute},
		{name: "out of range replaced", in: Config{PaymentSuccessRate: 1.5, NotificationSuccessRate: -0.1}, paymentRate: 0.90, notifyRate: 0.95, window: 30 * time.Minute},
		{name: "valid rates kept", in: Config{PaymentSuccessRate: 0.25, NotificationSuccessRate: 1}, paymentRate: 0.25, notifyRate: 1, window: 30 * time.Minute},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.withDefaults()
			assert.InDelta(t, tc.paymentRate, got.PaymentSuccessRate, 1e-9)
			assert.InDelta(t, tc.notifyRate, got.NotificationSuccessRate, 1e-9)
			assert.Equal(t, tc.window, got.ReviewWindow)
			assert.Equal(t, "IDR", got.Currency)
		})
	}
}

func TestZeroSuccessRateDeclinesEveryPayment(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.PaymentSuccessRate = 0
	cfg.MaxGatewayLatency = 0
	cfg.AutoStartReview = false
	svc := New(Deps{Store: f.store, Clock: f.clock, Gateway: NewRandomGateway(0, 0, 1), Notifier: f.events, Config: cfg})

	ctx := context.Background()
	b, err := svc.Book(ctx, bookingInput(1, 2))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		p, err := svc.Payments.SimulatePayment(ctx, b.ID, models.MethodCreditCard, "cust-1")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentFailed, p.Status)
	}
}
