package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvDefaults(t *testing.T) {
	for _, k := range []string{"APP_ADDR", "DB_DSN", "REVIEW_WINDOW", "PAYMENT_SUCCESS_RATE", "AUTO_START_REVIEW", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	env := LoadEnv()
	assert.Equal(t, ":8080", env.AppAddr)
	assert.Empty(t, env.DBDSN)
	assert.Equal(t, 30*time.Minute, env.ReviewWindow)
	assert.Equal(t, 24*time.Hour, env.PaymentDeadline)
	assert.InDelta(t, 0.90, env.PaymentSuccessRate, 1e-9)
	assert.InDelta(t, 0.95, env.NotificationSuccessRate, 1e-9)
	assert.True(t, env.AutoStartReview)
	assert.Nil(t, env.CORSAllowedOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("REVIEW_WINDOW", "45m")
	t.Setenv("PAYMENT_DEADLINE", "bogus")
	t.Setenv("PAYMENT_SUCCESS_RATE", "0.5")
	t.Setenv("NOTIFICATION_SUCCESS_RATE", "7")
	t.Setenv("AUTO_START_REVIEW", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	env := LoadEnv()
	assert.Equal(t, ":9090", env.AppAddr)
	assert.Equal(t, 45*time.Minute, env.ReviewWindow)
	assert.Equal(t, 24*time.Hour, env.PaymentDeadline)
	assert.InDelta(t, 0.5, env.PaymentSuccessRate, 1e-9)
	assert.InDelta(t, 0.95, env.NotificationSuccessRate, 1e-9)
	assert.False(t, env.AutoStartReview)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, env.CORSAllowedOrigins)

	cfg := env.ServiceConfig()
	assert.Equal(t, 45*time.Minute, cfg.ReviewWindow)
	assert.False(t, cfg.AutoStartReview)
}

func TestLoadEnvZeroSuccessRate(t *testing.T) {
	t.Setenv("PAYMENT_SUCCESS_RATE", "0")
	env := LoadEnv()
	assert.Zero(t, env.PaymentSuccessRate)
	assert.Zero(t, env.ServiceConfig().PaymentSuccessRate)
}
