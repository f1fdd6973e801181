package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"ferrybook/internal/services"
)

type Env struct {
	AppAddr string
	GinMode string

	// DBDSN selects the MySQL store; empty runs on the in-memory store.
	DBDSN string

	JWTSecret          string
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string

	ReviewWindow            time.Duration
	PaymentDeadline         time.Duration
	PaymentSuccessRate      float64
	NotificationSuccessRate float64
	PaymentMaxLatency       time.Duration
	AutoStartReview         bool
	Currency                string
}

func LoadEnv() Env {
	appAddr := strings.TrimSpace(os.Getenv("APP_ADDR"))
	if appAddr == "" {
		appAddr = ":8080"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))

	def := services.DefaultConfig()
	return Env{
		AppAddr:                 appAddr,
		GinMode:                 ginMode,
		DBDSN:                   strings.TrimSpace(os.Getenv("DB_DSN")),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		CORSAllowedOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		LogLevel:                envString("LOG_LEVEL", "info"),
		LogFormat:               envString("LOG_FORMAT", "text"),
		ReviewWindow:            envDuration("REVIEW_WINDOW", def.ReviewWindow),
		PaymentDeadline:         envDuration("PAYMENT_DEADLINE", def.PaymentDeadline),
		PaymentSuccessRate:      envFloat("PAYMENT_SUCCESS_RATE", def.PaymentSuccessRate),
		NotificationSuccessRate: envFloat("NOTIFICATION_SUCCESS_RATE", def.NotificationSuccessRate),
		PaymentMaxLatency:       envDuration("PAYMENT_MAX_LATENCY", def.MaxGatewayLatency),
		AutoStartReview:         envBool("AUTO_START_REVIEW", def.AutoStartReview),
		Currency:                envString("CURRENCY", def.Currency),
	}
}

// ServiceConfig maps the workflow tunables onto services.Config.
func (e Env) ServiceConfig() services.Config {
	return services.Config{
		ReviewWindow:            e.ReviewWindow,
		PaymentDeadline:         e.PaymentDeadline,
		PaymentSuccessRate:      e.PaymentSuccessRate,
		NotificationSuccessRate: e.NotificationSuccessRate,
		MaxGatewayLatency:       e.PaymentMaxLatency,
		AutoStartReview:         e.AutoStartReview,
		Currency:                e.Currency,
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
