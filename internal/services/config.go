package services

import "time"

// Config holds the workflow tunables.
type Config struct {
	ReviewWindow            time.Duration // review deadline = start + ReviewWindow
	PaymentDeadline         time.Duration // WAITING_FOR_PAYMENT bookings older than this may be expired
	PaymentSuccessRate      float64
	NotificationSuccessRate float64
	MaxGatewayLatency       time.Duration
	AutoStartReview         bool // start the approval review as soon as a booking is paid
	Currency                string
}

// DefaultConfig returns the reference deployment values.
func DefaultConfig() Config {
	return Config{
		ReviewWindow:            30 * time.Minute,
		PaymentDeadline:         24 * time.Hour,
		PaymentSuccessRate:      0.90,
		NotificationSuccessRate: 0.95,
		MaxGatewayLatency:       2 * time.Second,
		AutoStartReview:         true,
		Currency:                "IDR",
	}
}

// withDefaults fills unset fields. A zero Config means DefaultConfig; otherwise
// a success rate of 0 is kept and only rates outside [0, 1] are replaced.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c == (Config{}) {
		return d
	}
	if c.ReviewWindow <= 0 {
		c.ReviewWindow = d.ReviewWindow
	}
	if c.PaymentDeadline <= 0 {
		c.PaymentDeadline = d.PaymentDeadline
	}
	if c.PaymentSuccessRate < 0 || c.PaymentSuccessRate > 1 {
		c.PaymentSuccessRate = d.PaymentSuccessRate
	}
	if c.NotificationSuccessRate < 0 || c.NotificationSuccessRate > 1 {
		c.NotificationSuccessRate = d.NotificationSuccessRate
	}
	if c.MaxGatewayLatency < 0 {
		c.MaxGatewayLatency = 0
	}
	if c.Currency == "" {
		c.Currency = d.Currency
	}
	return c
}
