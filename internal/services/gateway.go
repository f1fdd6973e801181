package services

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// GatewayOutcome is the simulated processor's verdict for one attempt.
type GatewayOutcome struct {
	Approved bool
	Reason   string
}

// Gateway is the randomness and latency source behind payment simulation.
type Gateway interface {
	Latency() time.Duration
	Decide(successRate float64) GatewayOutcome
}

var cannedFailureReasons = []string{
	"Insufficient funds",
	"Card declined by issuer",
	"Gateway timeout",
	"Suspected fraud",
}

// RandomGateway draws latency uniformly from [MinLatency, MaxLatency] and
// approves with the requested probability.
type RandomGateway struct {
	MinLatency time.Duration
	MaxLatency time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomGateway(minLatency, maxLatency time.Duration, seed int64) *RandomGateway {
	if maxLatency < minLatency {
		maxLatency = minLatency
	}
	return &RandomGateway{
		MinLatency: minLatency,
		MaxLatency: maxLatency,
		rnd:        rand.New(rand.NewSource(seed)),
	}
}

func (g *RandomGateway) Latency() time.Duration {
	span := g.MaxLatency - g.MinLatency
	if span <= 0 {
		return g.MinLatency
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.MinLatency + time.Duration(g.rnd.Int63n(int64(span)+1))
}

func (g *RandomGateway) Decide(successRate float64) GatewayOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rnd.Float64() < successRate {
		return GatewayOutcome{Approved: true, Reason: "Approved"}
	}
	return GatewayOutcome{Reason: cannedFailureReasons[g.rnd.Intn(len(cannedFailureReasons))]}
}

// FixedGateway always returns the same verdict after a fixed delay.
type FixedGateway struct {
	Approve bool
	Delay   time.Duration
	Reason  string
}

func (g FixedGateway) Latency() time.Duration { return g.Delay }

func (g FixedGateway) Decide(float64) GatewayOutcome {
	if g.Approve {
		return GatewayOutcome{Approved: true, Reason: "Approved"}
	}
	reason := g.Reason
	if reason == "" {
		reason = cannedFailureReasons[0]
	}
	return GatewayOutcome{Reason: reason}
}

// sleepCtx waits d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
