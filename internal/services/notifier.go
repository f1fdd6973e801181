package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/utils"
)

type EventType string

const (
	EventBookingCreated       EventType = "booking.created"
	EventBookingStatusChanged EventType = "booking.status_changed"
	EventPaymentConfirmed     EventType = "payment.confirmed"
	EventPaymentFailed        EventType = "payment.failed"
	EventReviewRequired       EventType = "approval.review_required"
	EventApprovalOverdue      EventType = "approval.overdue"
)

// Event is a lifecycle notification emitted after a committed transition.
type Event struct {
	Type      EventType
	BookingID string
	From      string
	To        string
	Actor     domain.ActorID
	At        time.Time
	Detail    string
}

// Notifier accepts events fire-and-forget. Implementations must not block the
// caller and must not report delivery failures back.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Sink delivers one event to an external channel.
type Sink interface {
	Deliver(ctx context.Context, e Event) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

// NopNotifier drops every event.
func NopNotifier() Notifier { return nopNotifier{} }

// AsyncNotifier queues events on a buffered channel drained by one worker.
// When the queue is full the event is dropped and logged.
type AsyncNotifier struct {
	sink  Sink
	queue chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

func NewAsyncNotifier(sink Sink, buffer int) *AsyncNotifier {
	if buffer <= 0 {
		buffer = 256
	}
	n := &AsyncNotifier{sink: sink, queue: make(chan Event, buffer)}
	n.wg.Add(1)
	go n.run()
	return n
}

func (n *AsyncNotifier) run() {
	defer n.wg.Done()
	for e := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.sink.Deliver(ctx, e); err != nil {
			utils.LogWarn("", "notify", string(e.Type), fmt.Sprintf("booking_id=%s delivery failed: %v", e.BookingID, err))
		}
		cancel()
	}
}

func (n *AsyncNotifier) Notify(_ context.Context, e Event) {
	defer func() {
		// Notify after Close must not panic the caller's transition.
		_ = recover()
	}()
	select {
	case n.queue <- e:
	default:
		utils.LogWarn("", "notify", string(e.Type), "queue full, dropped event for booking_id="+e.BookingID)
	}
}

// Close stops accepting events and waits for queued ones to drain.
func (n *AsyncNotifier) Close() {
	n.once.Do(func() { close(n.queue) })
	n.wg.Wait()
}

// LogSink writes events to the structured log.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, e Event) error {
	msg := fmt.Sprintf("booking_id=%s", e.BookingID)
	if e.From != "" || e.To != "" {
		msg += fmt.Sprintf(" %s->%s", e.From, e.To)
	}
	if e.Detail != "" {
		msg += " " + e.Detail
	}
	utils.LogEvent("", "notify", string(e.Type), msg)
	return nil
}

// SimulatedSink models an unreliable outbound channel: each delivery
// succeeds with the configured probability.
type SimulatedSink struct {
	Next        Sink
	Gateway     Gateway
	SuccessRate float64
}

func (s SimulatedSink) Deliver(ctx context.Context, e Event) error {
	if out := s.Gateway.Decide(s.SuccessRate); !out.Approved {
		return fmt.Errorf("notification not sent: %s", out.Reason)
	}
	if s.Next == nil {
		return nil
	}
	return s.Next.Deliver(ctx, e)
}
