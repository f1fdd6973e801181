package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Deliver(ctx context.Context, e Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func TestAsyncNotifier_DeliversInOrder(t *testing.T) {
	sink := &mockSink{}
	first := Event{Type: EventBookingCreated, BookingID: "b-1"}
	second := Event{Type: EventBookingStatusChanged, BookingID: "b-1", From: "PENDING", To: "CONFIRMED"}
	call1 := sink.On("Deliver", mock.Anything, first).Return(nil).Once()
	sink.On("Deliver", mock.Anything, second).Return(errors.New("smtp down")).Once().NotBefore(call1)

	n := NewAsyncNotifier(sink, 4)
	n.Notify(context.Background(), first)
	n.Notify(context.Background(), second)
	n.Close()

	sink.AssertExpectations(t)
}

// blockingSink holds the worker so the queue can be filled.
type blockingSink struct {
	started chan struct{}
	release chan struct{}
	count   int
}

func (s *blockingSink) Deliver(context.Context, Event) error {
	if s.count == 0 {
		close(s.started)
		<-s.release
	}
	s.count++
	return nil
}

func TestAsyncNotifier_DropsWhenFull(t *testing.T) {
	sink := &blockingSink{started: make(chan struct{}), release: make(chan struct{})}
	n := NewAsyncNotifier(sink, 1)

	n.Notify(context.Background(), Event{Type: EventBookingCreated, BookingID: "held"})
	<-sink.started
	n.Notify(context.Background(), Event{Type: EventBookingCreated, BookingID: "queued"})

	returned := make(chan struct{})
	go func() {
		n.Notify(context.Background(), Event{Type: EventBookingCreated, BookingID: "dropped"})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}

	close(sink.release)
	n.Close()
	assert.Equal(t, 2, sink.count)
}

func TestAsyncNotifier_NotifyAfterCloseDoesNotPanic(t *testing.T) {
	n := NewAsyncNotifier(LogSink{}, 1)
	n.Close()
	require.NotPanics(t, func() {
		n.Notify(context.Background(), Event{Type: EventBookingCreated})
	})
}

func TestSimulatedSink(t *testing.T) {
	next := &mockSink{}
	e := Event{Type: EventReviewRequired, BookingID: "b-9"}
	next.On("Deliver", mock.Anything, e).Return(nil).Once()

	ok := SimulatedSink{Next: next, Gateway: FixedGateway{Approve: true}, SuccessRate: 0.95}
	require.NoError(t, ok.Deliver(context.Background(), e))

	failing := SimulatedSink{Next: next, Gateway: FixedGateway{Reason: "mailbox full"}, SuccessRate: 0.95}
	err := failing.Deliver(context.Background(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox full")

	next.AssertExpectations(t)
}
