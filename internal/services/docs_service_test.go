package services

import (
	"bytes"
	"context"
	"testing"

	"ferrybook/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocsService_ETicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, a := f.inReview(t)

	_, _, err := f.svc.Docs.GenerateETicket(ctx, b.ID)
	assert.True(t, domain.IsConflict(err))

	_, err = f.svc.Approvals.Approve(ctx, a.ID, "emp-1", "")
	require.NoError(t, err)

	pdf, filename, err := f.svc.Docs.GenerateETicket(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Equal(t, "ETICKET_"+b.BookingNumber+".pdf", filename)

	_, _, err = f.svc.Docs.GenerateETicket(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestDocsService_RefundReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p := f.paid(t)

	_, _, err := f.svc.Docs.GenerateRefundReceipt(ctx, p.ID)
	assert.True(t, domain.IsConflict(err))

	_, err = f.svc.Payments.Refund(ctx, p.ID, "ferry out of service", "emp-1")
	require.NoError(t, err)

	pdf, filename, err := f.svc.Docs.GenerateRefundReceipt(ctx, p.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
	assert.Equal(t, "REFUND_"+p.PaymentNumber+".pdf", filename)
}
