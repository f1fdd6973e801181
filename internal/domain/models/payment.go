package models

import (
	"time"

	"ferrybook/internal/domain"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentProcessing        PaymentStatus = "PROCESSING"
	PaymentCompleted         PaymentStatus = "COMPLETED"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentCancelled         PaymentStatus = "CANCELLED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:           {PaymentProcessing, PaymentCancelled},
	PaymentProcessing:        {PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentCompleted:         {PaymentRefunded, PaymentPartiallyRefunded},
	PaymentFailed:            {},
	PaymentCancelled:         {},
	PaymentRefunded:          {},
	PaymentPartiallyRefunded: {},
}

func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	MethodCreditCard   PaymentMethod = "CREDIT_CARD"
	MethodDebitCard    PaymentMethod = "DEBIT_CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodEWallet      PaymentMethod = "E_WALLET"
	MethodCash         PaymentMethod = "CASH"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodBankTransfer, MethodEWallet, MethodCash:
		return true
	}
	return false
}

// Payment is one attempt to pay for a booking.
type Payment struct {
	ID              string         `json:"id"`
	PaymentNumber   string         `json:"payment_number"`
	BookingID       string         `json:"booking_id"`
	Amount          int64          `json:"amount"`
	Method          PaymentMethod  `json:"method"`
	Status          PaymentStatus  `json:"status"`
	TransactionID   string         `json:"transaction_id,omitempty"`
	GatewayResponse string         `json:"gateway_response,omitempty"`
	FailureReason   string         `json:"failure_reason,omitempty"`
	RefundAmount    int64          `json:"refund_amount"`
	RefundedAt      *time.Time     `json:"refunded_at,omitempty"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	ProcessedBy     domain.ActorID `json:"processed_by,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func (p *Payment) TransitionTo(to PaymentStatus, at time.Time) error {
	if !p.Status.CanTransitionTo(to) {
		return &domain.InvalidTransitionError{
			Entity: "payment",
			ID:     p.ID,
			From:   string(p.Status),
			To:     string(to),
			Rule:   "transition not permitted",
		}
	}
	p.Status = to
	p.UpdatedAt = at
	return nil
}

// CanBeRefunded is true only for completed payments.
func (p *Payment) CanBeRefunded() bool {
	return p.Status == PaymentCompleted
}

// RefundableAmount is the paid amount not yet refunded.
func (p *Payment) RefundableAmount() int64 {
	if p.Status != PaymentCompleted && p.Status != PaymentPartiallyRefunded {
		return 0
	}
	if r := p.Amount - p.RefundAmount; r > 0 {
		return r
	}
	return 0
}

// AppendNote concatenates onto existing notes, never replacing them.
func (p *Payment) AppendNote(note string) {
	if note == "" {
		return
	}
	if p.Notes == "" {
		p.Notes = note
		return
	}
	p.Notes = p.Notes + " | " + note
}
