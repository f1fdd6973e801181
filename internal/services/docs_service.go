package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
	"ferrybook/internal/repositories"
	"ferrybook/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// DocsService renders the booking e-ticket and refund receipt PDFs.
type DocsService struct {
	Store     repositories.Store
	RequestID string
}

type bookingDocData struct {
	Booking  *models.Booking
	Ferry    models.Ferry
	Payments []*models.Payment
}

func (s DocsService) GenerateETicket(ctx context.Context, bookingID string) ([]byte, string, error) {
	d, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, "", err
	}
	switch d.Booking.Status {
	case models.BookingInProgress, models.BookingCompleted:
	default:
		return nil, "", domain.ConflictError{
			Resource: "e-ticket",
			Msg:      "booking " + d.Booking.BookingNumber + " is " + string(d.Booking.Status) + ", ticket is issued once approved",
		}
	}
	utils.LogEvent(s.RequestID, "docs", "generate_eticket", "booking_id="+bookingID)
	return buildETicketPDF(d)
}

func (s DocsService) GenerateRefundReceipt(ctx context.Context, paymentID string) ([]byte, string, error) {
	p, err := s.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, "", err
	}
	if p.Status != models.PaymentRefunded && p.Status != models.PaymentPartiallyRefunded {
		return nil, "", domain.ConflictError{
			Resource: "refund receipt",
			Msg:      "payment " + p.PaymentNumber + " has not been refunded",
		}
	}
	d, err := s.load(ctx, p.BookingID)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "docs", "generate_refund_receipt", "payment_id="+paymentID)
	return buildRefundReceiptPDF(d, p)
}

func (s DocsService) load(ctx context.Context, bookingID string) (bookingDocData, error) {
	var out bookingDocData
	b, err := s.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return out, err
	}
	out.Booking = b
	if f, err := s.Store.GetFerry(ctx, b.FerryID); err == nil {
		out.Ferry = f
	} else {
		out.Ferry = models.Ferry{ID: b.FerryID}
	}
	payments, err := s.Store.ListPaymentsByBooking(ctx, bookingID)
	if err != nil {
		return out, err
	}
	out.Payments = payments
	return out, nil
}

func buildETicketPDF(d bookingDocData) ([]byte, string, error) {
	b := d.Booking
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+b.BookingNumber, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "FERRY E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Booking No   : %s", b.BookingNumber),
		fmt.Sprintf("Customer     : %s", safe(string(b.CustomerID), "-")),
		fmt.Sprintf("Ferry        : %s", safe(d.Ferry.Name, d.Ferry.ID)),
		fmt.Sprintf("Route        : %s", safe(b.RouteID, "-")),
		fmt.Sprintf("Departure    : %s UTC", utils.FormatDateTime(b.DepartureTime)),
		fmt.Sprintf("Vehicles     : %d", b.VehicleCount),
		fmt.Sprintf("Passengers   : %d", b.PassengerCount),
		fmt.Sprintf("Total Paid   : %s", utils.FormatMoney(b.Currency, b.TotalAmount)),
		fmt.Sprintf("Status       : %s", b.Status),
	}
	if p := latestCompleted(d.Payments); p != nil {
		lines = append(lines, fmt.Sprintf("Payment      : %s (%s)", p.PaymentNumber, safe(p.TransactionID, "-")))
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Present this e-ticket at check-in. Vehicles must arrive at the port before boarding closes.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("ETICKET_%s.pdf", safeFilenamePart(b.BookingNumber))
	return buf.Bytes(), filename, nil
}

func buildRefundReceiptPDF(d bookingDocData, p *models.Payment) ([]byte, string, error) {
	b := d.Booking
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Refund Receipt "+p.PaymentNumber, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "REFUND RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	refundedAt := "-"
	if p.RefundedAt != nil {
		refundedAt = utils.FormatDateTime(*p.RefundedAt)
	}
	lines := []string{
		fmt.Sprintf("Booking No   : %s", b.BookingNumber),
		fmt.Sprintf("Payment No   : %s", p.PaymentNumber),
		fmt.Sprintf("Method       : %s", p.Method),
		fmt.Sprintf("Paid         : %s", utils.FormatMoney(b.Currency, p.Amount)),
		fmt.Sprintf("Refunded     : %s", utils.FormatMoney(b.Currency, p.RefundAmount)),
		fmt.Sprintf("Refund Date  : %s", refundedAt),
		fmt.Sprintf("Status       : %s", p.Status),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	if reason := safe(b.RefundReason, ""); reason != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, "Reason:")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, reason, "", "", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("REFUND_%s.pdf", safeFilenamePart(p.PaymentNumber))
	return buf.Bytes(), filename, nil
}

func latestCompleted(payments []*models.Payment) *models.Payment {
	for i := len(payments) - 1; i >= 0; i-- {
		switch payments[i].Status {
		case models.PaymentCompleted, models.PaymentRefunded, models.PaymentPartiallyRefunded:
			return payments[i]
		}
	}
	return nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
