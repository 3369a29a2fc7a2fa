package domain

import "time"

// Installment is one scheduled periodic payment obligation within an
// enrollment's plan. InstallmentNumber is 1-based and contiguous within the
// owning enrollment; the schedule is fixed at generation time and installments
// only move between the unpaid and paid states.
type Installment struct {
	ID                string
	EnrollmentID      string
	InstallmentNumber int

	DueDate time.Time
	Amount  float64

	IsPaid     bool
	PaidDate   *time.Time
	PaidAmount float64

	// Derived at evaluation time: an unpaid installment whose due date is
	// strictly in the past.
	IsOverdue     bool
	DaysOverdue   int
	PenaltyAmount float64

	// Optional link to a billing document; set by the invoicing collaborator,
	// never mutated by the ledger.
	InvoiceID *string
}

// PaymentHistory supplies settled payments for an enrollment whose schedule is
// being generated, keyed by installment number. It replaces the positional
// "first N installments are paid" assumption with explicit records when the
// caller has them.
type PaymentHistory map[int]HistoricalPayment

// HistoricalPayment is a payment already made before schedule generation.
type HistoricalPayment struct {
	PaidDate   time.Time
	PaidAmount float64
}
