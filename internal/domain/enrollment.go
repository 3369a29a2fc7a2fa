package domain

import "time"

// EnrollmentStatus is the lifecycle state of a property purchase plan.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment is a client's financed purchase plan for a property.
//
// TotalPaid, OutstandingBalance, CompletionPercentage and PaymentsCount are
// derived from the installment schedule and are owned by the ledger's
// recompute step; they must never be written independently while a schedule
// exists for the enrollment.
type Enrollment struct {
	ID         string
	ClientID   string
	PropertyID string

	PropertyName *string
	ClientName   *string

	// Contract terms. Consumed by the schedule generator only.
	PropertyPrice      float64
	MonthlyPayment     float64
	PaymentDuration    int
	StartDate          time.Time
	OverduePenaltyRate float64 // percent per 30 overdue days

	// Aggregates derived from the schedule.
	TotalPaid            float64
	OutstandingBalance   float64
	CompletionPercentage int
	PaymentsCount        int

	Status             EnrollmentStatus
	CancelledDate      *time.Time
	CancellationReason *string

	CreatedAt *time.Time
	UpdatedAt *time.Time
}
