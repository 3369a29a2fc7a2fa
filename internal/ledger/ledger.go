package ledger

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/Qliqsee/1159-realty-crm-sub001/internal/domain"
	"github.com/Qliqsee/1159-realty-crm-sub001/internal/schedule"
)

// EnrollmentStore is the persistence boundary the ledger works against.
// GetEnrollment must return domain.ErrEnrollmentNotFound for unknown ids.
type EnrollmentStore interface {
	GetEnrollment(ctx context.Context, id string) (*domain.Enrollment, error)

	// PaymentHistory returns settled payments recorded before the schedule
	// existed, keyed by installment number. Implementations may return an
	// empty map.
	PaymentHistory(ctx context.Context, enrollmentID string) (domain.PaymentHistory, error)

	SaveEnrollment(ctx context.Context, e *domain.Enrollment) error
	SaveInstallments(ctx context.Context, enrollmentID string, installments []domain.Installment) error
}

// entry is the ledger's unit of ownership: one enrollment, its schedule, and
// the lock serializing every read-modify-write against them.
type entry struct {
	mu         sync.Mutex
	enrollment *domain.Enrollment
	schedule   []domain.Installment
}

// Ledger owns one installment schedule per enrollment. Schedules are generated
// lazily on first access and cached for the life of the process; callers get
// the same slice back on every GetSchedule and may hold a reference that is
// mutated in place by later resolve/unresolve calls.
//
// Operations on the same enrollment are serialized by a per-entry mutex;
// operations on different enrollments run in parallel.
type Ledger struct {
	store EnrollmentStore
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func New(store EnrollmentStore) *Ledger {
	return &Ledger{
		store:   store,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// GetSchedule returns the enrollment's installment schedule, generating and
// caching it on first access. Repeated calls return the identical slice.
func (l *Ledger) GetSchedule(ctx context.Context, enrollmentID string) ([]domain.Installment, error) {
	e := l.entryFor(enrollmentID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := l.load(ctx, enrollmentID, e); err != nil {
		return nil, err
	}
	return e.schedule, nil
}

// Enrollment returns the enrollment record with its current aggregates.
func (l *Ledger) Enrollment(ctx context.Context, enrollmentID string) (*domain.Enrollment, error) {
	e := l.entryFor(enrollmentID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := l.load(ctx, enrollmentID, e); err != nil {
		return nil, err
	}
	return e.enrollment, nil
}

// ResolveInstallment marks an installment paid and propagates the effect to
// the enrollment aggregates in the same serialized operation. A zero paidDate
// means now. The overdue flag and any pending penalty are cleared: a late but
// settled installment is no longer overdue.
func (l *Ledger) ResolveInstallment(ctx context.Context, enrollmentID, installmentID string, paidAmount float64, paidDate time.Time) (*domain.Installment, error) {
	if paidAmount <= 0 {
		return nil, domain.ErrInvalidPaidAmount
	}

	e := l.entryFor(enrollmentID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := l.load(ctx, enrollmentID, e); err != nil {
		return nil, err
	}

	inst := findInstallment(e.schedule, installmentID)
	if inst == nil {
		return nil, domain.ErrInstallmentNotFound
	}

	if paidDate.IsZero() {
		paidDate = l.now()
	}

	inst.IsPaid = true
	inst.PaidDate = &paidDate
	inst.PaidAmount = paidAmount
	inst.IsOverdue = false
	inst.DaysOverdue = 0
	inst.PenaltyAmount = 0

	l.recomputeAggregates(e)
	l.snapshot(ctx, e)

	return inst, nil
}

// UnresolveInstallment reverses a resolve: payment fields are cleared, the
// overdue state and penalty are recomputed against the current time (reverting
// a payment can reinstate a penalty if the due date has since passed), and the
// enrollment aggregates are restored. Unresolving an already unpaid
// installment leaves the aggregates untouched.
func (l *Ledger) UnresolveInstallment(ctx context.Context, enrollmentID, installmentID string) (*domain.Installment, error) {
	e := l.entryFor(enrollmentID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := l.load(ctx, enrollmentID, e); err != nil {
		return nil, err
	}

	inst := findInstallment(e.schedule, installmentID)
	if inst == nil {
		return nil, domain.ErrInstallmentNotFound
	}

	var reversed float64
	if inst.IsPaid {
		reversed = inst.PaidAmount
	}

	now := l.now()

	inst.IsPaid = false
	inst.PaidDate = nil
	inst.PaidAmount = 0
	inst.IsOverdue = inst.DueDate.Before(now)
	inst.DaysOverdue = schedule.DaysOverdue(inst.DueDate, now)
	inst.PenaltyAmount = schedule.Penalty(inst.Amount, e.enrollment.OverduePenaltyRate, inst.DaysOverdue)

	if reversed != 0 {
		l.recomputeAggregates(e)
		l.snapshot(ctx, e)
	}

	return inst, nil
}

// CancelEnrollment moves the enrollment to its terminal CANCELLED state. The
// installment schedule and the aggregates are left as they are; cancellation
// is a status change, not a ledger reversal.
func (l *Ledger) CancelEnrollment(ctx context.Context, enrollmentID, reason string) (*domain.Enrollment, error) {
	e := l.entryFor(enrollmentID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := l.load(ctx, enrollmentID, e); err != nil {
		return nil, err
	}

	now := l.now()
	e.enrollment.Status = domain.EnrollmentStatusCancelled
	e.enrollment.CancelledDate = &now
	e.enrollment.CancellationReason = &reason

	l.snapshot(ctx, e)

	return e.enrollment, nil
}

func (l *Ledger) entryFor(enrollmentID string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[enrollmentID]
	if !ok {
		e = &entry{}
		l.entries[enrollmentID] = e
	}
	return e
}

// load fills an empty entry from the store. Must be called with e.mu held.
func (l *Ledger) load(ctx context.Context, enrollmentID string, e *entry) error {
	if e.enrollment != nil {
		return nil
	}

	enrollment, err := l.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}

	history, err := l.store.PaymentHistory(ctx, enrollmentID)
	if err != nil {
		return err
	}

	e.enrollment = enrollment
	e.schedule = schedule.Generate(*enrollment, history, l.now())

	l.recomputeAggregates(e)
	return nil
}

// recomputeAggregates rederives the four aggregate fields from the schedule.
// Always a full recount over the installments, never an incremental update,
// so the fields cannot drift from the schedule's true paid state. Must be
// called with e.mu held.
func (l *Ledger) recomputeAggregates(e *entry) {
	var totalPaid float64
	var paymentsCount int
	for i := range e.schedule {
		if e.schedule[i].IsPaid {
			totalPaid += e.schedule[i].PaidAmount
			paymentsCount++
		}
	}

	en := e.enrollment
	en.TotalPaid = totalPaid
	en.OutstandingBalance = en.PropertyPrice - totalPaid
	en.PaymentsCount = paymentsCount

	// Not clamped at 100: an overpaid plan reports its true percentage and a
	// negative outstanding balance.
	if en.PropertyPrice > 0 {
		en.CompletionPercentage = int(math.Round(totalPaid / en.PropertyPrice * 100))
	} else {
		en.CompletionPercentage = 0
	}

	switch {
	case len(e.schedule) > 0 && paymentsCount == len(e.schedule) && en.Status == domain.EnrollmentStatusActive:
		en.Status = domain.EnrollmentStatusCompleted
	case paymentsCount < len(e.schedule) && en.Status == domain.EnrollmentStatusCompleted:
		en.Status = domain.EnrollmentStatusActive
	}
}

// snapshot writes the entry's current state through to the store. The
// in-memory ledger state is authoritative; a failed write is logged and the
// operation still counts as applied. Must be called with e.mu held.
func (l *Ledger) snapshot(ctx context.Context, e *entry) {
	if err := l.store.SaveEnrollment(ctx, e.enrollment); err != nil {
		log.Printf("[LEDGER] save enrollment %s: %v", e.enrollment.ID, err)
	}
	if err := l.store.SaveInstallments(ctx, e.enrollment.ID, e.schedule); err != nil {
		log.Printf("[LEDGER] save installments for %s: %v", e.enrollment.ID, err)
	}
}

func findInstallment(installments []domain.Installment, id string) *domain.Installment {
	for i := range installments {
		if installments[i].ID == id {
			return &installments[i]
		}
	}
	return nil
}
