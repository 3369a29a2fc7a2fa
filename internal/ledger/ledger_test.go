package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Qliqsee/1159-realty-crm-sub001/internal/domain"
	"github.com/Qliqsee/1159-realty-crm-sub001/internal/repository"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testEnrollment() domain.Enrollment {
	return domain.Enrollment{
		ID:                 "enr-1",
		ClientID:           "cli-1",
		PropertyID:         "prop-1",
		PropertyPrice:      1_200_000,
		MonthlyPayment:     100_000,
		PaymentDuration:    12,
		StartDate:          date(2026, time.January, 15),
		OverduePenaltyRate: 2,
		Status:             domain.EnrollmentStatusActive,
	}
}

func newTestLedger(t *testing.T, e domain.Enrollment, history domain.PaymentHistory, now time.Time) (*Ledger, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	store.Seed(e, history)

	l := New(store)
	l.now = func() time.Time { return now }
	return l, store
}

func TestGetSchedule_ReturnsSameSlice(t *testing.T) {
	l, _ := newTestLedger(t, testEnrollment(), nil, date(2026, time.January, 1))
	ctx := context.Background()

	first, err := l.GetSchedule(ctx, "enr-1")
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	second, err := l.GetSchedule(ctx, "enr-1")
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}

	if &first[0] != &second[0] {
		t.Fatal("expected repeated calls to return the cached slice")
	}
}

func TestGetSchedule_UnknownEnrollment(t *testing.T) {
	l, _ := newTestLedger(t, testEnrollment(), nil, date(2026, time.January, 1))

	_, err := l.GetSchedule(context.Background(), "missing")
	if !errors.Is(err, domain.ErrEnrollmentNotFound) {
		t.Fatalf("expected ErrEnrollmentNotFound, got %v", err)
	}
}

func TestLoad_AggregatesFromPaidPrefix(t *testing.T) {
	e := testEnrollment()
	e.PaymentsCount = 8
	l, _ := newTestLedger(t, e, nil, date(2026, time.January, 1))

	got, err := l.Enrollment(context.Background(), "enr-1")
	if err != nil {
		t.Fatalf("enrollment: %v", err)
	}

	if got.TotalPaid != 800_000 {
		t.Fatalf("expected total paid 800000, got %v", got.TotalPaid)
	}
	if got.OutstandingBalance != 400_000 {
		t.Fatalf("expected outstanding 400000, got %v", got.OutstandingBalance)
	}
	if got.PaymentsCount != 8 {
		t.Fatalf("expected payments count 8, got %d", got.PaymentsCount)
	}
	// 800000 / 1200000 rounds to 67
	if got.CompletionPercentage != 67 {
		t.Fatalf("expected completion 67, got %d", got.CompletionPercentage)
	}
}

func TestResolveInstallment(t *testing.T) {
	now := date(2026, time.June, 1)
	l, store := newTestLedger(t, testEnrollment(), nil, now)
	ctx := context.Background()

	schedule, err := l.GetSchedule(ctx, "enr-1")
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}

	// first installment is overdue at this point
	target := schedule[0]
	if !target.IsOverdue {
		t.Fatal("precondition: first installment should be overdue")
	}

	paidDate := date(2026, time.May, 28)
	inst, err := l.ResolveInstallment(ctx, "enr-1", target.ID, 100_000, paidDate)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !inst.IsPaid {
		t.Fatal("installment should be paid")
	}
	if inst.PaidAmount != 100_000 {
		t.Fatalf("expected paid amount 100000, got %v", inst.PaidAmount)
	}
	if inst.PaidDate == nil || !inst.PaidDate.Equal(paidDate) {
		t.Fatalf("expected paid date %v, got %v", paidDate, inst.PaidDate)
	}
	if inst.IsOverdue || inst.DaysOverdue != 0 || inst.PenaltyAmount != 0 {
		t.Fatal("settling must clear the overdue state and penalty")
	}

	e, err := l.Enrollment(ctx, "enr-1")
	if err != nil {
		t.Fatalf("enrollment: %v", err)
	}
	if e.TotalPaid != 100_000 || e.PaymentsCount != 1 {
		t.Fatalf("aggregates not updated: total=%v count=%d", e.TotalPaid, e.PaymentsCount)
	}
	if e.OutstandingBalance != 1_100_000 {
		t.Fatalf("expected outstanding 1100000, got %v", e.OutstandingBalance)
	}
	// 100000 / 1200000 is 8.33 percent, rounds to 8
	if e.CompletionPercentage != 8 {
		t.Fatalf("expected completion 8, got %d", e.CompletionPercentage)
	}

	// the snapshot written to the store reflects the payment
	saved := store.SavedInstallments("enr-1")
	if len(saved) != 12 || !saved[0].IsPaid {
		t.Fatal("store snapshot should record the resolved installment")
	}
}

func TestResolveInstallment_ZeroDateMeansNow(t *testing.T) {
	now := date(2026, time.June, 1)
	l, _ := newTestLedger(t, testEnrollment(), nil, now)
	ctx := context.Background()

	schedule, _ := l.GetSchedule(ctx, "enr-1")

	inst, err := l.ResolveInstallment(ctx, "enr-1", schedule[0].ID, 50_000, time.Time{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if inst.PaidDate == nil || !inst.PaidDate.Equal(now) {
		t.Fatalf("expected paid date to default to now, got %v", inst.PaidDate)
	}
}

func TestResolveInstallment_Errors(t *testing.T) {
	l, _ := newTestLedger(t, testEnrollment(), nil, date(2026, time.June, 1))
	ctx := context.Background()

	schedule, _ := l.GetSchedule(ctx, "enr-1")

	if _, err := l.ResolveInstallment(ctx, "enr-1", schedule[0].ID, 0, time.Time{}); !errors.Is(err, domain.ErrInvalidPaidAmount) {
		t.Fatalf("expected ErrInvalidPaidAmount for zero amount, got %v", err)
	}
	if _, err := l.ResolveInstallment(ctx, "enr-1", schedule[0].ID, -5, time.Time{}); !errors.Is(err, domain.ErrInvalidPaidAmount) {
		t.Fatalf("expected ErrInvalidPaidAmount for negative amount, got %v", err)
	}
	if _, err := l.ResolveInstallment(ctx, "enr-1", "missing", 100, time.Time{}); !errors.Is(err, domain.ErrInstallmentNotFound) {
		t.Fatalf("expected ErrInstallmentNotFound, got %v", err)
	}
	if _, err := l.ResolveInstallment(ctx, "missing", "x", 100, time.Time{}); !errors.Is(err, domain.ErrEnrollmentNotFound) {
		t.Fatalf("expected ErrEnrollmentNotFound, got %v", err)
	}
}

func TestUnresolve_InvertsResolve(t *testing.T) {
	now := date(2026, time.June, 1)
	l, _ := newTestLedger(t, testEnrollment(), nil, now)
	ctx := context.Background()

	schedule, _ := l.GetSchedule(ctx, "enr-1")
	target := schedule[0]

	before, _ := l.Enrollment(ctx, "enr-1")
	beforeTotal := before.TotalPaid
	beforeCount := before.PaymentsCount
	beforeOutstanding := before.OutstandingBalance

	if _, err := l.ResolveInstallment(ctx, "enr-1", target.ID, 100_000, time.Time{}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	inst, err := l.UnresolveInstallment(ctx, "enr-1", target.ID)
	if err != nil {
		t.Fatalf("unresolve: %v", err)
	}

	if inst.IsPaid || inst.PaidDate != nil || inst.PaidAmount != 0 {
		t.Fatal("payment fields should be cleared")
	}
	// due 2026-02-15, still past due after the reversal
	if !inst.IsOverdue {
		t.Fatal("reversal should reinstate the overdue state")
	}
	if inst.PenaltyAmount == 0 {
		t.Fatal("reversal should reinstate the penalty")
	}

	after, _ := l.Enrollment(ctx, "enr-1")
	if after.TotalPaid != beforeTotal || after.PaymentsCount != beforeCount || after.OutstandingBalance != beforeOutstanding {
		t.Fatalf("aggregates not restored: total=%v count=%d outstanding=%v",
			after.TotalPaid, after.PaymentsCount, after.OutstandingBalance)
	}
}

func TestUnresolve_AlreadyUnpaid(t *testing.T) {
	now := date(2026, time.June, 1)
	l, _ := newTestLedger(t, testEnrollment(), nil, now)
	ctx := context.Background()

	schedule, _ := l.GetSchedule(ctx, "enr-1")
	future := schedule[11]

	before, _ := l.Enrollment(ctx, "enr-1")
	beforeTotal := before.TotalPaid

	inst, err := l.UnresolveInstallment(ctx, "enr-1", future.ID)
	if err != nil {
		t.Fatalf("unresolve: %v", err)
	}
	if inst.IsPaid || inst.IsOverdue {
		t.Fatal("future unpaid installment stays unpaid and not overdue")
	}

	after, _ := l.Enrollment(ctx, "enr-1")
	if after.TotalPaid != beforeTotal {
		t.Fatal("aggregates must not move for a no-op reversal")
	}
}

func TestResolve_OverpaymentNotClamped(t *testing.T) {
	e := testEnrollment()
	e.PropertyPrice = 100_000
	e.MonthlyPayment = 100_000
	e.PaymentDuration = 1
	l, _ := newTestLedger(t, e, nil, date(2026, time.January, 1))
	ctx := context.Background()

	schedule, _ := l.GetSchedule(ctx, "enr-1")

	if _, err := l.ResolveInstallment(ctx, "enr-1", schedule[0].ID, 150_000, time.Time{}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, _ := l.Enrollment(ctx, "enr-1")
	if got.CompletionPercentage != 150 {
		t.Fatalf("expected completion 150, got %d", got.CompletionPercentage)
	}
	if got.OutstandingBalance != -50_000 {
		t.Fatalf("expected outstanding -50000, got %v", got.OutstandingBalance)
	}
}

func TestStatusTransitions(t *testing.T) {
	e := testEnrollment()
	e.PropertyPrice = 200_000
	e.PaymentDuration = 2
	l, _ := newTestLedger(t, e, nil, date(2026, time.January, 1))
	ctx := context.Background()

	schedule, _ := l.GetSchedule(ctx, "enr-1")

	for _, inst := range schedule {
		if _, err := l.ResolveInstallment(ctx, "enr-1", inst.ID, 100_000, time.Time{}); err != nil {
			t.Fatalf("resolve %d: %v", inst.InstallmentNumber, err)
		}
	}

	got, _ := l.Enrollment(ctx, "enr-1")
	if got.Status != domain.EnrollmentStatusCompleted {
		t.Fatalf("expected COMPLETED after final payment, got %s", got.Status)
	}

	if _, err := l.UnresolveInstallment(ctx, "enr-1", schedule[1].ID); err != nil {
		t.Fatalf("unresolve: %v", err)
	}
	got, _ = l.Enrollment(ctx, "enr-1")
	if got.Status != domain.EnrollmentStatusActive {
		t.Fatalf("expected ACTIVE after reversal, got %s", got.Status)
	}
}

func TestCancelEnrollment(t *testing.T) {
	now := date(2026, time.June, 1)
	l, _ := newTestLedger(t, testEnrollment(), nil, now)
	ctx := context.Background()

	schedule, _ := l.GetSchedule(ctx, "enr-1")
	if _, err := l.ResolveInstallment(ctx, "enr-1", schedule[0].ID, 100_000, time.Time{}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	e, err := l.CancelEnrollment(ctx, "enr-1", "client request")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if e.Status != domain.EnrollmentStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", e.Status)
	}
	if e.CancelledDate == nil || !e.CancelledDate.Equal(now) {
		t.Fatalf("expected cancelled date %v, got %v", now, e.CancelledDate)
	}
	if e.CancellationReason == nil || *e.CancellationReason != "client request" {
		t.Fatal("cancellation reason not recorded")
	}

	// ledger state survives the cancellation
	if e.TotalPaid != 100_000 || e.PaymentsCount != 1 {
		t.Fatal("cancellation must not touch aggregates")
	}
	after, _ := l.GetSchedule(ctx, "enr-1")
	if !after[0].IsPaid {
		t.Fatal("cancellation must not touch the schedule")
	}
}

func TestCancelEnrollment_Unknown(t *testing.T) {
	l, _ := newTestLedger(t, testEnrollment(), nil, date(2026, time.January, 1))

	_, err := l.CancelEnrollment(context.Background(), "missing", "reason")
	if !errors.Is(err, domain.ErrEnrollmentNotFound) {
		t.Fatalf("expected ErrEnrollmentNotFound, got %v", err)
	}
}

func TestConcurrentResolves_AggregatesConsistent(t *testing.T) {
	l, _ := newTestLedger(t, testEnrollment(), nil, date(2026, time.January, 1))
	ctx := context.Background()

	schedule, err := l.GetSchedule(ctx, "enr-1")
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}

	var wg sync.WaitGroup
	for _, inst := range schedule {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := l.ResolveInstallment(ctx, "enr-1", id, 100_000, time.Time{}); err != nil {
				t.Errorf("resolve %s: %v", id, err)
			}
		}(inst.ID)
	}
	wg.Wait()

	e, _ := l.Enrollment(ctx, "enr-1")
	if e.TotalPaid != 1_200_000 {
		t.Fatalf("expected total paid 1200000, got %v", e.TotalPaid)
	}
	if e.PaymentsCount != 12 {
		t.Fatalf("expected 12 payments, got %d", e.PaymentsCount)
	}
	if e.OutstandingBalance != 0 {
		t.Fatalf("expected outstanding 0, got %v", e.OutstandingBalance)
	}
	if e.Status != domain.EnrollmentStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", e.Status)
	}
}
