package schedule

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Qliqsee/1159-realty-crm-sub001/internal/domain"
)

// Generate produces the installment sequence for an enrollment, ordered by
// installment number. The result covers exactly PaymentDuration periods; a
// non-positive duration yields nil.
//
// Due dates advance by whole calendar months from StartDate (AddDate
// semantics, so the day-of-month clamps on short months). The first
// PaymentsCount installments are marked paid, with paid date and amount taken
// from history when a record exists for that installment number and falling
// back to the due date and scheduled amount otherwise. Generation is
// deterministic given the enrollment, history and now.
func Generate(e domain.Enrollment, history domain.PaymentHistory, now time.Time) []domain.Installment {
	if e.PaymentDuration < 1 || e.MonthlyPayment <= 0 {
		return nil
	}

	installments := make([]domain.Installment, e.PaymentDuration)

	for i := 0; i < e.PaymentDuration; i++ {
		number := i + 1
		dueDate := e.StartDate.AddDate(0, number, 0)

		inst := domain.Installment{
			ID:                uuid.NewString(),
			EnrollmentID:      e.ID,
			InstallmentNumber: number,
			DueDate:           dueDate,
			Amount:            e.MonthlyPayment,
		}

		if i < e.PaymentsCount {
			inst.IsPaid = true
			paidDate := dueDate
			paidAmount := e.MonthlyPayment
			if h, ok := history[number]; ok {
				paidDate = h.PaidDate
				if h.PaidAmount > 0 {
					paidAmount = h.PaidAmount
				}
			}
			inst.PaidDate = &paidDate
			inst.PaidAmount = paidAmount
		} else if dueDate.Before(now) {
			inst.IsOverdue = true
			inst.DaysOverdue = DaysOverdue(dueDate, now)
			inst.PenaltyAmount = Penalty(inst.Amount, e.OverduePenaltyRate, inst.DaysOverdue)
		}

		installments[i] = inst
	}

	return installments
}

// DaysOverdue returns how many whole days dueDate lies in the past, zero if it
// does not.
func DaysOverdue(dueDate, now time.Time) int {
	if !dueDate.Before(now) {
		return 0
	}
	return int(now.Sub(dueDate).Hours() / 24)
}

// Penalty computes the late fee for an overdue installment: the penalty rate
// is a percentage applied once per completed 30-day overdue period.
func Penalty(amount, rate float64, daysOverdue int) float64 {
	if daysOverdue <= 0 || rate <= 0 {
		return 0
	}
	periods := math.Floor(float64(daysOverdue) / 30)
	return amount * rate * periods / 100
}
