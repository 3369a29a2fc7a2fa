package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Qliqsee/1159-realty-crm-sub001/internal/domain"
)

type EnrollmentRepository struct {
	db *sql.DB
}

func NewEnrollmentRepository(db *sql.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) GetEnrollment(ctx context.Context, id string) (*domain.Enrollment, error) {
	query := `
		SELECT
			e.id,
			e.client_id,
			e.property_id,
			e.property_name,
			e.client_name,
			e.property_price,
			e.monthly_payment,
			e.payment_duration,
			e.start_date,
			e.overdue_penalty_rate,
			e.total_paid,
			e.outstanding_balance,
			e.completion_percentage,
			e.payments_count,
			e.status,
			e.cancelled_date,
			e.cancellation_reason,
			e.created_at,
			e.updated_at
		FROM enrollments e
		WHERE e.id = $1
	`

	var en domain.Enrollment
	var status string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&en.ID,
		&en.ClientID,
		&en.PropertyID,
		&en.PropertyName,
		&en.ClientName,
		&en.PropertyPrice,
		&en.MonthlyPayment,
		&en.PaymentDuration,
		&en.StartDate,
		&en.OverduePenaltyRate,
		&en.TotalPaid,
		&en.OutstandingBalance,
		&en.CompletionPercentage,
		&en.PaymentsCount,
		&status,
		&en.CancelledDate,
		&en.CancellationReason,
		&en.CreatedAt,
		&en.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEnrollmentNotFound
		}
		return nil, err
	}

	en.Status = domain.EnrollmentStatus(status)
	return &en, nil
}

// PaymentHistory loads the settled installment rows previously snapshotted
// for an enrollment, keyed by installment number. Used to seed schedule
// generation after a restart so paid dates survive instead of being re-derived.
func (r *EnrollmentRepository) PaymentHistory(ctx context.Context, enrollmentID string) (domain.PaymentHistory, error) {
	query := `
		SELECT installment_number, paid_date, paid_amount
		FROM installments
		WHERE enrollment_id = $1 AND is_paid = true
	`

	rows, err := r.db.QueryContext(ctx, query, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := domain.PaymentHistory{}
	for rows.Next() {
		var number int
		var paidDate sql.NullTime
		var paidAmount float64
		if err := rows.Scan(&number, &paidDate, &paidAmount); err != nil {
			return nil, err
		}
		if !paidDate.Valid {
			continue
		}
		history[number] = domain.HistoricalPayment{
			PaidDate:   paidDate.Time,
			PaidAmount: paidAmount,
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

// SaveEnrollment writes the ledger-owned fields back to the enrollment row.
// Contract terms are immutable after creation and are not touched here.
func (r *EnrollmentRepository) SaveEnrollment(ctx context.Context, e *domain.Enrollment) error {
	query := `
		UPDATE enrollments SET
			total_paid            = $2,
			outstanding_balance   = $3,
			completion_percentage = $4,
			payments_count        = $5,
			status                = $6,
			cancelled_date        = $7,
			cancellation_reason   = $8,
			updated_at            = now()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.TotalPaid,
		e.OutstandingBalance,
		e.CompletionPercentage,
		e.PaymentsCount,
		string(e.Status),
		e.CancelledDate,
		e.CancellationReason,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrEnrollmentNotFound
	}
	return nil
}

func (r *EnrollmentRepository) SaveInstallments(ctx context.Context, enrollmentID string, installments []domain.Installment) error {
	query := `
		INSERT INTO installments (
			id, enrollment_id, installment_number, due_date, amount,
			is_paid, paid_date, paid_amount, is_overdue, days_overdue,
			penalty_amount, invoice_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (enrollment_id, installment_number) DO UPDATE SET
			is_paid        = EXCLUDED.is_paid,
			paid_date      = EXCLUDED.paid_date,
			paid_amount    = EXCLUDED.paid_amount,
			is_overdue     = EXCLUDED.is_overdue,
			days_overdue   = EXCLUDED.days_overdue,
			penalty_amount = EXCLUDED.penalty_amount
	`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range installments {
		inst := &installments[i]
		if _, err := tx.ExecContext(ctx, query,
			inst.ID,
			enrollmentID,
			inst.InstallmentNumber,
			inst.DueDate,
			inst.Amount,
			inst.IsPaid,
			inst.PaidDate,
			inst.PaidAmount,
			inst.IsOverdue,
			inst.DaysOverdue,
			inst.PenaltyAmount,
			inst.InvoiceID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}
