package domain

import "errors"

var (
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrInvalidPaidAmount rejects non-positive payment amounts before any
	// state mutation.
	ErrInvalidPaidAmount = errors.New("paid amount must be positive")
)
