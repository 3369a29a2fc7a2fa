package rest

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Qliqsee/1159-realty-crm-sub001/internal/domain"
	"github.com/Qliqsee/1159-realty-crm-sub001/internal/transport/auth"
)

type installmentResponse struct {
	ID                string  `json:"id"`
	EnrollmentID      string  `json:"enrollment_id"`
	InstallmentNumber int     `json:"installment_number"`
	DueDate           string  `json:"due_date"`
	Amount            float64 `json:"amount"`
	IsPaid            bool    `json:"is_paid"`
	PaidDate          *string `json:"paid_date,omitempty"`
	PaidAmount        float64 `json:"paid_amount"`
	IsOverdue         bool    `json:"is_overdue"`
	DaysOverdue       int     `json:"days_overdue"`
	PenaltyAmount     float64 `json:"penalty_amount"`
	InvoiceID         *string `json:"invoice_id,omitempty"`
}

type enrollmentResponse struct {
	ID                   string  `json:"id"`
	ClientID             string  `json:"client_id"`
	PropertyID           string  `json:"property_id"`
	PropertyName         *string `json:"property_name,omitempty"`
	ClientName           *string `json:"client_name,omitempty"`
	PropertyPrice        float64 `json:"property_price"`
	MonthlyPayment       float64 `json:"monthly_payment"`
	PaymentDuration      int     `json:"payment_duration"`
	StartDate            string  `json:"start_date"`
	OverduePenaltyRate   float64 `json:"overdue_penalty_rate"`
	TotalPaid            float64 `json:"total_paid"`
	OutstandingBalance   float64 `json:"outstanding_balance"`
	CompletionPercentage int     `json:"completion_percentage"`
	PaymentsCount        int     `json:"payments_count"`
	Status               string  `json:"status"`
	CancelledDate        *string `json:"cancelled_date,omitempty"`
	CancellationReason   *string `json:"cancellation_reason,omitempty"`
}

func toInstallmentResponse(inst *domain.Installment) installmentResponse {
	resp := installmentResponse{
		ID:                inst.ID,
		EnrollmentID:      inst.EnrollmentID,
		InstallmentNumber: inst.InstallmentNumber,
		DueDate:           inst.DueDate.Format("2006-01-02"),
		Amount:            inst.Amount,
		IsPaid:            inst.IsPaid,
		PaidAmount:        inst.PaidAmount,
		IsOverdue:         inst.IsOverdue,
		DaysOverdue:       inst.DaysOverdue,
		PenaltyAmount:     inst.PenaltyAmount,
		InvoiceID:         inst.InvoiceID,
	}
	if inst.PaidDate != nil {
		s := inst.PaidDate.Format("2006-01-02")
		resp.PaidDate = &s
	}
	return resp
}

func toEnrollmentResponse(e *domain.Enrollment) enrollmentResponse {
	resp := enrollmentResponse{
		ID:                   e.ID,
		ClientID:             e.ClientID,
		PropertyID:           e.PropertyID,
		PropertyName:         e.PropertyName,
		ClientName:           e.ClientName,
		PropertyPrice:        e.PropertyPrice,
		MonthlyPayment:       e.MonthlyPayment,
		PaymentDuration:      e.PaymentDuration,
		StartDate:            e.StartDate.Format("2006-01-02"),
		OverduePenaltyRate:   e.OverduePenaltyRate,
		TotalPaid:            e.TotalPaid,
		OutstandingBalance:   e.OutstandingBalance,
		CompletionPercentage: e.CompletionPercentage,
		PaymentsCount:        e.PaymentsCount,
		Status:               string(e.Status),
		CancellationReason:   e.CancellationReason,
	}
	if e.CancelledDate != nil {
		s := e.CancelledDate.Format(time.RFC3339)
		resp.CancelledDate = &s
	}
	return resp
}

func (h *Handler) getEnrollment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "enrollment_id")

	enrollment, err := h.ledger.Enrollment(r.Context(), enrollmentID)
	if err != nil {
		h.ledgerError(w, "getEnrollment", err)
		return
	}

	Success(w, "", toEnrollmentResponse(enrollment))
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "enrollment_id")

	installments, err := h.ledger.GetSchedule(r.Context(), enrollmentID)
	if err != nil {
		h.ledgerError(w, "getSchedule", err)
		return
	}

	resp := make([]installmentResponse, len(installments))
	for i := range installments {
		resp[i] = toInstallmentResponse(&installments[i])
	}

	Success(w, "", resp)
}

func (h *Handler) resolveInstallment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "enrollment_id")
	installmentID := chi.URLParam(r, "installment_id")

	req, err := ValidateResolveRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	inst, err := h.ledger.ResolveInstallment(r.Context(), enrollmentID, installmentID, req.PaidAmount, req.PaidDate)
	if err != nil {
		h.ledgerError(w, "resolveInstallment", err)
		return
	}

	h.notifyInstallmentEvent(r, "installment_resolved", inst)

	Success(w, "Installment resolved", toInstallmentResponse(inst))
}

func (h *Handler) unresolveInstallment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "enrollment_id")
	installmentID := chi.URLParam(r, "installment_id")

	inst, err := h.ledger.UnresolveInstallment(r.Context(), enrollmentID, installmentID)
	if err != nil {
		h.ledgerError(w, "unresolveInstallment", err)
		return
	}

	h.notifyInstallmentEvent(r, "installment_unresolved", inst)

	Success(w, "Installment payment reversed", toInstallmentResponse(inst))
}

func (h *Handler) cancelEnrollment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "enrollment_id")

	req, err := ValidateCancelRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	enrollment, err := h.ledger.CancelEnrollment(r.Context(), enrollmentID, req.Reason)
	if err != nil {
		h.ledgerError(w, "cancelEnrollment", err)
		return
	}

	Success(w, "Enrollment cancelled", toEnrollmentResponse(enrollment))
}

func (h *Handler) ledgerError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrEnrollmentNotFound):
		ErrorNotFound(w, "enrollment not found")
	case errors.Is(err, domain.ErrInstallmentNotFound):
		ErrorNotFound(w, "installment not found")
	case errors.Is(err, domain.ErrInvalidPaidAmount):
		ErrorBadRequest(w, err.Error())
	default:
		log.Printf("[HTTP] %s error: %v", op, err)
		ErrorInternal(w, "internal error")
	}
}

// notifyInstallmentEvent pushes the state change to the acting user's open
// portal sessions. Best-effort: a missing hub or unauthenticated test request
// just skips the notification.
func (h *Handler) notifyInstallmentEvent(r *http.Request, event string, inst *domain.Installment) {
	if h.events == nil {
		return
	}
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		return
	}
	enrollment, err := h.ledger.Enrollment(r.Context(), inst.EnrollmentID)
	if err != nil {
		return
	}
	_ = h.events.NotifyInstallmentEvent(r.Context(), userID, event, inst, enrollment)
}
