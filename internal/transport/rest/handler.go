package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Qliqsee/1159-realty-crm-sub001/internal/clients"
	"github.com/Qliqsee/1159-realty-crm-sub001/internal/domain"
)

// LedgerService is the installment ledger surface the portal pages consume.
type LedgerService interface {
	GetSchedule(ctx context.Context, enrollmentID string) ([]domain.Installment, error)
	Enrollment(ctx context.Context, enrollmentID string) (*domain.Enrollment, error)
	ResolveInstallment(ctx context.Context, enrollmentID, installmentID string, paidAmount float64, paidDate time.Time) (*domain.Installment, error)
	UnresolveInstallment(ctx context.Context, enrollmentID, installmentID string) (*domain.Installment, error)
	CancelEnrollment(ctx context.Context, enrollmentID, reason string) (*domain.Enrollment, error)
}

type StatementExporter interface {
	StartStatementExport(ctx context.Context, enrollmentID string, selected []string, userID int64) (string, error)
}

type ExportListService interface {
	GetExports(ctx context.Context, userID int64) ([]interface{}, error)
	GetExport(ctx context.Context, exportID string, userID int64) (interface{}, error)
}

type Handler struct {
	ledger     LedgerService
	statements StatementExporter
	exportList ExportListService
	events     *clients.EventClient
}

func NewHandler(ledger LedgerService, statements StatementExporter, exportList ExportListService, events *clients.EventClient) *Handler {
	return &Handler{
		ledger:     ledger,
		statements: statements,
		exportList: exportList,
		events:     events,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/enrollments/{enrollment_id}", func(r chi.Router) {
		r.Get("/", h.getEnrollment)
		r.Get("/schedule", h.getSchedule)
		r.Post("/cancel", h.cancelEnrollment)
		r.Route("/installments/{installment_id}", func(r chi.Router) {
			r.Post("/resolve", h.resolveInstallment)
			r.Post("/unresolve", h.unresolveInstallment)
		})
	})

	r.Route("/export", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Get("/{export_id}", h.getExport)
		r.Post("/schedules", h.exportStatement)
	})

	return r
}
