package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/Qliqsee/1159-realty-crm-sub001/internal/clients"
	"github.com/Qliqsee/1159-realty-crm-sub001/internal/domain"
)

// ScheduleSource is the ledger surface the statement exporter reads from.
type ScheduleSource interface {
	Enrollment(ctx context.Context, enrollmentID string) (*domain.Enrollment, error)
	GetSchedule(ctx context.Context, enrollmentID string) ([]domain.Installment, error)
}

type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	UserID   int64     `json:"user_id"`
	Filters  any       `json:"filters"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    *string   `json:"error,omitempty"`
	Created  time.Time `json:"created_at"`
}

const (
	exportSetKey = "export_ids"
	exportTTL    = 20 * time.Minute
)

type StatementColumn struct {
	Header string
	Value  func(inst domain.Installment) any
}

var statementColumns = map[string]StatementColumn{
	"installment_number": {Header: "No.", Value: func(i domain.Installment) any { return i.InstallmentNumber }},
	"due_date":           {Header: "Due Date", Value: func(i domain.Installment) any { return i.DueDate.Format("2006-01-02") }},
	"amount":             {Header: "Amount", Value: func(i domain.Installment) any { return i.Amount }},
	"is_paid":            {Header: "Paid", Value: func(i domain.Installment) any { return i.IsPaid }},
	"paid_date":          {Header: "Paid Date", Value: func(i domain.Installment) any { return datePtr(i.PaidDate) }},
	"paid_amount": {Header: "Paid Amount", Value: func(i domain.Installment) any {
		if !i.IsPaid {
			return ""
		}
		return i.PaidAmount
	}},
	"is_overdue":     {Header: "Overdue", Value: func(i domain.Installment) any { return i.IsOverdue }},
	"days_overdue":   {Header: "Days Overdue", Value: func(i domain.Installment) any { return i.DaysOverdue }},
	"penalty_amount": {Header: "Penalty", Value: func(i domain.Installment) any { return i.PenaltyAmount }},
	"invoice_id":     {Header: "Invoice", Value: func(i domain.Installment) any { return strPtr(i.InvoiceID) }},
}

func strPtr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func datePtr(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format("2006-01-02")
}

// StatementService renders an enrollment's installment schedule to XLSX in
// the background, tracking progress in Redis and pushing updates to the
// requesting user's portal sessions.
type StatementService struct {
	ledger  ScheduleSource
	redis   *clients.RedisClient
	storage *clients.StorageClient
	s3      *clients.S3Client
	events  *clients.EventClient
}

func NewStatementService(
	ledger ScheduleSource,
	redis *clients.RedisClient,
	storage *clients.StorageClient,
	s3 *clients.S3Client,
	events *clients.EventClient,
) *StatementService {
	return &StatementService{
		ledger:  ledger,
		redis:   redis,
		storage: storage,
		s3:      s3,
		events:  events,
	}
}

func (s *StatementService) saveExportStatus(ctx context.Context, st *ExportStatus) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, exportSetKey, st.Key)
}

// StartStatementExport validates the enrollment, registers an export status
// and generates the statement in the background. Returns the export id the
// caller polls (or watches over the websocket) for completion.
func (s *StatementService) StartStatementExport(ctx context.Context, enrollmentID string, selected []string, userID int64) (string, error) {
	if len(selected) == 0 {
		selected = []string{
			"installment_number", "due_date", "amount", "is_paid",
			"paid_date", "paid_amount", "is_overdue", "days_overdue",
			"penalty_amount", "invoice_id",
		}
	}

	// fail fast before spawning the worker
	enrollment, err := s.ledger.Enrollment(ctx, enrollmentID)
	if err != nil {
		return "", err
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	now := time.Now()

	status := &ExportStatus{
		Key:    exportID,
		Type:   "schedule_statement",
		UserID: userID,
		Filters: map[string]interface{}{
			"enrollment_id": enrollmentID,
			"fields":        selected,
		},
		Progress: 0,
		FileURL:  nil,
		Created:  now,
	}

	_ = s.saveExportStatus(ctx, status)

	go s.runStatementExport(context.Background(), status, enrollment, selected)

	return exportID, nil
}

func (s *StatementService) runStatementExport(ctx context.Context, status *ExportStatus, enrollment *domain.Enrollment, selected []string) {
	installments, err := s.ledger.GetSchedule(ctx, enrollment.ID)
	if err != nil {
		s.failExport(ctx, status, fmt.Sprintf("load schedule failed: %v", err))
		return
	}

	var cols []StatementColumn
	for _, key := range selected {
		col, ok := statementColumns[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		s.failExport(ctx, status, "no exportable fields selected")
		return
	}

	f := excelize.NewFile()
	sheet := "Schedule"
	f.SetSheetName(f.GetSheetName(0), sheet)

	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", status.UserID)})

	// enrollment summary block above the schedule
	_ = f.SetCellValue(sheet, "A1", "Enrollment")
	_ = f.SetCellValue(sheet, "B1", enrollment.ID)
	_ = f.SetCellValue(sheet, "A2", "Property Price")
	_ = f.SetCellValue(sheet, "B2", enrollment.PropertyPrice)
	_ = f.SetCellValue(sheet, "A3", "Total Paid")
	_ = f.SetCellValue(sheet, "B3", enrollment.TotalPaid)
	_ = f.SetCellValue(sheet, "A4", "Outstanding Balance")
	_ = f.SetCellValue(sheet, "B4", enrollment.OutstandingBalance)
	_ = f.SetCellValue(sheet, "A5", "Completion %")
	_ = f.SetCellValue(sheet, "B5", enrollment.CompletionPercentage)

	const headerRow = 7
	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(installments)
	rowIdx := headerRow + 1
	for i, inst := range installments {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, col.Value(inst))
		}
		rowIdx++

		if (i+1)%25 == 0 || i == total-1 {
			raw := float64(i+1) / float64(total) * 100.0
			progress := math.Round(raw)
			// 100% is reserved for a ready file URL
			if progress >= 100 {
				progress = 95
			}
			status.Progress = progress
			_ = s.saveExportStatus(ctx, status)
			if s.events != nil {
				_ = s.events.NotifyExportProgress(ctx, status.UserID, status.Key, progress, "generating")
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.failExport(ctx, status, fmt.Sprintf("write workbook failed: %v", err))
		return
	}
	data := buf.Bytes()

	fileName := fmt.Sprintf("schedule_%s_%s.xlsx", enrollment.ID, time.Now().Format("20060102_150405"))

	status.Progress = 95
	_ = s.saveExportStatus(ctx, status)
	if s.events != nil {
		_ = s.events.NotifyExportProgress(ctx, status.UserID, status.Key, 95, "uploading")
	}

	url, err := s.storeStatement(ctx, fileName, data)
	if err != nil {
		s.failExport(ctx, status, fmt.Sprintf("store statement failed: %v", err))
		return
	}

	status.FileURL = &url
	status.Progress = 100
	_ = s.saveExportStatus(ctx, status)
	if s.events != nil {
		_ = s.events.NotifyExportProgress(ctx, status.UserID, status.Key, 100, "ready")
		_ = s.events.NotifyExportComplete(ctx, status.UserID, status.Key, url, fileName)
	}
}

// storeStatement prefers object storage with a presigned URL and falls back to
// the local statement directory served under the public files prefix.
func (s *StatementService) storeStatement(ctx context.Context, fileName string, data []byte) (string, error) {
	if s.s3 != nil {
		key, err := s.s3.UploadXLSX(ctx, fileName, data)
		if err == nil {
			url, err2 := s.s3.GetTemporaryURL(ctx, key, 48*time.Hour)
			if err2 == nil {
				return url, nil
			}
			log.Printf("[EXPORT] presign %q failed, falling back to local storage: %v", key, err2)
		} else {
			log.Printf("[EXPORT] s3 upload failed, falling back to local storage: %v", err)
		}
	}

	if s.storage == nil {
		return "", fmt.Errorf("no storage backend configured")
	}
	saved, err := s.storage.Save(ctx, fileName, data)
	if err != nil {
		return "", err
	}
	return s.storage.GetURL(saved), nil
}

func (s *StatementService) failExport(ctx context.Context, status *ExportStatus, msg string) {
	log.Printf("[EXPORT] %s: %s", status.Key, msg)
	status.Error = &msg
	status.Progress = 100
	_ = s.saveExportStatus(ctx, status)
	if s.events != nil {
		_ = s.events.NotifyExportFailed(ctx, status.UserID, status.Key, msg)
	}
}
