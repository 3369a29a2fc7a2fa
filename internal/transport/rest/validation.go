package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type ResolveRequest struct {
	PaidAmount float64
	PaidDate   time.Time // zero means now
}

type rawResolveRequest struct {
	PaidAmount *float64 `json:"paid_amount"`
	PaidDate   string   `json:"paid_date"`
}

// ValidateResolveRequest parses the payment-recording body. paid_amount is
// required and must be positive; paid_date is optional and accepts YYYY-MM-DD
// or RFC 3339.
func ValidateResolveRequest(r *http.Request) (*ResolveRequest, error) {
	var raw rawResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, &ValidationError{Message: "invalid JSON"}
	}

	if raw.PaidAmount == nil {
		return nil, &ValidationError{Field: "paid_amount", Message: "paid_amount is required"}
	}
	if *raw.PaidAmount <= 0 {
		return nil, &ValidationError{Field: "paid_amount", Message: "paid_amount must be positive"}
	}

	req := &ResolveRequest{PaidAmount: *raw.PaidAmount}

	if raw.PaidDate != "" {
		parsed, err := parseDate(raw.PaidDate)
		if err != nil {
			return nil, &ValidationError{Field: "paid_date", Message: "paid_date must be YYYY-MM-DD or RFC 3339"}
		}
		req.PaidDate = parsed
	}

	return req, nil
}

type CancelRequest struct {
	Reason string
}

type rawCancelRequest struct {
	Reason string `json:"reason"`
}

func ValidateCancelRequest(r *http.Request) (*CancelRequest, error) {
	var raw rawCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, &ValidationError{Message: "invalid JSON"}
	}

	if raw.Reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "reason is required"}
	}

	return &CancelRequest{Reason: raw.Reason}, nil
}

type StatementExportRequest struct {
	EnrollmentID string   `json:"enrollment_id"`
	Fields       []string `json:"fields"`
}

func ValidateStatementExportRequest(r *http.Request) (*StatementExportRequest, error) {
	var req StatementExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return nil, &ValidationError{Message: "invalid JSON"}
	}

	if req.EnrollmentID == "" {
		return nil, &ValidationError{Field: "enrollment_id", Message: "enrollment_id is required"}
	}

	return &req, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
