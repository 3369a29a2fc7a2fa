package clients

import (
	"context"
	"fmt"

	ws "github.com/Qliqsee/1159-realty-crm-sub001/internal/transport/websocket"

	"github.com/Qliqsee/1159-realty-crm-sub001/internal/domain"
)

// EventClient pushes portal notifications over the websocket hub: statement
// export lifecycle events and ledger payment events. All methods are no-ops
// when the hub is absent so services can run without a websocket layer.
type EventClient struct {
	hub *ws.Hub
}

func NewEventClient(hub *ws.Hub) *EventClient {
	return &EventClient{hub: hub}
}

func (c *EventClient) NotifyExportProgress(ctx context.Context, userID int64, exportID string, progress float64, stage string) error {
	if c.hub == nil {
		return nil
	}

	data := map[string]interface{}{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_progress",
		Channel: fmt.Sprintf("export_progress#%d", userID),
		Data:    data,
	})
	return nil
}

func (c *EventClient) NotifyExportComplete(ctx context.Context, userID int64, exportID, url, filename string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_complete",
		Channel: fmt.Sprintf("export_complete#%d", userID),
		Data: map[string]interface{}{
			"id":       exportID,
			"url":      url,
			"filename": filename,
			"user_id":  userID,
		},
	})
	return nil
}

func (c *EventClient) NotifyExportFailed(ctx context.Context, userID int64, exportID, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_failed",
		Channel: fmt.Sprintf("export_failed#%d", userID),
		Data: map[string]interface{}{
			"id":      exportID,
			"message": errMsg,
			"user_id": userID,
		},
	})
	return nil
}

// NotifyInstallmentEvent tells the acting user's open portal sessions that an
// installment changed state, with the refreshed enrollment aggregates so the
// detail view can update without refetching.
func (c *EventClient) NotifyInstallmentEvent(ctx context.Context, userID int64, event string, inst *domain.Installment, e *domain.Enrollment) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    event,
		Channel: fmt.Sprintf("enrollment_ledger#%d", userID),
		Data: map[string]interface{}{
			"enrollment_id":         inst.EnrollmentID,
			"installment_id":        inst.ID,
			"installment_number":    inst.InstallmentNumber,
			"is_paid":               inst.IsPaid,
			"total_paid":            e.TotalPaid,
			"outstanding_balance":   e.OutstandingBalance,
			"completion_percentage": e.CompletionPercentage,
			"payments_count":        e.PaymentsCount,
		},
	})
	return nil
}
