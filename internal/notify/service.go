package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// RepositoryPort defines admin notification persistence.
type RepositoryPort interface {
	CreateAdminNotification(ctx context.Context, n AdminNotification) (int64, error)
	DeleteByBillAndType(ctx context.Context, billID int64, typ string) error
	ListByBill(ctx context.Context, billID int64) ([]AdminNotification, error)
}

// PushEnqueuer hands customer pushes to the delivery queue.
type PushEnqueuer interface {
	EnqueuePush(ctx context.Context, msg PushMessage) error
}

// Service records admin notifications and enqueues customer pushes.
type Service struct {
	repo   RepositoryPort
	pusher PushEnqueuer
	logger *slog.Logger
}

// NewService builds a notification service.
func NewService(repo RepositoryPort, pusher PushEnqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pusher: pusher, logger: logger}
}

// BillApproved records the admin notification and pushes the
// customer-facing message for a freshly approved bill.
func (s *Service) BillApproved(ctx context.Context, ev BillEvent) error {
	title := "Hóa đơn đã duyệt"
	body := fmt.Sprintf("Hóa đơn tháng %d/%d phòng %s đã được duyệt, tổng tiền %d đ.", ev.Period, ev.Year, ev.Room, ev.TotalAmount)
	_, err := s.repo.CreateAdminNotification(ctx, AdminNotification{
		Type:       TypeBillApproved,
		BillID:     ev.BillID,
		CustomerID: ev.CustomerID,
		Title:      title,
		Body:       body,
	})
	if err != nil {
		return fmt.Errorf("create admin notification: %w", err)
	}
	s.push(ctx, ev, title, body)
	return nil
}

// RetractBillApproved removes the approval notification when a bill
// goes back to draft.
func (s *Service) RetractBillApproved(ctx context.Context, billID int64) error {
	return s.repo.DeleteByBillAndType(ctx, billID, TypeBillApproved)
}

// PaymentConfirmed records the collection and pushes the payment
// confirmation. Called only when a bill reaches fully paid.
func (s *Service) PaymentConfirmed(ctx context.Context, ev BillEvent) error {
	title := "Đã nhận thanh toán"
	body := fmt.Sprintf("Hóa đơn tháng %d/%d phòng %s đã được thanh toán đủ %d đ. Cảm ơn quý khách.", ev.Period, ev.Year, ev.Room, ev.TotalAmount)
	_, err := s.repo.CreateAdminNotification(ctx, AdminNotification{
		Type:       TypePaymentCollected,
		BillID:     ev.BillID,
		CustomerID: ev.CustomerID,
		Title:      title,
		Body:       body,
	})
	if err != nil {
		return fmt.Errorf("create admin notification: %w", err)
	}
	s.push(ctx, ev, title, body)
	return nil
}

// DeletePaymentCollected removes the payment notifications for a bill,
// part of the full uncollect reversal.
func (s *Service) DeletePaymentCollected(ctx context.Context, billID int64) error {
	return s.repo.DeleteByBillAndType(ctx, billID, TypePaymentCollected)
}

// NotificationsByBill lists admin notifications for one bill.
func (s *Service) NotificationsByBill(ctx context.Context, billID int64) ([]AdminNotification, error) {
	return s.repo.ListByBill(ctx, billID)
}

// push enqueues the customer push; delivery is asynchronous and
// best-effort, failures only logged.
func (s *Service) push(ctx context.Context, ev BillEvent, title, body string) {
	if s.pusher == nil || ev.CustomerID == 0 {
		return
	}
	msg := PushMessage{
		CustomerID: ev.CustomerID,
		Title:      title,
		Body:       body,
		Data: map[string]string{
			"billId": strconv.FormatInt(ev.BillID, 10),
		},
	}
	if err := s.pusher.EnqueuePush(ctx, msg); err != nil {
		s.logger.Warn("enqueue push", slog.Int64("customer_id", ev.CustomerID), slog.Any("error", err))
	}
}
