package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	records []AdminNotification
	nextID  int64
}

func (m *memoryRepo) CreateAdminNotification(_ context.Context, n AdminNotification) (int64, error) {
	m.nextID++
	n.ID = m.nextID
	m.records = append(m.records, n)
	return n.ID, nil
}

func (m *memoryRepo) DeleteByBillAndType(_ context.Context, billID int64, typ string) error {
	kept := m.records[:0]
	for _, n := range m.records {
		if n.BillID != billID || n.Type != typ {
			kept = append(kept, n)
		}
	}
	m.records = kept
	return nil
}

func (m *memoryRepo) ListByBill(_ context.Context, billID int64) ([]AdminNotification, error) {
	var out []AdminNotification
	for _, n := range m.records {
		if n.BillID == billID {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakePusher struct {
	sent []PushMessage
	fail error
}

func (f *fakePusher) EnqueuePush(_ context.Context, msg PushMessage) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testEvent() BillEvent {
	return BillEvent{BillID: 5, CustomerID: 2, BuildingID: 1, Room: "P101", Period: 6, Year: 2025, TotalAmount: 1000000}
}

func TestBillApproved(t *testing.T) {
	repo := &memoryRepo{}
	pusher := &fakePusher{}
	svc := NewService(repo, pusher, slog.Default())

	require.NoError(t, svc.BillApproved(context.Background(), testEvent()))
	require.Len(t, repo.records, 1)
	require.Equal(t, TypeBillApproved, repo.records[0].Type)
	require.Len(t, pusher.sent, 1)
	require.Equal(t, int64(2), pusher.sent[0].CustomerID)
	require.Equal(t, "5", pusher.sent[0].Data["billId"])
}

func TestRetractBillApproved(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, &fakePusher{}, slog.Default())

	require.NoError(t, svc.BillApproved(context.Background(), testEvent()))
	require.NoError(t, svc.RetractBillApproved(context.Background(), 5))

	left, err := svc.NotificationsByBill(context.Background(), 5)
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestPaymentConfirmedAndDelete(t *testing.T) {
	repo := &memoryRepo{}
	pusher := &fakePusher{}
	svc := NewService(repo, pusher, slog.Default())

	require.NoError(t, svc.PaymentConfirmed(context.Background(), testEvent()))
	require.Len(t, pusher.sent, 1)

	require.NoError(t, svc.DeletePaymentCollected(context.Background(), 5))
	left, err := svc.NotificationsByBill(context.Background(), 5)
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestPushFailureIsNotFatal(t *testing.T) {
	repo := &memoryRepo{}
	pusher := &fakePusher{fail: errors.New("queue down")}
	svc := NewService(repo, pusher, slog.Default())

	require.NoError(t, svc.BillApproved(context.Background(), testEvent()))
	require.Len(t, repo.records, 1)
}

func TestNoPushWithoutCustomer(t *testing.T) {
	repo := &memoryRepo{}
	pusher := &fakePusher{}
	svc := NewService(repo, pusher, slog.Default())

	ev := testEvent()
	ev.CustomerID = 0
	require.NoError(t, svc.BillApproved(context.Background(), ev))
	require.Empty(t, pusher.sent)
}
