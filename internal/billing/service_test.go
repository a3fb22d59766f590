package billing

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhatro-erp/nhatro-erp/internal/ledger"
	"github.com/nhatro-erp/nhatro-erp/internal/notify"
	"github.com/nhatro-erp/nhatro-erp/internal/shared"
)

type memoryRepo struct {
	bills  map[int64]*Bill
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{bills: map[int64]*Bill{}, nextID: 1}
}

func (m *memoryRepo) CreateBill(_ context.Context, b Bill) (int64, error) {
	id := m.nextID
	m.nextID++
	b.ID = id
	m.bills[id] = &b
	return id, nil
}

func (m *memoryRepo) GetBill(_ context.Context, id int64) (*Bill, error) {
	b, ok := m.bills[id]
	if !ok {
		return nil, ErrBillNotFound
	}
	copied := *b
	return &copied, nil
}

func (m *memoryRepo) UpdateBill(_ context.Context, id int64, updates map[string]any) error {
	b, ok := m.bills[id]
	if !ok {
		return ErrBillNotFound
	}
	for col, val := range updates {
		switch col {
		case "approved":
			b.Approved = val.(bool)
		case "status":
			b.Status = val.(Status)
		case "paid_amount":
			b.PaidAmount = val.(int64)
		case "paid_date":
			if val == nil {
				b.PaidDate = nil
			} else {
				d := val.(time.Time)
				b.PaidDate = &d
			}
		case "services":
			b.Services = val.([]LineItem)
		case "total_amount":
			b.TotalAmount = val.(int64)
		case "bill_date":
			b.BillDate = val.(time.Time)
		case "due_day":
			b.DueDay = val.(int)
		default:
			return fmt.Errorf("unexpected column %q", col)
		}
	}
	return nil
}

func (m *memoryRepo) DeleteBill(_ context.Context, id int64) error {
	if _, ok := m.bills[id]; !ok {
		return ErrBillNotFound
	}
	delete(m.bills, id)
	return nil
}

func (m *memoryRepo) ListBills(_ context.Context, req ListBillsRequest) ([]Bill, int, error) {
	var out []Bill
	for _, b := range m.bills {
		if req.BuildingID > 0 && b.BuildingID != req.BuildingID {
			continue
		}
		if req.Status != "" && b.Status != req.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *memoryRepo) PreviousBill(_ context.Context, buildingID int64, room string, year, period int) (*Bill, error) {
	var best *Bill
	for _, b := range m.bills {
		if b.BuildingID != buildingID || b.Room != room || b.IsTerminationBill {
			continue
		}
		if b.Year > year || (b.Year == year && b.Period >= period) {
			continue
		}
		if best == nil || b.Year > best.Year || (b.Year == best.Year && b.Period > best.Period) {
			best = b
		}
	}
	if best == nil {
		return nil, ErrBillNotFound
	}
	copied := *best
	return &copied, nil
}

func (m *memoryRepo) TerminationBillByContract(_ context.Context, contractID int64) (*Bill, error) {
	for _, b := range m.bills {
		if b.IsTerminationBill && b.ContractID == contractID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, ErrBillNotFound
}

type fakeLedger struct {
	collections []ledger.CollectionInput
	deleted     []int64
}

func (f *fakeLedger) RecordCollection(_ context.Context, in ledger.CollectionInput) (*ledger.Transaction, error) {
	f.collections = append(f.collections, in)
	return &ledger.Transaction{ID: int64(len(f.collections))}, nil
}

func (f *fakeLedger) DeleteTransactionsByBill(_ context.Context, billID int64) error {
	f.deleted = append(f.deleted, billID)
	kept := f.collections[:0]
	for _, c := range f.collections {
		if c.BillID != billID {
			kept = append(kept, c)
		}
	}
	f.collections = kept
	return nil
}

func (f *fakeLedger) TransactionsByBill(_ context.Context, billID int64) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for i, c := range f.collections {
		if c.BillID == billID {
			out = append(out, ledger.Transaction{ID: int64(i + 1), BillID: billID})
		}
	}
	return out, nil
}

type fakeNotifier struct {
	approved       []int64
	retracted      []int64
	paymentConfirm []int64
	paymentDeleted []int64
}

func (f *fakeNotifier) BillApproved(_ context.Context, ev notify.BillEvent) error {
	f.approved = append(f.approved, ev.BillID)
	return nil
}

func (f *fakeNotifier) RetractBillApproved(_ context.Context, billID int64) error {
	f.retracted = append(f.retracted, billID)
	return nil
}

func (f *fakeNotifier) PaymentConfirmed(_ context.Context, ev notify.BillEvent) error {
	f.paymentConfirm = append(f.paymentConfirm, ev.BillID)
	return nil
}

func (f *fakeNotifier) DeletePaymentCollected(_ context.Context, billID int64) error {
	f.paymentDeleted = append(f.paymentDeleted, billID)
	return nil
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeIdem struct {
	seen map[string]bool
}

func (f *fakeIdem) CheckAndInsert(_ context.Context, key, module string) error {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	full := module + ":" + key
	if f.seen[full] {
		return shared.ErrIdempotencyConflict
	}
	f.seen[full] = true
	return nil
}

type fixture struct {
	service *Service
	repo    *memoryRepo
	ledger  *fakeLedger
	notify  *fakeNotifier
	audit   *fakeAudit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	led := &fakeLedger{}
	notif := &fakeNotifier{}
	aud := &fakeAudit{}
	svc := NewService(repo, led, notif, ServiceConfig{MinPaymentAmount: 1000}, slog.Default())
	svc.SetAuditRecorder(aud)
	svc.SetIdempotencyGuard(&fakeIdem{})
	return &fixture{service: svc, repo: repo, ledger: led, notify: notif, audit: aud}
}

func validCreateInput() CreateBillInput {
	return CreateBillInput{
		BuildingID: 1,
		Room:       "P101",
		CustomerID: 2,
		Period:     6,
		Year:       2025,
		BillDate:   time.Date(2025, time.June, 28, 0, 0, 0, 0, time.UTC),
		DueDay:     5,
		Services: []LineItem{
			{Type: LineRent, Name: "Tiền thuê phòng", UnitPrice: 700000},
			{Type: LineService, Name: "Internet", UnitPrice: 100000, Quantity: 3},
		},
		ActorID: 9,
	}
}

func TestCreateBillRecomputesTotals(t *testing.T) {
	f := newFixture(t)
	b, err := f.service.CreateBill(context.Background(), validCreateInput())
	require.NoError(t, err)
	require.Equal(t, int64(1000000), b.TotalAmount)
	require.Equal(t, StatusUnpaid, b.Status)
	require.False(t, b.Approved)
	require.Equal(t, int64(700000), b.Services[0].Amount)
	require.Equal(t, int64(300000), b.Services[1].Amount)
	require.Len(t, f.audit.logs, 1)
	require.Equal(t, "bill.create", f.audit.logs[0].Action)
}

func TestCreateBillValidation(t *testing.T) {
	f := newFixture(t)
	in := validCreateInput()
	in.Room = ""
	_, err := f.service.CreateBill(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidInput)

	in = validCreateInput()
	in.Services = nil
	_, err = f.service.CreateBill(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidInput)

	in = validCreateInput()
	in.Period = 13
	_, err = f.service.CreateBill(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateBillLockedWhenApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.service.CreateBill(ctx, validCreateInput())
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, b.ID, 9)
	require.NoError(t, err)

	_, err = f.service.UpdateBill(ctx, b.ID, UpdateBillInput{Services: []LineItem{{Type: LineRent, UnitPrice: 1}}})
	require.ErrorIs(t, err, ErrBillLocked)
	require.ErrorIs(t, f.service.DeleteBill(ctx, b.ID, 9), ErrBillLocked)
}

func TestApproveLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.service.CreateBill(ctx, validCreateInput())
	require.NoError(t, err)

	approved, err := f.service.Approve(ctx, b.ID, 9)
	require.NoError(t, err)
	require.True(t, approved.Approved)
	require.Equal(t, []int64{b.ID}, f.notify.approved)

	_, err = f.service.Approve(ctx, b.ID, 9)
	require.ErrorIs(t, err, ErrApprovalBlocked)

	back, err := f.service.Unapprove(ctx, b.ID, 9)
	require.NoError(t, err)
	require.False(t, back.Approved)
	require.Equal(t, []int64{b.ID}, f.notify.retracted)

	_, err = f.service.Unapprove(ctx, b.ID, 9)
	require.ErrorIs(t, err, ErrNotApproved)
}

func TestCollectGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.service.CreateBill(ctx, validCreateInput())
	require.NoError(t, err)

	_, err = f.service.Collect(ctx, b.ID, CollectInput{Amount: 500000})
	require.ErrorIs(t, err, ErrNotApproved)

	_, err = f.service.Approve(ctx, b.ID, 9)
	require.NoError(t, err)

	_, err = f.service.Collect(ctx, b.ID, CollectInput{Amount: 999})
	require.ErrorIs(t, err, ErrInvalidPaymentAmount)

	_, err = f.service.Collect(ctx, b.ID, CollectInput{Amount: 1000001})
	require.ErrorIs(t, err, ErrInvalidPaymentAmount)

	require.Empty(t, f.ledger.collections)
}

func TestCollectPartialThenFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.service.CreateBill(ctx, validCreateInput())
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, b.ID, 9)
	require.NoError(t, err)

	partial, err := f.service.Collect(ctx, b.ID, CollectInput{Amount: 400000, ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, StatusUnpaid, partial.Status)
	require.Equal(t, int64(400000), partial.PaidAmount)
	require.Nil(t, partial.PaidDate)
	require.Empty(t, f.notify.paymentConfirm)

	full, err := f.service.Collect(ctx, b.ID, CollectInput{Amount: 600000, ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, full.Status)
	require.Equal(t, int64(1000000), full.PaidAmount)
	require.NotNil(t, full.PaidDate)
	require.Equal(t, []int64{b.ID}, f.notify.paymentConfirm)

	require.Len(t, f.ledger.collections, 2)
	require.Equal(t, int64(400000), f.ledger.collections[0].Amount)
	require.Equal(t, int64(600000), f.ledger.collections[1].Amount)
	require.Equal(t, b.TotalAmount, f.ledger.collections[0].BillTotal)
}

func TestCollectDuplicateClientToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.service.CreateBill(ctx, validCreateInput())
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, b.ID, 9)
	require.NoError(t, err)

	_, err = f.service.Collect(ctx, b.ID, CollectInput{Amount: 400000, ClientToken: "tok-1"})
	require.NoError(t, err)

	_, err = f.service.Collect(ctx, b.ID, CollectInput{Amount: 400000, ClientToken: "tok-1"})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, f.ledger.collections, 1)
}

func TestUnapprovePaidBillBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.service.CreateBill(ctx, validCreateInput())
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, b.ID, 9)
	require.NoError(t, err)
	_, err = f.service.Collect(ctx, b.ID, CollectInput{Amount: 1000000})
	require.NoError(t, err)

	_, err = f.service.Unapprove(ctx, b.ID, 9)
	require.ErrorIs(t, err, ErrCannotUnapprovePaid)
}

func TestUnapprovePartiallyPaidBillBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.service.CreateBill(ctx, validCreateInput())
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, b.ID, 9)
	require.NoError(t, err)
	_, err = f.service.Collect(ctx, b.ID, CollectInput{Amount: 400000})
	require.NoError(t, err)

	_, err = f.service.Unapprove(ctx, b.ID, 9)
	require.ErrorIs(t, err, ErrCannotUnapprovePaid)

	// The bill stays approved with its partial payment intact.
	got, err := f.repo.GetBill(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, got.Approved)
	require.Equal(t, int64(400000), got.PaidAmount)
	require.Len(t, f.ledger.collections, 1)
}

func TestUncollectFullReversal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.service.CreateBill(ctx, validCreateInput())
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, b.ID, 9)
	require.NoError(t, err)
	_, err = f.service.Collect(ctx, b.ID, CollectInput{Amount: 400000})
	require.NoError(t, err)
	_, err = f.service.Collect(ctx, b.ID, CollectInput{Amount: 600000})
	require.NoError(t, err)

	reversed, err := f.service.Uncollect(ctx, b.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusUnpaid, reversed.Status)
	require.Zero(t, reversed.PaidAmount)
	require.Nil(t, reversed.PaidDate)
	require.True(t, reversed.Approved)
	require.Empty(t, f.ledger.collections)
	require.Equal(t, []int64{b.ID}, f.notify.paymentDeleted)

	// Collecting again after the reversal starts from zero.
	again, err := f.service.Collect(ctx, b.ID, CollectInput{Amount: 1000000})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, again.Status)
}

func TestUncollectRequiresPaidBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.service.CreateBill(ctx, validCreateInput())
	require.NoError(t, err)
	_, err = f.service.Uncollect(ctx, b.ID, 9)
	require.ErrorIs(t, err, ErrBillNotPaid)

	_, err = f.service.Approve(ctx, b.ID, 9)
	require.NoError(t, err)
	_, err = f.service.Collect(ctx, b.ID, CollectInput{Amount: 400000})
	require.NoError(t, err)
	_, err = f.service.Uncollect(ctx, b.ID, 9)
	require.ErrorIs(t, err, ErrBillNotPaid)
}

func TestTerminationBillLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := TerminationInput{ContractID: 11, BuildingID: 1, Room: "P101", CustomerID: 2, ActorID: 9}

	b, err := f.service.CreateTerminationBill(ctx, in)
	require.NoError(t, err)
	require.True(t, b.IsTerminationBill)
	require.Zero(t, b.TotalAmount)
	require.Len(t, b.Services, 1)
	require.Equal(t, LineTermination, b.Services[0].Type)
	require.Equal(t, StatusUnpaid, b.Status)

	_, err = f.service.CreateTerminationBill(ctx, in)
	require.ErrorIs(t, err, ErrTerminationExists)

	approved, err := f.service.Approve(ctx, b.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusTerminated, approved.Status)

	require.ErrorIs(t, f.service.DeleteTerminationBill(ctx, 11, 9), ErrBillLocked)

	back, err := f.service.Unapprove(ctx, b.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusUnpaid, back.Status)

	require.NoError(t, f.service.DeleteTerminationBill(ctx, 11, 9))
	_, err = f.repo.TerminationBillByContract(ctx, 11)
	require.ErrorIs(t, err, ErrBillNotFound)
}

func TestTerminationBillRequiresContract(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.CreateTerminationBill(context.Background(), TerminationInput{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

type fakeMasterData struct {
	ctx RoomContext
}

func (f *fakeMasterData) RoomBillingContext(_ context.Context, _ int64, _ string) (RoomContext, error) {
	return f.ctx, nil
}

func TestAssembleForRoomSeedsFromLastBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.service.SetMasterData(&fakeMasterData{ctx: RoomContext{
		HasContract:            true,
		ContractID:             1,
		CustomerID:             2,
		RentPrice:              3000000,
		InitialElectricReading: 100,
		Catalog:                []CatalogService{{Name: "Tiền điện", UnitPrice: 3500, Unit: "kWh"}},
	}})

	prev := validCreateInput()
	prev.Period = 5
	prev.Services = []LineItem{
		{Type: LineRent, Name: "Tiền thuê phòng", UnitPrice: 3000000},
		{Type: LineElectric, Name: "Tiền điện", UnitPrice: 3500, OldReading: i64(100), NewReading: i64(160)},
	}
	_, err := f.service.CreateBill(ctx, prev)
	require.NoError(t, err)

	lines, err := f.service.AssembleForRoom(ctx, 1, "P101", 6, 2025)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, int64(160), *lines[1].OldReading)
}
