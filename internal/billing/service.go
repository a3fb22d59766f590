package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhatro-erp/nhatro-erp/internal/ledger"
	"github.com/nhatro-erp/nhatro-erp/internal/notify"
	"github.com/nhatro-erp/nhatro-erp/internal/shared"
)

// ErrInvalidInput wraps request validation failures.
var ErrInvalidInput = errors.New("billing: invalid input")

// RepositoryPort defines data access methods for bills.
type RepositoryPort interface {
	CreateBill(ctx context.Context, b Bill) (int64, error)
	GetBill(ctx context.Context, id int64) (*Bill, error)
	UpdateBill(ctx context.Context, id int64, updates map[string]any) error
	DeleteBill(ctx context.Context, id int64) error
	ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, int, error)
	PreviousBill(ctx context.Context, buildingID int64, room string, year, period int) (*Bill, error)
	TerminationBillByContract(ctx context.Context, contractID int64) (*Bill, error)
}

// LedgerPort is the external transaction store the engine writes into.
type LedgerPort interface {
	RecordCollection(ctx context.Context, in ledger.CollectionInput) (*ledger.Transaction, error)
	DeleteTransactionsByBill(ctx context.Context, billID int64) error
	TransactionsByBill(ctx context.Context, billID int64) ([]ledger.Transaction, error)
}

// Notifier delivers customer pushes and admin notification records.
type Notifier interface {
	BillApproved(ctx context.Context, ev notify.BillEvent) error
	RetractBillApproved(ctx context.Context, billID int64) error
	PaymentConfirmed(ctx context.Context, ev notify.BillEvent) error
	DeletePaymentCollected(ctx context.Context, billID int64) error
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyGuard serialises duplicate submissions.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// BillMirror is the local read cache kept in step with the store.
type BillMirror interface {
	Put(ctx context.Context, b *Bill) error
	Invalidate(ctx context.Context, billID int64) error
	PublishUpdated(ctx context.Context, billID int64) error
}

// MasterData resolves lease and catalog data for bill assembly.
type MasterData interface {
	RoomBillingContext(ctx context.Context, buildingID int64, room string) (RoomContext, error)
}

// ServiceConfig tunes engine behaviour.
type ServiceConfig struct {
	// MinPaymentAmount is the smallest collectable amount in VND.
	MinPaymentAmount int64
}

const auditEntityBill = "bill"

// Service drives bills through their approval and collection lifecycle.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
	notify Notifier
	audit  AuditRecorder
	idem   IdempotencyGuard
	mirror BillMirror
	master MasterData
	cfg    ServiceConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the billing engine.
func NewService(repo RepositoryPort, ledgerStore LedgerPort, notifier Notifier, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.MinPaymentAmount <= 0 {
		cfg.MinPaymentAmount = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		ledger: ledgerStore,
		notify: notifier,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetAuditRecorder injects the audit trail sink.
func (s *Service) SetAuditRecorder(audit AuditRecorder) { s.audit = audit }

// SetIdempotencyGuard injects the duplicate-submission guard.
func (s *Service) SetIdempotencyGuard(idem IdempotencyGuard) { s.idem = idem }

// SetMirror injects the local read cache.
func (s *Service) SetMirror(m BillMirror) { s.mirror = m }

// SetMasterData injects the lease/building resolver used by assembly.
func (s *Service) SetMasterData(md MasterData) { s.master = md }

func validateCreate(in CreateBillInput) error {
	switch {
	case in.BuildingID == 0:
		return fmt.Errorf("%w: building required", ErrInvalidInput)
	case in.Room == "":
		return fmt.Errorf("%w: room required", ErrInvalidInput)
	case in.CustomerID == 0:
		return fmt.Errorf("%w: customer required", ErrInvalidInput)
	case in.Period < 1 || in.Period > 12:
		return fmt.Errorf("%w: period must be 1..12", ErrInvalidInput)
	case in.Year == 0:
		return fmt.Errorf("%w: year required", ErrInvalidInput)
	case in.BillDate.IsZero():
		return fmt.Errorf("%w: bill date required", ErrInvalidInput)
	case len(in.Services) == 0:
		return fmt.Errorf("%w: at least one line item required", ErrInvalidInput)
	}
	return nil
}

// CreateBill creates a draft bill, recomputing every line amount.
func (s *Service) CreateBill(ctx context.Context, in CreateBillInput) (*Bill, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	services, total, err := Recompute(in.Services)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: total must be positive", ErrInvalidInput)
	}
	now := s.now()
	b := Bill{
		BuildingID:  in.BuildingID,
		Room:        in.Room,
		CustomerID:  in.CustomerID,
		Period:      in.Period,
		Year:        in.Year,
		BillDate:    in.BillDate,
		DueDay:      in.DueDay,
		Services:    services,
		TotalAmount: total,
		PaidAmount:  0,
		Status:      StatusUnpaid,
		Approved:    false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := s.repo.CreateBill(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}
	b.ID = id
	s.recordAudit(ctx, in.ActorID, "bill.create", id, map[string]any{"total": total})
	s.refreshMirror(ctx, &b)
	return &b, nil
}

// GetBill returns one bill.
func (s *Service) GetBill(ctx context.Context, id int64) (*Bill, error) {
	return s.repo.GetBill(ctx, id)
}

// ListBills returns bills matching the filter plus the total count.
func (s *Service) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, int, error) {
	return s.repo.ListBills(ctx, req)
}

// AssembleForRoom previews the line items a new bill would carry for a
// room and period, seeding meters from the previous bill.
func (s *Service) AssembleForRoom(ctx context.Context, buildingID int64, room string, period, year int) ([]LineItem, error) {
	if s.master == nil {
		return nil, errors.New("billing: master data resolver not configured")
	}
	if period < 1 || period > 12 {
		return nil, fmt.Errorf("%w: period must be 1..12", ErrInvalidInput)
	}
	roomCtx, err := s.master.RoomBillingContext(ctx, buildingID, room)
	if err != nil {
		return nil, fmt.Errorf("resolve room context: %w", err)
	}
	prev, err := s.repo.PreviousBill(ctx, buildingID, room, year, period)
	if err != nil && !errors.Is(err, ErrBillNotFound) {
		return nil, fmt.Errorf("load previous bill: %w", err)
	}
	return Assemble(AssembleInput{Year: year, Period: period, Room: roomCtx, Previous: prev}), nil
}

// UpdateBill edits a draft bill. Approved bills are locked.
func (s *Service) UpdateBill(ctx context.Context, id int64, in UpdateBillInput) (*Bill, error) {
	b, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Approved {
		return nil, ErrBillLocked
	}
	updates := map[string]any{}
	if in.BillDate != nil {
		updates["bill_date"] = *in.BillDate
		b.BillDate = *in.BillDate
	}
	if in.DueDay != nil {
		updates["due_day"] = *in.DueDay
		b.DueDay = *in.DueDay
	}
	if in.Services != nil {
		if b.IsTerminationBill {
			return nil, fmt.Errorf("%w: termination bill lines are fixed", ErrInvalidInput)
		}
		services, total, err := Recompute(in.Services)
		if err != nil {
			return nil, err
		}
		if total <= 0 {
			return nil, fmt.Errorf("%w: total must be positive", ErrInvalidInput)
		}
		updates["services"] = services
		updates["total_amount"] = total
		b.Services = services
		b.TotalAmount = total
	}
	if len(updates) == 0 {
		return b, nil
	}
	if err := s.repo.UpdateBill(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update bill: %w", err)
	}
	b.UpdatedAt = s.now()
	s.recordAudit(ctx, in.ActorID, "bill.update", id, map[string]any{"total": b.TotalAmount})
	s.refreshMirror(ctx, b)
	return b, nil
}

// DeleteBill removes a draft bill. Approved bills are locked.
func (s *Service) DeleteBill(ctx context.Context, id int64, actorID int64) error {
	b, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return err
	}
	if b.Approved {
		return ErrBillLocked
	}
	if err := s.repo.DeleteBill(ctx, id); err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	s.recordAudit(ctx, actorID, "bill.delete", id, nil)
	s.invalidateMirror(ctx, id)
	return nil
}

// Approve moves a draft bill into the approved state. Termination
// bills go straight to the terminated status.
func (s *Service) Approve(ctx context.Context, id int64, actorID int64) (*Bill, error) {
	b, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Approved {
		return nil, ErrApprovalBlocked
	}
	updates := map[string]any{"approved": true}
	b.Approved = true
	if b.IsTerminationBill {
		updates["status"] = StatusTerminated
		b.Status = StatusTerminated
	}
	if err := s.repo.UpdateBill(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("approve bill: %w", err)
	}
	if s.notify != nil {
		if err := s.notify.BillApproved(ctx, billEvent(b)); err != nil {
			s.logger.Warn("bill approved notification", slog.Int64("bill_id", id), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actorID, "bill.approve", id, nil)
	s.refreshMirror(ctx, b)
	return b, nil
}

// Unapprove returns an approved bill to draft and retracts the
// approval notification. Any recorded payment, full or partial, blocks
// the transition: a draft never carries a paid amount.
func (s *Service) Unapprove(ctx context.Context, id int64, actorID int64) (*Bill, error) {
	b, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Approved {
		return nil, ErrNotApproved
	}
	if b.Status == StatusPaid || b.PaidAmount > 0 {
		return nil, ErrCannotUnapprovePaid
	}
	updates := map[string]any{"approved": false}
	b.Approved = false
	if b.IsTerminationBill {
		updates["status"] = StatusUnpaid
		b.Status = StatusUnpaid
	}
	if err := s.repo.UpdateBill(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("unapprove bill: %w", err)
	}
	if s.notify != nil {
		if err := s.notify.RetractBillApproved(ctx, id); err != nil {
			s.logger.Warn("retract approval notification", slog.Int64("bill_id", id), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actorID, "bill.unapprove", id, nil)
	s.refreshMirror(ctx, b)
	return b, nil
}

// Collect applies a full or partial payment to an approved bill. The
// ledger transaction covers exactly the collected amount; committed
// writes are never rolled back if a later step fails.
func (s *Service) Collect(ctx context.Context, id int64, in CollectInput) (*Bill, error) {
	b, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Approved {
		return nil, ErrNotApproved
	}
	remaining := b.Remaining()
	if in.Amount < s.cfg.MinPaymentAmount || in.Amount > remaining {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidPaymentAmount, in.Amount, s.cfg.MinPaymentAmount, remaining)
	}
	if in.ClientToken != "" && s.idem != nil {
		key := fmt.Sprintf("collect:%d:%s", id, in.ClientToken)
		if err := s.idem.CheckAndInsert(ctx, key, "billing"); err != nil {
			return nil, err
		}
	}
	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	newPaid := b.PaidAmount + in.Amount
	fullyPaid := newPaid >= b.TotalAmount
	updates := map[string]any{"paid_amount": newPaid}
	b.PaidAmount = newPaid
	if fullyPaid {
		updates["status"] = StatusPaid
		updates["paid_date"] = paidAt
		b.Status = StatusPaid
		b.PaidDate = &paidAt
	} else {
		updates["status"] = StatusUnpaid
		b.Status = StatusUnpaid
	}
	if err := s.repo.UpdateBill(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	if _, err := s.ledger.RecordCollection(ctx, ledger.CollectionInput{
		BillID:     b.ID,
		BuildingID: b.BuildingID,
		Room:       b.Room,
		CustomerID: b.CustomerID,
		Date:       paidAt,
		Amount:     in.Amount,
		BillTotal:  b.TotalAmount,
		Lines:      toBillLines(b.Services),
	}); err != nil {
		// The bill write has already committed; surface the error as-is.
		return nil, fmt.Errorf("record ledger transaction: %w", err)
	}

	if fullyPaid && s.notify != nil {
		if err := s.notify.PaymentConfirmed(ctx, billEvent(b)); err != nil {
			s.logger.Warn("payment confirmed notification", slog.Int64("bill_id", id), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, in.ActorID, "bill.collect", id, map[string]any{"amount": in.Amount, "paid": newPaid})
	s.refreshMirror(ctx, b)
	return b, nil
}

// Uncollect fully reverses a paid bill: every ledger transaction and
// payment notification for the bill is removed. Partial reversals are
// not supported.
func (s *Service) Uncollect(ctx context.Context, id int64, actorID int64) (*Bill, error) {
	b, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPaid {
		return nil, ErrBillNotPaid
	}
	if err := s.ledger.DeleteTransactionsByBill(ctx, id); err != nil {
		return nil, fmt.Errorf("delete ledger transactions: %w", err)
	}
	if s.notify != nil {
		if err := s.notify.DeletePaymentCollected(ctx, id); err != nil {
			s.logger.Warn("delete payment notifications", slog.Int64("bill_id", id), slog.Any("error", err))
		}
	}
	updates := map[string]any{
		"paid_amount": int64(0),
		"status":      StatusUnpaid,
		"paid_date":   nil,
	}
	if err := s.repo.UpdateBill(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("reset payment state: %w", err)
	}
	b.PaidAmount = 0
	b.Status = StatusUnpaid
	b.PaidDate = nil
	s.recordAudit(ctx, actorID, "bill.uncollect", id, nil)
	s.refreshMirror(ctx, b)
	return b, nil
}

// TransactionsByBill lists the ledger transactions behind a bill.
func (s *Service) TransactionsByBill(ctx context.Context, billID int64) ([]ledger.Transaction, error) {
	return s.ledger.TransactionsByBill(ctx, billID)
}

func billEvent(b *Bill) notify.BillEvent {
	return notify.BillEvent{
		BillID:      b.ID,
		CustomerID:  b.CustomerID,
		BuildingID:  b.BuildingID,
		Room:        b.Room,
		Period:      b.Period,
		Year:        b.Year,
		TotalAmount: b.TotalAmount,
	}
}

func toBillLines(services []LineItem) []ledger.BillLine {
	lines := make([]ledger.BillLine, len(services))
	for i, li := range services {
		lines[i] = ledger.BillLine{Name: li.Name, Type: string(li.Type), Amount: li.Amount}
	}
	return lines
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, billID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   auditEntityBill,
		EntityID: fmt.Sprintf("%d", billID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

// refreshMirror updates the read cache after a committed write. The
// remote write is authoritative; mirror failures are logged only.
func (s *Service) refreshMirror(ctx context.Context, b *Bill) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Put(ctx, b); err != nil {
		s.logger.Warn("mirror bill", slog.Int64("bill_id", b.ID), slog.Any("error", err))
		return
	}
	if err := s.mirror.PublishUpdated(ctx, b.ID); err != nil {
		s.logger.Warn("publish bill update", slog.Int64("bill_id", b.ID), slog.Any("error", err))
	}
}

func (s *Service) invalidateMirror(ctx context.Context, billID int64) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Invalidate(ctx, billID); err != nil {
		s.logger.Warn("invalidate bill mirror", slog.Int64("bill_id", billID), slog.Any("error", err))
		return
	}
	if err := s.mirror.PublishUpdated(ctx, billID); err != nil {
		s.logger.Warn("publish bill update", slog.Int64("bill_id", billID), slog.Any("error", err))
	}
}
