package billing

import (
	"context"
	"errors"
	"fmt"
)

// CreateTerminationBill produces the zero-amount bill marking a lease
// wind-down. Approving it later is the signal that the lease is fully
// closed out.
func (s *Service) CreateTerminationBill(ctx context.Context, in TerminationInput) (*Bill, error) {
	if in.ContractID == 0 {
		return nil, fmt.Errorf("%w: contract required", ErrInvalidInput)
	}
	existing, err := s.repo.TerminationBillByContract(ctx, in.ContractID)
	if err != nil && !errors.Is(err, ErrBillNotFound) {
		return nil, fmt.Errorf("check termination bill: %w", err)
	}
	if existing != nil {
		return nil, ErrTerminationExists
	}

	now := s.now()
	b := Bill{
		BuildingID: in.BuildingID,
		Room:       in.Room,
		CustomerID: in.CustomerID,
		Period:     int(now.Month()),
		Year:       now.Year(),
		BillDate:   now,
		Services: []LineItem{{
			Type:   LineTermination,
			Name:   "Thanh lý hợp đồng",
			Amount: 0,
		}},
		TotalAmount:       0,
		PaidAmount:        0,
		Status:            StatusUnpaid,
		Approved:          false,
		IsTerminationBill: true,
		ContractID:        in.ContractID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	id, err := s.repo.CreateBill(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("create termination bill: %w", err)
	}
	b.ID = id
	s.recordAudit(ctx, in.ActorID, "bill.terminate", id, map[string]any{"contract": in.ContractID})
	s.refreshMirror(ctx, &b)
	return &b, nil
}

// DeleteTerminationBill retracts the wind-down marker for a lease. An
// approved termination bill is locked like any other approved bill;
// the caller restores the lease status afterwards.
func (s *Service) DeleteTerminationBill(ctx context.Context, contractID int64, actorID int64) error {
	b, err := s.repo.TerminationBillByContract(ctx, contractID)
	if err != nil {
		return err
	}
	if b.Approved {
		return ErrBillLocked
	}
	if err := s.repo.DeleteBill(ctx, b.ID); err != nil {
		return fmt.Errorf("delete termination bill: %w", err)
	}
	s.recordAudit(ctx, actorID, "bill.unterminate", b.ID, map[string]any{"contract": contractID})
	s.invalidateMirror(ctx, b.ID)
	return nil
}
