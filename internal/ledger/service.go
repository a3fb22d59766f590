package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort defines data access for transactions and categories.
type RepositoryPort interface {
	CreateTransaction(ctx context.Context, tx Transaction) (int64, error)
	DeleteTransactionsByBill(ctx context.Context, billID int64) error
	ListTransactionsByBill(ctx context.Context, billID int64) ([]Transaction, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Service owns the transaction store the billing engine writes into.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds a ledger service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// RecordCollection turns one collected payment into an approved income
// transaction, scaling category items to the collected amount.
func (s *Service) RecordCollection(ctx context.Context, in CollectionInput) (*Transaction, error) {
	if in.BillID == 0 {
		return nil, errors.New("ledger: bill id required")
	}
	if in.Amount <= 0 {
		return nil, errors.New("ledger: amount must be positive")
	}
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	items, err := DefaultIncomeItems(in.BillTotal, categories)
	if err != nil {
		return nil, err
	}
	items = ScaleItems(items, in.Amount, in.BillTotal)

	now := s.now()
	tx := Transaction{
		Type:       TypeIncome,
		Code:       uuid.NewString(),
		BuildingID: in.BuildingID,
		Room:       in.Room,
		CustomerID: in.CustomerID,
		BillID:     in.BillID,
		AccountID:  in.AccountID,
		Date:       in.Date,
		Items:      items,
		Approved:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	id, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	tx.ID = id
	return &tx, nil
}

// DeleteTransactionsByBill removes every transaction referencing a bill.
func (s *Service) DeleteTransactionsByBill(ctx context.Context, billID int64) error {
	return s.repo.DeleteTransactionsByBill(ctx, billID)
}

// TransactionsByBill lists transactions referencing a bill.
func (s *Service) TransactionsByBill(ctx context.Context, billID int64) ([]Transaction, error) {
	return s.repo.ListTransactionsByBill(ctx, billID)
}

// Categories returns the externally managed category list.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}
