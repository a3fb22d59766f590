package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	transactions []Transaction
	categories   []Category
	nextID       int64
}

func (m *memoryRepo) CreateTransaction(_ context.Context, tx Transaction) (int64, error) {
	m.nextID++
	tx.ID = m.nextID
	m.transactions = append(m.transactions, tx)
	return tx.ID, nil
}

func (m *memoryRepo) DeleteTransactionsByBill(_ context.Context, billID int64) error {
	kept := m.transactions[:0]
	for _, tx := range m.transactions {
		if tx.BillID != billID {
			kept = append(kept, tx)
		}
	}
	m.transactions = kept
	return nil
}

func (m *memoryRepo) ListTransactionsByBill(_ context.Context, billID int64) ([]Transaction, error) {
	var out []Transaction
	for _, tx := range m.transactions {
		if tx.BillID == billID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListCategories(_ context.Context) ([]Category, error) {
	return m.categories, nil
}

func TestRecordCollection(t *testing.T) {
	repo := &memoryRepo{categories: testCategories()}
	svc := NewService(repo)

	tx, err := svc.RecordCollection(context.Background(), CollectionInput{
		BillID:     5,
		BuildingID: 1,
		Room:       "P101",
		CustomerID: 2,
		Date:       time.Date(2025, time.June, 28, 0, 0, 0, 0, time.UTC),
		Amount:     400000,
		BillTotal:  1000000,
		Lines:      []BillLine{{Name: "Tiền thuê phòng", Type: "rent", Amount: 1000000}},
	})
	require.NoError(t, err)
	require.Equal(t, TypeIncome, tx.Type)
	require.True(t, tx.Approved)
	require.NotEmpty(t, tx.Code)
	require.Len(t, tx.Items, 1)
	require.Equal(t, int64(400000), tx.Items[0].Amount)
	require.Equal(t, int64(1), tx.Items[0].CategoryID)

	listed, err := svc.TransactionsByBill(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestRecordCollectionValidation(t *testing.T) {
	svc := NewService(&memoryRepo{categories: testCategories()})

	_, err := svc.RecordCollection(context.Background(), CollectionInput{Amount: 100})
	require.Error(t, err)

	_, err = svc.RecordCollection(context.Background(), CollectionInput{BillID: 1, Amount: 0})
	require.Error(t, err)
}

func TestRecordCollectionNoIncomeCategory(t *testing.T) {
	svc := NewService(&memoryRepo{})
	_, err := svc.RecordCollection(context.Background(), CollectionInput{BillID: 1, Amount: 100, BillTotal: 100})
	require.ErrorIs(t, err, ErrNoIncomeCategory)
}

func TestDeleteTransactionsByBill(t *testing.T) {
	repo := &memoryRepo{categories: testCategories()}
	svc := NewService(repo)

	for _, billID := range []int64{1, 1, 2} {
		_, err := svc.RecordCollection(context.Background(), CollectionInput{BillID: billID, Amount: 100, BillTotal: 100})
		require.NoError(t, err)
	}
	require.NoError(t, svc.DeleteTransactionsByBill(context.Background(), 1))

	left, err := svc.TransactionsByBill(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, left, 1)

	gone, err := svc.TransactionsByBill(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, gone)
}
