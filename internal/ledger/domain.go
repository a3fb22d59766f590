package ledger

import (
	"errors"
	"time"
)

// TransactionType enumerates ledger transaction kinds. The billing
// engine only produces income.
type TransactionType string

const TypeIncome TransactionType = "income"

// Category is an externally managed reporting bucket.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// TransactionItem is one categorised slice of a transaction amount.
type TransactionItem struct {
	Name       string `json:"name"`
	Amount     int64  `json:"amount"`
	CategoryID int64  `json:"categoryId"`
}

// Transaction is a categorised cash receipt produced when a bill is
// collected.
type Transaction struct {
	ID         int64             `json:"id"`
	Type       TransactionType   `json:"type"`
	Code       string            `json:"code"`
	BuildingID int64             `json:"buildingId"`
	Room       string            `json:"room"`
	CustomerID int64             `json:"customerId"`
	BillID     int64             `json:"billId"`
	AccountID  int64             `json:"accountId"`
	Date       time.Time         `json:"date"`
	Items      []TransactionItem `json:"items"`
	Approved   bool              `json:"approved"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// BillLine is the slice of bill data the mapper needs.
type BillLine struct {
	Name   string
	Type   string
	Amount int64
}

// CollectionInput describes one collected payment to be recorded.
type CollectionInput struct {
	BillID     int64
	BuildingID int64
	Room       string
	CustomerID int64
	AccountID  int64
	Date       time.Time
	// Amount is the collected portion; BillTotal the bill's full total.
	Amount    int64
	BillTotal int64
	Lines     []BillLine
}

var (
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	ErrNoIncomeCategory    = errors.New("ledger: no income category configured")
)
