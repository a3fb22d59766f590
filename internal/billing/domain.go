package billing

import (
	"errors"
	"time"
)

// Status enumerates bill collection states.
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
	// StatusTerminated marks an approved termination bill.
	StatusTerminated Status = "terminated"
)

// LineType discriminates how a line item amount is computed.
type LineType string

const (
	LineRent        LineType = "rent"
	LineElectric    LineType = "electric"
	LineWaterMeter  LineType = "water_meter"
	LineService     LineType = "service"
	LineCustom      LineType = "custom"
	LineTermination LineType = "termination"
)

// LineItem is one charge on a bill.
type LineItem struct {
	Type       LineType   `json:"type"`
	Name       string     `json:"name"`
	UnitPrice  int64      `json:"unitPrice"`
	Quantity   float64    `json:"quantity,omitempty"`
	FromDate   *time.Time `json:"fromDate,omitempty"`
	ToDate     *time.Time `json:"toDate,omitempty"`
	OldReading *int64     `json:"oldReading,omitempty"`
	NewReading *int64     `json:"newReading,omitempty"`
	Amount     int64      `json:"amount"`
}

// Bill is one billing period for one room. Amounts are integer VND.
type Bill struct {
	ID                int64      `json:"id"`
	BuildingID        int64      `json:"buildingId"`
	Room              string     `json:"room"`
	CustomerID        int64      `json:"customerId"`
	Period            int        `json:"period"`
	Year              int        `json:"year"`
	BillDate          time.Time  `json:"billDate"`
	DueDay            int        `json:"dueDate"`
	Services          []LineItem `json:"services"`
	TotalAmount       int64      `json:"totalAmount"`
	PaidAmount        int64      `json:"paidAmount"`
	Status            Status     `json:"status"`
	Approved          bool       `json:"approved"`
	IsTerminationBill bool       `json:"isTerminationBill"`
	ContractID        int64      `json:"contractId,omitempty"`
	PaidDate          *time.Time `json:"paidDate,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Remaining returns the uncollected balance.
func (b *Bill) Remaining() int64 {
	return b.TotalAmount - b.PaidAmount
}

var (
	ErrBillNotFound         = errors.New("billing: bill not found")
	ErrBillLocked           = errors.New("billing: bill is approved and locked")
	ErrApprovalBlocked      = errors.New("billing: bill is already approved")
	ErrNotApproved          = errors.New("billing: bill is not approved")
	ErrCannotUnapprovePaid  = errors.New("billing: cannot unapprove a paid bill")
	ErrInvalidPaymentAmount = errors.New("billing: payment amount out of range")
	ErrBillNotPaid          = errors.New("billing: bill is not fully paid")
	ErrTerminationExists    = errors.New("billing: termination bill already exists for contract")
	ErrUnknownLineType      = errors.New("billing: unknown line item type")
)

// CreateBillInput carries a new draft bill.
type CreateBillInput struct {
	BuildingID int64
	Room       string
	CustomerID int64
	Period     int
	Year       int
	BillDate   time.Time
	DueDay     int
	Services   []LineItem
	ActorID    int64
}

// UpdateBillInput carries an edit to a draft bill.
type UpdateBillInput struct {
	BillDate *time.Time
	DueDay   *int
	Services []LineItem
	ActorID  int64
}

// CollectInput carries one payment against a bill.
type CollectInput struct {
	Amount int64
	PaidAt time.Time
	// ClientToken serialises repeated submissions from the same client
	// session. Distinct sessions are intentionally not serialised.
	ClientToken string
	ActorID     int64
}

// ListBillsRequest filters bill queries.
type ListBillsRequest struct {
	BuildingID int64
	Room       string
	CustomerID int64
	Period     int
	Year       int
	Status     Status
	Approved   *bool
	Limit      int
	Offset     int
}

// TerminationInput identifies the lease being wound down.
type TerminationInput struct {
	ContractID int64
	BuildingID int64
	Room       string
	CustomerID int64
	ActorID    int64
}

// BulkResult reports how far a bulk operation got.
type BulkResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
