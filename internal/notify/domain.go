package notify

import "time"

// Admin notification types recorded for back-office users.
const (
	TypeBillApproved     = "bill_approved"
	TypePaymentCollected = "payment_collected"
)

// AdminNotification is an in-app record shown to back-office users.
type AdminNotification struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	BillID     int64     `json:"billId"`
	CustomerID int64     `json:"customerId"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

// BillEvent carries the bill fields notifications are built from.
type BillEvent struct {
	BillID      int64
	CustomerID  int64
	BuildingID  int64
	Room        string
	Period      int
	Year        int
	TotalAmount int64
}

// PushMessage is one customer-facing push notification.
type PushMessage struct {
	CustomerID int64             `json:"customerId"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
}
