package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment. Transitions only move forward:
// pending may become paid or failed, failed may still become paid (a late
// settlement after an expiry notice), and paid is terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Rank orders statuses by progress. Updates that would lower the rank are
// rejected, which is what makes paid sticky under out-of-order notifications.
func (s Status) Rank() int {
	switch s {
	case StatusPaid:
		return 2
	case StatusFailed:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed:
		return true
	}
	return false
}

// Payment is one billable charge for an appointment. TransactionID is set at
// most once, when the gateway first acknowledges the transaction, and is
// never overwritten. PaymentDate is set the first time the payment reaches
// paid and never changes afterwards.
type Payment struct {
	ID            int64           `json:"id"`
	AppointmentID int64           `json:"appointment_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Status        Status          `json:"status"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	CreatedDate   time.Time       `json:"created_date"`

	Items []*PaymentItem `json:"items,omitempty"`
}

// OrderID is the identifier the gateway knows this payment by.
func (p *Payment) OrderID() string {
	return fmt.Sprintf("PAY-%d", p.ID)
}

// PaymentItem is one line on a payment: a treatment, a medicine, a lab fee.
type PaymentItem struct {
	ID          int64           `json:"id"`
	PaymentID   int64           `json:"payment_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

// ComputeTotal derives the line total from quantity and unit price.
func (i *PaymentItem) ComputeTotal() {
	i.Total = i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
