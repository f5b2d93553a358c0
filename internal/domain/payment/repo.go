package payment

import "context"

// Repository persists payments and their line items. Status and transaction
// identifier writes are expressed as guarded operations rather than blind
// updates so concurrent notifications cannot regress state.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
	GetWithItems(ctx context.Context, id int64) (*Payment, error)
	List(ctx context.Context, limit, offset int) ([]*Payment, int, error)
	ListByAppointment(ctx context.Context, appointmentID int64) ([]*Payment, error)

	// SetTransactionID records the gateway transaction identifier, but only
	// if none is set yet. Returns true when the write was applied.
	SetTransactionID(ctx context.Context, id int64, transactionID string) (bool, error)

	// UpdateStatus moves the payment to next if and only if next does not
	// rank below the current status. The payment date is set the first time
	// the payment becomes paid. Returns whether the write was applied and
	// the status the row holds afterwards.
	UpdateStatus(ctx context.Context, id int64, next Status) (applied bool, current Status, err error)

	AddItem(ctx context.Context, item *PaymentItem) error
	ListItems(ctx context.Context, paymentID int64) ([]*PaymentItem, error)
}
