package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{}

// NewRepoPG returns a Repository backed by the branch database resolved from
// the request context.
func NewRepoPG() Repository {
	return &repoPG{}
}

func (r *repoPG) conn(ctx context.Context) (queryable, error) {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx, nil
	}
	if pool, ok := db.PoolFromContext(ctx); ok {
		return pool, nil
	}
	return nil, fmt.Errorf("no branch database in context")
}

const paymentCols = `id, appointment_id, amount, payment_method, status,
	transaction_id, payment_date, created_date`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.AppointmentID, &p.Amount, &p.PaymentMethod, &p.Status,
		&p.TransactionID, &p.PaymentDate, &p.CreatedDate)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Payment) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO payments (appointment_id, amount, payment_method, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_date`,
		p.AppointmentID, p.Amount, p.PaymentMethod, p.Status,
	).Scan(&p.ID, &p.CreatedDate)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Payment, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(conn.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("payment", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(conn.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE transaction_id = $1`, transactionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("payment", transactionID)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) GetWithItems(ctx context.Context, id int64) (*Payment, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := r.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Payment, int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM payments`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+paymentCols+` FROM payments ORDER BY created_date DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListByAppointment(ctx context.Context, appointmentID int64) ([]*Payment, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `SELECT `+paymentCols+` FROM payments WHERE appointment_id = $1 ORDER BY created_date DESC`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) SetTransactionID(ctx context.Context, id int64, transactionID string) (bool, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return false, err
	}
	tag, err := conn.Exec(ctx, `
		UPDATE payments SET transaction_id = $2
		WHERE id = $1 AND transaction_id IS NULL`,
		id, transactionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStatus is a single compare-and-set: the WHERE clause encodes the
// status ranking (pending 0, failed 1, paid 2) so a lower-ranked status never
// overwrites a higher one, and payment_date is filled exactly once, on the
// first transition into paid. No row lock is held across gateway calls.
func (r *repoPG) UpdateStatus(ctx context.Context, id int64, next Status) (bool, Status, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return false, "", err
	}

	var current Status
	err = conn.QueryRow(ctx, `
		UPDATE payments
		SET status = $2,
		    payment_date = CASE
		        WHEN $2 = 'paid' AND payment_date IS NULL THEN NOW()
		        ELSE payment_date
		    END
		WHERE id = $1
		  AND (CASE status WHEN 'paid' THEN 2 WHEN 'failed' THEN 1 ELSE 0 END) <= $3
		RETURNING status`,
		id, next, next.Rank(),
	).Scan(&current)
	if err == nil {
		return true, current, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, "", err
	}

	// Guard rejected the write, or the payment does not exist.
	err = conn.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "", apperr.NotFound("payment", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return false, "", err
	}
	return false, current, nil
}

func (r *repoPG) AddItem(ctx context.Context, item *PaymentItem) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO payment_items (payment_id, description, quantity, price, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		item.PaymentID, item.Description, item.Quantity, item.Price, item.Total,
	).Scan(&item.ID)
}

func (r *repoPG) ListItems(ctx context.Context, paymentID int64) ([]*PaymentItem, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `
		SELECT id, payment_id, description, quantity, price, total
		FROM payment_items WHERE payment_id = $1 ORDER BY id`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PaymentItem
	for rows.Next() {
		var it PaymentItem
		if err := rows.Scan(&it.ID, &it.PaymentID, &it.Description, &it.Quantity, &it.Price, &it.Total); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}
