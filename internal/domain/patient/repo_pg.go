package patient

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

const patientCols = `id, name, national_id, phone, address`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.NationalID, &p.Phone, &p.Address)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO patients (name, national_id, phone, address)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.Name, p.NationalID, p.Phone, p.Address,
	).Scan(&p.ID)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	p, err := scanPatient(conn.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Exists(ctx context.Context, id int64) (bool, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	tag, err := conn.Exec(ctx, `
		UPDATE patients SET name = $2, national_id = $3, phone = $4, address = $5
		WHERE id = $1`,
		p.ID, p.Name, p.NationalID, p.Phone, p.Address)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", fmt.Sprintf("%d", p.ID))
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	tag, err := conn.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", fmt.Sprintf("%d", id))
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	pattern := "%" + query + "%"
	var total int
	if err := conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM patients
		WHERE name ILIKE $1 OR national_id ILIKE $1 OR phone ILIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE name ILIKE $1 OR national_id ILIKE $1 OR phone ILIKE $1
		ORDER BY id LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
