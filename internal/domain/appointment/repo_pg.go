package appointment

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

const apptCols = `id, patient_id, doctor_id, scheduled_at, status`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.Status)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, doctor_id, scheduled_at, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		a.PatientID, a.DoctorID, a.ScheduledAt, a.Status,
	).Scan(&a.ID)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	a, err := scanAppointment(conn.QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) Exists(ctx context.Context, id int64) (bool, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id int64, status Status) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	tag, err := conn.Exec(ctx, `UPDATE appointments SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment", fmt.Sprintf("%d", id))
	}
	return nil
}

func (r *repoPG) Reschedule(ctx context.Context, a *Appointment) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	tag, err := conn.Exec(ctx, `
		UPDATE appointments SET doctor_id = $2, scheduled_at = $3 WHERE id = $1`,
		a.ID, a.DoctorID, a.ScheduledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment", fmt.Sprintf("%d", a.ID))
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointments`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+apptCols+` FROM appointments ORDER BY scheduled_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Appointment, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `SELECT `+apptCols+` FROM appointments WHERE patient_id = $1 ORDER BY scheduled_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID int64) ([]*Appointment, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `SELECT `+apptCols+` FROM appointments WHERE doctor_id = $1 ORDER BY scheduled_at DESC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Appointment, error) {
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
