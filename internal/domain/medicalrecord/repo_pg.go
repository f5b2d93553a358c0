package medicalrecord

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

const recordCols = `id, appointment_id, patient_id, doctor_id, diagnosis, treatment, notes, created_at`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var rec MedicalRecord
	err := row.Scan(&rec.ID, &rec.AppointmentID, &rec.PatientID, &rec.DoctorID,
		&rec.Diagnosis, &rec.Treatment, &rec.Notes, &rec.CreatedAt)
	return &rec, err
}

func (r *repoPG) Create(ctx context.Context, rec *MedicalRecord) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO medical_records (appointment_id, patient_id, doctor_id, diagnosis, treatment, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		rec.AppointmentID, rec.PatientID, rec.DoctorID, rec.Diagnosis, rec.Treatment, rec.Notes,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*MedicalRecord, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := scanRecord(conn.QueryRow(ctx, `SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("medical record", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) GetByAppointment(ctx context.Context, appointmentID int64) (*MedicalRecord, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := scanRecord(conn.QueryRow(ctx, `SELECT `+recordCols+` FROM medical_records WHERE appointment_id = $1`, appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("medical record for appointment", fmt.Sprintf("%d", appointmentID))
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*MedicalRecord, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `SELECT `+recordCols+` FROM medical_records WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
