package medicalrecord

import "context"

type Repository interface {
	Create(ctx context.Context, rec *MedicalRecord) error
	GetByID(ctx context.Context, id int64) (*MedicalRecord, error)
	GetByAppointment(ctx context.Context, appointmentID int64) (*MedicalRecord, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*MedicalRecord, error)
}
