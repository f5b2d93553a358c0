package appointment

import "context"

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	Exists(ctx context.Context, id int64) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Reschedule(ctx context.Context, a *Appointment) error
	List(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID int64) ([]*Appointment, error)
}
