package appointment

import (
	"context"
	"strconv"
	"time"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// PatientChecker verifies a patient exists without importing that domain.
type PatientChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// DoctorChecker verifies a staff user exists and holds the doctor role.
type DoctorChecker interface {
	IsDoctor(ctx context.Context, id int64) (bool, error)
}

type Service struct {
	repo     Repository
	patients PatientChecker
	doctors  DoctorChecker
}

func NewService(repo Repository, patients PatientChecker, doctors DoctorChecker) *Service {
	return &Service{repo: repo, patients: patients, doctors: doctors}
}

// CreateInput carries the fields needed to book an appointment.
type CreateInput struct {
	PatientID   int64     `json:"patient_id"`
	DoctorID    int64     `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if in.ScheduledAt.IsZero() {
		return nil, apperr.Validation("scheduled_at", "must be set")
	}

	ok, err := s.patients.Exists(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("patient", strconv.FormatInt(in.PatientID, 10))
	}

	ok, err = s.doctors.IsDoctor(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Validation("doctor_id", "must reference a doctor")
	}

	a := &Appointment{
		PatientID:   in.PatientID,
		DoctorID:    in.DoctorID,
		ScheduledAt: in.ScheduledAt,
		Status:      StatusScheduled,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Exists reports whether an appointment exists. The payment service uses
// this before opening a payment.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// UpdateStatus moves an appointment through its lifecycle. A cancelled or
// completed appointment stays where it is.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, apperr.Validation("status", "unknown status")
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusScheduled && a.Status != status {
		return nil, apperr.Conflict("appointment is already " + string(a.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	a.Status = status
	return a, nil
}

// Reschedule moves a scheduled appointment to a new time, optionally with a
// different doctor.
func (s *Service) Reschedule(ctx context.Context, id, doctorID int64, at time.Time) (*Appointment, error) {
	if at.IsZero() {
		return nil, apperr.Validation("scheduled_at", "must be set")
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusScheduled {
		return nil, apperr.Conflict("only scheduled appointments can be rescheduled")
	}

	if doctorID != 0 && doctorID != a.DoctorID {
		ok, err := s.doctors.IsDoctor(ctx, doctorID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Validation("doctor_id", "must reference a doctor")
		}
		a.DoctorID = doctorID
	}
	a.ScheduledAt = at

	if err := s.repo.Reschedule(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Appointment, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID int64) ([]*Appointment, error) {
	return s.repo.ListByDoctor(ctx, doctorID)
}
