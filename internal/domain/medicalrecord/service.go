package medicalrecord

import (
	"context"
	"strings"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

// AppointmentSource resolves the patient and doctor behind an appointment.
type AppointmentSource interface {
	Lookup(ctx context.Context, id int64) (patientID, doctorID int64, err error)
}

type Service struct {
	repo  Repository
	appts AppointmentSource
	tx    func(ctx context.Context, fn func(context.Context) error) error
}

func NewService(repo Repository, appts AppointmentSource) *Service {
	return &Service{repo: repo, appts: appts, tx: db.WithTx}
}

// CreateInput carries the clinical fields; patient and doctor are derived
// from the appointment, never taken from the client.
type CreateInput struct {
	AppointmentID int64  `json:"appointment_id"`
	Diagnosis     string `json:"diagnosis"`
	Treatment     string `json:"treatment"`
	Notes         string `json:"notes"`
}

// Create writes the record for an appointment. Each appointment carries at
// most one record.
func (s *Service) Create(ctx context.Context, in CreateInput) (*MedicalRecord, error) {
	if in.AppointmentID <= 0 {
		return nil, apperr.Validation("appointment_id", "must reference an appointment")
	}
	if strings.TrimSpace(in.Diagnosis) == "" {
		return nil, apperr.Validation("diagnosis", "must not be empty")
	}

	patientID, doctorID, err := s.appts.Lookup(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}

	rec := &MedicalRecord{
		AppointmentID: in.AppointmentID,
		PatientID:     patientID,
		DoctorID:      doctorID,
		Diagnosis:     in.Diagnosis,
		Treatment:     in.Treatment,
		Notes:         in.Notes,
	}

	// The uniqueness check and the insert run in one transaction; the unique
	// index on appointment_id backstops concurrent writers.
	err = s.tx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetByAppointment(ctx, in.AppointmentID); err == nil {
			return apperr.Conflict("appointment already has a medical record")
		} else if !apperr.IsNotFound(err) {
			return err
		}
		return s.repo.Create(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*MedicalRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByAppointment(ctx context.Context, appointmentID int64) (*MedicalRecord, error) {
	return s.repo.GetByAppointment(ctx, appointmentID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*MedicalRecord, error) {
	return s.repo.ListByPatient(ctx, patientID)
}
