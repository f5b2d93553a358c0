package medicalrecord

import "time"

// MedicalRecord is the clinical outcome of one appointment.
type MedicalRecord struct {
	ID            int64     `json:"id"`
	AppointmentID int64     `json:"appointment_id"`
	PatientID     int64     `json:"patient_id"`
	DoctorID      int64     `json:"doctor_id"`
	Diagnosis     string    `json:"diagnosis"`
	Treatment     string    `json:"treatment"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}
