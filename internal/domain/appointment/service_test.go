package appointment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type mockRepo struct {
	appts  map[int64]*Appointment
	nextID int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[int64]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.nextID++
	a.ID = m.nextID
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, apperr.NotFound("appointment", fmt.Sprintf("%d", id))
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Exists(_ context.Context, id int64) (bool, error) {
	_, ok := m.appts[id]
	return ok, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	a, ok := m.appts[id]
	if !ok {
		return apperr.NotFound("appointment", fmt.Sprintf("%d", id))
	}
	a.Status = status
	return nil
}

func (m *mockRepo) Reschedule(_ context.Context, a *Appointment) error {
	stored, ok := m.appts[a.ID]
	if !ok {
		return apperr.NotFound("appointment", fmt.Sprintf("%d", a.ID))
	}
	stored.DoctorID = a.DoctorID
	stored.ScheduledAt = a.ScheduledAt
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Appointment, int, error) {
	var all []*Appointment
	for _, a := range m.appts {
		cp := *a
		all = append(all, &cp)
	}
	return all, len(all), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID int64) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID int64) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockPatients struct{ ids map[int64]bool }

func (m *mockPatients) Exists(_ context.Context, id int64) (bool, error) { return m.ids[id], nil }

type mockDoctors struct{ ids map[int64]bool }

func (m *mockDoctors) IsDoctor(_ context.Context, id int64) (bool, error) { return m.ids[id], nil }

func newTestService(repo *mockRepo) *Service {
	return NewService(repo,
		&mockPatients{ids: map[int64]bool{1: true}},
		&mockDoctors{ids: map[int64]bool{10: true}},
	)
}

func book(t *testing.T, svc *Service) *Appointment {
	t.Helper()
	a, err := svc.Create(context.Background(), CreateInput{
		PatientID:   1,
		DoctorID:    10,
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return a
}

func TestCreateAppointment(t *testing.T) {
	svc := newTestService(newMockRepo())
	a := book(t, svc)

	if a.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", a.Status)
	}
}

func TestCreateAppointmentUnknownPatient(t *testing.T) {
	svc := newTestService(newMockRepo())
	_, err := svc.Create(context.Background(), CreateInput{
		PatientID: 99, DoctorID: 10, ScheduledAt: time.Now(),
	})
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCreateAppointmentNonDoctor(t *testing.T) {
	svc := newTestService(newMockRepo())
	_, err := svc.Create(context.Background(), CreateInput{
		PatientID: 1, DoctorID: 99, ScheduledAt: time.Now(),
	})
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateStatusLifecycle(t *testing.T) {
	svc := newTestService(newMockRepo())
	a := book(t, svc)

	updated, err := svc.UpdateStatus(context.Background(), a.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}

	// A completed appointment cannot be cancelled.
	if _, err := svc.UpdateStatus(context.Background(), a.ID, StatusCancelled); !apperr.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	svc := newTestService(newMockRepo())
	a := book(t, svc)

	if _, err := svc.UpdateStatus(context.Background(), a.ID, Status("noshow")); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestReschedule(t *testing.T) {
	svc := newTestService(newMockRepo())
	a := book(t, svc)
	newTime := a.ScheduledAt.Add(48 * time.Hour)

	updated, err := svc.Reschedule(context.Background(), a.ID, 0, newTime)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !updated.ScheduledAt.Equal(newTime) {
		t.Errorf("expected %v, got %v", newTime, updated.ScheduledAt)
	}
	if updated.DoctorID != a.DoctorID {
		t.Errorf("expected doctor unchanged, got %d", updated.DoctorID)
	}
}

func TestRescheduleCancelledRejected(t *testing.T) {
	svc := newTestService(newMockRepo())
	a := book(t, svc)

	if _, err := svc.UpdateStatus(context.Background(), a.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := svc.Reschedule(context.Background(), a.ID, 0, time.Now().Add(time.Hour))
	if !apperr.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
}
