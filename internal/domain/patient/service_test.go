package patient

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type mockRepo struct {
	patients map[int64]*Patient
	nextID   int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[int64]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient", fmt.Sprintf("%d", id))
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Exists(_ context.Context, id int64) (bool, error) {
	_, ok := m.patients[id]
	return ok, nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperr.NotFound("patient", fmt.Sprintf("%d", p.ID))
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.patients[id]; !ok {
		return apperr.NotFound("patient", fmt.Sprintf("%d", id))
	}
	delete(m.patients, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var all []*Patient
	for _, p := range m.patients {
		cp := *p
		all = append(all, &cp)
	}
	return all, len(all), nil
}

func (m *mockRepo) Search(_ context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		if strings.Contains(p.Name, query) || strings.Contains(p.NationalID, query) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func TestCreatePatient(t *testing.T) {
	svc := NewService(newMockRepo())
	p := &Patient{Name: "Siti Rahma", NationalID: "3171234567890001", Phone: "0812000111"}

	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == 0 {
		t.Error("expected id to be assigned")
	}
}

func TestCreatePatientValidation(t *testing.T) {
	svc := NewService(newMockRepo())

	if err := svc.Create(context.Background(), &Patient{NationalID: "1"}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for empty name, got %v", err)
	}
	if err := svc.Create(context.Background(), &Patient{Name: "A"}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for empty national id, got %v", err)
	}
}

func TestUpdatePatientNotFound(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.Update(context.Background(), &Patient{ID: 9, Name: "X", NationalID: "1"})
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListUsesSearchWhenQueryPresent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for _, name := range []string{"Siti Rahma", "Budi Santoso"} {
		if err := svc.Create(ctx, &Patient{Name: name, NationalID: name}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	items, total, err := svc.List(ctx, "Budi", 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Name != "Budi Santoso" {
		t.Errorf("expected only Budi Santoso, got %d items", len(items))
	}

	_, total, err = svc.List(ctx, "", 20, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 patients, got %d", total)
	}
}

func TestDeletePatient(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	p := &Patient{Name: "Siti", NationalID: "317"}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, p.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}
