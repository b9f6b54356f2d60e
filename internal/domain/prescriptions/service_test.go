package prescriptions

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"dawailo/internal/domain/calendar"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	byID map[string]Prescription
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Prescription{}}
}

func (r *testRepo) Create(ctx context.Context, p Prescription) error {
	if _, ok := r.byID[p.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) Save(ctx context.Context, p Prescription) error {
	if _, ok := r.byID[p.ID]; !ok {
		return ErrNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Prescription, error) {
	p, ok := r.byID[id]
	if !ok {
		return Prescription{}, ErrNotFound
	}
	return p, nil
}

func (r *testRepo) list(keep func(Prescription) bool) []Prescription {
	out := make([]Prescription, 0)
	for _, p := range r.byID {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *testRepo) ListByPatient(ctx context.Context, patientID string) ([]Prescription, error) {
	return r.list(func(p Prescription) bool { return p.PatientID == patientID }), nil
}

func (r *testRepo) ListByDoctor(ctx context.Context, doctorID string) ([]Prescription, error) {
	return r.list(func(p Prescription) bool { return p.DoctorID == doctorID }), nil
}

func (r *testRepo) ListAll(ctx context.Context) ([]Prescription, error) {
	return r.list(func(Prescription) bool { return true }), nil
}

func (r *testRepo) GetMedicine(ctx context.Context, id string) (Medicine, error) {
	for _, p := range r.byID {
		for _, m := range p.Medicines {
			if m.ID == id {
				return m, nil
			}
		}
	}
	return Medicine{}, ErrNotFound
}

func (r *testRepo) SetMedicineStatus(ctx context.Context, id string, status Status) error {
	for pid, p := range r.byID {
		for i, m := range p.Medicines {
			if m.ID == id {
				p.Medicines[i].Status = status
				r.byID[pid] = p
				return nil
			}
		}
	}
	return ErrNotFound
}

func (r *testRepo) ListMedicinesByPatient(ctx context.Context, patientID string) ([]Medicine, error) {
	out := make([]Medicine, 0)
	for _, p := range r.byID {
		if p.PatientID != patientID {
			continue
		}
		out = append(out, p.Medicines...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type testPatients map[string]bool

func (t testPatients) IsPatient(ctx context.Context, id string) (bool, error) {
	return t[id], nil
}

func newTestService() (*Service, *testRepo) {
	repo := newTestRepo()
	svc := NewService(repo, testPatients{"patient1": true, "patient2": true}, nil)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return svc, repo
}

func med(name string, times ...string) MedicineInput {
	tt := make([]calendar.TimeOfDay, 0, len(times))
	for _, s := range times {
		tt = append(tt, calendar.MustTimeOfDay(s))
	}
	return MedicineInput{
		Name:      name,
		Dosage:    "500mg",
		Frequency: len(times),
		Times:     tt,
		StartDate: calendar.NewDate(2026, time.March, 1),
		EndDate:   calendar.NewDate(2026, time.March, 31),
	}
}

func TestCreate_NormalizesTimesAndDefaultsStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, "doc1", "patient1", []MedicineInput{med("Paracetamol", "20:00", "08:00", "08:00")})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(p.Medicines) != 1 {
		t.Fatalf("expected 1 medicine, got %d", len(p.Medicines))
	}
	m := p.Medicines[0]
	if m.Status != StatusActive || m.PatientID != "patient1" || m.PrescriptionID != p.ID {
		t.Fatalf("unexpected medicine: %#v", m)
	}
	if len(m.Times) != 2 || m.Times[0].String() != "08:00" || m.Times[1].String() != "20:00" {
		t.Fatalf("expected deduplicated sorted times, got %v", m.Times)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, "doc1", "ghost", []MedicineInput{med("A", "08:00")}); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	if _, err := svc.Create(ctx, "doc1", "patient1", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for no medicines, got %v", err)
	}

	noTimes := med("A")
	noTimes.Frequency = 1
	reversed := med("B", "08:00")
	reversed.StartDate, reversed.EndDate = reversed.EndDate, reversed.StartDate
	noName := med("", "08:00")
	zeroFreq := med("C", "08:00")
	zeroFreq.Frequency = 0

	for _, in := range []MedicineInput{noTimes, reversed, noName, zeroFreq} {
		if _, err := svc.Create(ctx, "doc1", "patient1", []MedicineInput{in}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %#v, got %v", in, err)
		}
	}
}

func TestAmend_UpdatesInsertsAndStopsOmitted(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, "doc1", "patient1", []MedicineInput{med("A", "08:00"), med("B", "12:00")})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	idA, idB := p.Medicines[0].ID, p.Medicines[1].ID

	updA := med("A", "09:00")
	updA.ID = idA
	updA.Dosage = "1g"

	if _, err := svc.Amend(ctx, p.ID, "doc2", []MedicineInput{updA}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another doctor, got %v", err)
	}

	amended, err := svc.Amend(ctx, p.ID, "doc1", []MedicineInput{updA, med("C", "21:00")})
	if err != nil {
		t.Fatalf("Amend error: %v", err)
	}
	if len(amended.Medicines) != 3 {
		t.Fatalf("expected 3 medicines (A updated, C new, B stopped), got %d", len(amended.Medicines))
	}

	byID := map[string]Medicine{}
	for _, m := range repo.byID[p.ID].Medicines {
		byID[m.ID] = m
	}
	if a := byID[idA]; a.Dosage != "1g" || a.Times[0].String() != "09:00" || a.Status != StatusActive {
		t.Fatalf("A should be updated in place, got %#v", a)
	}
	if b := byID[idB]; b.Status != StatusStopped {
		t.Fatalf("B should be stopped, got %s", b.Status)
	}
	if !amended.UpdatedAt.After(p.UpdatedAt) {
		t.Fatalf("updated_at should move forward")
	}

	unknown := med("X", "08:00")
	unknown.ID = "nope"
	if _, err := svc.Amend(ctx, p.ID, "doc1", []MedicineInput{unknown}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown id, got %v", err)
	}
}

func TestStopMedicine_IdempotentAndOwnerOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p, _ := svc.Create(ctx, "doc1", "patient1", []MedicineInput{med("A", "08:00")})
	id := p.Medicines[0].ID

	if _, err := svc.StopMedicine(ctx, id, "doc2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	for i := 0; i < 2; i++ {
		m, err := svc.StopMedicine(ctx, id, "doc1")
		if err != nil || m.Status != StatusStopped {
			t.Fatalf("stop #%d: status=%s err=%v", i+1, m.Status, err)
		}
	}
	if _, err := svc.StopMedicine(ctx, "missing", "doc1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActiveMedicinesForPatient(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	later := med("Later", "10:00")
	later.StartDate = calendar.NewDate(2026, time.April, 1)
	later.EndDate = calendar.NewDate(2026, time.April, 10)

	p, _ := svc.Create(ctx, "doc1", "patient1", []MedicineInput{med("Now", "08:00"), later, med("Stopped", "09:00")})
	_, _ = svc.Create(ctx, "doc1", "patient2", []MedicineInput{med("Other", "08:00")})

	var stoppedID string
	for _, m := range p.Medicines {
		if m.Name == "Stopped" {
			stoppedID = m.ID
		}
	}
	if _, err := svc.StopMedicine(ctx, stoppedID, "doc1"); err != nil {
		t.Fatalf("StopMedicine error: %v", err)
	}

	got, err := svc.ActiveMedicinesForPatient(ctx, "patient1", calendar.NewDate(2026, time.March, 31))
	if err != nil {
		t.Fatalf("ActiveMedicinesForPatient error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Now" {
		t.Fatalf("expected only 'Now', got %#v", got)
	}

	got, _ = svc.ActiveMedicinesForPatient(ctx, "patient1", calendar.NewDate(2026, time.April, 1))
	if len(got) != 1 || got[0].Name != "Later" {
		t.Fatalf("expected only 'Later' on April 1st, got %#v", got)
	}
}

func TestMedicineOwner(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p, _ := svc.Create(ctx, "doc1", "patient2", []MedicineInput{med("A", "08:00")})

	owner, ok, err := svc.MedicineOwner(ctx, p.Medicines[0].ID)
	if err != nil || !ok || owner != "patient2" {
		t.Fatalf("MedicineOwner = %q, %v, %v", owner, ok, err)
	}
	if _, ok, err := svc.MedicineOwner(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing medicine: ok=%v err=%v", ok, err)
	}
}
