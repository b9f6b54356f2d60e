package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"dawailo/internal/domain/calendar"
	"dawailo/internal/domain/prescriptions"
)

// prescriptionsRepo guarda cabeceras y medicamentos por separado, igual que
// las tablas SQL, para que Save pueda hacer upsert por id.
type prescriptionsRepo struct {
	mu        sync.RWMutex
	byID      map[string]prescriptions.Prescription
	medicines map[string]prescriptions.Medicine
}

func NewPrescriptionsRepo() prescriptions.Repository {
	return &prescriptionsRepo{
		byID:      make(map[string]prescriptions.Prescription),
		medicines: make(map[string]prescriptions.Medicine),
	}
}

func (r *prescriptionsRepo) Create(ctx context.Context, p prescriptions.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(p.ID) == "" {
		return errors.New("prescription id required")
	}
	if _, exists := r.byID[p.ID]; exists {
		return errors.New("prescription already exists")
	}
	for _, m := range p.Medicines {
		if _, exists := r.medicines[m.ID]; exists {
			return errors.New("medicine already exists")
		}
	}

	r.putLocked(p)
	return nil
}

func (r *prescriptionsRepo) Save(ctx context.Context, p prescriptions.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; !exists {
		return prescriptions.ErrNotFound
	}
	r.putLocked(p)
	return nil
}

func (r *prescriptionsRepo) putLocked(p prescriptions.Prescription) {
	head := p
	head.Medicines = nil
	r.byID[p.ID] = head

	for _, m := range p.Medicines {
		m.PrescriptionID = p.ID
		m.PatientID = p.PatientID
		m.Times = append([]calendar.TimeOfDay(nil), m.Times...)
		if prev, ok := r.medicines[m.ID]; ok {
			m.CreatedAt = prev.CreatedAt
		}
		r.medicines[m.ID] = m
	}
}

func (r *prescriptionsRepo) GetByID(ctx context.Context, id string) (prescriptions.Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return prescriptions.Prescription{}, prescriptions.ErrNotFound
	}
	return r.withMedicinesLocked(p), nil
}

func (r *prescriptionsRepo) ListByPatient(ctx context.Context, patientID string) ([]prescriptions.Prescription, error) {
	return r.list(func(p prescriptions.Prescription) bool { return p.PatientID == patientID }), nil
}

func (r *prescriptionsRepo) ListByDoctor(ctx context.Context, doctorID string) ([]prescriptions.Prescription, error) {
	return r.list(func(p prescriptions.Prescription) bool { return p.DoctorID == doctorID }), nil
}

func (r *prescriptionsRepo) ListAll(ctx context.Context) ([]prescriptions.Prescription, error) {
	return r.list(func(prescriptions.Prescription) bool { return true }), nil
}

func (r *prescriptionsRepo) list(keep func(prescriptions.Prescription) bool) []prescriptions.Prescription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]prescriptions.Prescription, 0)
	for _, p := range r.byID {
		if keep(p) {
			out = append(out, r.withMedicinesLocked(p))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *prescriptionsRepo) withMedicinesLocked(p prescriptions.Prescription) prescriptions.Prescription {
	meds := make([]prescriptions.Medicine, 0)
	for _, m := range r.medicines {
		if m.PrescriptionID == p.ID {
			meds = append(meds, m)
		}
	}
	sortMedicines(meds, func(a, b prescriptions.Medicine) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	p.Medicines = meds
	return p
}

func (r *prescriptionsRepo) GetMedicine(ctx context.Context, id string) (prescriptions.Medicine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.medicines[id]
	if !ok {
		return prescriptions.Medicine{}, prescriptions.ErrNotFound
	}
	return m, nil
}

func (r *prescriptionsRepo) SetMedicineStatus(ctx context.Context, id string, status prescriptions.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.medicines[id]
	if !ok {
		return prescriptions.ErrNotFound
	}
	m.Status = status
	r.medicines[id] = m
	return nil
}

func (r *prescriptionsRepo) ListMedicinesByPatient(ctx context.Context, patientID string) ([]prescriptions.Medicine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]prescriptions.Medicine, 0)
	for _, m := range r.medicines {
		if m.PatientID == patientID {
			out = append(out, m)
		}
	}
	sortMedicines(out, func(a, b prescriptions.Medicine) bool { return a.ID < b.ID })
	return out, nil
}

func sortMedicines(meds []prescriptions.Medicine, less func(a, b prescriptions.Medicine) bool) {
	sort.Slice(meds, func(i, j int) bool { return less(meds[i], meds[j]) })
}
