package prescriptions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dawailo/internal/domain/calendar"
	"dawailo/internal/platform/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrPatientNotFound = errors.New("patient not found")
)

// PatientLookup evita que prescriptions dependa del paquete users.
type PatientLookup interface {
	IsPatient(ctx context.Context, id string) (bool, error)
}

type Service struct {
	repo     Repository
	patients PatientLookup
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientLookup, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     repo,
		patients: patients,
		log:      log.With(map[string]any{"component": "prescriptions"}),
		now:      time.Now,
	}
}

// MedicineInput llega ya con fechas y horas validadas por el handler.
// ID vacío = medicamento nuevo. Status vacío = active (o el actual en Amend).
type MedicineInput struct {
	ID        string
	Name      string
	Dosage    string
	Frequency int
	Times     []calendar.TimeOfDay
	StartDate calendar.Date
	EndDate   calendar.Date
	Status    Status
}

func (s *Service) Create(ctx context.Context, doctorID, patientID string, meds []MedicineInput) (Prescription, error) {
	doctorID = strings.TrimSpace(doctorID)
	patientID = strings.TrimSpace(patientID)
	if doctorID == "" || patientID == "" {
		return Prescription{}, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if len(meds) == 0 {
		return Prescription{}, fmt.Errorf("%w: at least one medicine is required", ErrInvalidInput)
	}

	if err := s.ensurePatient(ctx, patientID); err != nil {
		return Prescription{}, err
	}

	now := s.now().UTC()
	p := Prescription{
		ID:        uuid.NewString(),
		PatientID: patientID,
		DoctorID:  doctorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for i, in := range meds {
		if strings.TrimSpace(in.ID) != "" {
			return Prescription{}, fmt.Errorf("%w: medicine %d: id must be empty on create", ErrInvalidInput, i+1)
		}
		m, err := buildMedicine(i, in, Medicine{})
		if err != nil {
			return Prescription{}, err
		}
		m.ID = uuid.NewString()
		m.PrescriptionID = p.ID
		m.PatientID = patientID
		m.CreatedAt = now
		p.Medicines = append(p.Medicines, m)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.log.Error("create prescription failed", map[string]any{"patient_id": patientID, "error": err})
		return Prescription{}, err
	}

	s.log.Info("prescription created", map[string]any{
		"prescription_id": p.ID,
		"patient_id":      patientID,
		"doctor_id":       doctorID,
		"medicines":       len(p.Medicines),
	})
	return p, nil
}

// Amend reemplaza la lista de medicamentos de la prescripción:
// - con id conocido: se actualiza en el lugar
// - sin id: se inserta
// - los que no vienen: quedan stopped (no se borran; los logs los referencian)
func (s *Service) Amend(ctx context.Context, prescriptionID, doctorID string, meds []MedicineInput) (Prescription, error) {
	prescriptionID = strings.TrimSpace(prescriptionID)
	doctorID = strings.TrimSpace(doctorID)
	if prescriptionID == "" || doctorID == "" {
		return Prescription{}, ErrInvalidInput
	}
	if len(meds) == 0 {
		return Prescription{}, fmt.Errorf("%w: at least one medicine is required", ErrInvalidInput)
	}

	p, err := s.repo.GetByID(ctx, prescriptionID)
	if err != nil {
		return Prescription{}, err
	}
	if p.DoctorID != doctorID {
		return Prescription{}, ErrForbidden
	}

	existing := make(map[string]Medicine, len(p.Medicines))
	for _, m := range p.Medicines {
		existing[m.ID] = m
	}

	now := s.now().UTC()
	kept := make(map[string]bool, len(meds))
	out := make([]Medicine, 0, len(meds)+len(p.Medicines))

	for i, in := range meds {
		id := strings.TrimSpace(in.ID)
		if id == "" {
			m, err := buildMedicine(i, in, Medicine{})
			if err != nil {
				return Prescription{}, err
			}
			m.ID = uuid.NewString()
			m.PrescriptionID = p.ID
			m.PatientID = p.PatientID
			m.CreatedAt = now
			out = append(out, m)
			continue
		}

		cur, ok := existing[id]
		if !ok {
			return Prescription{}, fmt.Errorf("%w: medicine %d: unknown id %q", ErrInvalidInput, i+1, id)
		}
		if kept[id] {
			return Prescription{}, fmt.Errorf("%w: medicine %d: duplicated id %q", ErrInvalidInput, i+1, id)
		}
		m, err := buildMedicine(i, in, cur)
		if err != nil {
			return Prescription{}, err
		}
		kept[id] = true
		out = append(out, m)
	}

	stopped := 0
	for _, m := range p.Medicines {
		if kept[m.ID] {
			continue
		}
		if m.Status != StatusStopped {
			m.Status = StatusStopped
			stopped++
		}
		out = append(out, m)
	}

	p.Medicines = out
	p.UpdatedAt = now

	if err := s.repo.Save(ctx, p); err != nil {
		s.log.Error("amend prescription failed", map[string]any{"prescription_id": p.ID, "error": err})
		return Prescription{}, err
	}

	s.log.Info("prescription amended", map[string]any{
		"prescription_id": p.ID,
		"medicines":       len(meds),
		"stopped":         stopped,
	})
	return p, nil
}

// StopMedicine es idempotente. Solo el doctor que recetó puede suspender.
func (s *Service) StopMedicine(ctx context.Context, medicineID, doctorID string) (Medicine, error) {
	medicineID = strings.TrimSpace(medicineID)
	if medicineID == "" {
		return Medicine{}, ErrInvalidInput
	}

	m, err := s.repo.GetMedicine(ctx, medicineID)
	if err != nil {
		return Medicine{}, err
	}
	p, err := s.repo.GetByID(ctx, m.PrescriptionID)
	if err != nil {
		return Medicine{}, err
	}
	if p.DoctorID != strings.TrimSpace(doctorID) {
		return Medicine{}, ErrForbidden
	}

	if m.Status == StatusStopped {
		return m, nil
	}
	if err := s.repo.SetMedicineStatus(ctx, m.ID, StatusStopped); err != nil {
		return Medicine{}, err
	}
	m.Status = StatusStopped

	s.log.Info("medicine stopped", map[string]any{"medicine_id": m.ID, "patient_id": m.PatientID})
	return m, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Prescription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Prescription{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Prescription, error) {
	return s.repo.ListByPatient(ctx, strings.TrimSpace(patientID))
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID string) ([]Prescription, error) {
	return s.repo.ListByDoctor(ctx, strings.TrimSpace(doctorID))
}

// ListAll es la vista de dispensación del farmacéutico.
func (s *Service) ListAll(ctx context.Context) ([]Prescription, error) {
	return s.repo.ListAll(ctx)
}

// ActiveMedicinesForPatient devuelve los medicamentos vigentes en asOf,
// ordenados por id.
func (s *Service) ActiveMedicinesForPatient(ctx context.Context, patientID string, asOf calendar.Date) ([]Medicine, error) {
	all, err := s.repo.ListMedicinesByPatient(ctx, strings.TrimSpace(patientID))
	if err != nil {
		return nil, err
	}
	out := make([]Medicine, 0, len(all))
	for _, m := range all {
		if m.ActiveOn(asOf) {
			out = append(out, m)
		}
	}
	return out, nil
}

// MedicineOwner devuelve el paciente dueño del medicamento.
// ok=false si el medicamento no existe.
func (s *Service) MedicineOwner(ctx context.Context, medicineID string) (string, bool, error) {
	m, err := s.repo.GetMedicine(ctx, strings.TrimSpace(medicineID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return m.PatientID, true, nil
}

func (s *Service) ensurePatient(ctx context.Context, patientID string) error {
	if s.patients == nil {
		return nil
	}
	ok, err := s.patients.IsPatient(ctx, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientNotFound
	}
	return nil
}

// buildMedicine valida in y lo aplica sobre base (vacío en altas).
func buildMedicine(i int, in MedicineInput, base Medicine) (Medicine, error) {
	bad := func(msg string) error {
		return fmt.Errorf("%w: medicine %d: %s", ErrInvalidInput, i+1, msg)
	}

	name := strings.TrimSpace(in.Name)
	dosage := strings.TrimSpace(in.Dosage)
	switch {
	case name == "":
		return Medicine{}, bad("name is required")
	case dosage == "":
		return Medicine{}, bad("dosage is required")
	case in.Frequency < 1:
		return Medicine{}, bad("frequency must be at least 1")
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return Medicine{}, bad("start_date and end_date are required")
	case in.EndDate.Before(in.StartDate):
		return Medicine{}, bad("end_date must not be before start_date")
	}

	times, err := normalizeTimes(in.Times)
	if err != nil {
		return Medicine{}, bad(err.Error())
	}

	status := in.Status
	switch {
	case status == "" && base.Status != "":
		status = base.Status
	case status == "":
		status = StatusActive
	case !status.Valid():
		return Medicine{}, bad("status must be active or stopped")
	}

	m := base
	m.Name = name
	m.Dosage = dosage
	m.Frequency = in.Frequency
	m.Times = times
	m.StartDate = in.StartDate
	m.EndDate = in.EndDate
	m.Status = status
	return m, nil
}

// normalizeTimes deduplica y ordena; exige al menos una hora.
func normalizeTimes(in []calendar.TimeOfDay) ([]calendar.TimeOfDay, error) {
	seen := make(map[string]bool, len(in))
	out := make([]calendar.TimeOfDay, 0, len(in))
	for _, t := range in {
		if t.IsZero() {
			return nil, calendar.ErrInvalidTimeOfDay
		}
		if seen[t.String()] {
			continue
		}
		seen[t.String()] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one time is required")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out, nil
}
