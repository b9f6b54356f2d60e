package prescriptions

import (
	"time"

	"dawailo/internal/domain/calendar"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusStopped Status = "stopped"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusStopped
}

// Prescription agrupa los medicamentos que un doctor indica a un paciente.
type Prescription struct {
	ID        string
	PatientID string
	DoctorID  string

	Medicines []Medicine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Medicine es la representación canónica de un medicamento recetado.
// PatientID se copia de la prescripción para no tener que hacer join en cada lectura.
type Medicine struct {
	ID             string
	PrescriptionID string
	PatientID      string

	Name      string
	Dosage    string
	Frequency int // informativo; los slots salen de Times

	Times     []calendar.TimeOfDay
	StartDate calendar.Date
	EndDate   calendar.Date

	Status    Status
	CreatedAt time.Time
}

// ActiveOn: status activo y d dentro de [StartDate, EndDate].
func (m Medicine) ActiveOn(d calendar.Date) bool {
	return m.Status == StatusActive && d.Within(m.StartDate, m.EndDate)
}
