package adherence

import (
	"time"

	"dawailo/internal/domain/calendar"
)

type Status string

const (
	StatusTaken  Status = "taken"
	StatusMissed Status = "missed"
)

func (s Status) Valid() bool {
	return s == StatusTaken || s == StatusMissed
}

// Log es la respuesta del paciente a un slot de dosis. Inmutable.
// (MedicineID, ScheduledTime) identifica el slot: hay a lo sumo un Log por slot.
type Log struct {
	ID            string
	MedicineID    string
	PatientID     string
	ScheduledTime calendar.SlotKey
	Status        Status
	MarkedAt      time.Time
}
